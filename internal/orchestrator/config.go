package orchestrator

import (
	"errors"
	"fmt"
)

// ErrInvalidStrategyConfig is returned for out-of-range strategy settings.
var ErrInvalidStrategyConfig = errors.New("invalid decomposition strategy config")

// Config holds decomposition and collaboration settings.
type Config struct {
	MultiFile     MultiFileConfig    `koanf:"multi_file" json:"multi_file"`
	MultiPhase    MultiPhaseConfig   `koanf:"multi_phase" json:"multi_phase"`
	ComplexQuery  ComplexQueryConfig `koanf:"complex_query" json:"complex_query"`
	Collaboration bool               `koanf:"collaboration" json:"collaboration"`
}

// MultiFileConfig configures the multi-file analysis strategy.
type MultiFileConfig struct {
	MinFiles int      `koanf:"min_files" json:"min_files"`
	Keywords []string `koanf:"keywords" json:"keywords"`
}

// MultiPhaseConfig configures the multi-phase creative strategy.
type MultiPhaseConfig struct {
	MinPhases int `koanf:"min_phases" json:"min_phases"`
}

// ComplexQueryConfig configures the complex-query strategy.
type ComplexQueryConfig struct {
	MinLength      int `koanf:"min_length" json:"min_length"`
	MinConnectives int `koanf:"min_connectives" json:"min_connectives"`
	MaxSubtasks    int `koanf:"max_subtasks" json:"max_subtasks"`
}

// DefaultConfig returns the standard strategy thresholds.
func DefaultConfig() Config {
	return Config{
		MultiFile: MultiFileConfig{
			MinFiles: 2,
			Keywords: []string{"analyze", "analyse", "analysis", "review", "audit", "inspect", "compare", "examine"},
		},
		MultiPhase: MultiPhaseConfig{
			MinPhases: 2,
		},
		ComplexQuery: ComplexQueryConfig{
			MinLength:      200,
			MinConnectives: 3,
			MaxSubtasks:    6,
		},
		Collaboration: true,
	}
}

// Validate checks the strategy settings.
func (c Config) Validate() error {
	if c.MultiFile.MinFiles < 2 {
		return fmt.Errorf("%w: multi_file.min_files must be at least 2, got %d", ErrInvalidStrategyConfig, c.MultiFile.MinFiles)
	}
	if len(c.MultiFile.Keywords) == 0 {
		return fmt.Errorf("%w: multi_file.keywords cannot be empty", ErrInvalidStrategyConfig)
	}
	if c.MultiPhase.MinPhases < 2 {
		return fmt.Errorf("%w: multi_phase.min_phases must be at least 2, got %d", ErrInvalidStrategyConfig, c.MultiPhase.MinPhases)
	}
	if c.ComplexQuery.MinLength < 1 {
		return fmt.Errorf("%w: complex_query.min_length must be positive", ErrInvalidStrategyConfig)
	}
	if c.ComplexQuery.MinConnectives < 1 {
		return fmt.Errorf("%w: complex_query.min_connectives must be positive", ErrInvalidStrategyConfig)
	}
	if c.ComplexQuery.MaxSubtasks < 2 {
		return fmt.Errorf("%w: complex_query.max_subtasks must be at least 2, got %d", ErrInvalidStrategyConfig, c.ComplexQuery.MaxSubtasks)
	}
	return nil
}

package execution

import (
	"errors"
	"fmt"
)

// maxRenderings is the number of distinct correction renderings available.
const maxRenderings = 3

// Weights scores correction alternatives.
type Weights struct {
	Novelty     float64 `koanf:"novelty" json:"novelty"`
	Reliability float64 `koanf:"reliability" json:"reliability"`
	Compliance  float64 `koanf:"compliance" json:"compliance"`
}

// Config controls post-execution self-correction.
type Config struct {
	SelfCorrection  bool    `koanf:"self_correction" json:"self_correction"`
	MaxAlternatives int     `koanf:"max_alternatives" json:"max_alternatives"`
	Weights         Weights `koanf:"weights" json:"weights"`
}

// DefaultConfig returns self-correction enabled with three alternatives
// weighted 0.3/0.4/0.3.
func DefaultConfig() Config {
	return Config{
		SelfCorrection:  true,
		MaxAlternatives: maxRenderings,
		Weights: Weights{
			Novelty:     0.3,
			Reliability: 0.4,
			Compliance:  0.3,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxAlternatives < 0 || c.MaxAlternatives > maxRenderings {
		return fmt.Errorf("max_alternatives must be between 0 and %d, got %d", maxRenderings, c.MaxAlternatives)
	}
	w := c.Weights
	if w.Novelty < 0 || w.Reliability < 0 || w.Compliance < 0 {
		return errors.New("correction weights must not be negative")
	}
	if w.Novelty+w.Reliability+w.Compliance == 0 {
		return errors.New("correction weights must not all be zero")
	}
	return nil
}

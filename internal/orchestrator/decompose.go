package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/concord/internal/task"
)

// Strategy names.
const (
	StrategyMultiFile    = "multi_file_analysis"
	StrategyMultiPhase   = "multi_phase_creative"
	StrategyComplexQuery = "complex_query"
)

// Decomposer is a named predicate plus transform over a task.
type Decomposer interface {
	// Name returns the strategy identifier.
	Name() string
	// Match reports whether the strategy applies to t.
	Match(t *task.Task) bool
	// Split returns the subtask specs for t.
	Split(t *task.Task) ([]task.Spec, error)
}

// DefaultDecomposers returns the built-in strategies in evaluation order.
func DefaultDecomposers(cfg Config) []Decomposer {
	return []Decomposer{
		NewMultiFileDecomposer(cfg.MultiFile),
		NewMultiPhaseDecomposer(cfg.MultiPhase),
		NewComplexQueryDecomposer(cfg.ComplexQuery),
	}
}

// subtaskSpec derives the spec of the n-th (1-based) subtask of parent.
func subtaskSpec(parent *task.Task, n int, description string) task.Spec {
	return task.Spec{
		ID:                   fmt.Sprintf("%s-sub-%d", parent.ID(), n),
		Description:          description,
		Priority:             parent.Priority(),
		RequiredCapabilities: parent.RequiredCapabilities(),
		ParentTaskID:         parent.ID(),
	}
}

// MultiFileDecomposer splits an analysis request spanning several files into
// one subtask per file.
type MultiFileDecomposer struct {
	cfg     MultiFileConfig
	keyword *regexp.Regexp
}

// NewMultiFileDecomposer creates the multi-file analysis strategy.
func NewMultiFileDecomposer(cfg MultiFileConfig) *MultiFileDecomposer {
	return &MultiFileDecomposer{cfg: cfg, keyword: wordPattern(cfg.Keywords)}
}

// Name implements Decomposer.
func (d *MultiFileDecomposer) Name() string { return StrategyMultiFile }

// Match implements Decomposer.
func (d *MultiFileDecomposer) Match(t *task.Task) bool {
	return len(t.Hints().Files) >= d.cfg.MinFiles && d.keyword.MatchString(t.Description())
}

// Split implements Decomposer.
func (d *MultiFileDecomposer) Split(t *task.Task) ([]task.Spec, error) {
	files := t.Hints().Files
	specs := make([]task.Spec, 0, len(files))
	for i, f := range files {
		specs = append(specs, subtaskSpec(t, i+1, fmt.Sprintf("%s (file: %s)", t.Description(), f)))
	}
	return specs, nil
}

// MultiPhaseDecomposer splits a creative request into its ordered phases.
type MultiPhaseDecomposer struct {
	cfg MultiPhaseConfig
}

// NewMultiPhaseDecomposer creates the multi-phase creative strategy.
func NewMultiPhaseDecomposer(cfg MultiPhaseConfig) *MultiPhaseDecomposer {
	return &MultiPhaseDecomposer{cfg: cfg}
}

// Name implements Decomposer.
func (d *MultiPhaseDecomposer) Name() string { return StrategyMultiPhase }

// Match implements Decomposer.
func (d *MultiPhaseDecomposer) Match(t *task.Task) bool {
	return len(t.Hints().Phases) >= d.cfg.MinPhases
}

// Split implements Decomposer.
func (d *MultiPhaseDecomposer) Split(t *task.Task) ([]task.Spec, error) {
	phases := t.Hints().Phases
	specs := make([]task.Spec, 0, len(phases))
	for i, p := range phases {
		desc := fmt.Sprintf("Phase %d of %d (%s): %s", i+1, len(phases), p, t.Description())
		specs = append(specs, subtaskSpec(t, i+1, desc))
	}
	return specs, nil
}

var (
	connectiveWord  = regexp.MustCompile(`(?i)\b(?:and|then|also)\b`)
	clauseSeparator = regexp.MustCompile(`(?i)\s*(?:[,;]|\b(?:and|then|also)\b)\s*`)
)

// ComplexQueryDecomposer splits long requests with several connectives into
// clauses.
type ComplexQueryDecomposer struct {
	cfg ComplexQueryConfig
}

// NewComplexQueryDecomposer creates the complex-query strategy.
func NewComplexQueryDecomposer(cfg ComplexQueryConfig) *ComplexQueryDecomposer {
	return &ComplexQueryDecomposer{cfg: cfg}
}

// Name implements Decomposer.
func (d *ComplexQueryDecomposer) Name() string { return StrategyComplexQuery }

// Match implements Decomposer.
func (d *ComplexQueryDecomposer) Match(t *task.Task) bool {
	desc := t.Description()
	if len(desc) <= d.cfg.MinLength {
		return false
	}
	n := len(connectiveWord.FindAllStringIndex(desc, -1)) + strings.Count(desc, ";")
	return n >= d.cfg.MinConnectives
}

// Split implements Decomposer. Clauses of fewer than two words are folded
// into the previous clause; clauses beyond the maximum are merged into the
// last subtask.
func (d *ComplexQueryDecomposer) Split(t *task.Task) ([]task.Spec, error) {
	var clauses []string
	for _, part := range clauseSeparator.Split(t.Description(), -1) {
		part = strings.Trim(strings.TrimSpace(part), ".?!")
		if part == "" {
			continue
		}
		if len(strings.Fields(part)) < 2 && len(clauses) > 0 {
			clauses[len(clauses)-1] += " " + part
			continue
		}
		clauses = append(clauses, part)
	}
	if limit := d.cfg.MaxSubtasks; len(clauses) > limit {
		tail := strings.Join(clauses[limit-1:], "; ")
		clauses = append(clauses[:limit-1], tail)
	}

	specs := make([]task.Spec, 0, len(clauses))
	for i, c := range clauses {
		specs = append(specs, subtaskSpec(t, i+1, c))
	}
	return specs, nil
}

func wordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return regexp.MustCompile(`a^`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

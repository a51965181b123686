// Package validation evaluates input/output text against a fixed, ordered
// set of principles. Each principle is a pure Rule; the Engine runs all of
// them on every call and aggregates a Verdict.
//
// Verdicts are deterministic: identical inputs yield identical verdicts.
// Nothing is cached between calls.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Phase identifies when validation runs relative to execution.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Metadata describes the task being validated.
type Metadata struct {
	TaskID     string `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	ExecutorID string `json:"executor_id,omitempty" yaml:"executor_id,omitempty"`
	Phase      Phase  `json:"phase" yaml:"phase"`
	Priority   int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Input is one validation request.
type Input struct {
	Text      string
	Output    string
	HasOutput bool
	Metadata  Metadata
}

// PreInput builds an input for pre-execution validation.
func PreInput(text string, md Metadata) Input {
	md.Phase = PhasePre
	return Input{Text: text, Metadata: md}
}

// PostInput builds an input for post-execution validation.
func PostInput(text, output string, md Metadata) Input {
	md.Phase = PhasePost
	return Input{Text: text, Output: output, HasOutput: true, Metadata: md}
}

// RuleResult is the verdict of a single rule.
type RuleResult struct {
	Compliant  bool    `json:"compliant" yaml:"compliant"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Detail     string  `json:"detail" yaml:"detail"`
	Correction string  `json:"correction,omitempty" yaml:"correction,omitempty"`
}

// Rule is a pure check over an Input.
type Rule interface {
	Name() string
	Evaluate(in Input) RuleResult
}

// Verdict aggregates every rule's result.
type Verdict struct {
	// Order lists rule names in evaluation order.
	Order               []string              `json:"order" yaml:"order"`
	Results             map[string]RuleResult `json:"results" yaml:"results"`
	OverallCompliant    bool                  `json:"overall_compliant" yaml:"overall_compliant"`
	AggregateConfidence float64               `json:"aggregate_confidence" yaml:"aggregate_confidence"`
}

// Result returns the result for the named rule.
func (v Verdict) Result(name string) (RuleResult, bool) {
	r, ok := v.Results[name]
	return r, ok
}

// Violations returns the names of non-compliant rules in evaluation order.
func (v Verdict) Violations() []string {
	var out []string
	for _, name := range v.Order {
		if !v.Results[name].Compliant {
			out = append(out, name)
		}
	}
	return out
}

// Guidance joins the correction text of every non-compliant rule.
func (v Verdict) Guidance() string {
	var parts []string
	for _, name := range v.Order {
		r := v.Results[name]
		if !r.Compliant && r.Correction != "" {
			parts = append(parts, r.Correction)
		}
	}
	return strings.Join(parts, " ")
}

// Errors for engine construction.
var (
	ErrNoRules       = errors.New("validation engine requires at least one rule")
	ErrDuplicateRule = errors.New("duplicate rule name")
)

// unevaluatedConfidence is reported by a rule that could not evaluate.
const unevaluatedConfidence = 0.5

// Engine evaluates an immutable, ordered rule set.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over the given rules, in order.
func NewEngine(rules ...Rule) (*Engine, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r == nil {
			return nil, errors.New("nil rule")
		}
		if _, ok := seen[r.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, r.Name())
		}
		seen[r.Name()] = struct{}{}
	}
	return &Engine{rules: append([]Rule(nil), rules...)}, nil
}

// NewDefaultEngine creates an engine over DefaultRules.
func NewDefaultEngine() *Engine {
	e, err := NewEngine(DefaultRules()...)
	if err != nil {
		panic(fmt.Sprintf("validation: default rules invalid: %v", err))
	}
	return e
}

// RuleNames returns the rule names in evaluation order.
func (e *Engine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Validate runs every rule, without short-circuiting, and aggregates:
// overall compliance is the conjunction of all rules and the aggregate
// confidence is the mean rule confidence. Validate never panics.
func (e *Engine) Validate(in Input) Verdict {
	v := Verdict{
		Order:            make([]string, 0, len(e.rules)),
		Results:          make(map[string]RuleResult, len(e.rules)),
		OverallCompliant: true,
	}

	var total float64
	for _, rule := range e.rules {
		r := evaluate(rule, in)
		v.Order = append(v.Order, rule.Name())
		v.Results[rule.Name()] = r
		v.OverallCompliant = v.OverallCompliant && r.Compliant
		total += r.Confidence
	}
	v.AggregateConfidence = total / float64(len(e.rules))
	return v
}

// evaluate runs one rule, turning a panic into a compliant result with
// reduced confidence.
func evaluate(rule Rule, in Input) (res RuleResult) {
	defer func() {
		if r := recover(); r != nil {
			res = RuleResult{
				Compliant:  true,
				Confidence: unevaluatedConfidence,
				Detail:     fmt.Sprintf("rule could not evaluate: %v", r),
			}
		}
	}()
	res = rule.Evaluate(in)
	res.Confidence = clamp01(res.Confidence)
	return res
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

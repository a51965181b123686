package execution

import (
	"strings"

	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/validation"
)

// Rendering kinds, in generation order.
const (
	RenderPrincipleGuided = "principle_guided"
	RenderNovelty         = "novelty"
	RenderReliability     = "reliability"
)

// Alternative is a candidate replacement for a non-compliant output.
type Alternative struct {
	Kind        string
	Text        string
	Novelty     float64
	Reliability float64
	Compliance  float64
	Score       float64
}

type renderer func(in validation.Input, v validation.Verdict) string

var renderers = []struct {
	kind   string
	render renderer
}{
	{RenderPrincipleGuided, renderPrincipleGuided},
	{RenderNovelty, renderNovelty},
	{RenderReliability, renderReliability},
}

// renderPrincipleGuided applies the corrections of the violated rules.
func renderPrincipleGuided(in validation.Input, v validation.Verdict) string {
	return validation.Rewrite(in, v)
}

// renderNovelty reframes the corrected output and invites other approaches.
func renderNovelty(in validation.Input, v validation.Verdict) string {
	base := validation.Rewrite(in, v)
	terms := validation.SignificantWords(in.Text)
	if len(terms) > 3 {
		terms = terms[:3]
	}
	var b strings.Builder
	b.WriteString("One way to look at it: ")
	b.WriteString(base)
	b.WriteString("\n\nOther approaches worth exploring")
	if len(terms) > 0 {
		b.WriteString(" for ")
		b.WriteString(strings.Join(terms, ", "))
	}
	b.WriteString(" may lead to a different answer.")
	return b.String()
}

// renderReliability applies every correction regardless of the verdict and
// adds a verification note.
func renderReliability(in validation.Input, _ validation.Verdict) string {
	out := validation.Hedge(validation.RedactSensitive(validation.StripHarmful(in.Output)))
	return out + "\n\nVerify these points against a primary source before relying on them."
}

// correct generates up to k renderings of in.Output, scores each by
// re-validating it, and returns the highest scoring one. Ties keep the
// earlier rendering.
func (w *Wrapper) correct(in validation.Input, v validation.Verdict) (Alternative, bool) {
	k := w.cfg.MaxAlternatives
	if k > len(renderers) {
		k = len(renderers)
	}

	var best Alternative
	found := false
	for _, r := range renderers[:k] {
		alt := w.score(in, r.kind, r.render(in, v))
		if !found || alt.Score > best.Score {
			best, found = alt, true
		}
	}
	return best, found
}

func (w *Wrapper) score(in validation.Input, kind, text string) Alternative {
	verdict := w.engine.Validate(validation.PostInput(in.Text, text, in.Metadata))

	compliant := len(verdict.Order) - len(verdict.Violations())
	alt := Alternative{
		Kind:        kind,
		Text:        text,
		Novelty:     novelty(in.Output, text),
		Reliability: verdict.AggregateConfidence,
		Compliance:  float64(compliant) / float64(len(verdict.Order)),
	}
	wt := w.cfg.Weights
	alt.Score = wt.Novelty*alt.Novelty + wt.Reliability*alt.Reliability + wt.Compliance*alt.Compliance
	return alt
}

// novelty is the share of distinct words in candidate absent from original.
func novelty(original, candidate string) float64 {
	seen := make(map[string]struct{})
	for _, w := range task.Words(original) {
		seen[w] = struct{}{}
	}
	distinct := make(map[string]struct{})
	fresh := 0
	for _, w := range task.Words(candidate) {
		if _, dup := distinct[w]; dup {
			continue
		}
		distinct[w] = struct{}{}
		if _, ok := seen[w]; !ok {
			fresh++
		}
	}
	if len(distinct) == 0 {
		return 0
	}
	return float64(fresh) / float64(len(distinct))
}

package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/concord/internal/validation"
)

func violatingInput() validation.Input {
	return validation.PostInput(
		"I'm not sure the cache layer is leaking memory",
		"The cache layer is definitely leaking memory.",
		validation.Metadata{TaskID: "t1"},
	)
}

func TestNovelty(t *testing.T) {
	assert.Equal(t, 0.0, novelty("a b c", "a b c"))
	assert.Equal(t, 1.0, novelty("a b", "x y"))
	assert.InDelta(t, 0.5, novelty("a b", "a b x y"), 1e-9)
	assert.Equal(t, 0.0, novelty("a", ""))
}

func TestCorrect_PicksHighestScore(t *testing.T) {
	w := newWrapper(t)
	in := violatingInput()
	v := w.engine.Validate(in)
	require.False(t, v.OverallCompliant)

	best, ok := w.correct(in, v)
	require.True(t, ok)

	for _, r := range renderers {
		alt := w.score(in, r.kind, r.render(in, v))
		assert.GreaterOrEqual(t, best.Score, alt.Score, r.kind)
	}
	assert.Equal(t, 1.0, best.Compliance)
}

func TestCorrect_WeightsSteerSelection(t *testing.T) {
	in := violatingInput()

	reliable := newWrapper(t, WithConfig(Config{
		SelfCorrection: true, MaxAlternatives: 3,
		Weights: Weights{Compliance: 1},
	}))
	best, ok := reliable.correct(in, reliable.engine.Validate(in))
	require.True(t, ok)
	// Every rendering is fully compliant here, so the first one wins the tie.
	assert.Equal(t, RenderPrincipleGuided, best.Kind)

	novel := newWrapper(t, WithConfig(Config{
		SelfCorrection: true, MaxAlternatives: 3,
		Weights: Weights{Novelty: 1},
	}))
	best, ok = novel.correct(in, novel.engine.Validate(in))
	require.True(t, ok)
	assert.NotEqual(t, RenderPrincipleGuided, best.Kind)
}

func TestCorrect_LimitsAlternatives(t *testing.T) {
	w := newWrapper(t, WithConfig(Config{
		SelfCorrection: true, MaxAlternatives: 1,
		Weights: Weights{Novelty: 1},
	}))
	in := violatingInput()
	best, ok := w.correct(in, w.engine.Validate(in))
	require.True(t, ok)
	assert.Equal(t, RenderPrincipleGuided, best.Kind)

	none := newWrapper(t, WithConfig(Config{Weights: Weights{Novelty: 1}}))
	_, ok = none.correct(in, none.engine.Validate(in))
	assert.False(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Weights.Novelty = -0.1
	assert.Error(t, bad.Validate())

	zero := DefaultConfig()
	zero.Weights = Weights{}
	assert.Error(t, zero.Validate())
}

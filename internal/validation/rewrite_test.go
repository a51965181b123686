package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHedge(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"This is Definitely correct.", "This is likely correct."},
		{"It certainly works, 100% of the time.", "It probably works, mostly of the time."},
		{"You have no choice: you must upgrade.", "one option is to: you may want to upgrade."},
		{"Nothing to change here.", "Nothing to change here."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Hedge(tt.in))
	}
	assert.Zero(t, countMarkers(Hedge("definitely, absolutely, without a doubt"), certaintyMarkers))
}

func TestRedactSensitive(t *testing.T) {
	out := RedactSensitive("mail jane@example.com, password: hunter2, ssn 123-45-6789")
	assert.NotContains(t, out, "jane@example.com")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "123-45-6789")
	assert.Contains(t, out, redactedValue)
}

func TestStripHarmful(t *testing.T) {
	assert.Equal(t, "then run [removed] /", StripHarmful("then run rm -rf /"))
}

func TestRewrite_FixesViolations(t *testing.T) {
	engine := NewDefaultEngine()

	in := PostInput(
		"I'm not sure whether the cache layer is leaking memory during deploys",
		"The cache layer is definitely leaking memory during deploys; you must restart it.",
		Metadata{},
	)
	before := engine.Validate(in)
	require.False(t, before.OverallCompliant)
	assert.Contains(t, before.Violations(), RuleNonFabrication)
	assert.Contains(t, before.Violations(), RuleAutonomy)

	rewritten := Rewrite(in, before)
	after := engine.Validate(PostInput(in.Text, rewritten, Metadata{}))
	assert.True(t, after.OverallCompliant, "violations after rewrite: %v", after.Violations())
}

func TestRewrite_Relevance(t *testing.T) {
	in := PostInput("summarize quarterly revenue figures for the board", "Here you go.", Metadata{})
	v := NewDefaultEngine().Validate(in)
	require.Equal(t, []string{RuleRelevance}, v.Violations())

	out := Rewrite(in, v)
	assert.Equal(t, "Regarding summarize, quarterly, revenue: Here you go.", out)
}

func TestRewrite_CompliantUnchanged(t *testing.T) {
	in := PostInput("name two colors", "red, green, blue", Metadata{})
	v := NewDefaultEngine().Validate(in)
	assert.Equal(t, "red, green, blue", Rewrite(in, v))
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonFabrication_UncertainInputCertainOutput(t *testing.T) {
	v := NewDefaultEngine().Validate(PostInput(
		"I'm not sure which year the treaty was signed",
		"It was definitely 1648, and the terms were certainly final.",
		Metadata{TaskID: "t1"},
	))

	r, ok := v.Result(RuleNonFabrication)
	require.True(t, ok)
	assert.False(t, r.Compliant)
	assert.GreaterOrEqual(t, r.Confidence, 0.7)
	assert.NotEmpty(t, r.Correction)
	assert.False(t, v.OverallCompliant)
}

func TestNonFabrication(t *testing.T) {
	rule := NonFabricationRule{}
	tests := []struct {
		name      string
		in        Input
		compliant bool
	}{
		{"certain input certain output", PostInput("What is 2+2?", "It is definitely 4.", Metadata{}), true},
		{"uncertain input hedged output", PostInput("maybe it rains?", "Forecasts suggest rain is likely.", Metadata{}), true},
		{"uncertain input guaranteed output", PostInput("I am unsure this works", "This is guaranteed to work.", Metadata{}), false},
		{"pre phase", PreInput("not sure", Metadata{}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.compliant, rule.Evaluate(tt.in).Compliant)
		})
	}
}

func TestHarmAvoidance(t *testing.T) {
	rule := HarmAvoidanceRule{}

	r := rule.Evaluate(PreInput("Run rm -rf / on the server", Metadata{}))
	assert.False(t, r.Compliant)
	assert.GreaterOrEqual(t, r.Confidence, 0.8)

	r = rule.Evaluate(PostInput("clean the repo", "First bypass security checks, then delete all branches.", Metadata{}))
	assert.False(t, r.Compliant)
	assert.InDelta(t, 0.85, r.Confidence, 1e-9)

	assert.True(t, rule.Evaluate(PostInput("clean the repo", "Run git clean -n first.", Metadata{})).Compliant)
}

func TestPrivacy(t *testing.T) {
	rule := PrivacyRule{}
	tests := []struct {
		name      string
		in        Input
		compliant bool
	}{
		{"email in output", PostInput("who to contact", "Write to jane.doe@example.org", Metadata{}), false},
		{"ssn in output", PostInput("lookup", "SSN is 123-45-6789", Metadata{}), false},
		{"password in output", PostInput("config", "set password: hunter2", Metadata{}), false},
		{"email in request before execution", PreInput("email bob@example.com the report", Metadata{}), false},
		{"email in request only after execution", PostInput("email bob@example.com the report", "Report sent.", Metadata{}), true},
		{"clean", PostInput("summarize", "Revenue grew 4%.", Metadata{}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.compliant, rule.Evaluate(tt.in).Compliant)
		})
	}
}

func TestAutonomy(t *testing.T) {
	rule := AutonomyRule{}
	r := rule.Evaluate(PostInput("which plan?", "You have no choice: you must pick plan B.", Metadata{}))
	assert.False(t, r.Compliant)
	assert.InDelta(t, 0.8, r.Confidence, 1e-9)

	assert.True(t, rule.Evaluate(PostInput("which plan?", "Plan B looks cheaper; plan A is faster.", Metadata{})).Compliant)
}

func TestRelevance(t *testing.T) {
	rule := RelevanceRule{}
	request := "Compare database indexing strategies for analytics workloads"

	r := rule.Evaluate(PostInput(request, "Bananas are yellow fruit grown in tropical climates.", Metadata{}))
	assert.False(t, r.Compliant)

	r = rule.Evaluate(PostInput(request, "Columnar indexing suits analytics workloads best.", Metadata{}))
	assert.True(t, r.Compliant)
	assert.Greater(t, r.Confidence, 0.7)

	r = rule.Evaluate(PostInput("hi", "Bananas.", Metadata{}))
	assert.True(t, r.Compliant, "short requests are not judged")

	r = rule.Evaluate(PostInput(request, "   ", Metadata{}))
	assert.False(t, r.Compliant)
}

func TestSignificantWords(t *testing.T) {
	assert.Equal(t,
		[]string{"compare", "database", "indexing", "strategies"},
		SignificantWords("Compare the database indexing strategies, and compare them with this"),
	)
}

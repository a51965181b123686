package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/concord/internal/task"
)

// Rule names.
const (
	RuleNonFabrication = "non_fabrication"
	RuleHarmAvoidance  = "harm_avoidance"
	RulePrivacy        = "privacy"
	RuleAutonomy       = "user_autonomy"
	RuleRelevance      = "relevance"
)

// DefaultRules returns the principle set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		NonFabricationRule{},
		HarmAvoidanceRule{},
		PrivacyRule{},
		AutonomyRule{},
		RelevanceRule{},
	}
}

// noOutputConfidence is reported by output-only rules before execution.
const noOutputConfidence = 0.6

var (
	uncertaintyMarkers = []string{
		"not sure", "unsure", "uncertain", "unclear", "i think", "maybe",
		"might be", "possibly", "don't know", "do not know", "not certain",
	}
	certaintyMarkers = []string{
		"definitely", "certainly", "guaranteed", "undoubtedly", "without a doubt",
		"absolutely", "100%", "always works", "no doubt",
	}
	harmMarkers = []string{
		"rm -rf", "delete all", "drop table", "disable safety", "bypass security",
		"disable authentication", "exploit", "malware", "ransomware", "keylogger",
		"steal credentials", "build a weapon",
	}
	coercionMarkers = []string{
		"you must", "you have no choice", "you have to", "do it now",
		"don't question", "do not question", "no other option", "obey",
	}
	stopwords = map[string]struct{}{
		"about": {}, "after": {}, "also": {}, "and": {}, "because": {}, "been": {},
		"before": {}, "being": {}, "could": {}, "does": {}, "each": {}, "from": {},
		"have": {}, "into": {}, "just": {}, "like": {}, "make": {}, "more": {},
		"most": {}, "only": {}, "other": {}, "over": {}, "please": {}, "should": {},
		"some": {}, "such": {}, "than": {}, "that": {}, "their": {}, "them": {},
		"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {},
		"very": {}, "what": {}, "when": {}, "where": {}, "which": {}, "while": {},
		"will": {}, "with": {}, "would": {}, "your": {},
	}
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		regexp.MustCompile(`(?i)\bpassword\s*[:=]\s*\S+`),
		regexp.MustCompile(`(?i)\bapi[_-]?key\s*[:=]\s*\S+`),
		regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
	}
)

// countMarkers returns how many markers occur in lower-cased text.
func countMarkers(text string, markers []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, m := range markers {
		if strings.Contains(lower, m) {
			n++
		}
	}
	return n
}

// SignificantWords returns the distinct non-stopword tokens of at least four
// characters, in first-seen order.
func SignificantWords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range task.Words(text) {
		if len(w) < 4 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// NonFabricationRule flags outputs that assert certainty the request itself
// does not have.
type NonFabricationRule struct{}

// Name implements Rule.
func (NonFabricationRule) Name() string { return RuleNonFabrication }

// Evaluate implements Rule.
func (NonFabricationRule) Evaluate(in Input) RuleResult {
	if !in.HasOutput {
		return RuleResult{Compliant: true, Confidence: noOutputConfidence, Detail: "no output to check"}
	}
	uncertain := countMarkers(in.Text, uncertaintyMarkers)
	certain := countMarkers(in.Output, certaintyMarkers)
	if uncertain > 0 && certain > 0 {
		return RuleResult{
			Compliant:  false,
			Confidence: math.Min(0.95, 0.75+0.05*float64(certain-1)),
			Detail:     fmt.Sprintf("output asserts certainty (%d markers) on an uncertain request", certain),
			Correction: "State uncertainty explicitly and avoid absolute claims the request cannot support.",
		}
	}
	if certain > 1 {
		return RuleResult{Compliant: true, Confidence: 0.7, Detail: "strong certainty language without evidence markers"}
	}
	return RuleResult{Compliant: true, Confidence: 0.9, Detail: "no unsupported certainty"}
}

// HarmAvoidanceRule flags destructive or malicious content in the request or
// the output.
type HarmAvoidanceRule struct{}

// Name implements Rule.
func (HarmAvoidanceRule) Name() string { return RuleHarmAvoidance }

// Evaluate implements Rule.
func (HarmAvoidanceRule) Evaluate(in Input) RuleResult {
	hits := countMarkers(in.Text, harmMarkers)
	if in.HasOutput {
		hits += countMarkers(in.Output, harmMarkers)
	}
	if hits > 0 {
		return RuleResult{
			Compliant:  false,
			Confidence: math.Min(0.95, 0.8+0.05*float64(hits-1)),
			Detail:     fmt.Sprintf("%d potentially harmful instructions detected", hits),
			Correction: "Decline destructive or malicious steps and offer a safe alternative.",
		}
	}
	return RuleResult{Compliant: true, Confidence: 0.9, Detail: "no harmful instructions"}
}

// PrivacyRule flags personal or secret data. Before execution it inspects
// the request; afterwards, the output.
type PrivacyRule struct{}

// Name implements Rule.
func (PrivacyRule) Name() string { return RulePrivacy }

// Evaluate implements Rule.
func (PrivacyRule) Evaluate(in Input) RuleResult {
	subject, where := in.Text, "request"
	if in.HasOutput {
		subject, where = in.Output, "output"
	}
	hits := 0
	for _, re := range sensitivePatterns {
		if re.MatchString(subject) {
			hits++
		}
	}
	if hits > 0 {
		return RuleResult{
			Compliant:  false,
			Confidence: math.Min(0.95, 0.8+0.05*float64(hits-1)),
			Detail:     fmt.Sprintf("%s contains %d kinds of sensitive data", where, hits),
			Correction: "Do not reproduce personal data or credentials; redact them.",
		}
	}
	return RuleResult{Compliant: true, Confidence: 0.85, Detail: "no sensitive data"}
}

// AutonomyRule flags coercive phrasing in the output.
type AutonomyRule struct{}

// Name implements Rule.
func (AutonomyRule) Name() string { return RuleAutonomy }

// Evaluate implements Rule.
func (AutonomyRule) Evaluate(in Input) RuleResult {
	if !in.HasOutput {
		return RuleResult{Compliant: true, Confidence: noOutputConfidence, Detail: "no output to check"}
	}
	if hits := countMarkers(in.Output, coercionMarkers); hits > 0 {
		return RuleResult{
			Compliant:  false,
			Confidence: math.Min(0.9, 0.75+0.05*float64(hits-1)),
			Detail:     fmt.Sprintf("output uses %d coercive phrases", hits),
			Correction: "Present options and recommendations, leaving the decision to the user.",
		}
	}
	return RuleResult{Compliant: true, Confidence: 0.85, Detail: "no coercive phrasing"}
}

// RelevanceRule flags empty outputs and outputs sharing no significant
// vocabulary with a substantive request.
type RelevanceRule struct{}

// Name implements Rule.
func (RelevanceRule) Name() string { return RuleRelevance }

// Evaluate implements Rule.
func (RelevanceRule) Evaluate(in Input) RuleResult {
	if !in.HasOutput {
		return RuleResult{Compliant: true, Confidence: noOutputConfidence, Detail: "no output to check"}
	}
	if strings.TrimSpace(in.Output) == "" {
		return RuleResult{
			Compliant:  false,
			Confidence: 0.7,
			Detail:     "output is empty",
			Correction: "Provide a substantive answer or explain why none can be given.",
		}
	}
	request := SignificantWords(in.Text)
	if len(request) < 3 {
		return RuleResult{Compliant: true, Confidence: 0.7, Detail: "request too short to judge relevance"}
	}
	output := make(map[string]struct{})
	for _, w := range SignificantWords(in.Output) {
		output[w] = struct{}{}
	}
	shared := 0
	for _, w := range request {
		if _, ok := output[w]; ok {
			shared++
		}
	}
	if shared == 0 {
		return RuleResult{
			Compliant:  false,
			Confidence: 0.6,
			Detail:     "output shares no key terms with the request",
			Correction: "Address the request directly and reference its key terms.",
		}
	}
	return RuleResult{
		Compliant:  true,
		Confidence: math.Min(0.95, 0.7+0.5*float64(shared)/float64(len(request))),
		Detail:     fmt.Sprintf("%d of %d key terms addressed", shared, len(request)),
	}
}

package validation

import (
	"regexp"
	"sort"
	"strings"
)

var (
	hedges = map[string]string{
		"definitely":         "likely",
		"certainly":          "probably",
		"guaranteed":         "expected",
		"undoubtedly":        "probably",
		"without a doubt":    "as far as can be told",
		"absolutely":         "largely",
		"100%":               "mostly",
		"always works":       "usually works",
		"no doubt":           "little doubt",
		"you must":           "you may want to",
		"you have no choice": "one option is to",
		"you have to":        "you could",
		"do it now":          "consider doing it",
		"don't question":     "feel free to question",
		"do not question":    "feel free to question",
		"no other option":    "one reasonable option",
		"obey":               "consider",
	}
	hedgePattern  = markerPattern(hedges)
	harmPattern   = markerPatternOf(harmMarkers)
	redactedValue = "[redacted]"
)

func markerPattern(m map[string]string) *regexp.Regexp {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return markerPatternOf(keys)
}

// markerPatternOf builds a case-insensitive alternation, longest marker first
// so overlapping phrases ("you have no choice" vs "you have to") resolve
// deterministically.
func markerPatternOf(markers []string) *regexp.Regexp {
	sorted := append([]string(nil), markers...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, m := range sorted {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

// Hedge replaces absolute and coercive phrasing with qualified wording.
func Hedge(text string) string {
	return hedgePattern.ReplaceAllStringFunc(text, func(m string) string {
		return hedges[strings.ToLower(m)]
	})
}

// RedactSensitive masks personal data and credentials.
func RedactSensitive(text string) string {
	for _, p := range sensitivePatterns {
		text = p.ReplaceAllString(text, redactedValue)
	}
	return text
}

// StripHarmful removes destructive instructions.
func StripHarmful(text string) string {
	return harmPattern.ReplaceAllString(text, "[removed]")
}

// Rewrite applies to in.Output the corrections implied by the violations
// in v. Rules that passed leave the text alone.
func Rewrite(in Input, v Verdict) string {
	out := in.Output
	for _, name := range v.Violations() {
		switch name {
		case RuleNonFabrication, RuleAutonomy:
			out = Hedge(out)
		case RulePrivacy:
			out = RedactSensitive(out)
		case RuleHarmAvoidance:
			out = StripHarmful(out)
		case RuleRelevance:
			out = anchor(in.Text, out)
		}
	}
	return out
}

// anchor prefixes text with the leading key terms of the request.
func anchor(request, text string) string {
	terms := SignificantWords(request)
	if len(terms) == 0 {
		return text
	}
	if len(terms) > 3 {
		terms = terms[:3]
	}
	return "Regarding " + strings.Join(terms, ", ") + ": " + text
}

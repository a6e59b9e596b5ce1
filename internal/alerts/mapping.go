package alerts

import (
	"regexp"
	"strings"
)

// Vendor vocabularies are mapped into the four canonical buckets by ordered
// substring/prefix rules. Mapping never fails: unmatched or empty input falls
// back to a documented default.

// MapSeverity handles NWS-like free-text severities ("Extreme Heat Warning",
// "Severe Thunderstorm Watch") as emitted by the JSON provider.
func MapSeverity(raw string) Severity {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "extreme"):
		return SeverityExtreme
	case strings.Contains(s, "severe"):
		return SeveritySevere
	case strings.Contains(s, "moderate"):
		return SeverityModerate
	case strings.Contains(s, "minor"), strings.Contains(s, "advisory"):
		return SeverityMinor
	case strings.Contains(s, "warning"):
		return SeveritySevere
	case strings.Contains(s, "watch"):
		return SeverityModerate
	default:
		return SeverityModerate
	}
}

// MapSeverityCAP handles CAP v1.2 severity terms (Extreme, Severe, Moderate,
// Minor, Unknown) by prefix.
func MapSeverityCAP(raw string) Severity {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "extreme"):
		return SeverityExtreme
	case strings.HasPrefix(s, "severe"):
		return SeveritySevere
	case strings.HasPrefix(s, "moderate"):
		return SeverityModerate
	case strings.HasPrefix(s, "minor"):
		return SeverityMinor
	default:
		return SeverityModerate
	}
}

func MapUrgency(raw string) Urgency {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "immediate"):
		return UrgencyImmediate
	case strings.Contains(s, "expected"):
		return UrgencyExpected
	case strings.Contains(s, "future"):
		return UrgencyFuture
	case strings.Contains(s, "past"), strings.Contains(s, "unknown"):
		return UrgencyPast
	default:
		return UrgencyExpected
	}
}

func MapCertainty(raw string) Certainty {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "observed"):
		return CertaintyObserved
	case strings.Contains(s, "likely"):
		return CertaintyLikely
	case strings.Contains(s, "possible"):
		return CertaintyPossible
	default:
		return CertaintyUnknown
	}
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup from feed descriptions, which frequently embed
// <br/> and anchor tags.
func StripHTML(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}

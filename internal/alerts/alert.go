package alerts

import (
	"fmt"
	"hash/fnv"
	"time"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityExtreme  Severity = "extreme"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	case SeverityExtreme:
		return 4
	default:
		return 0
	}
}

// ParseSeverity accepts only the four canonical tokens.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityMinor, SeverityModerate, SeveritySevere, SeverityExtreme:
		return Severity(s), true
	default:
		return "", false
	}
}

type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyExpected  Urgency = "expected"
	UrgencyFuture    Urgency = "future"
	UrgencyPast      Urgency = "past"
)

func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 3
	case UrgencyExpected:
		return 2
	case UrgencyFuture:
		return 1
	default:
		return 0
	}
}

type Certainty string

const (
	CertaintyLikely   Certainty = "likely"
	CertaintyObserved Certainty = "observed"
	CertaintyPossible Certainty = "possible"
	CertaintyUnknown  Certainty = "unknown"
)

type Source string

const (
	SourceOpenWeather Source = "openweather"
	SourceMeteoalarm  Source = "meteoalarm"
	SourceNWS         Source = "nws"
	SourceEnvCanada   Source = "envcanada"
)

// Alert is the canonical normalized alert every provider is translated into.
// Timestamps are UTC and marshal as RFC 3339 with the Z designator.
type Alert struct {
	ID          string    `json:"id"`
	Source      Source    `json:"source"`
	Event       string    `json:"event"`
	Severity    Severity  `json:"severity"`
	Urgency     Urgency   `json:"urgency"`
	Certainty   Certainty `json:"certainty"`
	Areas       []string  `json:"areas"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	Headline    string    `json:"headline"`
	Description string    `json:"description,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
}

// MakeID derives a stable id from provider + event + validity window so that
// refetching the same underlying alert always yields the same id.
func MakeID(source Source, event string, startsAt, endsAt time.Time) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%s:%s:%s",
		source, event,
		startsAt.UTC().Format(time.RFC3339),
		endsAt.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s_%016x", source, h.Sum64())
}

// Score ranks an alert for sorting (higher is more important). Severity is the
// major key, urgency the minor key; the end-time term only breaks exact ties,
// favoring alerts that end sooner.
func Score(a Alert) float64 {
	s := float64(a.Severity.Rank())
	u := float64(a.Urgency.Rank())
	var endBias float64
	if !a.EndsAt.IsZero() {
		endBias = float64(a.EndsAt.UnixMilli()) / 1e13
	}
	return s*10 + u - endBias
}

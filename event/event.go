// Package event defines the canonical record types that flow through the
// correlation engine: LogEvent (ingested) and CorrelatedEvent (emitted),
// per spec.md §3.
package event

import "time"

// LogEvent is a single ingested record from a data source adapter.
type LogEvent struct {
	Timestamp string            `json:"timestamp"`
	Source    string            `json:"source"`
	Stream    string            `json:"stream,omitempty"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels"`
	JoinKeys  map[string]string `json:"joinKeys"`

	// parsedTime is the parsed form of Timestamp, populated by Normalize.
	parsedTime time.Time
}

// Normalize validates required fields and parses Timestamp, caching the
// result. Adapters should call this (or rely on the joiner to call it on
// ingestion) before an event crosses into the windowed store.
func (e *LogEvent) Normalize(parseTimestamp func(string) (time.Time, error)) error {
	if e.Labels == nil {
		e.Labels = map[string]string{}
	}
	if e.JoinKeys == nil {
		e.JoinKeys = map[string]string{}
	}

	t, err := parseTimestamp(e.Timestamp)
	if err != nil {
		return err
	}
	e.parsedTime = t
	return nil
}

// Time returns the parsed timestamp. Callers must call Normalize first;
// an unnormalized event returns the zero time.
func (e *LogEvent) Time() time.Time {
	return e.parsedTime
}

// WithTime returns a copy of the event with an explicit parsed time set,
// used by adapters and tests that already have a time.Time in hand.
func (e LogEvent) WithTime(t time.Time) LogEvent {
	e.parsedTime = t
	if e.Labels == nil {
		e.Labels = map[string]string{}
	}
	if e.JoinKeys == nil {
		e.JoinKeys = map[string]string{}
	}
	return e
}

// Completeness describes whether a CorrelatedEvent contains events from
// every stream the query declared.
type Completeness string

const (
	Complete Completeness = "complete"
	Partial  Completeness = "partial"
)

// TimeWindow is the earliest/latest timestamp span of a CorrelatedEvent.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CorrelatedMember is one source event as it appears inside a
// CorrelatedEvent's Events slice.
type CorrelatedMember struct {
	Alias     string            `json:"alias,omitempty"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels"`
}

// Metadata carries completeness accounting for a CorrelatedEvent.
type Metadata struct {
	Completeness   Completeness `json:"completeness"`
	MatchedStreams []string     `json:"matchedStreams"`
	TotalStreams   int          `json:"totalStreams"`
}

// CorrelatedEvent is an emitted correlation: a group of source records that
// belong to the same logical transaction.
type CorrelatedEvent struct {
	CorrelationID int64              `json:"correlationId"`
	Timestamp     time.Time          `json:"timestamp"`
	TimeWindow    TimeWindow         `json:"timeWindow"`
	JoinKey       string             `json:"joinKey"`
	JoinValue     string             `json:"joinValue"`
	Events        []CorrelatedMember `json:"events"`
	Metadata      Metadata           `json:"metadata"`
}

// SourceSet returns the distinct set of sources represented in Events, in
// first-seen order.
func SourceSet(members []CorrelatedMember) []string {
	seen := make(map[string]bool, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if !seen[m.Source] {
			seen[m.Source] = true
			out = append(out, m.Source)
		}
	}
	return out
}

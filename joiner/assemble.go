package joiner

import (
	"sort"
	"time"

	"github.com/correlator/engine/event"
	"github.com/correlator/engine/query"
)

// StreamRef names one side of a join for member tagging and error
// reporting.
type StreamRef struct {
	Alias  string
	Source string
}

func (r StreamRef) name() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Source
}

func toMember(ref StreamRef, e event.LogEvent) event.CorrelatedMember {
	return event.CorrelatedMember{
		Alias:     ref.Alias,
		Source:    ref.Source,
		Timestamp: e.Time(),
		Message:   e.Message,
		Labels:    e.Labels,
	}
}

// applyWithin filters (left, right) event pairs to those within d of each
// other (§4.2's `within(d)` pair filter), returning the subset of each
// side that participates in at least one surviving pair. ok is false when
// a temporal constraint is configured and no pair survives, signalling
// emission must be suppressed for this key.
func applyWithin(left, right []event.LogEvent, within time.Duration, has bool) (l2, r2 []event.LogEvent, ok bool) {
	if !has {
		return left, right, true
	}
	if len(left) == 0 || len(right) == 0 {
		return nil, nil, false
	}

	leftKeep := make(map[int]bool)
	rightKeep := make(map[int]bool)
	any := false

	for i, le := range left {
		for j, re := range right {
			d := le.Time().Sub(re.Time())
			if d < 0 {
				d = -d
			}
			if d <= within {
				leftKeep[i] = true
				rightKeep[j] = true
				any = true
			}
		}
	}
	if !any {
		return nil, nil, false
	}
	for i, le := range left {
		if leftKeep[i] {
			l2 = append(l2, le)
		}
	}
	for j, re := range right {
		if rightKeep[j] {
			r2 = append(r2, re)
		}
	}
	return l2, r2, true
}

// withinOne filters a single anchor event's counterpart list to those
// within d — used by group_left/group_right, where each grouped event
// gets its own temporal filter rather than sharing one pair-set.
func withinOne(anchor event.LogEvent, others []event.LogEvent, within time.Duration, has bool) ([]event.LogEvent, bool) {
	if !has {
		return others, true
	}
	var out []event.LogEvent
	for _, o := range others {
		d := anchor.Time().Sub(o.Time())
		if d < 0 {
			d = -d
		}
		if d <= within {
			out = append(out, o)
		}
	}
	return out, len(out) > 0
}

// buildCorrelation assembles one CorrelatedEvent from a set of members
// already trimmed to the streams that actually matched, sorting events by
// timestamp ascending and deriving timeWindow/timestamp/completeness per
// §3's invariants.
func buildCorrelation(id int64, joinKey, joinValue string, members []event.CorrelatedMember, totalStreams int, allStreamNames []string) event.CorrelatedEvent {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Timestamp.Before(members[j].Timestamp)
	})

	earliest := members[0].Timestamp
	latest := members[0].Timestamp
	for _, m := range members[1:] {
		if m.Timestamp.Before(earliest) {
			earliest = m.Timestamp
		}
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}

	matched := event.SourceSet(members)
	completeness := event.Partial
	if len(matched) == totalStreams {
		completeness = event.Complete
	}

	return event.CorrelatedEvent{
		CorrelationID: id,
		Timestamp:     earliest,
		TimeWindow:    event.TimeWindow{Start: earliest, End: latest},
		JoinKey:       joinKey,
		JoinValue:     joinValue,
		Events:        members,
		Metadata: event.Metadata{
			Completeness:   completeness,
			MatchedStreams: matched,
			TotalStreams:   totalStreams,
		},
	}
}

// joinKeyLabel derives the `joinKey` field emitted on a CorrelatedEvent:
// the declared key name, or a synthetic name for composite/ignoring mode.
func joinKeyLabel(keys []query.JoinKey, hasIgnoring bool) string {
	if hasIgnoring {
		return "composite"
	}
	for _, k := range keys {
		if k.Mapping != nil {
			return k.Mapping.Left
		}
		return k.Name
	}
	return "key"
}

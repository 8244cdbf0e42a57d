package joiner

import (
	"regexp"

	"github.com/correlator/engine/event"
	"github.com/correlator/engine/query"
	"github.com/correlator/engine/syncx"
)

// regexCache memoizes compiled post-filter patterns across calls — the
// same `=~`/`!~` matcher is typically evaluated once per event for the
// life of a long-running correlation, so recompiling per call would be
// wasteful.
var regexCache syncx.Map[string, *regexp.Regexp]

func compileCached(pattern string) *regexp.Regexp {
	if v, ok := regexCache.Load(pattern); ok {
		return v
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		// Invalid regex: per §7, treat as non-matching rather than
		// propagating a compile error up through a long-running stream.
		regexCache.Store(pattern, nil)
		return nil
	}
	regexCache.Store(pattern, re)
	return re
}

func matchOne(labels map[string]string, m query.Matcher) bool {
	v := labels[m.Label]
	switch m.Op {
	case query.MatchEq:
		return v == m.Value
	case query.MatchNeq:
		return v != m.Value
	case query.MatchReEq:
		re := compileCached(m.Value)
		return re != nil && re.MatchString(v)
	case query.MatchReNeq:
		re := compileCached(m.Value)
		return re == nil || !re.MatchString(v)
	default:
		return false
	}
}

func matchAll(labels map[string]string, f *query.Filter) bool {
	for _, m := range f.Matchers {
		if !matchOne(labels, m) {
			return false
		}
	}
	return true
}

// applyPostFilter keeps only the members whose labels satisfy every
// matcher in f. A nil filter passes everything through unchanged.
func applyPostFilter(members []event.CorrelatedMember, f *query.Filter) []event.CorrelatedMember {
	if f == nil {
		return members
	}
	out := make([]event.CorrelatedMember, 0, len(members))
	for _, m := range members {
		if matchAll(m.Labels, f) {
			out = append(out, m)
		}
	}
	return out
}

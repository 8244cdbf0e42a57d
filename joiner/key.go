package joiner

import (
	"github.com/correlator/engine/event"
	"github.com/correlator/engine/query"
)

// lookup returns the first non-empty value for name among an event's
// labels then its joinKeys, per §4.2's two-tier lookup.
func lookup(ev event.LogEvent, name string) string {
	if v, ok := ev.Labels[name]; ok && v != "" {
		return v
	}
	if v, ok := ev.JoinKeys[name]; ok && v != "" {
		return v
	}
	return ""
}

// ExtractKey applies §4.2's join-key extraction priority to one event:
// label mappings first, then a composite `ignoring` key, then plain join
// key names, in that order. Returns ok=false if the event cannot be
// joined (no mapping/ignoring/key yields a value, or the composite key
// has no labels left).
func ExtractKey(ev event.LogEvent, keys []query.JoinKey, ignoring []string, hasIgnoring bool) (string, bool) {
	for _, k := range keys {
		if k.Mapping == nil {
			continue
		}
		if v := lookup(ev, k.Mapping.Left); v != "" {
			return v, true
		}
		if v := lookup(ev, k.Mapping.Right); v != "" {
			return v, true
		}
	}

	if hasIgnoring && len(ignoring) > 0 {
		merged := query.MergeMaps(ev.Labels, ev.JoinKeys)
		key, _, ok := query.CompositeKey(merged, ignoring)
		return key, ok
	}

	for _, k := range keys {
		if k.Mapping != nil {
			continue
		}
		if v := lookup(ev, k.Name); v != "" {
			return v, true
		}
	}

	return "", false
}

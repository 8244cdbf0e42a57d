package query

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CompositeKey computes the `ignoring(labels)` join key for one event's
// merged labels ∪ joinKeys map, per §4.1: concatenate, in sorted order,
// `name:value` pairs excluding the listed labels and excluding empty
// values. Returns the stringified composite key and its xxhash value.
// The joiner keys its stores by the string form and does not use the
// hash.
func CompositeKey(merged map[string]string, exclude []string) (string, uint64, bool) {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}

	names := make([]string, 0, len(merged))
	for name, value := range merged {
		if excluded[name] || value == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", 0, false
	}

	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(merged[name])
	}

	s := b.String()
	return s, xxhash.Sum64String(s), true
}

// MergeMaps returns a new map containing a's entries overlaid with b's
// (b wins on key collision), used to build the labels ∪ joinKeys set an
// event's composite key is computed over.
func MergeMaps(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

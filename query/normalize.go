package query

import "strings"

// Normalize trims and collapses runs of whitespace in a raw query string,
// per §4.1, without touching whitespace inside quoted string literals
// (label values in a selector's `{k="multi word value"}` list must survive
// verbatim). It is idempotent: Normalize(Normalize(q)) == Normalize(q) (§8).
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	inQuotes := false
	lastWasSpace := true // trims leading whitespace
	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if inQuotes {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(raw) {
				i++
				b.WriteByte(raw[i])
				continue
			}
			if c == '"' {
				inQuotes = false
			}
			continue
		}

		if c == '"' {
			inQuotes = true
			b.WriteByte(c)
			lastWasSpace = false
			continue
		}

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}

		b.WriteByte(c)
		lastWasSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

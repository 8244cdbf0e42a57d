package query

import (
	"unicode"

	"github.com/correlator/engine/errs"
)

// Validate applies §4.1's semantic rules on top of a successful parse: the
// query must reference at least 2 streams, declare a join operator with
// on(...), and every identifier it names must be well-formed.
func Validate(q *ParsedQuery) error {
	streams := q.Streams()
	if len(streams) < 2 {
		return errs.QueryParseError(0, q.raw, "query must reference at least 2 streams")
	}

	for _, s := range streams {
		if !validIdent(s.Source) {
			return errs.QueryParseError(0, s.Source, "malformed stream source identifier")
		}
		if s.Alias != "" && !validIdent(s.Alias) {
			return errs.QueryParseError(0, s.Alias, "malformed stream alias identifier")
		}
		if s.TimeRange <= 0 {
			return errs.QueryParseError(0, s.Source, "stream time range must be positive")
		}
	}

	for _, j := range q.Joins {
		if len(j.JoinKeys) == 0 && !j.HasIgnoring {
			return errs.QueryParseError(0, string(j.Type), "join operator requires on(...) join keys or ignoring(...)")
		}
		for _, k := range j.JoinKeys {
			if !validIdent(k.Name) {
				return errs.QueryParseError(0, k.Name, "malformed join key identifier")
			}
			if k.Mapping != nil && !validIdent(k.Mapping.Right) {
				return errs.QueryParseError(0, k.Mapping.Right, "malformed join key mapping identifier")
			}
		}
		for _, l := range j.Ignoring {
			if !validIdent(l) {
				return errs.QueryParseError(0, l, "malformed ignoring label identifier")
			}
		}
		for _, l := range append(append([]string{}, j.GroupLeft...), j.GroupRight...) {
			if !validIdent(l) {
				return errs.QueryParseError(0, l, "malformed grouping label identifier")
			}
		}
	}

	if q.Filter != nil {
		for _, m := range q.Filter.Matchers {
			if !validIdent(m.Label) {
				return errs.QueryParseError(0, m.Label, "malformed filter label identifier")
			}
		}
	}

	return nil
}

// ParseAndValidate parses and validates a raw query in one call — the form
// the engine coordinator and validateQuery use.
func ParseAndValidate(raw string) (*ParsedQuery, error) {
	q, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

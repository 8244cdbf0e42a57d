// Package query tokenizes, parses, and validates the PromQL-inspired
// correlation query language described in spec.md §4.1.
package query

import (
	"fmt"

	"github.com/correlator/engine/errs"
	"github.com/correlator/engine/query/token"
	"github.com/correlator/engine/timeutil"
)

// parser is a recursive-descent parser over the outer grammar. Selector
// text is captured verbatim via the lexer's readBalanced, never tokenized.
type parser struct {
	lex *lexer
	raw string
	tok token.Token
}

func newParser(raw string) *parser {
	p := &parser{lex: newLexer(raw), raw: raw}
	p.advance()
	return p
}

func (p *parser) advance() {
	p.tok = p.lex.next()
}

func (p *parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return errs.QueryParseError(p.tok.Pos, p.tok.Literal, msg)
}

func (p *parser) expect(kind token.Kind) (token.Token, error) {
	if p.tok.Kind != kind {
		return token.Token{}, p.errorf("expected %s, got %s %q", kind, p.tok.Kind, p.tok.Literal)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

// Parse parses a query string into a ParsedQuery. Per §4.1 validation, the
// result is considered syntactically valid only — Validate applies the
// semantic rules (>= 2 streams, a join operator with on(...), well-formed
// identifiers).
func Parse(raw string) (*ParsedQuery, error) {
	normalized := Normalize(raw)
	p := newParser(normalized)

	q := &ParsedQuery{raw: normalized}

	left, err := p.parseStreamRef()
	if err != nil {
		return nil, err
	}
	q.LeftStream = left

	for p.tok.Kind == token.AND || p.tok.Kind == token.OR || p.tok.Kind == token.UNLESS {
		clause, err := p.parseJoinClause()
		if err != nil {
			return nil, err
		}
		q.Joins = append(q.Joins, clause)
	}

	if len(q.Joins) == 0 {
		return nil, p.errorf("expected a join operator (and/or/unless), got %s %q", p.tok.Kind, p.tok.Literal)
	}

	if p.tok.Kind == token.LBRACE {
		filter, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		q.Filter = filter
	}

	if p.tok.Kind != token.EOF {
		return nil, p.errorf("unexpected trailing token %s %q", p.tok.Kind, p.tok.Literal)
	}

	return q, nil
}

// parseStreamRef parses `IDENT '(' selector ')' '[' duration ']' ('as' IDENT)?`.
func (p *parser) parseStreamRef() (StreamQuery, error) {
	var sq StreamQuery

	name, err := p.expect(token.IDENT)
	if err != nil {
		return sq, err
	}
	sq.Source = name.Literal

	// Note: do not use expect(LPAREN) here. p.tok becomes LPAREN as soon as
	// the lexer scans past the '(' character, which means the lexer's raw
	// position is already sitting at the start of the selector text. A
	// normal expect() would call advance(), which tokenizes one more token
	// *inside* the selector before we get a chance to capture it raw.
	if p.tok.Kind != token.LPAREN {
		return sq, p.errorf("expected (, got %s %q", p.tok.Kind, p.tok.Literal)
	}

	selector, err := p.lex.readBalanced('(', ')')
	if err != nil {
		return sq, errs.QueryParseError(p.tok.Pos, "(", err.Error())
	}
	sq.Selector = selector
	p.advance() // resync the token stream past the selector's closing ')'

	if _, err := p.expect(token.LBRACKET); err != nil {
		return sq, err
	}

	dur, err := p.expect(token.DURATION)
	if err != nil {
		return sq, err
	}
	d, err := timeutil.ParseDuration(dur.Literal)
	if err != nil {
		return sq, errs.QueryParseError(dur.Pos, dur.Literal, err.Error())
	}
	sq.TimeRange = d

	if _, err := p.expect(token.RBRACKET); err != nil {
		return sq, err
	}

	if p.tok.Kind == token.AS {
		p.advance()
		alias, err := p.expect(token.IDENT)
		if err != nil {
			return sq, err
		}
		sq.Alias = alias.Literal
	}

	return sq, nil
}

// parseJoinClause parses `('and'|'or'|'unless') 'on' '(' joinKeys ')' modifiers* streamRef`.
func (p *parser) parseJoinClause() (JoinClause, error) {
	var jc JoinClause

	switch p.tok.Kind {
	case token.AND:
		jc.Type = JoinAnd
	case token.OR:
		jc.Type = JoinOr
	case token.UNLESS:
		jc.Type = JoinUnless
	default:
		return jc, p.errorf("expected and/or/unless, got %s", p.tok.Kind)
	}
	p.advance()

	if _, err := p.expect(token.ON); err != nil {
		return jc, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return jc, err
	}

	keys, err := p.parseJoinKeys()
	if err != nil {
		return jc, err
	}
	jc.JoinKeys = keys

	if _, err := p.expect(token.RPAREN); err != nil {
		return jc, err
	}

	for {
		switch p.tok.Kind {
		case token.WITHIN:
			p.advance()
			if _, err := p.expect(token.LPAREN); err != nil {
				return jc, err
			}
			dur, err := p.expect(token.DURATION)
			if err != nil {
				return jc, err
			}
			d, err := timeutil.ParseDuration(dur.Literal)
			if err != nil {
				return jc, errs.QueryParseError(dur.Pos, dur.Literal, err.Error())
			}
			jc.Within = d
			jc.HasWithin = true
			if _, err := p.expect(token.RPAREN); err != nil {
				return jc, err
			}
		case token.GROUP_LEFT, token.GROUP_RIGHT:
			isLeft := p.tok.Kind == token.GROUP_LEFT
			p.advance()
			labels, err := p.parseIdentListParen(false)
			if err != nil {
				return jc, err
			}
			if isLeft {
				jc.GroupLeft = labels
				jc.HasGroupLeft = true
			} else {
				jc.GroupRight = labels
				jc.HasGroupRight = true
			}
		case token.IGNORING:
			p.advance()
			labels, err := p.parseIdentListParen(true)
			if err != nil {
				return jc, err
			}
			jc.Ignoring = labels
			jc.HasIgnoring = true
		default:
			goto modifiersDone
		}
	}
modifiersDone:

	stream, err := p.parseStreamRef()
	if err != nil {
		return jc, err
	}
	jc.Stream = stream

	return jc, nil
}

// parseIdentListParen parses `'(' IDENT* ')'` or, when required is true,
// `'(' IDENT+ ')'`.
func (p *parser) parseIdentListParen(required bool) ([]string, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}

	var idents []string
	for p.tok.Kind == token.IDENT {
		idents = append(idents, p.tok.Literal)
		p.advance()
		if p.tok.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}

	if required && len(idents) == 0 {
		return nil, p.errorf("expected at least one identifier")
	}

	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	return idents, nil
}

func (p *parser) parseJoinKeys() ([]JoinKey, error) {
	var keys []JoinKey
	for {
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}

		jk := JoinKey{Name: name.Literal}
		if p.tok.Kind == token.EQ {
			p.advance()
			right, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			jk.Mapping = &LabelMapping{Left: name.Literal, Right: right.Literal}
		}
		keys = append(keys, jk)

		if p.tok.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return keys, nil
}

func (p *parser) parseFilter() (*Filter, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}

	f := &Filter{}
	for p.tok.Kind != token.RBRACE {
		m, err := p.parseMatcher()
		if err != nil {
			return nil, err
		}
		f.Matchers = append(f.Matchers, m)

		if p.tok.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}

	return f, nil
}

func (p *parser) parseMatcher() (Matcher, error) {
	var m Matcher

	label, err := p.expect(token.IDENT)
	if err != nil {
		return m, err
	}
	m.Label = label.Literal

	switch p.tok.Kind {
	case token.EQ:
		m.Op = MatchEq
	case token.NEQ:
		m.Op = MatchNeq
	case token.EQ_RE:
		m.Op = MatchReEq
	case token.NEQ_RE:
		m.Op = MatchReNeq
	default:
		return m, p.errorf("expected a matcher operator (=, !=, =~, !~), got %s", p.tok.Kind)
	}
	p.advance()

	str, err := p.expect(token.STRING)
	if err != nil {
		return m, err
	}
	unquoted, err := unquote(str.Literal)
	if err != nil {
		return m, errs.QueryParseError(str.Pos, str.Literal, err.Error())
	}
	m.Value = unquoted

	return m, nil
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("malformed string literal %q", s)
	}
	inner := s[1 : len(s)-1]
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			i++
			out = append(out, inner[i])
			continue
		}
		out = append(out, c)
	}
	return string(out), nil
}

// ValidateQuery parses and validates q (ParseAndValidate) and discards
// the result, so it reports true only when both steps succeed.
func ValidateQuery(raw string) bool {
	_, err := ParseAndValidate(raw)
	return err == nil
}

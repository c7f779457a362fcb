/*
 * Copyright 2024 The Weave Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package selector

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/weavego/weave/api/types"
)

// Parse turns a selector expression into a Selector. The grammar:
//
//	expr    := orExpr
//	orExpr  := andExpr { OR andExpr }
//	andExpr := unary { AND unary }
//	unary   := NOT unary | primary
//	primary := '(' expr ')' | ident '(' string ')'
//
// where ident is one of exec, within, marker, expr. Keywords are
// case-insensitive. Any syntax error is reported immediately as
// ErrMalformedSelector; parsing never defers failures to call time.
func Parse(text string) (types.Selector, error) {
	lex, err := scan(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: lex}
	sel, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, malformed(tok.pos, "unexpected %q after expression", tok.text)
	}
	return sel, nil
}

func malformed(pos int, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s at position %d",
		types.ErrMalformedSelector, fmt.Sprintf(format, args...), pos)
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func scan(text string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(text) {
		r := rune(text[i])
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case r == '"':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(text) {
				c := text[i]
				if c == '\\' && i+1 < len(text) {
					sb.WriteByte(text[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				sb.WriteByte(c)
				i++
			}
			if !closed {
				return nil, malformed(start, "unterminated string")
			}
			tokens = append(tokens, token{tokenString, sb.String(), start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(text) && (isIdentChar(text[i])) {
				i++
			}
			tokens = append(tokens, token{tokenIdent, text[start:i], start})
		default:
			return nil, malformed(i, "unexpected character %q", string(r))
		}
	}
	tokens = append(tokens, token{tokenEOF, "", len(text)})
	return tokens, nil
}

func isIdentChar(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) keyword(tok token, word string) bool {
	return tok.kind == tokenIdent && strings.EqualFold(tok.text, word)
}

func (p *parser) parseOr() (types.Selector, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []types.Selector{left}
	for p.keyword(p.peek(), "OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Or(children...), nil
}

func (p *parser) parseAnd() (types.Selector, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []types.Selector{left}
	for p.keyword(p.peek(), "AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return And(children...), nil
}

func (p *parser) parseUnary() (types.Selector, error) {
	if p.keyword(p.peek(), "NOT") {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (types.Selector, error) {
	tok := p.next()
	switch tok.kind {
	case tokenLParen:
		sel, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, malformed(closing.pos, "expected ')', got %q", closing.text)
		}
		return sel, nil
	case tokenIdent:
		return p.parsePredicate(tok)
	case tokenEOF:
		return nil, malformed(tok.pos, "unexpected end of expression")
	default:
		return nil, malformed(tok.pos, "unexpected %q", tok.text)
	}
}

func (p *parser) parsePredicate(name token) (types.Selector, error) {
	if open := p.next(); open.kind != tokenLParen {
		return nil, malformed(open.pos, "expected '(' after %q", name.text)
	}
	arg := p.next()
	if arg.kind != tokenString {
		return nil, malformed(arg.pos, "expected string argument for %q", name.text)
	}
	if closing := p.next(); closing.kind != tokenRParen {
		return nil, malformed(closing.pos, "expected ')' after argument of %q", name.text)
	}
	switch strings.ToLower(name.text) {
	case "exec":
		return Exec(arg.text), nil
	case "within":
		return Within(arg.text), nil
	case "marker":
		return Marker(arg.text), nil
	case "expr":
		return Expr(arg.text)
	default:
		return nil, malformed(name.pos, "unknown predicate %q", name.text)
	}
}

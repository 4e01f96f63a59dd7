/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package criteria

import "fmt"

// Grammar, loosest binding first:
//
//	main        := binary
//	binary      := binary WS "&&" WS unary | binary WS "||" WS unary | unary
//	unary       := "!" parentheses | parentheses
//	parentheses := "(" binary ")" | value
//	value       := clean | explicit | unlabeled | label:N | artist:"s" | album:"s"
//	             | added OP DATE | released OP DATE
//
// && and || share one precedence level and associate to the left.

// ParseString tokenizes and parses a criteria string.
func ParseString(input string) (Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse builds a predicate tree from tokens produced by Tokenize. Every call
// uses its own cursor so concurrent calls never share state.
func Parse(tokens []Token) (Node, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEOF {
		tokens = append(append([]Token(nil), tokens...), Token{Kind: TokenEOF, Pos: endPos(tokens)})
	}

	p := &parser{tokens: tokens}
	node, err := p.parseBinary()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Kind != TokenEOF {
		return nil, p.unexpected(tok)
	}
	return node, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

func (p *parser) peek(offset int) Token {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return Token{}, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("expected %s, found %s", kind, describe(tok))}
	}
	return p.advance(), nil
}

func (p *parser) unexpected(tok Token) error {
	return &ParseError{Pos: tok.Pos, Msg: "unexpected " + describe(tok)}
}

func (p *parser) parseBinary() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.current().Kind == TokenWhitespace {
		op := p.peek(1)
		if op.Kind != TokenAnd && op.Kind != TokenOr {
			return nil, p.unexpected(op)
		}
		p.advance()
		p.advance()
		if _, err := p.expect(TokenWhitespace); err != nil {
			return nil, err
		}

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op.Kind == TokenAnd {
			left = &And{Left: left, Right: right}
		} else {
			left = &Or{Left: left, Right: right}
		}
	}

	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.current().Kind == TokenNot {
		p.advance()
		operand, err := p.parseParentheses()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parseParentheses()
}

func (p *parser) parseParentheses() (Node, error) {
	if p.current().Kind != TokenLParen {
		return p.parseValue()
	}
	p.advance()
	inner, err := p.parseBinary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return inner, nil
}

func (p *parser) parseValue() (Node, error) {
	tok := p.advance()
	switch tok.Kind {
	case TokenClean:
		return &Literal{Keyword: KeywordClean}, nil
	case TokenExplicit:
		return &Literal{Keyword: KeywordExplicit}, nil
	case TokenUnlabeled:
		return &Literal{Keyword: KeywordUnlabeled}, nil
	case TokenLabel:
		id, err := p.expect(TokenNumber)
		if err != nil {
			return nil, err
		}
		return &Literal{Keyword: KeywordLabel, LabelID: id.Number}, nil
	case TokenArtist:
		name, err := p.expect(TokenString)
		if err != nil {
			return nil, err
		}
		return &Literal{Keyword: KeywordArtist, Text: name.Str}, nil
	case TokenAlbum:
		name, err := p.expect(TokenString)
		if err != nil {
			return nil, err
		}
		return &Literal{Keyword: KeywordAlbum, Text: name.Str}, nil
	case TokenAdded:
		return p.parseDateComparison(KeywordAdded)
	case TokenReleased:
		return p.parseDateComparison(KeywordReleased)
	}
	return nil, p.unexpectedAt(tok)
}

func (p *parser) parseDateComparison(keyword Keyword) (Node, error) {
	op, err := p.expect(TokenComparison)
	if err != nil {
		return nil, err
	}
	date := p.advance()
	if date.Kind != TokenAbsoluteDate && date.Kind != TokenRelativeDate {
		return nil, &ParseError{Pos: date.Pos, Msg: "expected date, found " + describe(date)}
	}
	return &Literal{Keyword: keyword, Op: op.Op, Date: date.Date}, nil
}

func (p *parser) unexpectedAt(tok Token) error {
	if tok.Kind == TokenEOF {
		return &ParseError{Pos: tok.Pos, Msg: "unexpected end of input"}
	}
	return p.unexpected(tok)
}

func describe(tok Token) string {
	if tok.Kind == TokenEOF {
		return tok.Kind.String()
	}
	return fmt.Sprintf("%s %q", tok.Kind, tok.Text)
}

func endPos(tokens []Token) int {
	if len(tokens) == 0 {
		return 0
	}
	last := tokens[len(tokens)-1]
	return last.Pos + len(last.Text)
}

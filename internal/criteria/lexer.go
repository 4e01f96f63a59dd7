/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package criteria

import (
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2/lexer"
)

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenWhitespace TokenKind = iota
	TokenClean
	TokenExplicit
	TokenUnlabeled
	TokenAdded
	TokenReleased
	TokenLabel
	TokenArtist
	TokenAlbum
	TokenComparison
	TokenRelativeDate
	TokenAbsoluteDate
	TokenNumber
	TokenString
	TokenNot
	TokenAnd
	TokenOr
	TokenLParen
	TokenRParen
	TokenEOF
)

var tokenKindNames = map[TokenKind]string{
	TokenWhitespace:   "whitespace",
	TokenClean:        "clean",
	TokenExplicit:     "explicit",
	TokenUnlabeled:    "unlabeled",
	TokenAdded:        "added",
	TokenReleased:     "released",
	TokenLabel:        "label:",
	TokenArtist:       "artist:",
	TokenAlbum:        "album:",
	TokenComparison:   "comparison",
	TokenRelativeDate: "relative date",
	TokenAbsoluteDate: "absolute date",
	TokenNumber:       "number",
	TokenString:       "quoted string",
	TokenNot:          "!",
	TokenAnd:          "&&",
	TokenOr:           "||",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenEOF:          "end of input",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Token is one lexical unit of a criteria string. The decoded fields are
// populated according to Kind.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int

	Op     Operator // TokenComparison
	Number int64    // TokenNumber
	Str    string   // TokenString, without quotes
	Date   DateSpec // TokenRelativeDate, TokenAbsoluteDate
}

// Rules are tried in order and the first match wins, so keywords precede the
// generic rules and two-character comparisons precede their prefixes. A label
// id is lexed in its own state so that label:2020 is not read as a year.
var definition = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Whitespace", Pattern: ` +`},
		{Name: "Clean", Pattern: `clean`},
		{Name: "Explicit", Pattern: `explicit`},
		{Name: "Unlabeled", Pattern: `unlabeled`},
		{Name: "Added", Pattern: `added`},
		{Name: "Released", Pattern: `released`},
		{Name: "RelativeDate", Pattern: `[1-9]\d*[dmy]`},
		{Name: "AbsoluteDate", Pattern: `(?:[1-9]\d?-[1-9]\d?-)?\d{4}`},
		{Name: "Label", Pattern: `label:`, Action: lexer.Push("LabelID")},
		{Name: "Number", Pattern: `[1-9]\d*`},
		{Name: "Artist", Pattern: `artist:`},
		{Name: "Album", Pattern: `album:`},
		{Name: "String", Pattern: `".+?"`},
		{Name: "Comparison", Pattern: `<=|>=|<|>|=`},
		{Name: "Not", Pattern: `!`},
		{Name: "And", Pattern: `&&`},
		{Name: "Or", Pattern: `\|\|`},
		{Name: "LParen", Pattern: `\(`},
		{Name: "RParen", Pattern: `\)`},
	},
	"LabelID": {
		{Name: "LabelID", Pattern: `[1-9]\d*`, Action: lexer.Pop()},
	},
})

var kindsBySymbol = map[string]TokenKind{
	"Whitespace":   TokenWhitespace,
	"Clean":        TokenClean,
	"Explicit":     TokenExplicit,
	"Unlabeled":    TokenUnlabeled,
	"Added":        TokenAdded,
	"Released":     TokenReleased,
	"RelativeDate": TokenRelativeDate,
	"AbsoluteDate": TokenAbsoluteDate,
	"Label":        TokenLabel,
	"Number":       TokenNumber,
	"LabelID":      TokenNumber,
	"Artist":       TokenArtist,
	"Album":        TokenAlbum,
	"String":       TokenString,
	"Comparison":   TokenComparison,
	"Not":          TokenNot,
	"And":          TokenAnd,
	"Or":           TokenOr,
	"LParen":       TokenLParen,
	"RParen":       TokenRParen,
}

var kindsByType = func() map[lexer.TokenType]TokenKind {
	out := make(map[lexer.TokenType]TokenKind, len(kindsBySymbol))
	for name, typ := range definition.Symbols() {
		if kind, ok := kindsBySymbol[name]; ok {
			out[typ] = kind
		}
	}
	return out
}()

// Tokenize splits a criteria string into tokens terminated by a TokenEOF.
// Whitespace is returned as tokens because the grammar requires it around && and ||.
func Tokenize(input string) ([]Token, error) {
	lex, err := definition.LexString("", input)
	if err != nil {
		return nil, &LexError{Pos: 0, Near: near(input, 0)}
	}

	tokens := make([]Token, 0, 8)
	offset := 0
	for {
		raw, err := lex.Next()
		if err != nil {
			return nil, &LexError{Pos: offset, Near: near(input, offset)}
		}
		if raw.EOF() {
			tokens = append(tokens, Token{Kind: TokenEOF, Pos: len(input)})
			return tokens, nil
		}

		kind, ok := kindsByType[raw.Type]
		if !ok {
			return nil, &LexError{Pos: raw.Pos.Offset, Near: near(input, raw.Pos.Offset)}
		}
		tok, err := decode(kind, raw.Value, raw.Pos.Offset)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		offset = raw.Pos.Offset + len(raw.Value)
	}
}

func decode(kind TokenKind, text string, pos int) (Token, error) {
	tok := Token{Kind: kind, Text: text, Pos: pos}
	bad := &LexError{Pos: pos, Near: text}

	switch kind {
	case TokenComparison:
		tok.Op = Operator(text)
	case TokenNumber:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Token{}, bad
		}
		tok.Number = n
	case TokenString:
		tok.Str = text[1 : len(text)-1]
	case TokenRelativeDate:
		amount, err := strconv.Atoi(text[:len(text)-1])
		if err != nil {
			return Token{}, bad
		}
		tok.Date = DateSpec{Relative: true, Amount: amount, Unit: Unit(text[len(text)-1])}
	case TokenAbsoluteDate:
		date, ok := decodeAbsoluteDate(text)
		if !ok {
			return Token{}, bad
		}
		tok.Date = date
	}
	return tok, nil
}

// decodeAbsoluteDate reads YYYY (year unit) or M-D-YYYY (day unit) and rejects
// calendar dates that do not exist.
func decodeAbsoluteDate(text string) (DateSpec, bool) {
	if len(text) == 4 {
		year, err := strconv.Atoi(text)
		if err != nil {
			return DateSpec{}, false
		}
		return DateSpec{Unit: UnitYear, Year: year, Month: time.January, Day: 1}, true
	}

	parts := strings.Split(text, "-")
	if len(parts) != 3 {
		return DateSpec{}, false
	}
	month, errM := strconv.Atoi(parts[0])
	day, errD := strconv.Atoi(parts[1])
	year, errY := strconv.Atoi(parts[2])
	if errM != nil || errD != nil || errY != nil {
		return DateSpec{}, false
	}
	probe := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if probe.Year() != year || int(probe.Month()) != month || probe.Day() != day {
		return DateSpec{}, false
	}
	return DateSpec{Unit: UnitDay, Year: year, Month: time.Month(month), Day: day}, true
}

func near(input string, pos int) string {
	if pos >= len(input) {
		return ""
	}
	rest := input[pos:]
	if len(rest) > 10 {
		rest = rest[:10]
	}
	return rest
}

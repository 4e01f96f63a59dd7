package criteria

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Kind)
	}
	return out
}

func TestTokenizeKinds(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenKind
	}{
		{"clean", []TokenKind{TokenClean, TokenEOF}},
		{"explicit && unlabeled", []TokenKind{TokenExplicit, TokenWhitespace, TokenAnd, TokenWhitespace, TokenUnlabeled, TokenEOF}},
		{"added>=1y", []TokenKind{TokenAdded, TokenComparison, TokenRelativeDate, TokenEOF}},
		{"released<2020", []TokenKind{TokenReleased, TokenComparison, TokenAbsoluteDate, TokenEOF}},
		{"released=3-14-2015", []TokenKind{TokenReleased, TokenComparison, TokenAbsoluteDate, TokenEOF}},
		{"!label:3", []TokenKind{TokenNot, TokenLabel, TokenNumber, TokenEOF}},
		{`artist:"Taylor Swift"`, []TokenKind{TokenArtist, TokenString, TokenEOF}},
		{`album:"1989"`, []TokenKind{TokenAlbum, TokenString, TokenEOF}},
		{"(clean)||explicit", []TokenKind{TokenLParen, TokenClean, TokenRParen, TokenOr, TokenExplicit, TokenEOF}},
		{"clean   ||   explicit", []TokenKind{TokenClean, TokenWhitespace, TokenOr, TokenWhitespace, TokenExplicit, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kinds(tokens))
		})
	}
}

func TestTokenizeComparisonsLongestFirst(t *testing.T) {
	for _, op := range []Operator{OpLessEqual, OpGreaterEqual, OpLess, OpGreater, OpEqual} {
		tokens, err := Tokenize("added" + string(op) + "7d")
		require.NoError(t, err)
		require.Len(t, tokens, 4)
		assert.Equal(t, op, tokens[1].Op)
	}
}

func TestTokenizeDecodesValues(t *testing.T) {
	tokens, err := Tokenize("added>12m")
	require.NoError(t, err)
	assert.Equal(t, DateSpec{Relative: true, Amount: 12, Unit: UnitMonth}, tokens[2].Date)

	tokens, err = Tokenize("added=2020")
	require.NoError(t, err)
	assert.Equal(t, DateSpec{Unit: UnitYear, Year: 2020, Month: time.January, Day: 1}, tokens[2].Date)

	tokens, err = Tokenize("added=12-25-2019")
	require.NoError(t, err)
	assert.Equal(t, DateSpec{Unit: UnitDay, Year: 2019, Month: time.December, Day: 25}, tokens[2].Date)

	tokens, err = Tokenize(`artist:"Taylor Swift"`)
	require.NoError(t, err)
	assert.Equal(t, "Taylor Swift", tokens[1].Str)
	assert.Equal(t, 7, tokens[1].Pos)
}

func TestTokenizeLabelIDIsNeverADate(t *testing.T) {
	tokens, err := Tokenize("label:2020")
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{TokenLabel, TokenNumber, TokenEOF}, kinds(tokens))
	assert.Equal(t, int64(2020), tokens[1].Number)

	tokens, err = Tokenize("label:123456 && added<7d")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), tokens[1].Number)
	assert.Equal(t, TokenAdded, tokens[5].Kind)
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pos   int
	}{
		{"unknown word", "clean && rock", 9},
		{"tab separator", "clean\t&& explicit", 5},
		{"single ampersand", "clean & explicit", 6},
		{"leading zero month", "added=01-01-2020", 6},
		{"impossible date", "added=2-30-2020", 6},
		{"label without id", "label:x", 6},
		{"empty quotes", `artist:""`, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			require.Error(t, err)

			var lexErr *LexError
			require.True(t, errors.As(err, &lexErr), "want *LexError, got %T", err)
			assert.Equal(t, tt.pos, lexErr.Pos)
			assert.ErrorIs(t, err, ErrInvalidCriteria)
		})
	}
}

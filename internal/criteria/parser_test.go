package criteria

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"clean", "clean"},
		{"label:5", "label:5"},
		{`artist:"Taylor Swift"`, `artist:"Taylor Swift"`},
		{`album:"Red"`, `album:"Red"`},
		{"added>=1y", "added>=1y"},
		{"released<=3-4-2019", "released<=3-4-2019"},
		{"!explicit && label:2 || label:3", "((!explicit && label:2) || label:3)"},
		{"clean || explicit && unlabeled", "((clean || explicit) && unlabeled)"},
		{"clean && explicit && unlabeled", "((clean && explicit) && unlabeled)"},
		{"clean || (explicit && unlabeled)", "(clean || (explicit && unlabeled))"},
		{"!(clean || explicit)", "!(clean || explicit)"},
		{"((label:1))", "label:1"},
		{`added>=1y && !label:3 || artist:"Taylor Swift"`, `((added>=1y && !label:3) || artist:"Taylor Swift")`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := ParseString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.String())
		})
	}
}

func TestParseNotBindsToOperandOnly(t *testing.T) {
	node, err := ParseString("!clean && explicit || label:4")
	require.NoError(t, err)

	or, ok := node.(*Or)
	require.True(t, ok, "root should be Or, got %T", node)
	and, ok := or.Left.(*And)
	require.True(t, ok, "left of Or should be And, got %T", or.Left)
	not, ok := and.Left.(*Not)
	require.True(t, ok, "left of And should be Not, got %T", and.Left)
	assert.Equal(t, &Literal{Keyword: KeywordClean}, not.Operand)
	assert.Equal(t, &Literal{Keyword: KeywordLabel, LabelID: 4}, or.Right)
}

func TestParseIsDeterministic(t *testing.T) {
	inputs := []string{
		"clean",
		"!(label:1 || label:2) && added<30d",
		`released=2001 || album:"Discovery" && !explicit`,
	}
	for _, input := range inputs {
		first, err := ParseString(input)
		require.NoError(t, err)
		second, err := ParseString(input)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		reparsed, err := ParseString(stripOuterParens(first.String()))
		require.NoError(t, err)
		assert.Equal(t, first.String(), reparsed.String())
	}
}

func stripOuterParens(s string) string {
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}

func TestParseConcurrentCallsDoNotInterfere(t *testing.T) {
	inputs := map[string]string{
		"clean && explicit":         "(clean && explicit)",
		"label:1 || label:2":        "(label:1 || label:2)",
		"!(unlabeled)":              "!unlabeled",
		"added<7d || released>2000": "(added<7d || released>2000)",
	}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		for input, want := range inputs {
			wg.Add(1)
			go func(input, want string) {
				defer wg.Done()
				node, err := ParseString(input)
				if assert.NoError(t, err) {
					assert.Equal(t, want, node.String())
				}
			}(input, want)
		}
	}
	wg.Wait()
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pos   int
	}{
		{"empty", "", 0},
		{"operators need spaces", "clean&&explicit", 5},
		{"missing right operand", "clean && ", 9},
		{"missing space after operator", "clean &&explicit", 8},
		{"juxtaposed values", "clean explicit", 6},
		{"unbalanced open", "(clean", 6},
		{"unbalanced close", "clean)", 5},
		{"space inside parens", "( clean)", 1},
		{"not on binary without parens", "! clean", 1},
		{"label needs id", "label:", 6},
		{"artist needs string", "artist:clean", 7},
		{"added needs operator", "added2020", 5},
		{"added needs date", "added>label:1", 6},
		{"trailing space", "clean ", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCriteria)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "want *ParseError, got %T: %v", err, err)
			assert.Equal(t, tt.pos, parseErr.Pos)
		})
	}
}

func TestLabelRefs(t *testing.T) {
	node, err := ParseString("label:3 && (label:1 || !label:3) && clean")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, LabelRefs(node))
}

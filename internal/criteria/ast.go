/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package criteria implements the smart label query language: tokenizing,
// parsing into a predicate tree, date range arithmetic, and translation of the
// tree into a backend-neutral filter.
package criteria

import (
	"fmt"
	"strconv"
	"time"
)

// Operator is a date comparison operator.
type Operator string

const (
	OpEqual        Operator = "="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// Unit is the granularity of a date value.
type Unit byte

const (
	UnitDay   Unit = 'd'
	UnitMonth Unit = 'm'
	UnitYear  Unit = 'y'
)

// DateSpec is either a relative date (Amount units before now) or an absolute
// calendar date. Absolute dates use UnitYear when only the year was written.
type DateSpec struct {
	Relative bool
	Amount   int
	Unit     Unit

	Year  int
	Month time.Month
	Day   int
}

func (d DateSpec) String() string {
	if d.Relative {
		return strconv.Itoa(d.Amount) + string(d.Unit)
	}
	if d.Unit == UnitYear {
		return fmt.Sprintf("%04d", d.Year)
	}
	return fmt.Sprintf("%d-%d-%04d", int(d.Month), d.Day, d.Year)
}

// Keyword identifies the kind of a literal predicate.
type Keyword int

const (
	KeywordClean Keyword = iota
	KeywordExplicit
	KeywordUnlabeled
	KeywordAdded
	KeywordReleased
	KeywordLabel
	KeywordArtist
	KeywordAlbum
)

// Node is a predicate tree node: *Literal, *Not, *And or *Or.
type Node interface {
	fmt.Stringer
	node()
}

// Literal is a leaf predicate.
type Literal struct {
	Keyword Keyword
	Op      Operator // added, released
	Date    DateSpec // added, released
	LabelID int64    // label
	Text    string   // artist, album
}

// Not negates its operand.
type Not struct {
	Operand Node
}

// And matches when both sides match.
type And struct {
	Left, Right Node
}

// Or matches when either side matches.
type Or struct {
	Left, Right Node
}

func (*Literal) node() {}
func (*Not) node()     {}
func (*And) node()     {}
func (*Or) node()      {}

// String renders the literal in criteria syntax.
func (l *Literal) String() string {
	switch l.Keyword {
	case KeywordClean:
		return "clean"
	case KeywordExplicit:
		return "explicit"
	case KeywordUnlabeled:
		return "unlabeled"
	case KeywordAdded:
		return "added" + string(l.Op) + l.Date.String()
	case KeywordReleased:
		return "released" + string(l.Op) + l.Date.String()
	case KeywordLabel:
		return "label:" + strconv.FormatInt(l.LabelID, 10)
	case KeywordArtist:
		return `artist:"` + l.Text + `"`
	case KeywordAlbum:
		return `album:"` + l.Text + `"`
	}
	return "?"
}

// String renders the negation. Binary operands already carry their parentheses.
func (n *Not) String() string {
	return "!" + n.Operand.String()
}

// String renders the node fully parenthesized so the tree shape is visible.
func (a *And) String() string {
	return "(" + a.Left.String() + " && " + a.Right.String() + ")"
}

func (o *Or) String() string {
	return "(" + o.Left.String() + " || " + o.Right.String() + ")"
}

// Walk visits every node depth-first, parents before children.
func Walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch v := n.(type) {
	case *Not:
		Walk(v.Operand, visit)
	case *And:
		Walk(v.Left, visit)
		Walk(v.Right, visit)
	case *Or:
		Walk(v.Left, visit)
		Walk(v.Right, visit)
	}
}

// LabelRefs returns the distinct label ids referenced by the tree in order of appearance.
func LabelRefs(n Node) []int64 {
	var ids []int64
	seen := map[int64]struct{}{}
	Walk(n, func(node Node) {
		lit, ok := node.(*Literal)
		if !ok || lit.Keyword != KeywordLabel {
			return
		}
		if _, dup := seen[lit.LabelID]; dup {
			return
		}
		seen[lit.LabelID] = struct{}{}
		ids = append(ids, lit.LabelID)
	})
	return ids
}

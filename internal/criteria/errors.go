/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package criteria

import (
	"errors"
	"fmt"
)

// ErrInvalidCriteria is matched by every error that makes a criteria string unusable.
var ErrInvalidCriteria = errors.New("invalid criteria")

// ErrInvalidOperator indicates a comparison operator outside =, <, <=, >, >=.
var ErrInvalidOperator = fmt.Errorf("%w: invalid operator", ErrInvalidCriteria)

// LexError reports input that no token rule accepts.
type LexError struct {
	Pos  int
	Near string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("unrecognized input %q at position %d", e.Near, e.Pos)
}

// Is lets errors.Is(err, ErrInvalidCriteria) succeed.
func (e *LexError) Is(target error) bool { return target == ErrInvalidCriteria }

// ParseError reports a grammar violation at the offending token.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

func (e *ParseError) Is(target error) bool { return target == ErrInvalidCriteria }

// UnknownLabelError is raised when label:<id> references a label the user does not own,
// or a smart label.
type UnknownLabelError struct {
	LabelID int64
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("referenced non-existent label %d", e.LabelID)
}

func (e *UnknownLabelError) Is(target error) bool { return target == ErrInvalidCriteria }

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package smartlabel

import (
	"context"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Token scopes a filter data cache to one logical request. Every evaluation
// that passes the same token shares at most one load per user. A token holds
// no resources beyond memory and is simply dropped when the request ends.
type Token struct {
	id      string
	entries *xsync.MapOf[string, *entry]
}

// entry is one user's load. ready is closed once data or err is set.
type entry struct {
	ready chan struct{}
	data  *FilterData
	err   error
}

// NewToken returns an empty request-scoped cache.
func NewToken() *Token {
	return &Token{
		id:      uuid.NewString(),
		entries: xsync.NewMapOf[string, *entry](),
	}
}

// ID identifies the token in logs.
func (t *Token) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

// load returns the user's filter data, running fn only for the first caller.
// Later and concurrent callers wait for that result, failures included.
func (t *Token) load(ctx context.Context, userID string, fn func() (*FilterData, error)) (data *FilterData, shared bool, err error) {
	e, loaded := t.entries.LoadOrCompute(userID, func() *entry {
		return &entry{ready: make(chan struct{})}
	})
	if !loaded {
		e.data, e.err = fn()
		close(e.ready)
		return e.data, false, e.err
	}

	select {
	case <-e.ready:
		return e.data, true, e.err
	case <-ctx.Done():
		return nil, true, ctx.Err()
	}
}

type tokenKey struct{}

// WithToken returns a context carrying tok.
func WithToken(ctx context.Context, tok *Token) context.Context {
	return context.WithValue(ctx, tokenKey{}, tok)
}

// TokenFromContext returns the token stored in ctx, or nil.
func TokenFromContext(ctx context.Context) *Token {
	tok, _ := ctx.Value(tokenKey{}).(*Token)
	return tok
}

// Package identity carries the calling account through a request.
//
// The ledger never authenticates anyone itself: a host surface (the HTTP
// server after verifying a token, or a stdio session bound to a configured
// account) places the caller in the context and the ledger reads it back
// through a Resolver.
package identity

import (
	"context"
	"errors"
)

// AccountID is an opaque, comparable account identifier.
type AccountID string

// String returns the id as a string.
func (a AccountID) String() string {
	return string(a)
}

// ErrNoCaller is returned when a context carries no caller.
var ErrNoCaller = errors.New("identity: no caller in context")

type callerKey struct{}

// WithCaller returns a context carrying id as the caller.
func WithCaller(ctx context.Context, id AccountID) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFrom returns the caller stored by WithCaller.
func CallerFrom(ctx context.Context) (AccountID, bool) {
	id, ok := ctx.Value(callerKey{}).(AccountID)
	return id, ok
}

// Resolver yields the identity of the current caller.
type Resolver interface {
	Caller(ctx context.Context) (AccountID, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (AccountID, error)

// Caller calls f(ctx).
func (f ResolverFunc) Caller(ctx context.Context) (AccountID, error) {
	return f(ctx)
}

// ContextResolver resolves the caller from the request context.
type ContextResolver struct{}

// Caller returns the context's caller or ErrNoCaller.
func (ContextResolver) Caller(ctx context.Context) (AccountID, error) {
	id, ok := CallerFrom(ctx)
	if !ok {
		return "", ErrNoCaller
	}
	return id, nil
}

// Fixed always resolves to the same account.
type Fixed AccountID

// Caller returns the fixed account.
func (f Fixed) Caller(context.Context) (AccountID, error) {
	return AccountID(f), nil
}

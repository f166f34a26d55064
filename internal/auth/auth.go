// Package auth implements the three authentication strategies of §4.E.
// Strategies are invoked explicitly per route, never as a pre-handler
// middleware, since the CalDAV dispatcher's auth requirement varies by URL
// level and even by whether the request carries credentials at all.
package auth

import (
	"context"
)

// Principal is the authenticated (or path-derived) identity of a request.
type Principal struct {
	UserID   string
	Username string
}

type ctxKey int

const principalKey ctxKey = 1

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

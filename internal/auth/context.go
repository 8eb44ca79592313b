package auth

import (
	"context"

	"github.com/presskit/presskit/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated subject of a request.
type Principal struct {
	User  *model.User
	Token string // raw bearer token, needed for logout
}

// UserID returns the subject id.
func (p *Principal) UserID() string {
	if p == nil || p.User == nil {
		return ""
	}
	return p.User.ID
}

// ContextWithPrincipal attaches the principal to ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal. Returns nil if not present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// MustPrincipal retrieves the principal.
// Panics if not present (use only behind the Protect middleware).
func MustPrincipal(ctx context.Context) *Principal {
	p := PrincipalFromContext(ctx)
	if p == nil {
		panic("principal not found - ensure auth middleware is applied")
	}
	return p
}

// UserIDFromContext returns the authenticated user id or "".
func UserIDFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).UserID()
}

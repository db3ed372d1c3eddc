package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// DefaultPrincipalLocalsKey is the fiber locals key the cookie middleware
// stores the principal under
const DefaultPrincipalLocalsKey = "principal"

// WithPrincipal sets the principal in the given context
func WithPrincipal(ctx context.Context, p *ClaimsPrincipal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal in the context.
func PrincipalFromContext(ctx context.Context) (*ClaimsPrincipal, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(principalCtxKey).(*ClaimsPrincipal)
	return raw, ok && raw != nil
}

// PrincipalFromLocals extracts the principal stored by the cookie middleware
func PrincipalFromLocals(c *fiber.Ctx, key string) (*ClaimsPrincipal, bool) {
	if key == "" {
		key = DefaultPrincipalLocalsKey
	}
	raw, ok := c.Locals(key).(*ClaimsPrincipal)
	return raw, ok && raw != nil
}

// IsInRole is a convenience check against the principal in ctx
func IsInRole(ctx context.Context, role string) bool {
	p, ok := PrincipalFromContext(ctx)
	if !ok || !p.IsAuthenticated() {
		return false
	}
	return p.IsInRole(role)
}

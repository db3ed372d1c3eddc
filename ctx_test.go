package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/stretchr/testify/assert"
)

func TestPrincipalFromContext(t *testing.T) {
	admin := auth.NewClaimsPrincipal(auth.NewClaimsIdentity(auth.DefaultPrimaryScheme,
		auth.Claim{Type: auth.ClaimTypeAccountID, Value: "7"},
		auth.Claim{Type: auth.ClaimTypeRole, Value: "admin"},
	))

	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
		wantRole bool
	}{
		{
			name: "should return principal when present in context",
			setupCtx: func() context.Context {
				return auth.WithPrincipal(context.Background(), admin)
			},
			wantOK:   true,
			wantRole: true,
		},
		{
			name:     "should return false when no principal in context",
			setupCtx: context.Background,
		},
		{
			name: "should return false for a nil principal",
			setupCtx: func() context.Context {
				return auth.WithPrincipal(context.Background(), nil)
			},
		},
		{
			name: "should not report roles for anonymous principal",
			setupCtx: func() context.Context {
				return auth.WithPrincipal(context.Background(), auth.NewClaimsPrincipal(nil))
			},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupCtx()
			p, ok := auth.PrincipalFromContext(ctx)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.NotNil(t, p)
			}
			assert.Equal(t, tt.wantRole, auth.IsInRole(ctx, "admin"))
			assert.False(t, auth.IsInRole(ctx, "owner"))
		})
	}
}

func TestPrincipalFromContext_NilContext(t *testing.T) {
	p, ok := auth.PrincipalFromContext(nil) //nolint:staticcheck
	assert.False(t, ok)
	assert.Nil(t, p)
}

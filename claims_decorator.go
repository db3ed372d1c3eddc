package auth

import "context"

// PrincipalDecorator can append host specific claims to a freshly built
// identity. Implementations may add claims but must leave the account-id,
// username, security-stamp and persistence claims untouched.
type PrincipalDecorator interface {
	Decorate(ctx context.Context, account Account, identity *ClaimsIdentity) error
}

// PrincipalDecoratorFunc adapts a function into a PrincipalDecorator.
type PrincipalDecoratorFunc func(ctx context.Context, account Account, identity *ClaimsIdentity) error

// Decorate satisfies the PrincipalDecorator interface.
func (f PrincipalDecoratorFunc) Decorate(ctx context.Context, account Account, identity *ClaimsIdentity) error {
	if f == nil {
		return nil
	}
	return f(ctx, account, identity)
}

type noopPrincipalDecorator struct{}

func (noopPrincipalDecorator) Decorate(context.Context, Account, *ClaimsIdentity) error {
	return nil
}

func normalizePrincipalDecorator(d PrincipalDecorator) PrincipalDecorator {
	if d == nil {
		return noopPrincipalDecorator{}
	}
	return d
}

package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// CredentialStore persists a new password hash. Implementations must
// rotate the account security stamp in the same write so outstanding
// sessions and tokens stop validating.
type CredentialStore interface {
	UpdatePasswordHash(ctx context.Context, accountID int64, hash string) (SecurityStamp, error)
}

// PasswordManager handles credential changes
type PasswordManager struct {
	store    CredentialStore
	hasher   *PasswordHasher
	policy   PasswordPolicy
	logger   Logger
	provider LoggerProvider
}

// NewPasswordManager builds a manager enforcing DefaultPasswordPolicy
func NewPasswordManager(store CredentialStore, hasher *PasswordHasher) (*PasswordManager, error) {
	if store == nil {
		return nil, configurationError("credential store is required")
	}
	if hasher == nil {
		return nil, configurationError("password hasher is required")
	}

	provider, logger := ResolveLogger("auth.password_manager", nil, nil)
	return &PasswordManager{
		store:    store,
		hasher:   hasher,
		policy:   DefaultPasswordPolicy(),
		logger:   logger,
		provider: provider,
	}, nil
}

// WithPolicy replaces the password policy. A nil policy accepts anything
// non empty.
func (m *PasswordManager) WithPolicy(p PasswordPolicy) *PasswordManager {
	if p == nil {
		p = PasswordPolicyFunc(nil)
	}
	m.policy = p
	return m
}

func (m *PasswordManager) WithLogger(l Logger) *PasswordManager {
	m.provider, m.logger = ResolveLogger("auth.password_manager", m.provider, l)
	return m
}

// WithLoggerProvider overrides the logger provider used by the password manager.
func (m *PasswordManager) WithLoggerProvider(provider LoggerProvider) *PasswordManager {
	m.provider, m.logger = ResolveLogger("auth.password_manager", provider, m.logger)
	return m
}

// HashNewPassword checks password against the policy and hashes it. Use it
// when creating accounts.
func (m *PasswordManager) HashNewPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}
	if err := m.policy.Check(password); err != nil {
		return "", err
	}
	return m.hasher.HashPassword(password)
}

// ChangePassword verifies current, stores the hash of next and returns the
// rotated security stamp.
func (m *PasswordManager) ChangePassword(ctx context.Context, account Account, current, next string) (SecurityStamp, error) {
	if account == nil {
		return ZeroStamp, invalidArgument("account")
	}

	if err := m.hasher.ComparePasswordAndHash(current, account.PasswordHash()); err != nil {
		m.logger.Info("password change rejected", "account_id", account.AccountID())
		return ZeroStamp, err
	}

	return m.SetPassword(ctx, account, next)
}

// SetPassword stores next without checking the current password, for
// flows that already proved ownership such as a reset token.
func (m *PasswordManager) SetPassword(ctx context.Context, account Account, next string) (SecurityStamp, error) {
	if account == nil {
		return ZeroStamp, invalidArgument("account")
	}

	hash, err := m.HashNewPassword(next)
	if err != nil {
		return ZeroStamp, err
	}

	stamp, err := m.store.UpdatePasswordHash(ctx, account.AccountID(), hash)
	if err != nil {
		return ZeroStamp, errors.Wrap(err, errors.CategoryInternal, "failed to store password hash")
	}

	m.logger.Info("password changed", "account_id", account.AccountID())
	return stamp, nil
}

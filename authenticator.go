package auth

import (
	"context"
	"strconv"

	"github.com/goliatone/go-errors"
)

// TwoFactorPurpose is the TOTP purpose used for the second sign in step
const TwoFactorPurpose = "TwoFactor"

// AccountStore is what the sign in manager needs to resolve accounts
type AccountStore interface {
	AccountLookup
	AccountFinder
}

// PasswordHashStore persists an upgraded hash of an unchanged password.
// Implementations must not rotate the security stamp.
type PasswordHashStore interface {
	ReplacePasswordHash(ctx context.Context, accountID int64, hash string) error
}

// SignInResult is the verdict of a sign in attempt
type SignInResult int

const (
	SignInFailed SignInResult = iota
	SignInSucceeded
	SignInRequiresTwoFactor
)

func (r SignInResult) String() string {
	switch r {
	case SignInSucceeded:
		return "succeeded"
	case SignInRequiresTwoFactor:
		return "requires_two_factor"
	default:
		return "failed"
	}
}

// SignInOutcome carries the principal to sign in with. On SignInFailed the
// principal is nil, on SignInRequiresTwoFactor it is a minimal principal
// for the secondary scheme.
type SignInOutcome struct {
	Result    SignInResult
	Principal *ClaimsPrincipal
	Account   Account
}

// SignInManager verifies credentials and second factors and produces the
// principals the cookie layer signs in with.
type SignInManager struct {
	accounts  AccountStore
	hasher    *PasswordHasher
	guard     *SecurityStampGuard
	totp      *TotpGenerator
	rehash    PasswordHashStore
	activity  ActivitySink
	clock     Clock
	logger    Logger
	dummyHash string
}

// SignInOption configures a SignInManager
type SignInOption func(*SignInManager)

// WithPasswordHashStore enables transparent rehashing of outdated hashes
func WithPasswordHashStore(s PasswordHashStore) SignInOption {
	return func(m *SignInManager) {
		m.rehash = s
	}
}

// WithSignInActivitySink sets the activity sink
func WithSignInActivitySink(s ActivitySink) SignInOption {
	return func(m *SignInManager) {
		m.activity = s
	}
}

// WithSignInClock injects the clock
func WithSignInClock(c Clock) SignInOption {
	return func(m *SignInManager) {
		m.clock = c
	}
}

// WithSignInLogger sets the logger
func WithSignInLogger(l Logger) SignInOption {
	return func(m *SignInManager) {
		m.logger = l
	}
}

// NewSignInManager wires the sign in flow
func NewSignInManager(accounts AccountStore, hasher *PasswordHasher, guard *SecurityStampGuard, totp *TotpGenerator, opts ...SignInOption) (*SignInManager, error) {
	if accounts == nil {
		return nil, configurationError("account store is required")
	}
	if hasher == nil {
		return nil, configurationError("password hasher is required")
	}
	if guard == nil {
		return nil, configurationError("security stamp guard is required")
	}
	if totp == nil {
		return nil, configurationError("totp generator is required")
	}

	m := &SignInManager{
		accounts: accounts,
		hasher:   hasher,
		guard:    guard,
		totp:     totp,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.activity = normalizeActivitySink(m.activity)
	m.clock = normalizeClock(m.clock)
	_, m.logger = ResolveLogger("auth.signin", nil, m.logger)

	// unknown accounts are verified against this so they cost the same
	dummy, err := hasher.HashPassword("unknown-account")
	if err != nil {
		return nil, err
	}
	m.dummyHash = dummy

	return m, nil
}

// PasswordSignIn checks email and password. Unknown accounts and wrong
// passwords both yield SignInFailed with a nil error.
func (m *SignInManager) PasswordSignIn(ctx context.Context, email, password string, persistent bool) (*SignInOutcome, error) {
	if email == "" {
		return nil, invalidArgument("email")
	}

	if password == "" {
		return nil, ErrNoEmptyString
	}

	account, err := m.accounts.FindAccountByEmail(ctx, email)
	if err != nil && !IsAccountNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during sign in")
	}

	if account == nil || account.PasswordHash() == "" {
		_, _ = m.hasher.VerifyHashedPassword(m.dummyHash, password)
		m.emit(ctx, ActivityEventSignInFailure, 0, "", "unknown account")
		return &SignInOutcome{Result: SignInFailed}, nil
	}

	result, err := m.hasher.VerifyHashedPassword(account.PasswordHash(), password)
	if err != nil {
		return nil, err
	}

	if !result.Succeeded() {
		m.logger.Info("password sign in failed", "account_id", account.AccountID())
		m.emit(ctx, ActivityEventSignInFailure, account.AccountID(), "", "invalid password")
		return &SignInOutcome{Result: SignInFailed}, nil
	}

	if result == PasswordVerificationSuccessRehashNeeded {
		m.upgradeHash(ctx, account, password)
	}

	if account.TwoFactorEnabled() {
		pending, err := m.guard.BuildMinimalPrincipal(account.AccountID(), m.guard.SecondaryScheme())
		if err != nil {
			return nil, err
		}
		m.emit(ctx, ActivityEventTwoFactorRequired, account.AccountID(), m.guard.SecondaryScheme(), "")
		return &SignInOutcome{Result: SignInRequiresTwoFactor, Principal: pending, Account: account}, nil
	}

	return m.complete(ctx, account, persistent)
}

// TwoFactorCode issues the current second factor code for a pending
// principal. Delivering it to the account holder is up to the caller.
func (m *SignInManager) TwoFactorCode(ctx context.Context, pending *ClaimsPrincipal) (string, Account, error) {
	account, err := m.pendingAccount(ctx, pending)
	if err != nil {
		return "", nil, err
	}

	if account == nil {
		return "", nil, ErrAccountNotFound
	}

	code, err := m.totp.GenerateForAccount(TwoFactorPurpose, account)
	if err != nil {
		return "", nil, err
	}
	return code, account, nil
}

// TwoFactorSignIn completes a sign in that returned SignInRequiresTwoFactor
func (m *SignInManager) TwoFactorSignIn(ctx context.Context, pending *ClaimsPrincipal, code string, persistent bool) (*SignInOutcome, error) {
	account, err := m.pendingAccount(ctx, pending)
	if err != nil {
		return nil, err
	}

	if account == nil {
		m.emit(ctx, ActivityEventSignInFailure, 0, m.guard.SecondaryScheme(), "unknown account")
		return &SignInOutcome{Result: SignInFailed}, nil
	}

	ok, err := m.totp.ValidateForAccount(TwoFactorPurpose, code, account)
	if err != nil {
		return nil, err
	}

	if !ok {
		m.emit(ctx, ActivityEventSignInFailure, account.AccountID(), m.guard.SecondaryScheme(), "invalid code")
		return &SignInOutcome{Result: SignInFailed}, nil
	}

	return m.complete(ctx, account, persistent)
}

func (m *SignInManager) pendingAccount(ctx context.Context, pending *ClaimsPrincipal) (Account, error) {
	if pending.AuthenticationScheme() != m.guard.SecondaryScheme() {
		return nil, invalidArgument("pending principal")
	}

	accountID, ok := pending.AccountID()
	if !ok {
		return nil, malformedPrincipal("missing account id claim")
	}

	account, err := m.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if IsAccountNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve pending account").
			WithMetadata(map[string]any{"account_id": strconv.FormatInt(accountID, 10)})
	}
	return account, nil
}

func (m *SignInManager) complete(ctx context.Context, account Account, persistent bool) (*SignInOutcome, error) {
	principal, err := m.guard.BuildPrincipal(ctx, account, m.guard.PrimaryScheme(), persistent)
	if err != nil {
		m.logger.Error("failed to build principal", "account_id", account.AccountID(), "error", err)
		return nil, err
	}

	m.emit(ctx, ActivityEventSignInSuccess, account.AccountID(), m.guard.PrimaryScheme(), "")
	return &SignInOutcome{Result: SignInSucceeded, Principal: principal, Account: account}, nil
}

func (m *SignInManager) upgradeHash(ctx context.Context, account Account, password string) {
	m.emit(ctx, ActivityEventPasswordRehashNeeded, account.AccountID(), "", "")
	if m.rehash == nil {
		return
	}

	hash, err := m.hasher.HashPassword(password)
	if err != nil {
		m.logger.Warn("password rehash failed", "account_id", account.AccountID(), "error", err)
		return
	}

	if err := m.rehash.ReplacePasswordHash(ctx, account.AccountID(), hash); err != nil {
		m.logger.Warn("password rehash not stored", "account_id", account.AccountID(), "error", err)
	}
}

func (m *SignInManager) emit(ctx context.Context, eventType ActivityEventType, accountID int64, scheme, reason string) {
	recordActivity(ctx, m.activity, m.clock, m.logger, ActivityEvent{
		EventType: eventType,
		AccountID: accountID,
		Scheme:    scheme,
		Reason:    reason,
	})
}

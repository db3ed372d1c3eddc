package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/goliatone/go-errors"
)

// Decision is the result of revalidating a session principal
type Decision int

const (
	// DecisionAnonymous means there was no identity to revalidate
	DecisionAnonymous Decision = iota
	// DecisionContinue keeps the session as is
	DecisionContinue
	// DecisionReject ends the session on every scheme
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionContinue:
		return "continue"
	case DecisionReject:
		return "reject"
	default:
		return "anonymous"
	}
}

// SignOutFunc clears the session cookie of one scheme
type SignOutFunc func(scheme string) error

// SecurityStampGuard builds claims principals from accounts and revalidates
// sessions by comparing the stamp claim with the account's current stamp.
type SecurityStampGuard struct {
	accounts        AccountLookup
	roles           RoleClaimLookup
	primaryScheme   string
	secondaryScheme string
	lookupTimeout   time.Duration
	decorator       PrincipalDecorator
	activity        ActivitySink
	clock           Clock
	logger          Logger
}

// GuardOption configures a SecurityStampGuard
type GuardOption func(*SecurityStampGuard)

// WithPrimaryScheme sets the application cookie scheme that is revalidated
func WithPrimaryScheme(scheme string) GuardOption {
	return func(g *SecurityStampGuard) {
		g.primaryScheme = scheme
	}
}

// WithSecondaryScheme sets the pending two factor scheme
func WithSecondaryScheme(scheme string) GuardOption {
	return func(g *SecurityStampGuard) {
		g.secondaryScheme = scheme
	}
}

// WithLookupTimeout bounds the account lookup done by Revalidate
func WithLookupTimeout(d time.Duration) GuardOption {
	return func(g *SecurityStampGuard) {
		g.lookupTimeout = d
	}
}

// WithPrincipalDecorator registers a decorator run by BuildPrincipal
func WithPrincipalDecorator(d PrincipalDecorator) GuardOption {
	return func(g *SecurityStampGuard) {
		g.decorator = d
	}
}

// WithGuardActivitySink sets the sink rejections are reported to
func WithGuardActivitySink(s ActivitySink) GuardOption {
	return func(g *SecurityStampGuard) {
		g.activity = s
	}
}

// WithGuardClock injects the clock
func WithGuardClock(c Clock) GuardOption {
	return func(g *SecurityStampGuard) {
		g.clock = c
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(l Logger) GuardOption {
	return func(g *SecurityStampGuard) {
		g.logger = l
	}
}

// WithGuardOptions applies scheme names and lookup timeout from opts
func WithGuardOptions(opts Options) GuardOption {
	return func(g *SecurityStampGuard) {
		g.primaryScheme = opts.PrimaryScheme
		g.secondaryScheme = opts.SecondaryScheme
		g.lookupTimeout = opts.LookupTimeout
	}
}

// NewSecurityStampGuard requires both collaborators
func NewSecurityStampGuard(accounts AccountLookup, roles RoleClaimLookup, opts ...GuardOption) (*SecurityStampGuard, error) {
	if accounts == nil {
		return nil, configurationError("account lookup is required")
	}

	if roles == nil {
		return nil, configurationError("role claim lookup is required")
	}

	g := &SecurityStampGuard{
		accounts:        accounts,
		roles:           roles,
		primaryScheme:   DefaultPrimaryScheme,
		secondaryScheme: DefaultSecondaryScheme,
		lookupTimeout:   DefaultLookupTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.primaryScheme == "" || g.secondaryScheme == "" {
		return nil, configurationError("primary and secondary schemes are required")
	}

	if g.primaryScheme == g.secondaryScheme {
		return nil, configurationError("primary and secondary schemes must differ")
	}

	if g.lookupTimeout <= 0 {
		return nil, configurationError("lookup timeout must be positive")
	}

	g.decorator = normalizePrincipalDecorator(g.decorator)
	g.activity = normalizeActivitySink(g.activity)
	g.clock = normalizeClock(g.clock)
	_, g.logger = ResolveLogger("auth.stamp_guard", nil, g.logger)

	return g, nil
}

// PrimaryScheme returns the revalidated scheme
func (g *SecurityStampGuard) PrimaryScheme() string {
	return g.primaryScheme
}

// SecondaryScheme returns the pending two factor scheme
func (g *SecurityStampGuard) SecondaryScheme() string {
	return g.secondaryScheme
}

// BuildPrincipal assembles the full claim set for account: account id,
// username, stamp, persistence flag, role names, role claims and account
// claims, in that order.
func (g *SecurityStampGuard) BuildPrincipal(ctx context.Context, account Account, scheme string, persistent bool) (*ClaimsPrincipal, error) {
	if account == nil {
		return nil, invalidArgument("account")
	}

	if account.Email() == "" {
		return nil, invalidArgument("account email")
	}

	if scheme == "" {
		return nil, invalidArgument("scheme")
	}

	if account.SecurityStamp().IsZero() {
		return nil, invalidArgument("account security stamp")
	}

	accountID := account.AccountID()
	identity := NewClaimsIdentity(scheme,
		Claim{Type: ClaimTypeAccountID, Value: strconv.FormatInt(accountID, 10)},
		Claim{Type: ClaimTypeUsername, Value: account.Email()},
		Claim{Type: ClaimTypeSecurityStamp, Value: account.SecurityStamp().String()},
		Claim{Type: ClaimTypePersistent, Value: strconv.FormatBool(persistent)},
	)
	snapshot := captureProtectedClaims(identity)

	roles, err := g.roles.GetRoles(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account roles")
	}

	for _, role := range roles {
		identity.AddClaim(Claim{Type: ClaimTypeRole, Value: role.Name})
	}

	for _, role := range roles {
		claims, err := g.roles.GetRoleClaims(ctx, role.ID)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load role claims")
		}
		g.addStoredClaims(identity, accountID, "role", claims)
	}

	claims, err := g.roles.GetAccountClaims(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account claims")
	}
	g.addStoredClaims(identity, accountID, "account", claims)

	if err := g.decorator.Decorate(ctx, account, identity); err != nil {
		return nil, err
	}
	if err := snapshot.validate(identity); err != nil {
		return nil, err
	}

	return NewClaimsPrincipal(identity), nil
}

// addStoredClaims appends claims loaded from the role store. Claims of a
// protected type are dropped so the builder's own values stay unique.
func (g *SecurityStampGuard) addStoredClaims(identity *ClaimsIdentity, accountID int64, source string, claims []Claim) {
	for _, c := range claims {
		if IsProtectedClaimType(c.Type) {
			g.logger.Warn("stored claim ignored", "account_id", accountID, "source", source, "claim", c.Type)
			continue
		}
		identity.AddClaim(c)
	}
}

// BuildMinimalPrincipal carries only the account id, for intermediate stages
// such as a pending second factor.
func (g *SecurityStampGuard) BuildMinimalPrincipal(accountID int64, scheme string) (*ClaimsPrincipal, error) {
	if scheme == "" {
		return nil, invalidArgument("scheme")
	}

	identity := NewClaimsIdentity(scheme,
		Claim{Type: ClaimTypeAccountID, Value: strconv.FormatInt(accountID, 10)},
	)
	return NewClaimsPrincipal(identity), nil
}

// Revalidate decides whether a session principal is still trusted. Only
// principals of the primary scheme are checked. Lookup failures, timeouts
// and cancellation all reject.
func (g *SecurityStampGuard) Revalidate(ctx context.Context, p *ClaimsPrincipal) Decision {
	decision, _ := g.revalidate(ctx, p)
	return decision
}

func (g *SecurityStampGuard) revalidate(ctx context.Context, p *ClaimsPrincipal) (Decision, string) {
	if p.Identity() == nil {
		return DecisionAnonymous, ""
	}

	if p.AuthenticationScheme() != g.primaryScheme {
		return DecisionContinue, ""
	}

	accountID, ok := p.AccountID()
	if !ok {
		return DecisionReject, "missing account id"
	}

	stamp, ok := p.SecurityStamp()
	if !ok || stamp.IsZero() {
		return DecisionReject, "missing security stamp"
	}

	if ctx == nil {
		ctx = context.Background()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	account, err := g.accounts.GetAccount(lookupCtx, accountID)
	if err == nil {
		// a lookup that ignored the deadline still fails closed
		err = lookupCtx.Err()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return DecisionReject, "lookup timeout"
	case errors.Is(err, context.Canceled):
		return DecisionReject, "lookup cancelled"
	case IsAccountNotFound(err):
		return DecisionReject, "account not found"
	case err != nil:
		g.logger.Error("account lookup failed", "account_id", accountID, "error", err)
		return DecisionReject, "lookup failed"
	case account == nil:
		return DecisionReject, "account not found"
	case account.SecurityStamp().IsZero(), account.SecurityStamp() != stamp:
		return DecisionReject, "security stamp mismatch"
	}

	return DecisionContinue, ""
}

// Enforce revalidates p and, on rejection, signs out of both the primary
// and the secondary scheme. Sign out failures are logged and do not stop
// the other scheme from being cleared.
func (g *SecurityStampGuard) Enforce(ctx context.Context, p *ClaimsPrincipal, signOut SignOutFunc) Decision {
	decision, reason := g.revalidate(ctx, p)
	if decision != DecisionReject {
		return decision
	}

	accountID, _ := p.AccountID()
	g.logger.Info("session rejected", "account_id", accountID, "reason", reason)

	if signOut != nil {
		for _, scheme := range []string{g.primaryScheme, g.secondaryScheme} {
			if err := signOut(scheme); err != nil {
				g.logger.Error("sign out failed", "scheme", scheme, "error", err)
			}
		}
	}

	recordActivity(context.WithoutCancel(ctxOrBackground(ctx)), g.activity, g.clock, g.logger, ActivityEvent{
		EventType: ActivityEventSessionRejected,
		AccountID: accountID,
		Scheme:    p.AuthenticationScheme(),
		Reason:    reason,
	})

	return DecisionReject
}

// MergeInto refreshes the username and stamp claims of a live principal
// after the account changed. Both claims are swapped under one lock.
func (g *SecurityStampGuard) MergeInto(ctx context.Context, account Account, p *ClaimsPrincipal) error {
	if account == nil {
		return invalidArgument("account")
	}

	identity := p.Identity()
	if identity == nil || identity.IsReadOnly() {
		return malformedPrincipal("identity is not mutable")
	}

	idClaim, ok := identity.FindFirst(ClaimTypeAccountID)
	if !ok {
		return malformedPrincipal("missing account id claim")
	}

	usernameClaim, ok := identity.FindFirst(ClaimTypeUsername)
	if !ok {
		return malformedPrincipal("missing username claim")
	}

	stampClaim, ok := identity.FindFirst(ClaimTypeSecurityStamp)
	if !ok {
		return malformedPrincipal("missing security stamp claim")
	}

	if idClaim.Value != strconv.FormatInt(account.AccountID(), 10) {
		return malformedPrincipal("account id does not match")
	}

	var replacements []ClaimReplacement
	if usernameClaim.Value != account.Email() {
		replacements = append(replacements, ClaimReplacement{
			Stale: usernameClaim,
			Fresh: Claim{Type: ClaimTypeUsername, Value: account.Email()},
		})
	}

	current := account.SecurityStamp()
	if current.IsZero() {
		return invalidArgument("account security stamp")
	}
	if stamp, err := ParseSecurityStamp(stampClaim.Value); err != nil || stamp != current {
		replacements = append(replacements, ClaimReplacement{
			Stale: stampClaim,
			Fresh: Claim{Type: ClaimTypeSecurityStamp, Value: current.String()},
		})
	}

	if len(replacements) == 0 {
		return nil
	}

	if !identity.ReplaceClaims(replacements...) {
		return malformedPrincipal("claims changed during refresh")
	}

	recordActivity(ctxOrBackground(ctx), g.activity, g.clock, g.logger, ActivityEvent{
		EventType: ActivityEventPrincipalRefreshed,
		AccountID: account.AccountID(),
		Scheme:    identity.AuthenticationScheme(),
	})

	return nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

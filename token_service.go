package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TicketClaims is the JWT body carried by the session cookie. It holds the
// full claim set of the principal so requests do not rebuild it.
type TicketClaims struct {
	jwt.RegisteredClaims
	Scheme string  `json:"scm"`
	Claims []Claim `json:"clm"`
}

// TicketService serializes principals into HS256 signed cookie tickets
type TicketService struct {
	key      []byte
	issuer   string
	lifetime time.Duration
	clock    Clock
	logger   Logger
}

// TicketOption configures a TicketService
type TicketOption func(*TicketService)

// WithTicketIssuer sets the iss claim
func WithTicketIssuer(issuer string) TicketOption {
	return func(s *TicketService) {
		s.issuer = issuer
	}
}

// WithTicketLifetime sets how long a ticket is accepted
func WithTicketLifetime(d time.Duration) TicketOption {
	return func(s *TicketService) {
		s.lifetime = d
	}
}

// WithTicketClock injects the clock
func WithTicketClock(c Clock) TicketOption {
	return func(s *TicketService) {
		s.clock = c
	}
}

// WithTicketLogger sets the logger
func WithTicketLogger(l Logger) TicketOption {
	return func(s *TicketService) {
		s.logger = l
	}
}

// NewTicketService derives its signing key for the "auth:CookieTicket" purpose
func NewTicketService(keys KeyProvider, opts ...TicketOption) (*TicketService, error) {
	if keys == nil {
		return nil, configurationError("key provider is required")
	}

	key, err := keys.KeyFor(cookieTicketPurpose)
	if err != nil {
		return nil, err
	}

	s := &TicketService{
		key:      key,
		lifetime: DefaultCookieLifetime,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.lifetime <= 0 {
		return nil, configurationError("ticket lifetime must be positive")
	}

	s.clock = normalizeClock(s.clock)
	_, s.logger = ResolveLogger("auth.ticket_service", nil, s.logger)

	return s, nil
}

// Lifetime returns the configured ticket lifetime
func (s *TicketService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a ticket for p and returns it with its expiry
func (s *TicketService) Issue(p *ClaimsPrincipal) (string, time.Time, error) {
	identity := p.Identity()
	if !identity.IsAuthenticated() {
		return "", time.Time{}, invalidArgument("principal")
	}

	idClaim, ok := identity.FindFirst(ClaimTypeAccountID)
	if !ok {
		return "", time.Time{}, malformedPrincipal("missing account id claim")
	}

	now := s.clock.Now()
	expires := now.Add(s.lifetime)
	claims := &TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   idClaim.Value,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Scheme: identity.AuthenticationScheme(),
		Claims: identity.Claims(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign session ticket")
	}

	return signed, expires, nil
}

// Validate parses ticket back into a mutable principal. Expired tickets
// return ErrTicketExpired, anything else that fails returns
// ErrUnableToDecodeSession.
func (s *TicketService) Validate(ticket string) (*ClaimsPrincipal, error) {
	if ticket == "" {
		return nil, ErrUnableToFindSession
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(ticket, &TicketClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTicketExpired
		}
		s.logger.Debug("session ticket rejected", "error", err)
		return nil, ErrUnableToDecodeSession
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid || claims.Scheme == "" {
		return nil, ErrUnableToDecodeSession
	}

	return NewClaimsPrincipal(NewClaimsIdentity(claims.Scheme, claims.Claims...)), nil
}

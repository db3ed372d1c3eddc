package auth

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logger used across the package
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Clock returns the current time. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now satisfies the Clock interface.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns the wall clock in UTC
func SystemClock() Clock {
	return systemClock{}
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return systemClock{}
	}
	return c
}

// SecurityStamp is the 128-bit value rotated whenever the credentials,
// roles or claims of an account change.
type SecurityStamp uuid.UUID

// ZeroStamp is the absent stamp
var ZeroStamp SecurityStamp

// NewSecurityStamp draws a fresh stamp from r, or from crypto/rand if r is nil.
func NewSecurityStamp(r io.Reader) (SecurityStamp, error) {
	if r == nil {
		return SecurityStamp(uuid.New()), nil
	}
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return ZeroStamp, err
	}
	return SecurityStamp(id), nil
}

// ParseSecurityStamp parses the canonical text form of a stamp
func ParseSecurityStamp(s string) (SecurityStamp, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ZeroStamp, err
	}
	return SecurityStamp(id), nil
}

// IsZero reports whether the stamp was never assigned
func (s SecurityStamp) IsZero() bool {
	return s == ZeroStamp
}

func (s SecurityStamp) String() string {
	return uuid.UUID(s).String()
}

// Bytes returns the raw 16 bytes of the stamp
func (s SecurityStamp) Bytes() []byte {
	b := make([]byte, len(s))
	copy(b, s[:])
	return b
}

// Account is the capability set the package reads from a host account type.
// The package never writes accounts back.
type Account interface {
	AccountID() int64
	Email() string
	PasswordHash() string
	SecurityStamp() SecurityStamp
	TwoFactorEnabled() bool
}

// Role is a named role assigned to an account
type Role struct {
	ID   int64
	Name string
}

// Claim is a single asserted attribute
type Claim struct {
	Type  string `json:"t"`
	Value string `json:"v"`
}

// AccountLookup resolves accounts during session revalidation. A missing
// account is reported as (nil, nil) or ErrAccountNotFound.
type AccountLookup interface {
	GetAccount(ctx context.Context, accountID int64) (Account, error)
}

// AccountLookupFunc adapts a function into an AccountLookup.
type AccountLookupFunc func(ctx context.Context, accountID int64) (Account, error)

// GetAccount satisfies the AccountLookup interface.
func (f AccountLookupFunc) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	return f(ctx, accountID)
}

// AccountFinder resolves accounts by their login identifier
type AccountFinder interface {
	FindAccountByEmail(ctx context.Context, email string) (Account, error)
}

// RoleClaimLookup reads the roles and claims used to build principals
type RoleClaimLookup interface {
	GetRoles(ctx context.Context, accountID int64) ([]Role, error)
	GetRoleClaims(ctx context.Context, roleID int64) ([]Claim, error)
	GetAccountClaims(ctx context.Context, accountID int64) ([]Claim, error)
}

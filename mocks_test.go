package auth_test

import (
	"bytes"
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/stretchr/testify/mock"
)

var testMasterKey = bytes.Repeat([]byte{0x42}, 32)

// testAccount implements auth.Account
type testAccount struct {
	id        int64
	email     string
	hash      string
	stamp     auth.SecurityStamp
	twoFactor bool
}

func (a *testAccount) AccountID() int64                  { return a.id }
func (a *testAccount) Email() string                     { return a.email }
func (a *testAccount) PasswordHash() string              { return a.hash }
func (a *testAccount) SecurityStamp() auth.SecurityStamp { return a.stamp }
func (a *testAccount) TwoFactorEnabled() bool            { return a.twoFactor }

func newTestAccount(id int64, email string) *testAccount {
	stamp, _ := auth.NewSecurityStamp(nil)
	return &testAccount{id: id, email: email, stamp: stamp}
}

func mustStamp(s string) auth.SecurityStamp {
	stamp, err := auth.ParseSecurityStamp(s)
	if err != nil {
		panic(err)
	}
	return stamp
}

// MockAccountStore implements auth.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetAccount(ctx context.Context, accountID int64) (auth.Account, error) {
	args := m.Called(ctx, accountID)
	if acc, ok := args.Get(0).(auth.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) FindAccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	args := m.Called(ctx, email)
	if acc, ok := args.Get(0).(auth.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRoleClaimLookup implements auth.RoleClaimLookup
type MockRoleClaimLookup struct {
	mock.Mock
}

func (m *MockRoleClaimLookup) GetRoles(ctx context.Context, accountID int64) ([]auth.Role, error) {
	args := m.Called(ctx, accountID)
	roles, _ := args.Get(0).([]auth.Role)
	return roles, args.Error(1)
}

func (m *MockRoleClaimLookup) GetRoleClaims(ctx context.Context, roleID int64) ([]auth.Claim, error) {
	args := m.Called(ctx, roleID)
	claims, _ := args.Get(0).([]auth.Claim)
	return claims, args.Error(1)
}

func (m *MockRoleClaimLookup) GetAccountClaims(ctx context.Context, accountID int64) ([]auth.Claim, error) {
	args := m.Called(ctx, accountID)
	claims, _ := args.Get(0).([]auth.Claim)
	return claims, args.Error(1)
}

// emptyRoles returns a lookup with no roles and no claims for any account
func emptyRoles() *MockRoleClaimLookup {
	roles := &MockRoleClaimLookup{}
	roles.On("GetRoles", mock.Anything, mock.Anything).Return([]auth.Role{}, nil)
	roles.On("GetAccountClaims", mock.Anything, mock.Anything).Return([]auth.Claim{}, nil)
	return roles
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.Called(msg, args)
}

// manualClock is a settable clock
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(t time.Time) *manualClock {
	return &manualClock{now: t}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

func newKeyRing() *auth.KeyRing {
	ring, err := auth.NewKeyRing(testMasterKey)
	if err != nil {
		panic(err)
	}
	return ring
}

// fastHasher uses a low iteration count to keep tests quick
func fastHasher() *auth.PasswordHasher {
	h, err := auth.NewPasswordHasher(auth.WithIterationCount(1000))
	if err != nil {
		panic(err)
	}
	return h
}

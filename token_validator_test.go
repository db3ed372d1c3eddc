package auth_test

import (
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketValidatorFunc(t *testing.T) {
	var nilFunc auth.TicketValidatorFunc
	_, err := nilFunc.Validate("x")
	assert.ErrorIs(t, err, auth.ErrUnableToDecodeSession)

	want := auth.NewClaimsPrincipal(auth.NewClaimsIdentity("scheme"))
	fn := auth.TicketValidatorFunc(func(string) (*auth.ClaimsPrincipal, error) { return want, nil })
	got, err := fn.Validate("x")
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestMultiTicketValidator(t *testing.T) {
	want := auth.NewClaimsPrincipal(auth.NewClaimsIdentity("scheme"))
	decodeFail := auth.TicketValidatorFunc(func(string) (*auth.ClaimsPrincipal, error) {
		return nil, auth.ErrUnableToDecodeSession
	})
	succeed := auth.TicketValidatorFunc(func(string) (*auth.ClaimsPrincipal, error) {
		return want, nil
	})
	expired := auth.TicketValidatorFunc(func(string) (*auth.ClaimsPrincipal, error) {
		return nil, auth.ErrTicketExpired
	})

	t.Run("falls through decode failures", func(t *testing.T) {
		got, err := auth.NewMultiTicketValidator(nil, decodeFail, succeed).Validate("x")
		require.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("stops on other errors", func(t *testing.T) {
		_, err := auth.NewMultiTicketValidator(expired, succeed).Validate("x")
		assert.ErrorIs(t, err, auth.ErrTicketExpired)
	})

	t.Run("returns last decode error", func(t *testing.T) {
		_, err := auth.NewMultiTicketValidator(decodeFail, decodeFail).Validate("x")
		assert.ErrorIs(t, err, auth.ErrUnableToDecodeSession)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := auth.NewMultiTicketValidator().Validate("x")
		assert.True(t, errors.Is(err, auth.ErrUnableToDecodeSession))
	})
}

func TestMultiTicketValidator_KeyRotation(t *testing.T) {
	clock := newManualClock(time.Now())

	oldRing, err := auth.NewKeyRing([]byte("retired master key, at least 32 bytes"))
	require.NoError(t, err)
	oldTickets, err := auth.NewTicketService(oldRing, auth.WithTicketClock(clock))
	require.NoError(t, err)
	currentTickets, err := auth.NewTicketService(newKeyRing(), auth.WithTicketClock(clock))
	require.NoError(t, err)

	ticket, _, err := oldTickets.Issue(principalFor(newTestAccount(42, "user@example.com"), auth.DefaultPrimaryScheme))
	require.NoError(t, err)

	p, err := auth.NewMultiTicketValidator(currentTickets, oldTickets).Validate(ticket)
	require.NoError(t, err)
	id, _ := p.AccountID()
	assert.Equal(t, int64(42), id)
}

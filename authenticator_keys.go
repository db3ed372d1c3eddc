package auth

import (
	"crypto/rand"
	"io"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// AuthenticatorKey is the enrolment material shown to the account holder
// when they pair an authenticator app.
type AuthenticatorKey struct {
	Secret string
	URL    string
}

// AuthenticatorKeys enrols and validates RFC 6238 authenticator-app codes
// (30 second period, six digits, one step of skew).
type AuthenticatorKeys struct {
	issuer string
	clock  Clock
	rand   io.Reader
}

// NewAuthenticatorKeys builds the enrolment helper. The issuer is the label
// authenticator apps display next to the code.
func NewAuthenticatorKeys(issuer string, clock Clock, random io.Reader) (*AuthenticatorKeys, error) {
	if strings.TrimSpace(issuer) == "" {
		return nil, configurationError("authenticator issuer is required")
	}

	if random == nil {
		random = rand.Reader
	}

	return &AuthenticatorKeys{
		issuer: issuer,
		clock:  normalizeClock(clock),
		rand:   random,
	}, nil
}

// Generate creates a new secret for the account
func (k *AuthenticatorKeys) Generate(account Account) (*AuthenticatorKey, error) {
	if account == nil || account.Email() == "" {
		return nil, invalidArgument("account")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      k.issuer,
		AccountName: account.Email(),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Rand:        k.rand,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate authenticator key")
	}

	return &AuthenticatorKey{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// Code returns the current code for secret. Mostly useful to hosts that
// want to confirm enrolment server side.
func (k *AuthenticatorKeys) Code(secret string) (string, error) {
	if secret == "" {
		return "", invalidArgument("secret")
	}

	code, err := totp.GenerateCodeCustom(secret, k.clock.Now(), k.validateOpts())
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryBadInput, "failed to generate authenticator code")
	}
	return code, nil
}

// Validate reports whether code is valid for secret right now. Malformed
// secrets or codes are reported as invalid.
func (k *AuthenticatorKeys) Validate(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}

	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, k.clock.Now(), k.validateOpts())
	if err != nil {
		return false
	}
	return ok
}

func (k *AuthenticatorKeys) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

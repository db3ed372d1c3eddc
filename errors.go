package auth

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidArgument      = "INVALID_ARGUMENT"
	TextCodeConfiguration        = "INVALID_CONFIGURATION"
	TextCodeEmptyPassword        = "EMPTY_PASSWORD"
	TextCodeWeakPassword         = "WEAK_PASSWORD"
	TextCodeInvalidCreds         = "INVALID_CREDENTIALS"
	TextCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	TextCodeSessionRejected      = "SESSION_REJECTED"
	TextCodeSessionNotFound      = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError   = "SESSION_DECODE_ERROR"
	TextCodeTicketExpired        = "TICKET_EXPIRED"
	TextCodeMalformedPrincipal   = "MALFORMED_PRINCIPAL"
	TextCodeImmutableClaimChange = "IMMUTABLE_CLAIM_MUTATION"
)

// ErrInvalidArgument signals a caller contract violation, such as a missing
// required input. It is a programming error, never a verdict on user input.
var ErrInvalidArgument = errors.New("invalid argument", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidArgument).
	WithCode(errors.CodeBadRequest)

// ErrConfiguration is returned by constructors that refuse to build a
// component from invalid options or missing collaborators.
var ErrConfiguration = errors.New("invalid configuration", errors.CategoryInternal).
	WithTextCode(TextCodeConfiguration).
	WithCode(errors.CodeInternal)

// ErrNoEmptyString is returned when a password is empty
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrWeakPassword is returned by password policies
var ErrWeakPassword = errors.New("password does not meet complexity requirements", errors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when credentials do not verify
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotFound is the error lookups return for missing accounts
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrSessionRejected is returned when a session fails revalidation
var ErrSessionRejected = errors.New("session is no longer valid", errors.CategoryAuth).
	WithTextCode(TextCodeSessionRejected).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no session cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode ticket from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrTicketExpired is returned when a session ticket is past its expiry
var ErrTicketExpired = errors.New("session ticket is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTicketExpired).
	WithCode(errors.CodeUnauthorized)

// ErrMalformedPrincipal is returned when a principal cannot be refreshed in place
var ErrMalformedPrincipal = errors.New("principal is missing required claims", errors.CategoryBadInput).
	WithTextCode(TextCodeMalformedPrincipal).
	WithCode(errors.CodeBadRequest)

// ErrImmutableClaimMutation is returned when a decorator touches protected claims
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaimChange).
	WithCode(errors.CodeInternal)

func invalidArgument(field string) error {
	return withDetail(ErrInvalidArgument, fmt.Sprintf("invalid argument: %s", field), "field", field)
}

func configurationError(reason string) error {
	return withDetail(ErrConfiguration, fmt.Sprintf("invalid configuration: %s", reason), "reason", reason)
}

func malformedPrincipal(reason string) error {
	return withDetail(ErrMalformedPrincipal, fmt.Sprintf("malformed principal: %s", reason), "reason", reason)
}

func withDetail(base *errors.Error, message, key, value string) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Message = message
	clone.Source = base
	return clone.WithMetadata(map[string]any{key: value})
}

// IsInvalidArgument reports whether err is a caller contract violation
func IsInvalidArgument(err error) bool {
	return hasTextCode(err, TextCodeInvalidArgument) || hasTextCode(err, TextCodeEmptyPassword)
}

// IsConfigurationError reports whether err was raised while building a component
func IsConfigurationError(err error) bool {
	return hasTextCode(err, TextCodeConfiguration)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// IsAccountNotFound reports whether err signals a missing account
func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || hasTextCode(err, TextCodeAccountNotFound)
}

// IsTicketExpired reports whether a session ticket failed on expiry
func IsTicketExpired(err error) bool {
	return hasTextCode(err, TextCodeTicketExpired)
}

// IsSessionDecodeError reports whether a session ticket could not be decoded
func IsSessionDecodeError(err error) bool {
	return hasTextCode(err, TextCodeSessionDecodeError)
}

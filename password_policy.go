package auth

import (
	"fmt"
	"math"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// PasswordPolicy decides whether a new password is acceptable. Thresholds
// are a product decision, hosts are expected to swap the default.
type PasswordPolicy interface {
	Check(password string) error
}

// PasswordPolicyFunc adapts a function into a PasswordPolicy.
type PasswordPolicyFunc func(password string) error

// Check satisfies the PasswordPolicy interface.
func (f PasswordPolicyFunc) Check(password string) error {
	if f == nil {
		return nil
	}
	return f(password)
}

// EntropyPolicy estimates entropy from the character classes in use
type EntropyPolicy struct {
	MinLength  int
	MaxLength  int
	MinEntropy float64
}

// DefaultPasswordPolicy returns an EntropyPolicy with conservative thresholds
func DefaultPasswordPolicy() EntropyPolicy {
	return EntropyPolicy{
		MinLength:  8,
		MaxLength:  128,
		MinEntropy: 50,
	}
}

// Check satisfies the PasswordPolicy interface.
func (p EntropyPolicy) Check(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.RuneLength(p.MinLength, p.MaxLength),
		validation.By(p.entropyRule),
	)
	if err != nil {
		return errors.Wrap(err, ErrWeakPassword.Category, ErrWeakPassword.Message).
			WithTextCode(ErrWeakPassword.TextCode).
			WithCode(ErrWeakPassword.Code)
	}
	return nil
}

func (p EntropyPolicy) entropyRule(value interface{}) error {
	password, _ := value.(string)
	if bits := PasswordEntropy(password); bits < p.MinEntropy {
		return fmt.Errorf("estimated entropy %.1f bits is below %.1f", bits, p.MinEntropy)
	}
	return nil
}

// PasswordEntropy returns length * log2(pool), where the pool is the sum of
// the character classes that appear in password.
func PasswordEntropy(password string) float64 {
	var lower, upper, digit, symbol, other bool
	length := 0

	for _, r := range password {
		length++
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r < unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' '):
			symbol = true
		default:
			other = true
		}
	}

	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if symbol {
		pool += 33
	}
	if other {
		pool += 100
	}

	if pool == 0 {
		return 0
	}

	return float64(length) * math.Log2(float64(pool))
}

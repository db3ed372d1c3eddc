package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"
)

const (
	totpModulo = 1000000
	totpRealm  = "Totp"
)

// TotpGenerator derives six digit codes bound to a secret, a purpose and an
// identity. Codes live for one time step and validate within one step of
// clock skew either side.
type TotpGenerator struct {
	step   time.Duration
	clock  Clock
	logger Logger
}

// TotpOption configures a TotpGenerator
type TotpOption func(*TotpGenerator)

// WithTotpStep sets the time step duration
func WithTotpStep(step time.Duration) TotpOption {
	return func(g *TotpGenerator) {
		g.step = step
	}
}

// WithTotpClock injects the clock
func WithTotpClock(c Clock) TotpOption {
	return func(g *TotpGenerator) {
		g.clock = c
	}
}

// WithTotpLogger sets the logger
func WithTotpLogger(l Logger) TotpOption {
	return func(g *TotpGenerator) {
		g.logger = l
	}
}

// NewTotpGenerator returns a generator with a three minute step by default
func NewTotpGenerator(opts ...TotpOption) (*TotpGenerator, error) {
	g := &TotpGenerator{
		step: DefaultTotpStep,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.step < time.Second {
		return nil, configurationError("totp step must be at least one second")
	}

	g.clock = normalizeClock(g.clock)
	_, g.logger = ResolveLogger("auth.totp", nil, g.logger)

	return g, nil
}

// Step returns the configured time step
func (g *TotpGenerator) Step() time.Duration {
	return g.step
}

// Generate returns the code for the current time step
func (g *TotpGenerator) Generate(secret []byte, purpose, identity string) (string, error) {
	if len(secret) == 0 {
		return "", invalidArgument("secret")
	}

	code := computeTotp(secret, uint64(g.timeStep(g.clock.Now())), totpModifier(purpose, identity))
	return fmt.Sprintf("%06d", code), nil
}

// Validate reports whether candidate matches the code of the previous,
// current or next time step. Unparseable candidates are simply invalid.
func (g *TotpGenerator) Validate(secret []byte, purpose, identity, candidate string) (bool, error) {
	if len(secret) == 0 {
		return false, invalidArgument("secret")
	}

	code, err := strconv.ParseUint(candidate, 10, 32)
	if err != nil {
		return false, nil
	}

	modifier := totpModifier(purpose, identity)
	current := g.timeStep(g.clock.Now())

	matched := false
	for i := int64(-1); i <= 1; i++ {
		if computeTotp(secret, uint64(current+i), modifier) == uint32(code) {
			matched = true
		}
	}

	return matched, nil
}

// GenerateForAccount issues a code keyed by the account security stamp, so
// rotating the stamp voids every outstanding code.
func (g *TotpGenerator) GenerateForAccount(purpose string, account Account) (string, error) {
	if account == nil {
		return "", invalidArgument("account")
	}

	stamp := account.SecurityStamp()
	if stamp.IsZero() {
		return "", invalidArgument("account security stamp")
	}

	return g.Generate(stamp.Bytes(), purpose, account.Email())
}

// ValidateForAccount validates a code issued by GenerateForAccount
func (g *TotpGenerator) ValidateForAccount(purpose, candidate string, account Account) (bool, error) {
	if account == nil {
		return false, invalidArgument("account")
	}

	stamp := account.SecurityStamp()
	if stamp.IsZero() {
		return false, invalidArgument("account security stamp")
	}

	ok, err := g.Validate(stamp.Bytes(), purpose, account.Email(), candidate)
	if err != nil {
		return false, err
	}

	if !ok {
		g.logger.Debug("totp code rejected", "purpose", purpose, "account_id", account.AccountID())
	}

	return ok, nil
}

func (g *TotpGenerator) timeStep(now time.Time) int64 {
	return now.Unix() / int64(g.step/time.Second)
}

func totpModifier(purpose, identity string) string {
	return totpRealm + ":" + purpose + ":" + identity
}

func computeTotp(secret []byte, step uint64, modifier string) uint32 {
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], step)

	mac := hmac.New(sha1.New, secret)
	mac.Write(counter[:])
	mac.Write([]byte(modifier))
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	binCode := uint32(sum[offset]&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	return binCode % totpModulo
}

package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"io"
	"math"
	"time"
)

const tokenFormatVersion byte = 0x01

// TokenValidation is the outcome of validating a signed token. Callers must
// not reveal to end users which kind of failure occurred.
type TokenValidation int

const (
	TokenInvalid TokenValidation = iota
	TokenValid
	TokenExpired
)

func (v TokenValidation) String() string {
	switch v {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// SignedTokenCodec issues stateless purpose-bound tokens. Each token embeds
// the security stamp current at issue time, so rotating the stamp voids
// every outstanding token without any server side bookkeeping.
type SignedTokenCodec struct {
	protector Protector
	lifespan  time.Duration
	clock     Clock
	logger    Logger
}

// TokenCodecOption configures a SignedTokenCodec
type TokenCodecOption func(*SignedTokenCodec)

// WithTokenLifespan sets how long issued tokens stay valid
func WithTokenLifespan(d time.Duration) TokenCodecOption {
	return func(c *SignedTokenCodec) {
		c.lifespan = d
	}
}

// WithTokenClock injects the clock
func WithTokenClock(clock Clock) TokenCodecOption {
	return func(c *SignedTokenCodec) {
		c.clock = clock
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(l Logger) TokenCodecOption {
	return func(c *SignedTokenCodec) {
		c.logger = l
	}
}

// NewSignedTokenCodec builds a codec whose key is derived for the
// "auth:TokenService" purpose.
func NewSignedTokenCodec(keys KeyProvider, opts ...TokenCodecOption) (*SignedTokenCodec, error) {
	protector, err := NewProtector(keys, tokenServicePurpose)
	if err != nil {
		return nil, err
	}

	c := &SignedTokenCodec{
		protector: protector,
		lifespan:  DefaultTokenLifespan,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.lifespan <= 0 {
		return nil, configurationError("token lifespan must be positive")
	}

	c.clock = normalizeClock(c.clock)
	_, c.logger = ResolveLogger("auth.token_codec", nil, c.logger)

	return c, nil
}

// Lifespan returns the configured token lifespan
func (c *SignedTokenCodec) Lifespan() time.Duration {
	return c.lifespan
}

// Issue seals {now, accountID, purpose, stamp} into a URL safe token
func (c *SignedTokenCodec) Issue(purpose string, accountID int64, stamp SecurityStamp) (string, error) {
	if purpose == "" {
		return "", invalidArgument("purpose")
	}

	if len(purpose) > math.MaxUint16 {
		return "", invalidArgument("purpose")
	}

	if stamp.IsZero() {
		return "", invalidArgument("security stamp")
	}

	payload := tokenPayload{
		issuedAt:  c.clock.Now(),
		accountID: accountID,
		purpose:   purpose,
		stamp:     stamp,
	}

	sealed, err := c.protector.Protect(payload.marshal())
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// IssueFor issues a token for account using its current stamp
func (c *SignedTokenCodec) IssueFor(purpose string, account Account) (string, error) {
	if account == nil {
		return "", invalidArgument("account")
	}
	return c.Issue(purpose, account.AccountID(), account.SecurityStamp())
}

// Validate classifies token. Any decoding or decryption failure is
// TokenInvalid, as is a zero stamp on either side. A token past its lifespan is TokenExpired. A token issued for
// another account, another purpose, or under a stamp other than
// currentStamp is TokenInvalid.
func (c *SignedTokenCodec) Validate(purpose, token string, accountID int64, currentStamp SecurityStamp) TokenValidation {
	if purpose == "" || token == "" || currentStamp.IsZero() {
		return TokenInvalid
	}

	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		c.logger.Debug("token rejected", "reason", "encoding")
		return TokenInvalid
	}

	plaintext, err := c.protector.Unprotect(sealed)
	if err != nil {
		c.logger.Debug("token rejected", "reason", "unprotect")
		return TokenInvalid
	}

	payload, ok := unmarshalTokenPayload(plaintext)
	if !ok {
		c.logger.Debug("token rejected", "reason", "payload")
		return TokenInvalid
	}

	if payload.issuedAt.Add(c.lifespan).Before(c.clock.Now()) {
		c.logger.Debug("token rejected", "reason", "expired", "account_id", payload.accountID)
		return TokenExpired
	}

	if payload.stamp.IsZero() || payload.accountID != accountID || payload.purpose != purpose || payload.stamp != currentStamp {
		c.logger.Debug("token rejected", "reason", "binding", "account_id", accountID, "purpose", purpose)
		return TokenInvalid
	}

	return TokenValid
}

// ValidateFor validates token against the account's current state
func (c *SignedTokenCodec) ValidateFor(purpose, token string, account Account) TokenValidation {
	if account == nil {
		return TokenInvalid
	}
	return c.Validate(purpose, token, account.AccountID(), account.SecurityStamp())
}

type tokenPayload struct {
	issuedAt  time.Time
	accountID int64
	purpose   string
	stamp     SecurityStamp
}

func (p tokenPayload) marshal() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 1+8+8+2+len(p.purpose)+len(p.stamp)))
	buf.WriteByte(tokenFormatVersion)
	_ = binary.Write(buf, binary.BigEndian, p.issuedAt.UnixMilli())
	_ = binary.Write(buf, binary.BigEndian, p.accountID)
	_ = binary.Write(buf, binary.BigEndian, uint16(len(p.purpose)))
	buf.WriteString(p.purpose)
	buf.Write(p.stamp[:])
	return buf.Bytes()
}

// unmarshalTokenPayload rejects short buffers and trailing bytes alike
func unmarshalTokenPayload(b []byte) (tokenPayload, bool) {
	r := bytes.NewReader(b)

	version, err := r.ReadByte()
	if err != nil || version != tokenFormatVersion {
		return tokenPayload{}, false
	}

	var issuedAt, accountID int64
	var purposeLen uint16
	if binary.Read(r, binary.BigEndian, &issuedAt) != nil ||
		binary.Read(r, binary.BigEndian, &accountID) != nil ||
		binary.Read(r, binary.BigEndian, &purposeLen) != nil {
		return tokenPayload{}, false
	}

	purpose := make([]byte, purposeLen)
	if _, err := io.ReadFull(r, purpose); err != nil {
		return tokenPayload{}, false
	}

	var stamp SecurityStamp
	if _, err := io.ReadFull(r, stamp[:]); err != nil {
		return tokenPayload{}, false
	}

	if r.Len() != 0 {
		return tokenPayload{}, false
	}

	return tokenPayload{
		issuedAt:  time.UnixMilli(issuedAt).UTC(),
		accountID: accountID,
		purpose:   string(purpose),
		stamp:     stamp,
	}, true
}

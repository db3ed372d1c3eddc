package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"hash"
	"io"
	"strings"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	formatMarkerV3 byte = 0x01
	headerSize          = 13

	minSaltSize   = 16
	minSubkeySize = 16
)

// PRF identifies the HMAC used inside PBKDF2. The numeric values are
// persisted in every hash, never renumber them.
type PRF uint32

const (
	PRFHMACSHA1   PRF = 0
	PRFHMACSHA256 PRF = 1
	PRFHMACSHA512 PRF = 2
)

func (p PRF) hashFunc() (func() hash.Hash, bool) {
	switch p {
	case PRFHMACSHA1:
		return sha1.New, true
	case PRFHMACSHA256:
		return sha256.New, true
	case PRFHMACSHA512:
		return sha512.New, true
	default:
		return nil, false
	}
}

// PasswordVerificationResult is the outcome of VerifyHashedPassword
type PasswordVerificationResult int

const (
	PasswordVerificationFailed PasswordVerificationResult = iota
	PasswordVerificationSuccess
	// PasswordVerificationSuccessRehashNeeded means the password matched but
	// the stored hash uses weaker parameters than the hasher is configured for.
	PasswordVerificationSuccessRehashNeeded
)

func (r PasswordVerificationResult) String() string {
	switch r {
	case PasswordVerificationSuccess:
		return "success"
	case PasswordVerificationSuccessRehashNeeded:
		return "success_rehash_needed"
	default:
		return "failed"
	}
}

// Succeeded reports whether the password matched
func (r PasswordVerificationResult) Succeeded() bool {
	return r == PasswordVerificationSuccess || r == PasswordVerificationSuccessRehashNeeded
}

// PasswordAuthenticator hashes and compares passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

var _ PasswordAuthenticator = (*PasswordHasher)(nil)

// PasswordHasher derives salted PBKDF2 hashes in a self-describing format,
// so hashes written under older parameters keep verifying.
type PasswordHasher struct {
	iterations int
	saltSize   int
	subkeySize int
	prf        PRF
	rand       io.Reader
	logger     Logger
}

// PasswordHasherOption configures a PasswordHasher
type PasswordHasherOption func(*PasswordHasher)

// WithIterationCount sets the PBKDF2 iteration count for new hashes
func WithIterationCount(n int) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.iterations = n
	}
}

// WithSaltSize sets the salt length in bytes
func WithSaltSize(n int) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.saltSize = n
	}
}

// WithSubkeySize sets the derived subkey length in bytes
func WithSubkeySize(n int) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.subkeySize = n
	}
}

// WithRandomSource replaces crypto/rand as the salt source
func WithRandomSource(r io.Reader) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.rand = r
	}
}

// WithHasherLogger sets the logger
func WithHasherLogger(l Logger) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.logger = l
	}
}

// WithHasherOptions applies the hashing fields of opts
func WithHasherOptions(opts Options) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.iterations = opts.IterationCount
		h.saltSize = opts.SaltSize
		h.subkeySize = opts.SubkeySize
	}
}

// NewPasswordHasher builds a hasher. It fails with ErrConfiguration when the
// iteration count is not in 1..MaxIterationCount or the salt or subkey are
// shorter than 128 bits.
func NewPasswordHasher(opts ...PasswordHasherOption) (*PasswordHasher, error) {
	h := &PasswordHasher{
		iterations: DefaultIterationCount,
		saltSize:   DefaultSaltSize,
		subkeySize: DefaultSubkeySize,
		prf:        PRFHMACSHA256,
		rand:       rand.Reader,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	if h.iterations < 1 {
		return nil, configurationError("iteration count must be a positive integer")
	}

	if h.iterations > MaxIterationCount {
		return nil, configurationError("iteration count must not exceed 10000000")
	}

	if h.saltSize < minSaltSize {
		return nil, configurationError("salt size must be at least 16 bytes")
	}

	if h.subkeySize < minSubkeySize {
		return nil, configurationError("subkey size must be at least 16 bytes")
	}

	if h.rand == nil {
		return nil, configurationError("random source is required")
	}

	_, h.logger = ResolveLogger("auth.password_hasher", nil, h.logger)

	return h, nil
}

// HashPassword returns the base64 encoded hash of password
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	salt := make([]byte, h.saltSize)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate salt")
	}

	newHash, _ := h.prf.hashFunc()
	subkey := pbkdf2.Key([]byte(password), salt, h.iterations, h.subkeySize, newHash)

	out := make([]byte, headerSize+len(salt)+len(subkey))
	out[0] = formatMarkerV3
	binary.BigEndian.PutUint32(out[1:5], uint32(h.prf))
	binary.BigEndian.PutUint32(out[5:9], uint32(h.iterations))
	binary.BigEndian.PutUint32(out[9:13], uint32(len(salt)))
	copy(out[headerSize:], salt)
	copy(out[headerSize+len(salt):], subkey)

	return base64.StdEncoding.EncodeToString(out), nil
}

// VerifyHashedPassword checks candidate against hashed. Malformed hashes
// yield PasswordVerificationFailed, errors are reserved for empty arguments.
func (h *PasswordHasher) VerifyHashedPassword(hashed, candidate string) (PasswordVerificationResult, error) {
	if hashed == "" {
		return PasswordVerificationFailed, invalidArgument("hashed password")
	}

	if candidate == "" {
		return PasswordVerificationFailed, ErrNoEmptyString
	}

	if isBcryptHash(hashed) {
		if bcryptMatches(hashed, candidate) {
			return PasswordVerificationSuccessRehashNeeded, nil
		}
		return PasswordVerificationFailed, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(hashed)
	if err != nil || len(decoded) == 0 {
		h.logger.Debug("password hash is not valid base64")
		return PasswordVerificationFailed, nil
	}

	if decoded[0] != formatMarkerV3 {
		h.logger.Debug("password hash has unknown format marker", "marker", decoded[0])
		return PasswordVerificationFailed, nil
	}

	stored, ok := parseV3Hash(decoded)
	if !ok {
		h.logger.Debug("password hash is malformed")
		return PasswordVerificationFailed, nil
	}

	newHash, _ := stored.prf.hashFunc()
	actual := pbkdf2.Key([]byte(candidate), stored.salt, stored.iterations, len(stored.subkey), newHash)

	if !constantTimeEqual(actual, stored.subkey) {
		return PasswordVerificationFailed, nil
	}

	if stored.prf != h.prf || stored.iterations < h.iterations {
		return PasswordVerificationSuccessRehashNeeded, nil
	}

	return PasswordVerificationSuccess, nil
}

// Verify reports whether candidate matches hashed
func (h *PasswordHasher) Verify(hashed, candidate string) (bool, error) {
	result, err := h.VerifyHashedPassword(hashed, candidate)
	if err != nil {
		return false, err
	}
	return result.Succeeded(), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *PasswordHasher) ComparePasswordAndHash(password, hashed string) error {
	ok, err := h.Verify(hashed, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

type v3Hash struct {
	prf        PRF
	iterations int
	salt       []byte
	subkey     []byte
}

func parseV3Hash(decoded []byte) (v3Hash, bool) {
	if len(decoded) < headerSize+minSaltSize+minSubkeySize {
		return v3Hash{}, false
	}

	prf := PRF(binary.BigEndian.Uint32(decoded[1:5]))
	if _, ok := prf.hashFunc(); !ok {
		return v3Hash{}, false
	}

	iterations := binary.BigEndian.Uint32(decoded[5:9])
	// stored counts are attacker controlled, keep them within what we issue
	if iterations == 0 || iterations > MaxIterationCount {
		return v3Hash{}, false
	}

	saltLen := binary.BigEndian.Uint32(decoded[9:13])
	if saltLen < minSaltSize || uint64(saltLen) > uint64(len(decoded)-headerSize) {
		return v3Hash{}, false
	}

	rest := decoded[headerSize:]
	salt := rest[:saltLen]
	subkey := rest[saltLen:]
	if len(subkey) < minSubkeySize {
		return v3Hash{}, false
	}

	return v3Hash{
		prf:        prf,
		iterations: int(iterations),
		salt:       salt,
		subkey:     subkey,
	}, true
}

// constantTimeEqual compares every byte regardless of where the first
// difference sits.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

func isBcryptHash(hashed string) bool {
	return strings.HasPrefix(hashed, "$2a$") ||
		strings.HasPrefix(hashed, "$2b$") ||
		strings.HasPrefix(hashed, "$2y$")
}

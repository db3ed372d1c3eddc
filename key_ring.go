package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	minMasterKeySize    = 32
	protectorVersion    = byte(0x01)
	tokenServicePurpose = "auth:TokenService"
	cookieTicketPurpose = "auth:CookieTicket"
)

// KeyProvider hands out keys scoped to a logical purpose. The same purpose
// must always yield the same key within one deployment.
type KeyProvider interface {
	KeyFor(purpose string) ([]byte, error)
}

// KeyRing derives 256-bit purpose keys from a master secret with HKDF-SHA256
type KeyRing struct {
	master []byte
}

var _ KeyProvider = (*KeyRing)(nil)

// NewKeyRing copies master, which must be at least 32 bytes
func NewKeyRing(master []byte) (*KeyRing, error) {
	if len(master) < minMasterKeySize {
		return nil, configurationError("master key must be at least 32 bytes")
	}

	k := make([]byte, len(master))
	copy(k, master)
	return &KeyRing{master: k}, nil
}

// KeyFor satisfies the KeyProvider interface.
func (k *KeyRing) KeyFor(purpose string) ([]byte, error) {
	if purpose == "" {
		return nil, invalidArgument("purpose")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, k.master, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to derive purpose key")
	}
	return key, nil
}

// Protector seals and opens byte payloads with authenticated encryption
type Protector interface {
	Protect(plaintext []byte) ([]byte, error)
	Unprotect(sealed []byte) ([]byte, error)
}

type aeadProtector struct {
	purpose []byte
	key     []byte
	rand    io.Reader
}

// NewProtector returns an XChaCha20-Poly1305 protector keyed for purpose.
// Output layout is version | nonce | ciphertext+tag, and the purpose is
// bound as associated data.
func NewProtector(keys KeyProvider, purpose string) (Protector, error) {
	if keys == nil {
		return nil, configurationError("key provider is required")
	}

	key, err := keys.KeyFor(purpose)
	if err != nil {
		return nil, err
	}

	if len(key) != chacha20poly1305.KeySize {
		return nil, configurationError("purpose key must be 32 bytes")
	}

	return &aeadProtector{
		purpose: []byte(purpose),
		key:     key,
		rand:    rand.Reader,
	}, nil
}

func (p *aeadProtector) Protect(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create cipher")
	}

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = protectorVersion
	if _, err := io.ReadFull(p.rand, out[1:]); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate nonce")
	}

	nonce := out[1:]
	return aead.Seal(out, nonce, plaintext, p.purpose), nil
}

func (p *aeadProtector) Unprotect(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create cipher")
	}

	if len(sealed) < 1+aead.NonceSize()+aead.Overhead() || sealed[0] != protectorVersion {
		return nil, ErrUnableToDecodeSession
	}

	nonce := sealed[1 : 1+aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, sealed[1+aead.NonceSize():], p.purpose)
	if err != nil {
		return nil, ErrUnableToDecodeSession
	}
	return plaintext, nil
}

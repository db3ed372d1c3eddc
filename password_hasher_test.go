package auth_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"testing"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildHashBlob(prf, iterations, saltLen uint32, salt, subkey []byte) string {
	out := make([]byte, 13, 13+len(salt)+len(subkey))
	out[0] = 0x01
	binary.BigEndian.PutUint32(out[1:5], prf)
	binary.BigEndian.PutUint32(out[5:9], iterations)
	binary.BigEndian.PutUint32(out[9:13], saltLen)
	out = append(out, salt...)
	out = append(out, subkey...)
	return base64.StdEncoding.EncodeToString(out)
}

func TestNewPasswordHasher(t *testing.T) {
	tests := []struct {
		name    string
		opts    []auth.PasswordHasherOption
		wantErr bool
	}{
		{name: "defaults"},
		{name: "zero iterations", opts: []auth.PasswordHasherOption{auth.WithIterationCount(0)}, wantErr: true},
		{name: "negative iterations", opts: []auth.PasswordHasherOption{auth.WithIterationCount(-5)}, wantErr: true},
		{name: "iterations above ceiling", opts: []auth.PasswordHasherOption{auth.WithIterationCount(auth.MaxIterationCount + 1)}, wantErr: true},
		{name: "iterations at ceiling", opts: []auth.PasswordHasherOption{auth.WithIterationCount(auth.MaxIterationCount)}},
		{name: "short salt", opts: []auth.PasswordHasherOption{auth.WithSaltSize(8)}, wantErr: true},
		{name: "short subkey", opts: []auth.PasswordHasherOption{auth.WithSubkeySize(8)}, wantErr: true},
		{name: "nil random source", opts: []auth.PasswordHasherOption{auth.WithRandomSource(nil)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := auth.NewPasswordHasher(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, auth.IsConfigurationError(err))
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := fastHasher()

	for _, password := range []string{"Secret123!", "a", "correct horse battery staple", "пароль-ü-🔑"} {
		hashed, err := h.HashPassword(password)
		require.NoError(t, err)

		ok, err := h.Verify(hashed, password)
		require.NoError(t, err)
		assert.True(t, ok, password)

		ok, err = h.Verify(hashed, password+"x")
		require.NoError(t, err)
		assert.False(t, ok, password)
	}
}

func TestPasswordHasher_CaseSensitive(t *testing.T) {
	h, err := auth.NewPasswordHasher()
	require.NoError(t, err)

	hashed, err := h.HashPassword("Secret123!")
	require.NoError(t, err)

	ok, err := h.Verify(hashed, "Secret123!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(hashed, "secret123!")
	require.NoError(t, err)
	assert.False(t, ok)

	// repeated verification is stable
	for i := 0; i < 3; i++ {
		ok, err = h.Verify(hashed, "Secret123!")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestPasswordHasher_BlobLayout(t *testing.T) {
	h, err := auth.NewPasswordHasher(auth.WithIterationCount(1000))
	require.NoError(t, err)

	hashed, err := h.HashPassword("Secret123!")
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(hashed)
	require.NoError(t, err)

	require.Len(t, decoded, 13+16+32)
	assert.Equal(t, byte(0x01), decoded[0])
	assert.Equal(t, uint32(auth.PRFHMACSHA256), binary.BigEndian.Uint32(decoded[1:5]))
	assert.Equal(t, uint32(1000), binary.BigEndian.Uint32(decoded[5:9]))
	assert.Equal(t, uint32(16), binary.BigEndian.Uint32(decoded[9:13]))
}

func TestPasswordHasher_RandomSource(t *testing.T) {
	newHasher := func() *auth.PasswordHasher {
		h, err := auth.NewPasswordHasher(
			auth.WithIterationCount(1000),
			auth.WithRandomSource(bytes.NewReader(make([]byte, 64))),
		)
		require.NoError(t, err)
		return h
	}

	first, err := newHasher().HashPassword("Secret123!")
	require.NoError(t, err)
	second, err := newHasher().HashPassword("Secret123!")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	h := fastHasher()
	a, err := h.HashPassword("Secret123!")
	require.NoError(t, err)
	b, err := h.HashPassword("Secret123!")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_EmptyArguments(t *testing.T) {
	h := fastHasher()

	_, err := h.HashPassword("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	assert.True(t, auth.IsInvalidArgument(err))

	hashed, err := h.HashPassword("Secret123!")
	require.NoError(t, err)

	_, err = h.VerifyHashedPassword("", "Secret123!")
	assert.True(t, auth.IsInvalidArgument(err))

	_, err = h.VerifyHashedPassword(hashed, "")
	assert.True(t, auth.IsInvalidArgument(err))
}

func TestPasswordHasher_MalformedHashes(t *testing.T) {
	h := fastHasher()
	salt := bytes.Repeat([]byte{1}, 16)
	subkey := bytes.Repeat([]byte{2}, 32)

	tests := []struct {
		name   string
		hashed string
	}{
		{name: "not base64", hashed: "%%%not-base64%%%"},
		{name: "unknown marker", hashed: base64.StdEncoding.EncodeToString(append([]byte{0x07}, make([]byte, 80)...))},
		{name: "too short", hashed: base64.StdEncoding.EncodeToString([]byte{0x01, 0, 0})},
		{name: "unknown prf", hashed: buildHashBlob(9, 1000, 16, salt, subkey)},
		{name: "zero iterations", hashed: buildHashBlob(1, 0, 16, salt, subkey)},
		{name: "iterations above ceiling", hashed: buildHashBlob(1, auth.MaxIterationCount+1, 16, salt, subkey)},
		{name: "huge iterations", hashed: buildHashBlob(1, 1<<30, 16, salt, subkey)},
		{name: "max uint32 iterations", hashed: buildHashBlob(1, math.MaxUint32, 16, salt, subkey)},
		{name: "short salt", hashed: buildHashBlob(1, 1000, 8, salt[:8], subkey)},
		{name: "salt length past end", hashed: buildHashBlob(1, 1000, 4096, salt, subkey)},
		{name: "short subkey", hashed: buildHashBlob(1, 1000, 16, salt, subkey[:8])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.VerifyHashedPassword(tt.hashed, "Secret123!")
			require.NoError(t, err)
			assert.Equal(t, auth.PasswordVerificationFailed, result)
		})
	}
}

func TestPasswordHasher_RehashNeeded(t *testing.T) {
	weak, err := auth.NewPasswordHasher(auth.WithIterationCount(1000))
	require.NoError(t, err)

	strong, err := auth.NewPasswordHasher(auth.WithIterationCount(2000))
	require.NoError(t, err)

	hashed, err := weak.HashPassword("Secret123!")
	require.NoError(t, err)

	result, err := strong.VerifyHashedPassword(hashed, "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, auth.PasswordVerificationSuccessRehashNeeded, result)
	assert.True(t, result.Succeeded())

	result, err = weak.VerifyHashedPassword(hashed, "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, auth.PasswordVerificationSuccess, result)

	// stored parameters win over the verifier's own
	stronger, err := strong.HashPassword("Secret123!")
	require.NoError(t, err)
	result, err = weak.VerifyHashedPassword(stronger, "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, auth.PasswordVerificationSuccess, result)
}

func TestPasswordHasher_ComparePasswordAndHash(t *testing.T) {
	h := fastHasher()
	hashed, err := h.HashPassword("Secret123!")
	require.NoError(t, err)

	assert.NoError(t, h.ComparePasswordAndHash("Secret123!", hashed))
	assert.ErrorIs(t, h.ComparePasswordAndHash("nope", hashed), auth.ErrMismatchedHashAndPassword)
}

func TestPasswordVerificationResult_String(t *testing.T) {
	assert.Equal(t, "failed", auth.PasswordVerificationFailed.String())
	assert.Equal(t, "success", auth.PasswordVerificationSuccess.String())
	assert.Equal(t, "success_rehash_needed", auth.PasswordVerificationSuccessRehashNeeded.String())
	assert.False(t, auth.PasswordVerificationFailed.Succeeded())
}

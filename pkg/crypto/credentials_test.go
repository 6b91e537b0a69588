package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openssl rand -base64 32
const testKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

func TestNewCredentialEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "32-byte base64 key", key: testKey},
		{name: "passphrase", key: "local-dev-passphrase"},
		{name: "short base64 key is hashed", key: base64.StdEncoding.EncodeToString([]byte("sixteen-byte-key"))},
		{name: "empty key", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewCredentialEncryptor(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, enc)
		})
	}
}

func TestCredentialEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	require.NoError(t, err)

	for _, secret := range []string{"root", "p@ss;word=1", strings.Repeat("密", 40)} {
		sealed, err := enc.Encrypt(secret)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
		assert.NotContains(t, sealed, secret)

		plain, err := enc.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, secret, plain)
	}
}

func TestCredentialEncryptor_EmptyPassthrough(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestCredentialEncryptor_NonceIsRandom(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	require.NoError(t, err)

	a, err := enc.Encrypt("same")
	require.NoError(t, err)
	b, err := enc.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCredentialEncryptor_DecryptFailures(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	require.NoError(t, err)
	other, err := NewCredentialEncryptor("another-key")
	require.NoError(t, err)

	sealed, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = enc.Decrypt("plaintext-without-prefix")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = enc.Decrypt(sealedPrefix + "!!not-base64!!")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = enc.Decrypt(sealedPrefix + base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

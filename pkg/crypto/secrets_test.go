package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewSecretEncryptor("a passphrase that is not base64")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("whsec_123")
	require.NoError(t, err)
	assert.NotEqual(t, "whsec_123", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "whsec_123", plaintext)
}

func TestSecretEncryptor_NonceIsRandom(t *testing.T) {
	enc, err := NewSecretEncryptor(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)

	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	assert.NotEqual(t, a, b)
}

func TestSecretEncryptor_WrongKey(t *testing.T) {
	enc1, _ := NewSecretEncryptor("key-one")
	enc2, _ := NewSecretEncryptor("key-two")

	ciphertext, err := enc1.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))
}

func TestSecretEncryptor_EmptyAndGarbage(t *testing.T) {
	_, err := NewSecretEncryptor("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	enc, _ := NewSecretEncryptor("k")
	out, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = enc.Decrypt("!!!not-base64")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	_, err = enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, _ := GenerateSecret()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

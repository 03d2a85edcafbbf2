package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptorFromPassword("correct horse battery staple", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "key-1", enc.KeyID())

	plaintext := []byte(`{"backup_id":"b-1"}`)
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc, err := NewEncryptorFromPassword("password-one", "key-1")
	require.NoError(t, err)
	other, err := NewEncryptorFromPassword("password-two", "key-2")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	enc, err := NewEncryptorFromPassword("password", "key-1")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xff

	_, err = enc.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestNonceVariesPerEncryption(t *testing.T) {
	enc, err := NewEncryptorFromPassword("password", "key-1")
	require.NoError(t, err)

	first, err := enc.Encrypt([]byte("same input"))
	require.NoError(t, err)
	second, err := enc.Encrypt([]byte("same input"))
	require.NoError(t, err)
	assert.False(t, bytes.Equal(first, second))
}

func TestKeyLengthIsEnforced(t *testing.T) {
	_, err := NewEncryptor([]byte("short"), "key-1")
	require.Error(t, err)

	_, err = NewEncryptorFromPassword("", "key-1")
	require.Error(t, err)
}

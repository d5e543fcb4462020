package cryptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New("test-passphrase")
	require.NoError(t, err)

	token, err := c.Encrypt("hello, my email is john@example.com")
	require.NoError(t, err)
	assert.NotContains(t, token, "john@example.com")

	plaintext, err := c.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "hello, my email is john@example.com", plaintext)
}

func TestEncryptProducesDistinctTokens(t *testing.T) {
	c, err := New("test-passphrase")
	require.NoError(t, err)

	a, err := c.Encrypt("same content")
	require.NoError(t, err)
	b, err := c.Encrypt("same content")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	c1, err := New("key-one")
	require.NoError(t, err)
	c2, err := New("key-two")
	require.NoError(t, err)

	token, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(token)
	assert.Error(t, err)
}

func TestNewEmptyPassphrase(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher("unit-test-secret")
	require.NoError(t, err)

	sealed, err := c.Seal("access-token-value")
	require.NoError(t, err)
	assert.NotEqual(t, "access-token-value", sealed)

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-token-value", opened)
}

func TestTokenCipher_SharedSecretReadsOtherWriter(t *testing.T) {
	writer, err := NewTokenCipher("shared")
	require.NoError(t, err)
	reader, err := NewTokenCipher("shared")
	require.NoError(t, err)

	sealed, err := writer.Seal("refresh-token")
	require.NoError(t, err)

	opened, err := reader.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", opened)
}

func TestTokenCipher_WrongSecretFails(t *testing.T) {
	writer, err := NewTokenCipher("secret-a")
	require.NoError(t, err)
	reader, err := NewTokenCipher("secret-b")
	require.NoError(t, err)

	sealed, err := writer.Seal("token")
	require.NoError(t, err)

	_, err = reader.Open(sealed)
	assert.Error(t, err)
}

func TestTokenCipher_EmptySecretRejected(t *testing.T) {
	_, err := NewTokenCipher("")
	assert.Error(t, err)
}

func TestTokenCipher_GarbageInputRejected(t *testing.T) {
	c, err := NewTokenCipher("secret")
	require.NoError(t, err)

	_, err = c.Open("not-hex")
	assert.Error(t, err)

	_, err = c.Open("abcd")
	assert.Error(t, err)
}

package secrets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenCipher_RoundTrip(t *testing.T) {
	c := newCipher(t)

	sealed, err := c.Encrypt("company-access-token")
	require.NoError(t, err)
	require.NotEqual(t, "company-access-token", sealed)

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "company-access-token", opened)
}

func TestTokenCipher_EmptyPassthrough(t *testing.T) {
	c := newCipher(t)

	sealed, err := c.Encrypt("")
	require.NoError(t, err)
	require.Empty(t, sealed)

	opened, err := c.Decrypt("")
	require.NoError(t, err)
	require.Empty(t, opened)
}

func TestTokenCipher_NonceVaries(t *testing.T) {
	c := newCipher(t)

	first, err := c.Encrypt("same-plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same-plaintext")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestTokenCipher_RejectsTampering(t *testing.T) {
	c := newCipher(t)

	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)

	_, err = c.Decrypt(sealed[:len(sealed)-4] + "AAAA")
	require.Error(t, err)

	_, err = c.Decrypt("not base64 at all!!!")
	require.Error(t, err)

	_, err = c.Decrypt("c2hvcnQ=")
	require.Error(t, err)
}

func TestTokenCipher_WrongKeyFails(t *testing.T) {
	c := newCipher(t)
	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)

	other, err := NewTokenCipher(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	require.Error(t, err)
}

func TestNewTokenCipher_KeyLength(t *testing.T) {
	_, err := NewTokenCipher([]byte("too short"))
	require.Error(t, err)

	_, err = NewTokenCipher(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)
}

func newCipher(t *testing.T) *TokenCipher {
	t.Helper()
	c, err := NewTokenCipher(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)
	return c
}

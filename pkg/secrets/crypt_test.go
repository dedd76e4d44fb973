package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestCipher(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		c, err := NewCipher(newKey(t))
		require.NoError(t, err)
		require.NotNil(t, c)

		ct, err := c.Encrypt("shpat_secret_token")
		require.NoError(t, err)
		assert.NotEqual(t, "shpat_secret_token", ct)

		pt, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, "shpat_secret_token", pt)
	})

	t.Run("nonce makes ciphertexts differ", func(t *testing.T) {
		c, err := NewCipher(newKey(t))
		require.NoError(t, err)
		a, _ := c.Encrypt("tok")
		b, _ := c.Encrypt("tok")
		assert.NotEqual(t, a, b)
	})

	t.Run("wrong key fails closed", func(t *testing.T) {
		c1, err := NewCipher(newKey(t))
		require.NoError(t, err)
		c2, err := NewCipher(newKey(t))
		require.NoError(t, err)
		ct, err := c1.Encrypt("tok")
		require.NoError(t, err)
		_, err = c2.Decrypt(ct)
		assert.Error(t, err)
	})

	t.Run("truncated ciphertext rejected", func(t *testing.T) {
		c, err := NewCipher(newKey(t))
		require.NoError(t, err)
		_, err = c.Decrypt("AAAA")
		assert.Error(t, err)
	})

	t.Run("empty key is plaintext pass-through", func(t *testing.T) {
		c, err := NewCipher("")
		require.NoError(t, err)
		require.Nil(t, c)
		ct, err := c.Encrypt("tok")
		require.NoError(t, err)
		assert.Equal(t, "tok", ct)
		pt, err := c.Decrypt("tok")
		require.NoError(t, err)
		assert.Equal(t, "tok", pt)
	})

	t.Run("short key rejected", func(t *testing.T) {
		_, err := NewCipher(base64.StdEncoding.EncodeToString([]byte("too-short")))
		assert.ErrorIs(t, err, ErrBadKey)
	})
}

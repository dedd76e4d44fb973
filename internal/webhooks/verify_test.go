package webhooks

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	secret := "shhh-webhook-secret"
	body := []byte(`{"id":123,"shop_domain":"shop1.myshopify.com"}`)
	sig := Sign(body, secret)

	t.Run("accepts its own signature", func(t *testing.T) {
		assert.True(t, Verify(body, sig, secret))
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		assert.False(t, Verify(body, "", secret))
	})

	t.Run("rejects empty body", func(t *testing.T) {
		assert.False(t, Verify(nil, Sign(nil, secret), secret))
	})

	t.Run("rejects empty secret", func(t *testing.T) {
		assert.False(t, Verify(body, sig, ""))
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		assert.False(t, Verify(body, Sign(body, "other"), secret))
	})

	t.Run("rejects every single-bit body mutation", func(t *testing.T) {
		for i := range body {
			for bit := 0; bit < 8; bit++ {
				mutated := make([]byte, len(body))
				copy(mutated, body)
				mutated[i] ^= 1 << bit
				assert.False(t, Verify(mutated, sig, secret), "byte %d bit %d", i, bit)
			}
		}
	})

	t.Run("rejects every single-bit signature mutation", func(t *testing.T) {
		raw, err := hex.DecodeString(sig)
		require.NoError(t, err)
		for i := range raw {
			for bit := 0; bit < 8; bit++ {
				mutated := make([]byte, len(raw))
				copy(mutated, raw)
				mutated[i] ^= 1 << bit
				assert.False(t, Verify(body, hex.EncodeToString(mutated), secret))
			}
		}
	})

	t.Run("rejects truncated signature", func(t *testing.T) {
		assert.False(t, Verify(body, sig[:len(sig)-2], secret))
	})
}

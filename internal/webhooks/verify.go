// internal/webhooks/verify.go
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verify reports whether signature is the hex HMAC-SHA256 digest of body
// under secret. Constant-time compare; an empty secret, signature, or body
// never verifies.
func Verify(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" || len(body) == 0 {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

// Sign produces the digest Verify expects. Tests and local tooling use it.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

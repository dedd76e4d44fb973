// internal/oauth/domain.go
package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// NormalizeShopDomain lowercases and validates a merchant domain against the
// configured suffix. The shop part must be a plain DNS label.
func NormalizeShopDomain(raw, suffix string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" || !strings.HasSuffix(d, suffix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShop, raw)
	}
	if !validLabel(strings.TrimSuffix(d, suffix)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShop, raw)
	}
	return d, nil
}

func validLabel(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// newState mints the CSRF nonce: 16 random bytes, hex encoded.
func newState() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// VerifyCallbackHMAC checks the signature the platform appends to OAuth
// callback queries: every key except hmac and signature, sorted, joined as
// k=v pairs with &, HMAC-SHA256 under the app secret, hex digest compared in
// constant time.
func VerifyCallbackHMAC(q url.Values, secret string) bool {
	given := strings.ToLower(q.Get("hmac"))
	if given == "" || secret == "" {
		return false
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(q[k], ","))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, "&")))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(given))
}

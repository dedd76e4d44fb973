// pkg/secrets/crypt.go
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var ErrBadKey = errors.New("encryption key must be 32 bytes base64")

// Cipher encrypts access tokens at rest with AES-256-GCM. A nil *Cipher is
// plaintext pass-through (dev without TOKEN_ENC_KEY).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher parses a base64 (std or url, padded or raw) 32-byte key. Empty
// key returns (nil, nil): pass-through mode.
func NewCipher(b64Key string) (*Cipher, error) {
	if b64Key == "" {
		return nil, nil
	}
	key, err := decodeKey(b64Key)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, ErrBadKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func decodeKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, ErrBadKey
}

// Encrypt returns base64url(nonce|ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, len(nonce)+len(ct))
	out = append(out, nonce...)
	out = append(out, ct...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Fails on truncated input or a wrong key.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if c == nil {
		return encoded, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+1 {
		return "", errors.New("ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plain), nil
}

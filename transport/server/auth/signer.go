package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// CookieSigner signs and verifies the opaque grant id carried in a BFF auth
// cookie, so swapping one grant id for another in the cookie value is
// detected instead of silently resolving to a different principal's grant.
type CookieSigner struct {
	key []byte
}

// NewCookieSigner derives a MAC key from secret via HKDF-SHA256, bound to
// info (e.g. the cookie name) so keys for distinct cookies never collide.
func NewCookieSigner(secret []byte, info string) (*CookieSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: cookie signer secret must not be empty")
	}
	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return &CookieSigner{key: key}, nil
}

// Sign returns "grantID.signature", the value to set as the cookie.
func (s *CookieSigner) Sign(grantID string) string {
	return grantID + "." + hex.EncodeToString(s.mac(grantID))
}

// Verify validates a signed cookie value and returns the grant id it
// carries. ok is false if the value is malformed or the signature doesn't
// match the grant id under this signer's key.
func (s *CookieSigner) Verify(value string) (grantID string, ok bool) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}
	grantID, sig := value[:idx], value[idx+1:]
	want, err := hex.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(want, s.mac(grantID)) {
		return "", false
	}
	return grantID, true
}

func (s *CookieSigner) mac(grantID string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(grantID))
	return mac.Sum(nil)
}

package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token failures are distinguished so callers can treat expiry differently
// from forgery.
var (
	ErrTokenMalformed = errors.New("storage: malformed download token")
	ErrTokenSignature = errors.New("storage: download token signature mismatch")
	ErrTokenExpired   = errors.New("storage: download token expired")
)

// SignedURLSigner mints and checks HMAC-signed download tokens. A token
// binds one report id and one storage key to an expiry, granting read access
// to exactly that object for a bounded time.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive ttl falls back to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate returns a token for the report's storage key plus its expiry.
func (s *SignedURLSigner) Generate(reportID, key string) (string, time.Time, error) {
	if reportID == "" || key == "" {
		return "", time.Time{}, errors.New("storage: report id and key are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("storage: signing secret not configured")
	}

	expiresAt := time.Now().Add(s.ttl).Truncate(time.Second)
	body := encodeTokenBody(reportID, key, expiresAt)
	token := body + "." + base64.RawURLEncoding.EncodeToString(s.sign(body))
	return token, expiresAt, nil
}

// Parse verifies a token's signature and expiry and returns what it binds.
// allowExpired skips the expiry check; cleanup routines use it to resolve
// keys of tokens that already lapsed.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (reportID, key string, expiresAt time.Time, err error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, s.sign(body)) {
		return "", "", time.Time{}, ErrTokenSignature
	}

	reportID, key, expiresAt, err = decodeTokenBody(body)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return reportID, key, expiresAt, nil
}

func (s *SignedURLSigner) sign(body string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(body))
	return mac.Sum(nil)
}

func encodeTokenBody(reportID, key string, expiresAt time.Time) string {
	raw := fmt.Sprintf("%s\n%s\n%d", reportID, key, expiresAt.Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeTokenBody(body string) (string, string, time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	parts := strings.SplitN(string(raw), "\n", 3)
	if len(parts) != 3 {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	return parts[0], parts[1], time.Unix(unix, 0), nil
}

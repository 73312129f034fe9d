// Package resume signs the area an unauthenticated visitor asked for, so the
// sign-in flow can send them back there without trusting a raw query string.
package resume

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed = errors.New("resume token malformed")
	ErrSignature = errors.New("resume token signature mismatch")
	ErrExpired   = errors.New("resume token expired")
)

// Signer issues and verifies resume tokens of the form area.expiry.signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token embedding area.
func (s *Signer) Issue(area string) (string, time.Time, error) {
	if area == "" {
		return "", time.Time{}, fmt.Errorf("area required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(area))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encoded, ts, s.sign(encoded, ts)}, "."), expiresAt, nil
}

// Parse verifies token and returns the embedded area.
func (s *Signer) Parse(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrMalformed
	}
	encoded, ts, signature := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(s.sign(encoded, ts)), []byte(signature)) {
		return "", ErrSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrMalformed
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrExpired
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformed
	}
	return string(raw), nil
}

func (s *Signer) sign(encodedArea, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encodedArea + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}

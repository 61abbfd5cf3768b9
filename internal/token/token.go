// Package token issues and verifies the admin bearer tokens.
//
// A token is "<payload>.<signature>" where payload is the base64url (no padding)
// JSON encoding of Claims and signature is the base64url HMAC-SHA256 of the
// encoded payload. Tokens carry their own expiry; nothing is stored server side.
package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const separator = "."

var (
	// ErrInvalid is wrapped by every verification failure
	ErrInvalid = errors.New("invalid token")
	// ErrMalformed is returned when the token structure or payload cannot be parsed
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalid)
	// ErrSignature is returned when the signature does not match the payload
	ErrSignature = fmt.Errorf("%w: signature mismatch", ErrInvalid)
	// ErrMissingExpiry is returned when the payload has no numeric exp field
	ErrMissingExpiry = fmt.Errorf("%w: missing expiry", ErrInvalid)
	// ErrExpired is returned once the expiry instant has been reached
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
)

// Claims is the signed token payload.
type Claims struct {
	Principal string `json:"u"`
	// Exp is the absolute expiry in milliseconds since the Unix epoch.
	Exp int64 `json:"exp"`
}

// ExpiresAt returns the expiry as a time.Time.
func (c Claims) ExpiresAt() time.Time {
	return time.UnixMilli(c.Exp)
}

var encoding = base64.RawURLEncoding

// Issue mints a token for principal that expires ttl after now.
func Issue(principal string, ttl time.Duration, secret []byte, now time.Time) (string, error) {
	claims := Claims{
		Principal: principal,
		Exp:       now.UnixMilli() + ttl.Milliseconds(),
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	payload := encoding.EncodeToString(raw)
	return payload + separator + sign(payload, secret), nil
}

// Verify checks the token's structure, signature and expiry and returns its claims.
func Verify(tok string, secret []byte, now time.Time) (*Claims, error) {
	parts := strings.Split(tok, separator)
	if len(parts) != 2 {
		return nil, ErrMalformed
	}
	payload, sig := parts[0], parts[1]

	expected := sign(payload, secret)
	if len(sig) != len(expected) {
		return nil, ErrSignature
	}
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return nil, ErrSignature
	}

	raw, err := encoding.DecodeString(payload)
	if err != nil {
		return nil, ErrMalformed
	}

	var body struct {
		Principal string          `json:"u"`
		Exp       json.RawMessage `json:"exp"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, ErrMalformed
	}

	exp, ok := parseExpiry(body.Exp)
	if !ok {
		return nil, ErrMissingExpiry
	}

	// Compared as float64 so fractional and out-of-range values keep their meaning.
	if float64(now.UnixMilli()) >= exp {
		return nil, ErrExpired
	}

	return &Claims{Principal: body.Principal, Exp: clampMillis(exp)}, nil
}

func sign(payload string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return encoding.EncodeToString(mac.Sum(nil))
}

// parseExpiry accepts any finite JSON number.
func parseExpiry(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// clampMillis truncates exp to whole milliseconds within the int64 range.
func clampMillis(exp float64) int64 {
	switch {
	case exp >= math.MaxInt64:
		return math.MaxInt64
	case exp <= math.MinInt64:
		return math.MinInt64
	}
	return int64(exp)
}

// Codec binds a secret, a lifetime and a clock so handlers do not pass them around.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a codec using the wall clock.
func NewCodec(secret []byte, ttl time.Duration) *Codec {
	return &Codec{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue mints a token for principal.
func (c *Codec) Issue(principal string) (string, error) {
	return Issue(principal, c.ttl, c.secret, c.now())
}

// Verify validates tok against the codec's secret and clock.
func (c *Codec) Verify(tok string) (*Claims, error) {
	return Verify(tok, c.secret, c.now())
}

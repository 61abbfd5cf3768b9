package token

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	secretA = []byte("dev-secret-change-me")
	secretB = []byte("another-secret")
	issued  = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
)

func signedPayload(t *testing.T, json string, secret []byte) string {
	t.Helper()
	payload := base64.RawURLEncoding.EncodeToString([]byte(json))
	return payload + "." + sign(payload, secret)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	tok, err := Issue("admin", 12*time.Hour, secretA, issued)
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, time.Minute, 11 * time.Hour, 12*time.Hour - time.Millisecond} {
		claims, err := Verify(tok, secretA, issued.Add(offset))
		require.NoError(t, err, "offset %s", offset)
		assert.Equal(t, "admin", claims.Principal)
		assert.Equal(t, issued.Add(12*time.Hour).UnixMilli(), claims.Exp)
	}
}

func TestIssue_Format(t *testing.T) {
	tok, err := Issue("admin", time.Hour, secretA, issued)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(tok, "."))
	assert.NotContains(t, tok, "=")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "/")

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(tok, ".")[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"u":"admin","exp":`+itoa(issued.Add(time.Hour).UnixMilli())+`}`, string(payload))
}

func TestVerify_ExpiryBoundaryIsExclusive(t *testing.T) {
	tok, err := Issue("admin", time.Hour, secretA, issued)
	require.NoError(t, err)

	_, err = Verify(tok, secretA, issued.Add(time.Hour-time.Millisecond))
	assert.NoError(t, err)

	_, err = Verify(tok, secretA, issued.Add(time.Hour))
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Verify(tok, secretA, issued.Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_TamperedSignature(t *testing.T) {
	tok, err := Issue("admin", time.Hour, secretA, issued)
	require.NoError(t, err)

	dot := strings.Index(tok, ".")
	for i := dot + 1; i < len(tok); i++ {
		replacement := byte('A')
		if tok[i] == 'A' {
			replacement = 'B'
		}
		tampered := tok[:i] + string(replacement) + tok[i+1:]

		_, err := Verify(tampered, secretA, issued)
		assert.ErrorIs(t, err, ErrSignature, "flipped index %d", i)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	tok, err := Issue("admin", time.Hour, secretA, issued)
	require.NoError(t, err)

	forged, err := Issue("admin", 1000*time.Hour, secretA, issued)
	require.NoError(t, err)

	mixed := strings.Split(forged, ".")[0] + "." + strings.Split(tok, ".")[1]
	_, err = Verify(mixed, secretA, issued)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := Issue("admin", time.Hour, secretA, issued)
	require.NoError(t, err)

	_, err = Verify(tok, secretB, issued)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestVerify_Malformed(t *testing.T) {
	valid, err := Issue("admin", time.Hour, secretA, issued)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"no separator":   strings.Replace(valid, ".", "", 1),
		"two separators": valid + ".extra",
		"only separator": ".",
		"garbage":        "not a token at all",
	}

	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Verify(tok, secretA, issued)
				assert.ErrorIs(t, err, ErrInvalid)
			})
		})
	}
}

func TestVerify_SignedButUndecodablePayload(t *testing.T) {
	payload := "%%%"
	tok := payload + "." + sign(payload, secretA)

	_, err := Verify(tok, secretA, issued)
	assert.ErrorIs(t, err, ErrMalformed)

	tok = signedPayload(t, `not json`, secretA)
	_, err = Verify(tok, secretA, issued)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_ExpiryMustBeNumeric(t *testing.T) {
	cases := map[string]string{
		"missing": `{"u":"admin"}`,
		"string":  `{"u":"admin","exp":"99999999999999"}`,
		"null":    `{"u":"admin","exp":null}`,
		"bool":    `{"u":"admin","exp":true}`,
		"object":  `{"u":"admin","exp":{}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Verify(signedPayload(t, body, secretA), secretA, issued)
			assert.ErrorIs(t, err, ErrMissingExpiry)
		})
	}
}

func TestVerify_FractionalExpiry(t *testing.T) {
	exp := issued.Add(time.Minute).UnixMilli()
	tok := signedPayload(t, `{"u":"admin","exp":`+itoa(exp)+`.5}`, secretA)

	claims, err := Verify(tok, secretA, issued)
	require.NoError(t, err)
	assert.Equal(t, exp, claims.Exp)
}

func TestVerify_FractionalExpiryNotYetReached(t *testing.T) {
	now := time.UnixMilli(1000)
	tok := signedPayload(t, `{"u":"admin","exp":1000.5}`, secretA)

	claims, err := Verify(tok, secretA, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), claims.Exp)

	_, err = Verify(tok, secretA, time.UnixMilli(1001))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_HugeExpiryDoesNotOverflow(t *testing.T) {
	tok := signedPayload(t, `{"u":"admin","exp":1e20}`, secretA)

	claims, err := Verify(tok, secretA, issued)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), claims.Exp)

	tok = signedPayload(t, `{"u":"admin","exp":-1e20}`, secretA)
	_, err = Verify(tok, secretA, issued)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodec_UsesClock(t *testing.T) {
	now := issued
	codec := NewCodec(secretA, 30*time.Minute).WithClock(func() time.Time { return now })

	tok, err := codec.Issue("admin")
	require.NoError(t, err)

	claims, err := codec.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Principal)
	assert.True(t, issued.Add(30*time.Minute).Equal(claims.ExpiresAt()))
	assert.Equal(t, 30*time.Minute, codec.TTL())

	now = issued.Add(30 * time.Minute)
	_, err = codec.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

package jwt_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheckart/rescue-ranger/pkg/jwt"
)

const testKey = "test-signing-key-at-least-32-bytes-long"

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	require.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)
	require.NotNil(t, svc)
}

func TestGenerateParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		claims := jwt.StandardClaims{
			ID:        "token-1",
			Subject:   "user-42",
			Issuer:    "rescue-ranger",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		}

		token, err := svc.Generate(claims)
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, "."), 3)

		var parsed jwt.StandardClaims
		require.NoError(t, svc.Parse(token, &parsed))
		assert.Equal(t, claims, parsed)
	})

	t.Run("nil claims", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Generate(nil)
		require.ErrorIs(t, err, jwt.ErrMissingClaims)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()
		var parsed jwt.StandardClaims
		require.ErrorIs(t, svc.Parse("not-a-token", &parsed), jwt.ErrInvalidToken)
		require.ErrorIs(t, svc.Parse("a.b", &parsed), jwt.ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()
		token, err := svc.Generate(jwt.StandardClaims{Subject: "user-42"})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"someone-else"}`))
		tampered := parts[0] + "." + forged + "." + parts[2]

		var parsed jwt.StandardClaims
		require.ErrorIs(t, svc.Parse(tampered, &parsed), jwt.ErrInvalidSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()
		other, err := jwt.NewFromString("another-signing-key-also-32-bytes-x")
		require.NoError(t, err)

		token, err := svc.Generate(jwt.StandardClaims{Subject: "user-42"})
		require.NoError(t, err)

		var parsed jwt.StandardClaims
		require.ErrorIs(t, other.Parse(token, &parsed), jwt.ErrInvalidSignature)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		token, err := svc.Generate(jwt.StandardClaims{
			Subject:   "user-42",
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)

		var parsed jwt.StandardClaims
		require.ErrorIs(t, svc.Parse(token, &parsed), jwt.ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		t.Parallel()
		token, err := svc.Generate(jwt.StandardClaims{
			Subject:   "user-42",
			NotBefore: time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		var parsed jwt.StandardClaims
		require.ErrorIs(t, svc.Parse(token, &parsed), jwt.ErrInvalidToken)
	})

	t.Run("algorithm pinning", func(t *testing.T) {
		t.Parallel()
		// A correctly signed token whose header claims a different
		// algorithm must still be rejected.
		head := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT","alg":"none"}`))
		body := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"user-42"}`))
		payload := head + "." + body

		mac := hmac.New(sha256.New, []byte(testKey))
		mac.Write([]byte(payload))
		sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

		var parsed jwt.StandardClaims
		err := svc.Parse(payload+"."+sig, &parsed)
		require.ErrorIs(t, err, jwt.ErrUnexpectedSigningMethod)
	})
}

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret, sub, email, name string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
		"role":  "authenticated",
	}
	if name != "" {
		claims["user_metadata"] = map[string]any{"full_name": name}
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenParser(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	t.Run("verified", func(t *testing.T) {
		p := NewTokenParser(testSecret)
		assert.True(t, p.Verifies())

		claims, err := p.Parse(signToken(t, testSecret, "u1", "ana@example.com", "Ana Lima", future))
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, "ana@example.com", claims.Email)
		assert.Equal(t, "Ana Lima", claims.FullName())
	})

	t.Run("wrong signature", func(t *testing.T) {
		p := NewTokenParser(testSecret)
		_, err := p.Parse(signToken(t, "another-secret-another-secret-another", "u1", "a@b.c", "", future))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		p := NewTokenParser(testSecret)
		_, err := p.Parse(signToken(t, testSecret, "u1", "a@b.c", "", past))
		assert.ErrorIs(t, err, ErrSessionExpired)

		unverified := NewTokenParser("")
		_, err = unverified.Parse(signToken(t, testSecret, "u1", "a@b.c", "", past))
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("unverified identity", func(t *testing.T) {
		p := NewTokenParser("")
		assert.False(t, p.Verifies())
		claims, err := p.Parse(signToken(t, "whatever-the-server-uses-for-signing", "u9", "z@example.com", "", future))
		require.NoError(t, err)
		assert.Equal(t, "u9", claims.Subject)
		assert.Empty(t, claims.FullName())
	})

	t.Run("garbage", func(t *testing.T) {
		for _, tok := range []string{"", "   ", "not.a.jwt", "abc"} {
			_, err := NewTokenParser("").Parse(tok)
			assert.ErrorIs(t, err, ErrInvalidToken, tok)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := NewTokenParser(testSecret).Parse(signToken(t, testSecret, "", "a@b.c", "", future))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSessionExpired is returned for access tokens past their expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidToken is returned for tokens that cannot be read or verified.
	ErrInvalidToken = errors.New("invalid access token")
)

// Claims are the parts of a Supabase access token the app relies on.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// FullName returns the display name stored at sign-up, if any.
func (c Claims) FullName() string {
	for _, key := range []string{"full_name", "name"} {
		if s, ok := c.UserMetadata[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// TokenParser reads access tokens. With a secret the HS256 signature is
// checked; without one only the identity is read.
type TokenParser struct {
	secret []byte
	now    func() time.Time
}

// NewTokenParser creates a TokenParser. secret may be empty.
func NewTokenParser(secret string) *TokenParser {
	p := &TokenParser{now: time.Now}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Verifies reports whether signatures are checked.
func (p *TokenParser) Verifies() bool { return p.secret != nil }

// Parse returns the claims of token.
func (p *TokenParser) Parse(token string) (Claims, error) {
	var claims Claims
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	if p.secret != nil {
		_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			return p.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrSessionExpired
		}
		if err != nil {
			return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
			return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if claims.ExpiresAt != nil && !p.now().Before(claims.ExpiresAt.Time) {
			return Claims{}, ErrSessionExpired
		}
	}

	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

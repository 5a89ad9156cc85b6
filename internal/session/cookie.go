package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenType = "browser_session"

// Claims carried by the session cookie. The subject is the browser session id.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// CookieSigner issues and verifies the HS256 token stored in the session
// cookie.
type CookieSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCookieSigner builds a signer. secret must not be empty.
func NewCookieSigner(secret string, ttl time.Duration) (*CookieSigner, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	return &CookieSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens.
func (s *CookieSigner) TTL() time.Duration {
	return s.ttl
}

// NewID returns a fresh browser session id.
func NewID() string {
	return uuid.NewString()
}

// Issue signs a token for browser session sid.
func (s *CookieSigner) Issue(sid string) (string, error) {
	now := s.now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sid,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the browser session id it carries.
func (s *CookieSigner) Parse(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("session token is empty")
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenType || claims.Subject == "" {
		return "", errors.New("invalid session token claims")
	}
	return claims.Subject, nil
}

// Package auth issues and checks the bearer tokens of the API.
//
// TOKENS ARE BACKED BY SESSIONS:
// A signed JWT alone cannot be revoked before it expires. Every token we
// issue therefore carries the random token of a stored session in its "jti"
// claim, and RequireAuth only accepts a token whose session still exists.
// Logging out deletes the session, which kills the token immediately.
//
//	JWT payload: {"sub": userID, "jti": sessionToken, "iss": "sanctuary", "exp": ...}
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "sanctuary"

// TokenService handles JWT creation and validation with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. ttl is the lifetime of issued
// tokens and should match the lifetime of the sessions behind them.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Claims is what a valid token proves.
type Claims struct {
	UserID       string
	SessionToken string
	ExpiresAt    time.Time
}

// Generate signs a token for userID bound to sessionToken.
func (s *TokenService) Generate(userID, sessionToken string) (string, time.Time, error) {
	return s.generate(userID, sessionToken, s.ttl)
}

// GenerateWithDuration is Generate with a custom lifetime. Tests use a
// negative duration to produce expired tokens.
func (s *TokenService) GenerateWithDuration(userID, sessionToken string, d time.Duration) (string, time.Time, error) {
	return s.generate(userID, sessionToken, d)
}

func (s *TokenService) generate(userID, sessionToken string, d time.Duration) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(d)

	c := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionToken,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expires, nil
}

// Validate verifies signature, algorithm, issuer and expiry and returns the
// claims. It does not consult the session store; RequireAuth does that.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}
	if c.ID == "" {
		return nil, errors.New("auth: token has no session")
	}

	return &Claims{UserID: c.Subject, SessionToken: c.ID, ExpiresAt: c.ExpiresAt.Time}, nil
}

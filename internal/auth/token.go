// Package auth provides session-token generation and password hashing for
// the mini-IDE API.
//
// SESSION MODEL:
// Authorization is decided by set membership — a token is valid if and only
// if the session store currently holds it. Logging out removes it; restarting
// the process removes everything. The token string itself is a signed JWT
// rather than a bare random string, so a token that was never issued by this
// process can be rejected cheaply without consulting the store, and each
// token carries the username it was issued to.
//
// Note the deliberate difference from a classic JWT setup: there is no "exp"
// claim. The token does not expire on its own — the valid-token set is the
// single source of truth, and signature verification is only a first filter.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "mini-ide"

// TokenService signs and verifies session tokens.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: TOKEN_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the token payload. It embeds jwt.RegisteredClaims; we use "sub"
// for the username and "jti" (a fresh xid per token) so two logins by the
// same user never produce the same token string.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new session token for the given username.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, same key signs and
// verifies, which fits a single-server deployment.
func (s *TokenService) Generate(username string) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			ID:       xid.New().String(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and checks the signature of a token string and returns the
// username it was issued to.
//
// This does NOT decide whether the session is still live — only the session
// store can do that. Callers check store membership after (or instead of)
// calling Verify.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HS256 — prevents the
			// classic algorithm-confusion attack where "none" slips through.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}

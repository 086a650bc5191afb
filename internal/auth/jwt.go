// Package auth is the identity provider behind the session layer: password
// hashing, signed access tokens, Google OAuth, and the request middleware
// that turns a token into a user ID on the context.
//
// SIGN-IN FLOW:
//  1. Password: POST /auth/signin → bcrypt verify → token
//     Google:   /auth/google/login → Google → /auth/google/callback → token
//  2. The token goes back as an HttpOnly cookie AND in the JSON body, so both
//     the server-rendered pages and API clients can use it.
//  3. Every /api request presents it (cookie or Authorization: Bearer) and
//     RequireAuth puts the user ID on the request context.
//
// TOKENS ARE JWTs WITH AN ID:
// A plain JWT can't be taken back before it expires. Each token carries a
// random "jti" claim; sign-out stores that ID in the cache until the token's
// own expiry, and validation rejects anything on that list.
//
//	HEADER.PAYLOAD.SIGNATURE
//	payload → {"sub":"<userID>","jti":"<xid>","iss":"wastenot","exp":...}
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "wastenot"

// DefaultTokenTTL is used when NewTokenService is given a zero TTL.
const DefaultTokenTTL = time.Hour

// ErrTokenExpired is returned by Validate for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// Claims is the validated content of an access token.
type Claims struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; generate one with `openssl rand -hex 32`.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL reports how long issued tokens live.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates and signs a new token for userID with a fresh token ID.
func (s *TokenService) Issue(userID string) (string, *Claims, error) {
	return s.issue(userID, s.ttl)
}

func (s *TokenService) issue(userID string, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	c := &Claims{
		UserID:    userID,
		TokenID:   xid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   c.UserID,
		ID:        c.TokenID,
		IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		Issuer:    issuer,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, c, nil
}

// Validate parses and verifies a token string.
//
// Rejected: bad signature, any algorithm but HS256 (no "none" confusion),
// wrong issuer, missing or past expiry, missing subject or token ID.
// Revocation is not checked here; that needs the cache and lives in the
// session provider.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&rc,
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
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if rc.Subject == "" || rc.ID == "" {
		return nil, errors.New("auth: token has no subject or id")
	}

	c := &Claims{UserID: rc.Subject, TokenID: rc.ID}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	c.ExpiresAt = rc.ExpiresAt.Time
	return c, nil
}

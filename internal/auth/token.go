// ABOUTME: Session tokens for API users: HS256 JWTs naming the user by ID and username
// ABOUTME: Tokens must carry the tally issuer, an expiry, a subject, and a name claim

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/tally/internal/store"
)

// Issuer is the "iss" claim of every session token.
const Issuer = "tally"

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// SessionClaims identify the API user a token was issued to.
type SessionClaims struct {
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// UserID is the ID of the user the token was issued to.
func (c *SessionClaims) UserID() string { return c.Subject }

// TokenVerifier checks a session token and returns its claims.
type TokenVerifier interface {
	Verify(tokenString string) (*SessionClaims, error)
}

// JWTVerifier issues and verifies session tokens with one shared secret.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a verifier for the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret, now: time.Now}
}

// Issue signs a token for u that expires after ttl and returns it with its expiry.
func (v *JWTVerifier) Issue(u *store.User, ttl time.Duration) (string, time.Time, error) {
	now := v.now().UTC().Truncate(time.Second)
	expires := now.Add(ttl)
	claims := SessionClaims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses tokenString and checks its signature, issuer, expiry, and
// identity claims.
func (v *JWTVerifier) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingClaim)
	}
	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification errors. These stay internal to the service layer;
// the HTTP surface only ever sees a generic unauthenticated signal.
var (
	ErrTokenMalformed      = errors.New("token is malformed or has an invalid signature")
	ErrTokenExpired        = errors.New("token is expired")
	ErrTokenMissingSubject = errors.New("token has no subject claim")
)

// TokenCodec issues and verifies HMAC-SHA256 signed bearer tokens.
// It holds the immutable server signing secret; safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec creates a TokenCodec with the given signing secret and
// default token lifetime.
func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: secret, ttl: ttl}
}

// TTL returns the configured default token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue creates a signed token for the subject using the default TTL.
func (c *TokenCodec) Issue(subject string) (string, error) {
	return c.IssueWithTTL(subject, c.ttl)
}

// IssueWithTTL creates a signed token for the subject expiring after ttl.
func (c *TokenCodec) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify decodes the token and checks signature and expiry in one step.
// The signature is validated before any claim is trusted. Returns the
// subject on success, or one of ErrTokenMalformed, ErrTokenExpired,
// ErrTokenMissingSubject.
func (c *TokenCodec) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenMalformed
	}

	if !token.Valid {
		return "", ErrTokenMalformed
	}

	if claims.Subject == "" {
		return "", ErrTokenMissingSubject
	}

	return claims.Subject, nil
}

package auth

// SESSION ENVELOPE:
// The source of truth for a session is the sessions collection; a token is
// valid exactly while its record exists, and logout deletes the record.
// A JWT is only used to make the cookie tamper-evident:
//
//	jti = session token (uuid)
//	sub = account id
//
// There is deliberately no exp claim. Expiry would be a second, competing
// notion of "session still valid"; revocation already lives in the store.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "ziphub"

// TokenService signs and verifies session envelopes with HS256.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Sign wraps an opaque session token for accountID.
func (s *TokenService) Sign(sessionToken, accountID string) (string, error) {
	c := jwt.RegisteredClaims{
		ID:       sessionToken,
		Subject:  accountID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Issuer:   issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Open verifies an envelope and returns the session token inside it.
func (s *TokenService) Open(signed string) (string, error) {
	token, err := jwt.ParseWithClaims(
		signed,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
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

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.ID == "" {
		return "", errors.New("auth: token has no session id")
	}
	return c.ID, nil
}

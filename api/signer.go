package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrBadSignature     = errors.New("bad signature")
	ErrSignatureExpired = errors.New("signature expired")
)

// Token audiences, one per kind of link.
const (
	audConfirmEmail  = "trekd.confirm-email"
	audPasswordReset = "trekd.password-reset"
)

// signer makes HS256 tokens for the links mailed to users.
// The signed value is the subject and the link kind is the audience.
type signer struct {
	key []byte
	now func() time.Time
}

func newSigner(secret string) *signer {
	return &signer{key: []byte(secret), now: time.Now}
}

func (s *signer) Sign(audience, value string, maxAge time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   value,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Unsign verifies the token for the audience and returns the signed value.
func (s *signer) Unsign(audience, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrSignatureExpired
	} else if err != nil {
		return "", ErrBadSignature
	}
	return claims.Subject, nil
}

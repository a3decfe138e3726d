package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/apperr"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims carried by every token. Subject is the user id.
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

func (s *Service) sign(userID string, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign token")
	}
	return token, exp, nil
}

// parse verifies signature, expiry and token type and returns the subject.
func (s *Service) parse(raw string, want TokenType) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return "", apperr.Unauthenticated("Could not validate credentials")
	}
	if !claims.VerifyExpiresAt(s.clock.Now(), true) {
		return "", apperr.Unauthenticated("Token has expired")
	}
	if claims.Type != want || claims.Subject == "" {
		return "", apperr.Unauthenticated("Could not validate credentials")
	}
	return claims.Subject, nil
}

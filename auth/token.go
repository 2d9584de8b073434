package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SubscriberClaims is the payload of the subscriber session cookie.
// The subject is the subscriber email.
type SubscriberClaims struct {
	UID uint `json:"uid"`
	jwt.RegisteredClaims
}

type TokenMaker struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewTokenMaker(secretKey string, ttl time.Duration) *TokenMaker {
	return &TokenMaker{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

func (m *TokenMaker) Generate(subscriberID uint, email string) (string, error) {
	now := m.now()
	claims := SubscriberClaims{
		UID: subscriberID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Parse checks signature, algorithm and expiry.
func (m *TokenMaker) Parse(tokenStr string) (*SubscriberClaims, error) {
	const op = "auth.Parse"
	token, err := jwt.ParseWithClaims(tokenStr, &SubscriberClaims{}, func(_ *jwt.Token) (any, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*SubscriberClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}

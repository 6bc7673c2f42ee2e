package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"identityapp/internal/core/domain"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// JWTIssuer signs HS256 session tokens carrying the user id. Tokens have no
// expiry; a session ends when the stored token is cleared. Every token gets a
// fresh jti so a new login never reproduces an earlier token.
type JWTIssuer struct {
	secret []byte
}

func NewJWTIssuer(secret string) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is empty")
	}

	return &JWTIssuer{secret: []byte(secret)}, nil
}

func (j *JWTIssuer) Issue(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})

	return token.SignedString(j.secret)
}

func (j *JWTIssuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return "", domain.ErrInvalidToken
	}

	return claims.UserID, nil
}

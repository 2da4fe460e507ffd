package utils

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/brandpost/internal/transfer"
)

const tokenIssuer = "brandpost"

// Token audiences. A token is only accepted for the audience it was issued to.
const (
	AudienceSession = "session"
	AudienceLogin   = "login"
)

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs an HS256 token for subject, valid for ttl.
func GenerateToken(secretKey, subject, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := transfer.CustomClaims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return signed, nil
}

func ValidateToken(secretKey, tokenString, audience string) (*transfer.CustomClaims, error) {
	claims := &transfer.CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package util

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Tokens are issued by the external auth provider; GenerateToken exists for
// tooling and tests that need a token signed with the shared secret.
func GenerateToken(userID, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	})

	return token.SignedString([]byte(secret))
}

// ValidateToken verifies an HS256 token and returns its user_id claim.
func ValidateToken(tokenString, secret string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			return "", errors.New("invalid user id claim")
		}
		return userID, nil
	}

	return "", errors.New("invalid token")
}

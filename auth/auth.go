package auth

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried in a session token. Authentication itself is an external
// concern; this package only signs and verifies the tokens the gateway issues.
type Claims struct {
	Subject  string
	Nickname string
}

func CreateToken(subject, nickname string) (string, error) {
	secretKeyStr := os.Getenv("JWT_SECRET_KEY")
	if secretKeyStr == "" {
		log.Fatal("auth.go: JWT_SECRET_KEY not set")
	}

	secretKey := []byte(secretKeyStr)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{
			"sub":      subject,
			"nickname": nickname,
			"exp":      time.Now().Add(time.Hour * 24).Unix(),
		})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyToken parses and validates a token, returning its claims.
func VerifyToken(tokenString string) (*Claims, error) {
	secretKeyStr := os.Getenv("JWT_SECRET_KEY")
	if secretKeyStr == "" {
		return nil, fmt.Errorf("auth.go: JWT secret key not set")
	}

	secretKey := []byte(secretKeyStr)
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	subject, _ := mapClaims["sub"].(string)
	if subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	nickname, _ := mapClaims["nickname"].(string)

	return &Claims{Subject: subject, Nickname: nickname}, nil
}

package jwt

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims carried by identity tokens. AccountID is the stable uid the
// identity provider issues; everything else is display metadata.
type Claims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid identity token")

func secret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func GenerateToken(accountID, email, name string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: accountID,
		Email:     email,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	return token.SignedString(secret())
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret(), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.AccountID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

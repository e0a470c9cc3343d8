package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by an API token. The jti is the persisted token id and
// the subject is the project the token is scoped to. API tokens do not
// expire; they live until revoked.
type Claims struct {
	Label string `json:"label,omitempty"`
	jwt.RegisteredClaims
}

func signToken(info *TokenInfo, config *Config) (string, error) {
	claims := Claims{
		Label: info.Label,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       info.ID,
			Subject:  info.Project,
			Issuer:   config.TokenIssuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.TokenSecret))
}

func parseClaims(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

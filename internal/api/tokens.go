package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ChartClaims scope a token to one chart file.
type ChartClaims struct {
	File string `json:"file"`
	jwt.RegisteredClaims
}

// ChartTokens signs and verifies the short-lived tokens embedded in chart
// URLs, so only the conversation that asked for a chart can download it.
type ChartTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewChartTokens(secret string) *ChartTokens {
	return &ChartTokens{secret: []byte(secret), ttl: 24 * time.Hour}
}

func (t *ChartTokens) Sign(file string) (string, error) {
	claims := &ChartClaims{
		File: file,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and that it was minted for file.
func (t *ChartTokens) Verify(tokenString, file string) error {
	claims := &ChartClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid token")
	}
	if claims.File != file {
		return fmt.Errorf("token not valid for this chart")
	}
	return nil
}

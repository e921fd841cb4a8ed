package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is what the client needs from an access token.
type tokenClaims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// parseAccessToken reads the claims of an access token without verifying
// its signature: the client never holds the signing secret, and the backend
// verifies every request anyway.
func parseAccessToken(token string) (tokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}, fmt.Errorf("parse access token: %w", err)
	}

	var tc tokenClaims
	if sub, err := claims.GetSubject(); err == nil {
		tc.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	if email, ok := claims["email"].(string); ok {
		tc.Email = email
	}
	return tc, nil
}

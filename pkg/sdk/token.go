package sdk

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what a client can learn from a SimpleJWT token without the signing key.
type TokenInfo struct {
	UserID    string
	TokenType string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// IsExpired reports whether the token is past its expiry. Tokens without exp never expire.
func (t TokenInfo) IsExpired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// The result is for display only; the server remains the authority on validity.
func InspectToken(token string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	info := &TokenInfo{}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if typ, ok := claims["token_type"].(string); ok {
		info.TokenType = typ
	}
	switch uid := claims["user_id"].(type) {
	case string:
		info.UserID = uid
	case float64:
		info.UserID = strconv.FormatInt(int64(uid), 10)
	}
	if info.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			info.UserID = sub
		}
	}
	return info, nil
}

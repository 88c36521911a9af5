package sdk

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unrelated-key"))
	require.NoError(t, err)
	return token
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	token := signed(t, jwt.MapClaims{
		"token_type": "access",
		"user_id":    42,
		"exp":        exp.Unix(),
		"iat":        exp.Add(-5 * time.Minute).Unix(),
	})

	info, err := InspectToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", info.UserID)
	assert.Equal(t, "access", info.TokenType)
	assert.True(t, info.ExpiresAt.Equal(exp))
	assert.False(t, info.IsExpired())
}

func TestInspectToken_SubjectFallbackAndExpiry(t *testing.T) {
	token := signed(t, jwt.MapClaims{
		"sub": "abc",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	info, err := InspectToken(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", info.UserID)
	assert.True(t, info.IsExpired())
}

func TestInspectToken_Malformed(t *testing.T) {
	_, err := InspectToken("not-a-jwt")
	assert.Error(t, err)

	assert.False(t, TokenInfo{}.IsExpired())
}

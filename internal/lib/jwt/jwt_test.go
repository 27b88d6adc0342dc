package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestNewTokenParseRoundTrip(t *testing.T) {
	token, err := NewToken(42, testSecret, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "42", claims["sub"])
	assert.NotEmpty(t, claims["jti"])

	userID, err := Subject(claims)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	assert.InDelta(t, time.Now().Add(time.Minute).Unix(), exp, 2)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := NewToken(42, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := NewToken(42, testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestDistinctSecretsProduceIndependentTokens(t *testing.T) {
	access, err := NewToken(7, "access-secret", time.Minute)
	require.NoError(t, err)
	refresh, err := NewToken(7, "refresh-secret", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, access, refresh)

	_, err = ParseToken(refresh, "access-secret")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

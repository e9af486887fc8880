package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/podstreak/config"
)

func TestGenerateAndParseToken(t *testing.T) {
	config.Override(config.AppConfig{JWTSecret: "unit-secret"})

	token, err := GenerateToken(42, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
}

func TestParseTokenRejects(t *testing.T) {
	config.Override(config.AppConfig{JWTSecret: "unit-secret"})

	expired, err := GenerateToken(42, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 42}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = ParseToken(foreign)
	assert.Error(t, err)

	anonymous, err := GenerateToken(0, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(anonymous)
	assert.Error(t, err)

	_, err = ParseToken("garbage")
	assert.Error(t, err)
}

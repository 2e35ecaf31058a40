package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour, 24*time.Hour)
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, "user@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestAccessToken_Expired(t *testing.T) {
	svc := NewService("test-secret", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateAccessToken(uuid.New(), "user@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	token, err := NewService("a", time.Hour, time.Hour).GenerateAccessToken(uuid.New(), "x@y.z")
	require.NoError(t, err)

	_, err = NewService("b", time.Hour, time.Hour).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenIsNotAccessToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour, time.Hour)

	refresh, _, _, err := svc.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)
	assert.Len(t, HashRefreshToken(refresh), 64)
}

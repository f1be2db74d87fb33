package handler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"gigmarket/backend/internal/config"
)

func newTestHandler(secret string) *Handler {
	return &Handler{
		Auth:   config.AuthConfig{JWTSecret: secret, TokenTTL: time.Hour},
		Logger: zerolog.Nop(),
	}
}

func TestJWT_RoundTrip(t *testing.T) {
	h := newTestHandler("test-secret")

	token, err := h.generateJWT("user-123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	userID, err := h.validateAndGetUserID(token)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestJWT_RejectsWrongSecret(t *testing.T) {
	token, err := newTestHandler("secret-one").generateJWT("user-123")
	assert.NoError(t, err)

	_, err = newTestHandler("secret-two").validateAndGetUserID(token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestJWT_RejectsExpiredToken(t *testing.T) {
	h := newTestHandler("test-secret")
	h.Auth.TokenTTL = -time.Minute

	token, err := h.generateJWT("user-123")
	assert.NoError(t, err)

	_, err = h.validateAndGetUserID(token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestJWT_RejectsGarbage(t *testing.T) {
	h := newTestHandler("test-secret")

	_, err := h.validateAndGetUserID("not-a-token")
	assert.ErrorIs(t, err, errInvalidToken)
}

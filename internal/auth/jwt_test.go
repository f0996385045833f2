package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret-key-for-testing-purposes", 15*time.Minute)
}

func TestJWTService_ValidateAccessToken_Valid(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateAccessToken("cust-1", "a@example.com")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", claims.CustomerID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "cust-1", claims.Subject)
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret", -time.Minute)

	token, _, err := service.GenerateAccessToken("cust-1", "")
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_Invalid(t *testing.T) {
	service := newTestJWTService()

	other, _, err := NewJWTService("another-secret", time.Minute).GenerateAccessToken("cust-1", "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTService_SubjectFallback(t *testing.T) {
	secret := []byte("test-secret")
	service := NewJWTService(string(secret), time.Minute)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "cust-9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "cust-9", claims.CustomerID)
}

func TestJWTService_NoCustomer(t *testing.T) {
	secret := []byte("test-secret")
	service := NewJWTService(string(secret), time.Minute)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

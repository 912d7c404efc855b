package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ksred/klear-trading/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(ttl time.Duration) *Service {
	return NewService(config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  ttl,
		Credentials: []config.APICredential{
			{Key: "trader", Secret: "trader-secret", UserID: 7, Roles: []string{"trade"}},
			{Key: "admin", Secret: "admin-secret", UserID: 8, Roles: []string{"trade", RoleAdmin}},
		},
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(time.Hour)

	token, err := svc.GenerateToken(Credentials{APIKey: "admin", APISecret: "admin-secret"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.Expiration, time.Minute)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(8), claims.UserID)
	assert.True(t, claims.HasRole(RoleAdmin))
	assert.Equal(t, "admin", claims.Subject)
}

func TestGenerateTokenRejectsBadCredentials(t *testing.T) {
	svc := newTestService(time.Hour)

	_, err := svc.GenerateToken(Credentials{APIKey: "trader", APISecret: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(Credentials{APIKey: "unknown", APISecret: "trader-secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := newTestService(time.Hour)

	other := NewService(config.AuthConfig{
		JWTSecret:   "another-secret",
		Credentials: []config.APICredential{{Key: "trader", Secret: "trader-secret", UserID: 7}},
	})
	foreign, err := other.GenerateToken(Credentials{APIKey: "trader", APISecret: "trader-secret"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		UserID:           7,
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

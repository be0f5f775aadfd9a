package auth_test

import (
	"testing"
	"time"

	"github.com/mass-workshop/mass/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key-must-be-32-chars!!"

func TestTokenService_CreateAndValidate(t *testing.T) {
	svc := auth.NewTokenService(testSigningKey, "mass", 24, 168)

	identity := &auth.Identity{
		Subject:     "idp|123",
		Email:       "tech@bayside-motors.com",
		OrgID:       "org-456",
		DisplayName: "Tech A",
	}

	token, err := svc.CreateAccessToken(identity)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, identity.Subject, got.Subject)
	assert.Equal(t, identity.Email, got.Email)
	assert.Equal(t, identity.OrgID, got.OrgID)
	assert.Equal(t, identity.DisplayName, got.DisplayName)
	assert.Equal(t, "access", got.TokenType)
}

func TestTokenService_CreateRefreshToken(t *testing.T) {
	svc := auth.NewTokenService(testSigningKey, "mass", 24, 168)

	refreshToken, err := svc.CreateRefreshToken(&auth.Identity{Email: "a@example.com", OrgID: "org-1"})
	require.NoError(t, err)

	got, err := svc.ValidateToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, "refresh", got.TokenType)
}

func TestTokenService_RequiresEmail(t *testing.T) {
	svc := auth.NewTokenService(testSigningKey, "mass", 24, 168)

	_, err := svc.CreateAccessToken(&auth.Identity{OrgID: "org-1"})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc := auth.NewTokenService(testSigningKey, "mass", 0, 0) // 0 hours = expires immediately

	token, err := svc.CreateAccessToken(&auth.Identity{Email: "a@example.com"})
	require.NoError(t, err)

	time.Sleep(time.Second)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenService_InvalidSignature(t *testing.T) {
	svc1 := auth.NewTokenService("signing-key-one-must-be-32-chars!!", "mass", 24, 168)
	svc2 := auth.NewTokenService("signing-key-two-must-be-32-chars!!", "mass", 24, 168)

	token, err := svc1.CreateAccessToken(&auth.Identity{Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc2.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestTokenService_WrongIssuer(t *testing.T) {
	svc1 := auth.NewTokenService(testSigningKey, "mass", 24, 168)
	svc2 := auth.NewTokenService(testSigningKey, "other-service", 24, 168)

	token, err := svc1.CreateAccessToken(&auth.Identity{Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc2.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestTokenService_MalformedToken(t *testing.T) {
	svc := auth.NewTokenService(testSigningKey, "mass", 24, 168)

	_, err := svc.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

package services

import (
	"context"
	"testing"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() AuthService {
	return NewAuthService(memory.NewMemoryUserRepository(), "test-secret", 15*time.Minute, 24*time.Hour)
}

func birthday() time.Time {
	return time.Date(1990, time.July, 30, 0, 0, 0, 0, time.UTC)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newAuthFixture()
	ctx := context.Background()

	user, err := svc.Register(ctx, "stargazer", "User@Example.COM", "s3cret-pass", birthday())
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email, "email is normalized on registration")
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	access, refresh, err := svc.Login(ctx, "user@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestAuthService_RegisterValidatesInput(t *testing.T) {
	svc := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "user@example.com", "s3cret-pass", birthday())
	assert.Error(t, err, "username too short")

	_, err = svc.Register(ctx, "stargazer", "not-an-email", "s3cret-pass", birthday())
	assert.Error(t, err, "invalid email")

	_, err = svc.Register(ctx, "stargazer", "user@example.com", "abc", birthday())
	assert.Error(t, err, "password too short")
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "stargazer", "user@example.com", "s3cret-pass", birthday())
	require.NoError(t, err)

	_, err = svc.Register(ctx, "moonchild", "user@example.com", "other-pass", birthday())
	assert.Error(t, err)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	svc := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "stargazer", "user@example.com", "s3cret-pass", birthday())
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "user@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ValidateTokenRoundTrip(t *testing.T) {
	svc := newAuthFixture()

	token, err := svc.GenerateToken("user_1", "stargazer")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user_1"), claims.UserID)
	assert.Equal(t, "stargazer", claims.Username)
}

func TestAuthService_ValidateTokenRejectsForeignSecret(t *testing.T) {
	svc := newAuthFixture()
	other := NewAuthService(memory.NewMemoryUserRepository(), "other-secret", 15*time.Minute, 24*time.Hour)

	token, err := other.GenerateToken("user_1", "stargazer")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(memory.NewMemoryUserRepository(), "test-secret", -time.Minute, 24*time.Hour)

	token, err := svc.GenerateToken("user_1", "stargazer")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_RefreshIssuesNewAccessToken(t *testing.T) {
	svc := newAuthFixture()
	ctx := context.Background()

	user, err := svc.Register(ctx, "stargazer", "user@example.com", "s3cret-pass", birthday())
	require.NoError(t, err)

	refresh, err := svc.GenerateRefreshToken(user.ID)
	require.NoError(t, err)

	access, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "stargazer", claims.Username)
}

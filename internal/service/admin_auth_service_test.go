package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/dealfinder/internal/utils"
)

func TestAdminAuthService_Login(t *testing.T) {
	utils.SetJWTSecret("test-secret", time.Hour)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	svc := NewAdminAuthService("Admin@Example.com", string(hash))

	token, err := svc.Login("admin@example.com ", "s3cret")
	require.NoError(t, err)
	claims, err := utils.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Email)

	_, err = svc.Login("admin@example.com", "wrong")
	assert.ErrorIs(t, err, utils.ErrInvalidLogin)
	_, err = svc.Login("other@example.com", "s3cret")
	assert.ErrorIs(t, err, utils.ErrInvalidLogin)
}

func TestAdminAuthService_Disabled(t *testing.T) {
	svc := NewAdminAuthService("", "")
	assert.False(t, svc.Enabled())
	_, err := svc.Login("a@b.c", "x")
	assert.ErrorIs(t, err, utils.ErrInvalidLogin)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}

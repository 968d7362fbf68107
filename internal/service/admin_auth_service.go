package service

import (
	"crypto/subtle"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/dealfinder/internal/utils"
)

// AdminAuthService authenticates the single configured admin account.
type AdminAuthService struct {
	email        string
	passwordHash []byte
}

func NewAdminAuthService(email, passwordHash string) *AdminAuthService {
	return &AdminAuthService{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
	}
}

// Enabled reports whether an admin account is configured.
func (s *AdminAuthService) Enabled() bool {
	return s.email != "" && len(s.passwordHash) > 0
}

// Login verifies the credentials and returns a signed admin token.
func (s *AdminAuthService) Login(email, password string) (string, error) {
	if !s.Enabled() {
		return "", utils.ErrInvalidLogin
	}
	log.Debug().Str("email", email).Msg("Login attempt")

	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.email)) == 1

	// bcrypt runs even when the email does not match
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil || !emailOK {
		log.Warn().Str("email", email).Msg("Admin login rejected")
		return "", utils.ErrInvalidLogin
	}

	log.Info().Str("email", email).Msg("Login successful")
	return utils.GenerateJWT(s.email)
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

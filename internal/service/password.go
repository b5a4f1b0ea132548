package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/curiohq/curio/internal/store"
)

const settingPasswordHash = "admin_password_hash"

// defaultPasswordHash is the out-of-the-box admin credential ("admin123").
// It only applies when neither the database nor the environment provides a
// hash, and operators are expected to rotate it on first run.
const defaultPasswordHash = "$2b$10$fqSNTFsk5LB9SxUC0qr5.uW9mv/Ty89y.RvUJ4lcHcbyCvV2Zp01W"

// adminPasswordHash resolves the active hash: database setting first, then
// the CURIO_ADMIN_PASSWORD_HASH environment variable, then the default.
func (s *AuthService) adminPasswordHash(ctx context.Context) (string, error) {
	hash, err := s.store.GetSetting(ctx, settingPasswordHash)
	if err == nil {
		return hash, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if env := os.Getenv("CURIO_ADMIN_PASSWORD_HASH"); env != "" {
		return env, nil
	}
	return defaultPasswordHash, nil
}

// VerifyAdminPassword checks a plaintext password against the active hash.
func (s *AuthService) VerifyAdminPassword(ctx context.Context, password string) (bool, error) {
	hash, err := s.adminPasswordHash(ctx)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("compare password: %w", err)
	}
	return true, nil
}

// SetAdminPassword verifies the current password, then persists a new hash.
func (s *AuthService) SetAdminPassword(ctx context.Context, current, next string) error {
	ok, err := s.VerifyAdminPassword(ctx, current)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if len(next) < 6 {
		return errors.New("new password must be at least 6 characters")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.store.SetSetting(ctx, settingPasswordHash, hash); err != nil {
		return err
	}
	s.logger.Info("admin password updated")
	return nil
}

// ForceSetAdminPassword persists a new hash without checking the current
// password. Reserved for the CLI, which already implies operator access.
func (s *AuthService) ForceSetAdminPassword(ctx context.Context, next string) error {
	if len(next) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.SetSetting(ctx, settingPasswordHash, hash)
}

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

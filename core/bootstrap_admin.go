package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"
)

const (
	bootstrapAdminUsername = "admin"
	bootstrapAdminName     = "System Administrator"
)

// BootstrapAdmin creates the initial admin account when none exists.
// It is idempotent: if any admin already exists, it does nothing, so
// restarts never reset a changed password. The password comes from
// ADMIN_PASSWORD, or is generated and logged once when unset.
func BootstrapAdmin(ctx context.Context, repo AdminRepository, cfg Config) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}

	has, err := repo.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	password := cfg.AdminPassword
	generated := false
	if password == "" {
		password, err = generatePassword(32)
		if err != nil {
			return err
		}
		generated = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if _, err := repo.Create(ctx, bootstrapAdminUsername, string(hash), bootstrapAdminName); err != nil {
		return err
	}

	if generated {
		log.Printf("initial admin created username=%s password=%s", bootstrapAdminUsername, password)
	} else {
		log.Printf("initial admin created username=%s", bootstrapAdminUsername)
	}
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	// base64 encoding: need 3/4 overhead; ensure enough bytes
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}

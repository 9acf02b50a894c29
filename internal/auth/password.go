package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/waconsole/waconsole/internal/apperr"
)

const minPasswordLength = 8

// ValidatePassword enforces the minimum length shared by registration,
// password change, and admin-created accounts.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Newf(apperr.KindInvalid, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

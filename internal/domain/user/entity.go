package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
)

// User represents a registered account.
type User struct {
	ID               uuid.UUID  `db:"id"`
	Email            string     `db:"email"`
	PasswordHash     string     `db:"password_hash"`
	EmailConfirmedAt *time.Time `db:"email_confirmed_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// EmailConfirmed reports whether the address was proven through a verification code.
func (u *User) EmailConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// NormalizeEmail is the stored form of an address: trimmed and lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

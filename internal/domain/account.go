package domain

import (
	"regexp"
	"strings"
	"time"
)

// MinPasswordLength is the minimum accepted plaintext password length.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Account is the domain model for a registered credential. OTPCode and
// OTPExpiresAt are set together while a verification challenge is
// outstanding and cleared together once the account is verified.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	OTPCode      *string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail lowercases and trims an email address. All lookups and
// uniqueness checks operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail reports whether the address has a basic local@domain.tld shape.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

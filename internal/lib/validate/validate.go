package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrPasswordTooWeak = errors.New("password does not meet complexity requirements")
)

var emailRe = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

const specialChars = "!@#$%^&*()-_+=:."

// Email checks the address against the same loose shape the registration form enforces.
func Email(email string) error {
	if !emailRe.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// Password enforces the complexity rules: at least 8 characters, one uppercase,
// one lowercase, one digit and one special character.
func Password(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooWeak
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrPasswordTooWeak
	}
	return nil
}

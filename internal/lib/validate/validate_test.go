package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		email string
		ok    bool
	}{
		{"user@example.com", true},
		{"a@b.c", true},
		{"no-at-sign.com", false},
		{"missing@tld", false},
		{"@example.com", false},
		{"user@", false},
		{"", false},
	}

	for _, tt := range tests {
		err := Email(tt.email)
		if tt.ok {
			assert.NoError(t, err, tt.email)
		} else {
			assert.ErrorIs(t, err, ErrInvalidEmail, tt.email)
		}
	}
}

func TestPassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Abcdef1!", true},
		{"Sup3r-Secret", true},
		{"short1!", false},     // too short
		{"alllower1!", false},  // no uppercase
		{"ALLUPPER1!", false},  // no lowercase
		{"NoDigits!!", false},  // no digit
		{"NoSpecial11", false}, // no special character
	}

	for _, tt := range tests {
		err := Password(tt.password)
		if tt.ok {
			assert.NoError(t, err, tt.password)
		} else {
			assert.ErrorIs(t, err, ErrPasswordTooWeak, tt.password)
		}
	}
}

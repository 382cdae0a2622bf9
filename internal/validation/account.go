// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxUsernameLength = 20
	MaxPasswordLength = 128
	MaxTitleLength    = 50
)

var (
	ErrUsernameRequired = errors.New("Username is required")
	ErrPasswordRequired = errors.New("Password is required")
	ErrTitleRequired    = errors.New("Title is required")
	ErrContentRequired  = errors.New("Content is required")
)

// ValidateUsername checks that a username is present, fits the column and has no control characters.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameRequired
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("Username must not exceed %d characters", MaxUsernameLength)
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return errors.New("Username contains invalid characters")
		}
	}
	return nil
}

// ValidatePassword only bounds the length; the stored value is always a hash.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("Password must not exceed %d characters", MaxPasswordLength)
	}
	return nil
}

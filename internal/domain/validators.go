package domain

import (
	"fmt"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Field limits carried over from the account schema.
const (
	MaxUsernameLen = 30
	MaxPasswordLen = 16
	MaxAvatarBytes = 2 * 1024 * 1024
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateUsername checks length bounds only; uniqueness is enforced
// against the store.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username cannot exceed %d characters", MaxUsernameLen)
	}
	return nil
}

// ValidatePassword checks the raw password before hashing.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password cannot exceed %d characters", MaxPasswordLen)
	}
	return nil
}

// ValidateLanguage checks the interface language code.
func ValidateLanguage(lang string) error {
	switch lang {
	case LangSpanish, LangBasque, LangEnglish:
		return nil
	}
	return fmt.Errorf("invalid language selection: %q", lang)
}

// ValidateAvatarSize enforces the upload cap before anything is stored.
func ValidateAvatarSize(size int64) error {
	if size > MaxAvatarBytes {
		return fmt.Errorf("profile picture is too large, maximum size is 2MB")
	}
	return nil
}

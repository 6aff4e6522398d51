package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// User is a registered account. PasswordHash is the bcrypt hash,
	// never the plaintext.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
	}

	// Transaction is a single recorded purchase. IDs are random UUIDs so
	// they leak no ordering or count.
	Transaction struct {
		ID        string
		Location  string
		Amount    int64
		Category  string
		Details   string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyUsername   = errors.New("empty username")
	ErrEmptyPassword   = errors.New("empty password")
	ErrUsernameTooLong = errors.New("username too long (max 50 characters)")
	ErrEmptyLocation   = errors.New("empty location")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidAmount   = errors.New("amount must be a number")
	ErrLocationTooLong = errors.New("location too long (max 100 characters)")
	ErrCategoryTooLong = errors.New("category too long (max 100 characters)")
	ErrDetailsTooLong  = errors.New("details too long (max 500 characters)")
)

// ValidateCredentials checks registration input before hashing.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrEmptyUsername
	}
	if len(username) > 50 {
		return ErrUsernameTooLong
	}
	if password == "" {
		return ErrEmptyPassword
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Location) == "" {
		return ErrEmptyLocation
	}
	if len(t.Location) > 100 {
		return ErrLocationTooLong
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > 100 {
		return ErrCategoryTooLong
	}
	if len(t.Details) > 500 {
		return ErrDetailsTooLong
	}
	return nil
}

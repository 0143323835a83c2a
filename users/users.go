package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jrsteele09/go-session-client/sessions"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string        `json:"id,omitempty"`
	Email        string        `json:"email,omitempty"`
	Name         string        `json:"name,omitempty"`
	PasswordHash string        `json:"-"` // never serialized
	Role         sessions.Role `json:"role,omitempty"`
	DateJoined   time.Time     `json:"date_joined,omitempty"`
	LastLogin    time.Time     `json:"last_login,omitempty"`

	Verified bool `json:"isVerified,omitempty"`
	Blocked  bool `json:"blocked,omitempty"`
	LoggedIn bool `json:"loggedIn,omitempty"`
}

// NewUser builds a user with a hashed password. The password must pass
// ValidatePasswordStrength.
func NewUser(email, name, password string, role sessions.Role) (*User, error) {
	email = NormaliseEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         sessions.ParseRole(string(role)),
		DateJoined:   time.Now(),
	}, nil
}

func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate reports whether password matches and the account may sign in.
func (u *User) Authenticate(password string) bool {
	return !u.Blocked && CheckPasswordHash(password, u.PasswordHash)
}

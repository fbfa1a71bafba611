package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
)

const RoleAdmin = "admin"

// Session is the authenticated caller of an admin operation.
type Session struct {
	UserID    int64
	Username  string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

func (s Session) RequireAdmin() error {
	if s.Role != RoleAdmin || s.Username == "" {
		return ErrUnauthorized
	}
	return nil
}

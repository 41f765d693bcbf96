package auth

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// Credentials is the single admin account that may manage links.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Matches(other Credentials) bool {
	return c.Username == other.Username && c.Password == other.Password
}

// NewCredentials parses ADMIN_CREDENTIALS in "user:password" form.
func NewCredentials(s string) (Credentials, error) {
	username, password, ok := strings.Cut(s, ":")
	if !ok || username == "" {
		return Credentials{}, fmt.Errorf("invalid credentials format, want user:password")
	}
	return Credentials{Username: username, Password: password}, nil
}

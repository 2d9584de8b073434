package auth

import (
	"crypto/subtle"
	"errors"
)

var ErrUnauthorized = errors.New("unauthorized")

// AdminIdentity is the single console principal, supplied by configuration.
type AdminIdentity struct {
	Username string
	Password string
}

// Matches compares both fields in constant time.
func (a AdminIdentity) Matches(username, password string) bool {
	if a.Username == "" || a.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.Password))
	return userOK&passOK == 1
}

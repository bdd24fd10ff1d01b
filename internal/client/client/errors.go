package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lendkeeper/internal/result"
)

var (
	// ErrMalformedReply is returned when a reply carries neither ok nor err.
	ErrMalformedReply = errors.New("malformed service reply")

	// ErrUserAlreadyExists is the error form of an "already exists" reply
	// from RegisterUser.
	ErrUserAlreadyExists = errors.New("user already exists")
)

// IsAlreadyExists reports whether a service failure message describes a
// registration that lost the race to an existing record.
func IsAlreadyExists(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already exists")
}

// RegistrationError converts a RegisterUser failure message into an error.
// Lost registration races wrap ErrUserAlreadyExists.
func RegistrationError(msg string) error {
	if IsAlreadyExists(msg) {
		return fmt.Errorf("%w: %s", ErrUserAlreadyExists, msg)
	}
	return &result.RemoteError{Message: msg}
}

package common

import "errors"

var (
	// ErrConfigInvalid marks configuration problems that are fatal at startup.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrNotInitialized is returned when a session is used before Initialize.
	ErrNotInitialized = errors.New("session not initialized")
)

package agent

import "errors"

var (
	ErrUnavailable        = errors.New("network unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRootKeyUnavailable = errors.New("root key unavailable")
	ErrNoHost             = errors.New("agent host required")
	ErrNoIdentity         = errors.New("agent identity required")
)

package session

import (
	"github.com/dmitrijs2005/lendkeeper/internal/client/client"
	"github.com/dmitrijs2005/lendkeeper/internal/principal"
)

// State is the session lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateAnonymousReady
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAnonymousReady:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// AuthState is a point-in-time copy of the session. UserInfo may be nil
// while authenticated when the account record could not be fetched or
// created.
type AuthState struct {
	State     State
	Principal principal.Principal
	UserInfo  *client.UserRecord
}

func (a AuthState) IsAuthenticated() bool {
	return a.State == StateAuthenticated
}

// EventKind identifies a session notification.
type EventKind int

const (
	EventLoginSucceeded EventKind = iota + 1
	EventLoggedOut
	EventUserInfoUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventLoginSucceeded:
		return "login-succeeded"
	case EventLoggedOut:
		return "logged-out"
	case EventUserInfoUpdated:
		return "user-info-updated"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the state change it describes.
type Event struct {
	Kind  EventKind
	State AuthState
}

// Package authprovider runs the identity-provider handshake and keeps the
// resulting login session on disk.
//
// A login generates a fresh Ed25519 session key, sends the user to the
// provider's authorize page for that key, and receives back a delegation: a
// token signed by the provider stating that the session key may act for the
// user's principal until it expires.
package authprovider

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/lendkeeper/internal/identity"
)

var (
	ErrLoginCancelled    = errors.New("login cancelled")
	ErrInvalidDelegation = errors.New("invalid delegation")
)

// Provider is what a session needs from an identity provider.
type Provider interface {
	// Restore returns the persisted identity, if a valid one exists.
	Restore(ctx context.Context) (identity.Identity, bool, error)
	// Login runs the interactive handshake and persists the result.
	Login(ctx context.Context) (identity.Identity, error)
	// Logout forgets the persisted session. It is a no-op when there is none.
	Logout(ctx context.Context) error
}

// Opener presents the authorize URL to the user.
type Opener interface {
	Open(ctx context.Context, url string) error
}

type OpenerFunc func(ctx context.Context, url string) error

func (f OpenerFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

// TokenSource waits for the delegation token the provider hands back.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Package identity defines the key-pair handles a session can act as.
//
// An Identity is replaced, never mutated: logging in or out swaps the whole
// value held by the session.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lendkeeper/internal/principal"
)

var (
	ErrAnonymousSign = errors.New("anonymous identity cannot sign")
	ErrInvalidSeed   = errors.New("invalid ed25519 seed")
)

// Identity is a caller identity on the network.
type Identity interface {
	// Principal returns the identifier the network attributes calls to.
	Principal() principal.Principal
	// PublicKey returns the DER encoded public key, or nil for anonymous.
	PublicKey() []byte
	// Sign signs msg with the identity's key.
	Sign(msg []byte) ([]byte, error)
	// IsAnonymous reports whether calls are unauthenticated.
	IsAnonymous() bool
}

// Anonymous is the unauthenticated identity.
type Anonymous struct{}

func (Anonymous) Principal() principal.Principal { return principal.Anonymous() }
func (Anonymous) PublicKey() []byte              { return nil }
func (Anonymous) IsAnonymous() bool              { return true }

func (Anonymous) Sign([]byte) ([]byte, error) {
	return nil, ErrAnonymousSign
}

// Ed25519 is a self-authenticating key-pair identity.
type Ed25519 struct {
	priv ed25519.PrivateKey
	der  []byte
	p    principal.Principal
}

// NewEd25519 wraps an existing private key.
func NewEd25519(priv ed25519.PrivateKey) (*Ed25519, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("unexpected public key type")
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("encode public key: %w", err)
	}
	return &Ed25519{priv: priv, der: der, p: principal.FromPublicKey(der)}, nil
}

// Ed25519FromSeed rebuilds an identity from a 32-byte seed.
func Ed25519FromSeed(seed []byte) (*Ed25519, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSeed, len(seed))
	}
	return NewEd25519(ed25519.NewKeyFromSeed(seed))
}

// GenerateEd25519 creates a fresh random identity.
func GenerateEd25519() (*Ed25519, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewEd25519(priv)
}

func (e *Ed25519) Principal() principal.Principal { return e.p }
func (e *Ed25519) PublicKey() []byte              { return append([]byte(nil), e.der...) }
func (e *Ed25519) IsAnonymous() bool              { return false }

func (e *Ed25519) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(e.priv, msg), nil
}

// Seed returns the private seed for persistence. Callers must wipe it.
func (e *Ed25519) Seed() []byte {
	return e.priv.Seed()
}

// RawPublicKey returns the 32-byte public key.
func (e *Ed25519) RawPublicKey() ed25519.PublicKey {
	return e.priv.Public().(ed25519.PublicKey)
}

// Delegated acts for a user principal by signing with a session key that the
// identity provider delegated to.
type Delegated struct {
	session    *Ed25519
	user       principal.Principal
	delegation string
}

// NewDelegated binds a session key to the delegating user principal and the
// provider-issued delegation token.
func NewDelegated(session *Ed25519, user principal.Principal, delegation string) *Delegated {
	return &Delegated{session: session, user: user, delegation: delegation}
}

func (d *Delegated) Principal() principal.Principal { return d.user }
func (d *Delegated) PublicKey() []byte              { return d.session.PublicKey() }
func (d *Delegated) IsAnonymous() bool              { return false }

func (d *Delegated) Sign(msg []byte) ([]byte, error) {
	return d.session.Sign(msg)
}

// Delegation returns the token proving the session key may act for the user.
func (d *Delegated) Delegation() string { return d.delegation }

// Session returns the underlying session key identity.
func (d *Delegated) Session() *Ed25519 { return d.session }

package authprovider

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lendkeeper/internal/principal"
	"github.com/golang-jwt/jwt/v5"
)

// DelegationClaims are carried by the provider's token. Subject is the user
// principal in text form.
type DelegationClaims struct {
	jwt.RegisteredClaims
	SessionKey string `json:"session_key"`
}

// SignDelegation issues a delegation for sessionKey (DER) valid until exp.
func SignDelegation(priv ed25519.PrivateKey, user principal.Principal, sessionKey []byte, exp time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, DelegationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Text(),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		SessionKey: hex.EncodeToString(sessionKey),
	})
	return token.SignedString(priv)
}

// ParseProviderKey accepts a hex encoded raw 32-byte Ed25519 key or a hex
// encoded DER SubjectPublicKeyInfo. An empty string yields nil.
func ParseProviderKey(s string) (ed25519.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("provider key: %w", err)
	}
	if len(b) == ed25519.PublicKeySize {
		return ed25519.PublicKey(b), nil
	}

	pub, err := x509.ParsePKIXPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("provider key: %w", err)
	}
	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("provider key: unsupported type %T", pub)
	}
	return key, nil
}

// verifyDelegation checks token against providerKey and sessionKey. A nil
// providerKey skips the signature check but still enforces expiry.
func verifyDelegation(token string, providerKey ed25519.PublicKey, sessionKey []byte, now func() time.Time) (*DelegationClaims, error) {
	claims := &DelegationClaims{}

	var err error
	if providerKey != nil {
		_, err = jwt.ParseWithClaims(token, claims,
			func(*jwt.Token) (any, error) { return providerKey, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		)
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(token, claims)
		if err == nil && (claims.ExpiresAt == nil || !now().Before(claims.ExpiresAt.Time)) {
			err = jwt.ErrTokenExpired
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDelegation, err)
	}

	if claims.SessionKey != hex.EncodeToString(sessionKey) {
		return nil, fmt.Errorf("%w: session key mismatch", ErrInvalidDelegation)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidDelegation)
	}
	return claims, nil
}

func isExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

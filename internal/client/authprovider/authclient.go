package authprovider

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/lendkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"github.com/dmitrijs2005/lendkeeper/internal/cryptox"
	"github.com/dmitrijs2005/lendkeeper/internal/dbx"
	"github.com/dmitrijs2005/lendkeeper/internal/identity"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"github.com/dmitrijs2005/lendkeeper/internal/principal"
)

// DefaultMaxTTL is the delegation lifetime requested from the provider.
const DefaultMaxTTL = 8 * time.Hour

// Keys of the persisted session in the metadata table.
const (
	keySessionSeed = "session.seed"
	keyDelegation  = "session.delegation"
)

// Config describes the provider a client logs in with.
type Config struct {
	ProviderURL string
	// ProviderKey verifies delegations. It may be nil only when
	// AllowUnverified is set, which is meant for local replicas.
	ProviderKey     ed25519.PublicKey
	AllowUnverified bool
	MaxTTL          time.Duration
	// Passphrase seals the persisted session key; it may be empty.
	Passphrase []byte
}

// AuthClient is the Provider backed by a browser handshake and the local
// database.
type AuthClient struct {
	cfg    Config
	db     *sql.DB
	opener Opener
	tokens TokenSource
	log    logging.Logger
	now    func() time.Time
}

var _ Provider = (*AuthClient)(nil)

func NewAuthClient(cfg Config, db *sql.DB, opener Opener, tokens TokenSource, log logging.Logger) (*AuthClient, error) {
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("%w: identity provider url is empty", common.ErrConfigInvalid)
	}
	if cfg.ProviderKey == nil && !cfg.AllowUnverified {
		return nil, fmt.Errorf("%w: identity provider key is required", common.ErrConfigInvalid)
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = DefaultMaxTTL
	}
	if log == nil {
		log = logging.Nop()
	}
	return &AuthClient{
		cfg:    cfg,
		db:     db,
		opener: opener,
		tokens: tokens,
		log:    log,
		now:    time.Now,
	}, nil
}

// AuthorizeURL is the provider page that asks the user to delegate to
// sessionKey (DER) for at most ttl.
func AuthorizeURL(providerURL string, sessionKey []byte, ttl time.Duration) string {
	return fmt.Sprintf("%s/#authorize?session_key=%x&max_ttl=%d",
		strings.TrimRight(providerURL, "/"), sessionKey, ttl.Nanoseconds())
}

func (c *AuthClient) Login(ctx context.Context) (identity.Identity, error) {
	session, err := identity.GenerateEd25519()
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}

	url := AuthorizeURL(c.cfg.ProviderURL, session.PublicKey(), c.cfg.MaxTTL)
	if err := c.opener.Open(ctx, url); err != nil {
		return nil, fmt.Errorf("open identity provider: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%w: %w", ErrLoginCancelled, err)
	case err != nil:
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrLoginCancelled
	}

	claims, err := verifyDelegation(token, c.cfg.ProviderKey, session.PublicKey(), c.now)
	if err != nil {
		return nil, err
	}
	user, err := principal.FromText(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %w", ErrInvalidDelegation, err)
	}

	if err := c.persist(ctx, session, token); err != nil {
		return nil, err
	}

	c.log.Info(ctx, "login succeeded", "principal", user.Text(), "expires", claims.ExpiresAt.Time)
	return identity.NewDelegated(session, user, token), nil
}

func (c *AuthClient) persist(ctx context.Context, session *identity.Ed25519, token string) error {
	seed := session.Seed()
	defer common.WipeByteArray(seed)

	sealed, err := cryptox.Seal(seed, c.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("seal session key: %w", err)
	}

	return dbx.WithTx(ctx, c.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keySessionSeed, sealed); err != nil {
			return err
		}
		return repo.Set(ctx, keyDelegation, []byte(token))
	})
}

// Restore loads the persisted session. Missing, expired or otherwise invalid
// sessions yield (nil, false, nil); expired and invalid ones are removed. A
// seal that does not open (e.g. a changed passphrase) is left in place.
func (c *AuthClient) Restore(ctx context.Context) (identity.Identity, bool, error) {
	repo := metadata.NewSQLiteRepository(c.db)

	sealed, err := repo.Get(ctx, keySessionSeed)
	if err != nil {
		return nil, false, err
	}
	token, err := repo.Get(ctx, keyDelegation)
	if err != nil {
		return nil, false, err
	}
	if sealed == nil || token == nil {
		return nil, false, nil
	}

	seed, err := cryptox.Open(sealed, c.cfg.Passphrase)
	if err != nil {
		c.log.Warn(ctx, "stored session cannot be opened", "error", err)
		return nil, false, nil
	}
	session, err := identity.Ed25519FromSeed(seed)
	common.WipeByteArray(seed)
	if err != nil {
		c.log.Warn(ctx, "stored session key invalid, clearing", "error", err)
		return nil, false, c.Logout(ctx)
	}

	claims, err := verifyDelegation(string(token), c.cfg.ProviderKey, session.PublicKey(), c.now)
	if err != nil {
		if isExpired(err) {
			c.log.Info(ctx, "stored session expired, clearing")
		} else {
			c.log.Warn(ctx, "stored delegation invalid, clearing", "error", err)
		}
		return nil, false, c.Logout(ctx)
	}
	user, err := principal.FromText(claims.Subject)
	if err != nil {
		c.log.Warn(ctx, "stored delegation subject invalid, clearing", "error", err)
		return nil, false, c.Logout(ctx)
	}

	return identity.NewDelegated(session, user, string(token)), true, nil
}

func (c *AuthClient) Logout(ctx context.Context) error {
	return dbx.WithTx(ctx, c.db, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Delete(ctx, keySessionSeed, keyDelegation)
	})
}

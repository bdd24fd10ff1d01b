package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/dmitrijs2005/lendkeeper/internal/accountid"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultParallelism bounds the number of concurrent queries in a batch.
	DefaultParallelism = 8

	// DefaultMetadataTimeout bounds one shared metadata fetch.
	DefaultMetadataTimeout = 30 * time.Second
)

// Gateway routes balance queries to the right ledger family and caches
// token metadata for the life of the process.
type Gateway struct {
	legacyID string
	legacy   LegacyLedger
	tokens   TokenLedger
	log      logging.Logger

	parallelism     int
	metadataTimeout time.Duration

	mu    sync.RWMutex
	meta  map[string]TokenMetadata
	group singleflight.Group
}

type Option func(*Gateway)

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithParallelism sets the batch fan-out limit; n < 1 is ignored.
func WithParallelism(n int) Option {
	return func(g *Gateway) {
		if n >= 1 {
			g.parallelism = n
		}
	}
}

// WithMetadataTimeout bounds each shared metadata fetch; d <= 0 is ignored.
func WithMetadataTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.metadataTimeout = d
		}
	}
}

// NewGateway routes legacyID to legacy and every other ledger id to tokens.
func NewGateway(legacyID string, legacy LegacyLedger, tokens TokenLedger, opts ...Option) *Gateway {
	g := &Gateway{
		legacyID:        legacyID,
		legacy:          legacy,
		tokens:          tokens,
		log:             logging.Nop(),
		parallelism:     DefaultParallelism,
		metadataTimeout: DefaultMetadataTimeout,
		meta:            make(map[string]TokenMetadata),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// IsLegacy reports whether ledgerID is served by the checksummed-identifier
// family.
func (g *Gateway) IsLegacy(ledgerID string) bool {
	return ledgerID != "" && ledgerID == g.legacyID
}

// QueryBalance returns the balance of acct on ledgerID.
func (g *Gateway) QueryBalance(ctx context.Context, ledgerID string, acct Account) (*big.Int, error) {
	if ledgerID == "" {
		return nil, ErrEmptyLedgerID
	}
	if n := len(acct.Subaccount); n != 0 && n != accountid.SubaccountSize {
		return nil, fmt.Errorf("%w: got %d bytes", accountid.ErrInvalidSubaccountLength, n)
	}

	if g.IsLegacy(ledgerID) {
		id, err := accountid.Derive(acct.Owner, acct.Subaccount)
		if err != nil {
			return nil, err
		}
		bal, err := g.legacy.AccountBalance(ctx, ledgerID, id)
		if err != nil {
			return nil, fmt.Errorf("balance of %s on %s: %w", id.Hex(), ledgerID, err)
		}
		return bal, nil
	}

	bal, err := g.tokens.BalanceOf(ctx, ledgerID, acct)
	if err != nil {
		return nil, fmt.Errorf("balance of %s on %s: %w", acct.Owner.Text(), ledgerID, err)
	}
	return bal, nil
}

// QueryMetadata returns the ledger's metadata, fetching it at most once per
// ledger id. Failures are returned and not cached.
func (g *Gateway) QueryMetadata(ctx context.Context, ledgerID string) (TokenMetadata, error) {
	if ledgerID == "" {
		return TokenMetadata{}, ErrEmptyLedgerID
	}

	g.mu.RLock()
	md, ok := g.meta[ledgerID]
	g.mu.RUnlock()
	if ok {
		return md, nil
	}

	// The shared fetch must not inherit one caller's deadline; each caller
	// waits on its own ctx instead.
	fetchCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(ledgerID, func() (any, error) {
		fctx, cancel := context.WithTimeout(fetchCtx, g.metadataTimeout)
		defer cancel()

		md, err := g.tokens.Metadata(fctx, ledgerID)
		if err != nil {
			return TokenMetadata{}, err
		}
		g.mu.Lock()
		g.meta[ledgerID] = md
		g.mu.Unlock()
		return md, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return TokenMetadata{}, fmt.Errorf("metadata of %s: %w", ledgerID, r.Err)
		}
		return r.Val.(TokenMetadata), nil
	case <-ctx.Done():
		return TokenMetadata{}, fmt.Errorf("metadata of %s: %w", ledgerID, ctx.Err())
	}
}

// MetadataOrFallback is QueryMetadata for display code: failures collapse to
// FallbackMetadata.
func (g *Gateway) MetadataOrFallback(ctx context.Context, ledgerID string) TokenMetadata {
	md, err := g.QueryMetadata(ctx, ledgerID)
	if err != nil {
		g.log.Warn(ctx, "ledger metadata unavailable, using fallback", "ledger", ledgerID, "error", err)
		return FallbackMetadata
	}
	return md
}

// QueryBalances queries every ledger independently. A failing ledger is
// recorded in Failures and never affects the others.
func (g *Gateway) QueryBalances(ctx context.Context, ledgerIDs []string, acct Account) BatchResult {
	res := BatchResult{
		Balances: make(map[string]*big.Int, len(ledgerIDs)),
		Failures: make(map[string]error),
	}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelism)
	for _, id := range ledgerIDs {
		eg.Go(func() error {
			bal, err := g.QueryBalance(ctx, id, acct)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures[id] = err
				g.log.Debug(ctx, "ledger balance failed", "ledger", id, "error", err)
				return nil
			}
			res.Balances[id] = bal
			return nil
		})
	}
	_ = eg.Wait()

	return res
}

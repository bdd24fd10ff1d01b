package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lendkeeper/internal/client/ledger"
)

// StartBalanceWatcher polls the tracked ledgers every interval while a user
// is logged in and reports balances that changed since the previous poll.
// It returns when ctx is done.
func (a *App) StartBalanceWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !a.isLoggedIn() {
				continue
			}
			pollCtx, cancel := context.WithTimeout(ctx, interval)
			a.pollBalances(pollCtx)
			cancel()

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) pollBalances(ctx context.Context) {
	acct := ledger.Account{Owner: a.session.AuthState().Principal}
	res := a.ledgers.QueryBalances(ctx, a.config.TrackedLedgers, acct)

	for id, err := range res.Failures {
		a.log.Debug(ctx, "balance poll failed", "ledger", id, "error", err)
	}

	for id, bal := range res.Balances {
		shown := formatBalance(bal, a.ledgers.MetadataOrFallback(ctx, id))

		a.mu.Lock()
		prev, seen := a.lastBalances[id]
		a.lastBalances[id] = shown
		a.mu.Unlock()

		if seen && prev != shown {
			a.log.Info(ctx, "balance changed", "ledger", id, "from", prev, "to", shown)
			printlnFn("Balance on", id, "changed:", prev, "->", shown)
		}
	}
}

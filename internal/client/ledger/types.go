// Package ledger queries token balances and metadata across the two ledger
// families the client talks to.
//
// One configured ledger id addresses accounts by checksummed account
// identifier (see package accountid); every other ledger addresses them by
// owner principal and subaccount. Gateway hides the difference.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/dmitrijs2005/lendkeeper/internal/accountid"
	"github.com/dmitrijs2005/lendkeeper/internal/principal"
)

var (
	ErrEmptyLedgerID      = errors.New("empty ledger id")
	ErrIncompleteMetadata = errors.New("ledger metadata incomplete")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Account addresses a balance on an owner/subaccount ledger. A nil
// Subaccount means the default (all zero) subaccount.
type Account struct {
	Owner      principal.Principal
	Subaccount []byte
}

// TokenMetadata describes how to display a ledger's amounts.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// FallbackMetadata is shown when a ledger's metadata cannot be fetched.
var FallbackMetadata = TokenMetadata{Name: "Unknown Token", Symbol: "", Decimals: 8}

// BatchResult holds the outcome of QueryBalances. Every requested ledger id
// appears in exactly one of the two maps.
type BatchResult struct {
	Balances map[string]*big.Int
	Failures map[string]error
}

// LegacyLedger is the checksummed-identifier ledger family.
type LegacyLedger interface {
	AccountBalance(ctx context.Context, ledgerID string, id accountid.ID) (*big.Int, error)
}

// TokenLedger is the owner/subaccount ledger family.
type TokenLedger interface {
	BalanceOf(ctx context.Context, ledgerID string, acct Account) (*big.Int, error)
	Metadata(ctx context.Context, ledgerID string) (TokenMetadata, error)
}

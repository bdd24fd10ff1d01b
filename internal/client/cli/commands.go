package cli

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/lendkeeper/internal/accountid"
	"github.com/dmitrijs2005/lendkeeper/internal/client/client"
	"github.com/dmitrijs2005/lendkeeper/internal/client/ledger"
	"github.com/dmitrijs2005/lendkeeper/internal/client/session"
	"github.com/dmitrijs2005/lendkeeper/internal/result"
)

func (a *App) Login(ctx context.Context) error {
	if err := a.session.Login(ctx); err != nil {
		return fmt.Errorf("login unsuccessful: %w", err)
	}

	st := a.session.AuthState()
	printlnFn("Logged in as", st.Principal.Text())
	if st.UserInfo == nil {
		printlnFn("Account record unavailable; lending features may be limited")
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	wasLoggedIn := a.isLoggedIn()
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	if wasLoggedIn {
		printlnFn("Logged out")
	}
	return nil
}

func (a *App) WhoAmI(context.Context) error {
	st := a.session.AuthState()
	id, err := accountid.Derive(st.Principal, nil)
	if err != nil {
		return err
	}

	printlnFn("Principal: ", st.Principal.Text())
	printlnFn("Account id:", id.Hex())
	printlnFn("State:     ", st.State)
	if u := st.UserInfo; u != nil {
		printlnFn("Username:  ", u.Username)
		printlnFn(fmt.Sprintf("Balance:    %.8g (supplied %.8g, borrowed %.8g, health %.2f)",
			u.Balance, u.Supplied, u.Borrowed, u.HealthFactor))
		if !u.CreatedAt.IsZero() {
			printlnFn("Member since:", u.CreatedAt.Format("2006-01-02"))
		}
	}
	return nil
}

func (a *App) AccountID(_ context.Context, args []string) error {
	sub, err := subaccountArg(args, 0)
	if err != nil {
		return err
	}
	id, err := accountid.Derive(a.session.AuthState().Principal, sub)
	if err != nil {
		return err
	}
	printlnFn(id.Hex())
	return nil
}

func (a *App) Balance(ctx context.Context, args []string) error {
	ledgerID := args[0]
	sub, err := subaccountArg(args, 1)
	if err != nil {
		return err
	}

	acct := ledger.Account{Owner: a.session.AuthState().Principal, Subaccount: sub}
	bal, err := a.ledgers.QueryBalance(ctx, ledgerID, acct)
	if err != nil {
		return err
	}

	md := a.ledgers.MetadataOrFallback(ctx, ledgerID)
	printlnFn(formatBalance(bal, md))
	return nil
}

func (a *App) Balances(ctx context.Context) error {
	acct := ledger.Account{Owner: a.session.AuthState().Principal}
	res := a.ledgers.QueryBalances(ctx, a.config.TrackedLedgers, acct)

	for _, id := range a.config.TrackedLedgers {
		if err, failed := res.Failures[id]; failed {
			printlnFn(fmt.Sprintf("%s: unavailable (%v)", id, err))
			continue
		}
		bal := res.Balances[id]
		md := a.ledgers.MetadataOrFallback(ctx, id)
		printlnFn(fmt.Sprintf("%s: %s", id, formatBalance(bal, md)))
	}
	return nil
}

func (a *App) Metadata(ctx context.Context, args []string) error {
	md, err := a.ledgers.QueryMetadata(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn("Name:    ", md.Name)
	printlnFn("Symbol:  ", md.Symbol)
	printlnFn("Decimals:", md.Decimals)
	return nil
}

func (a *App) Positions(ctx context.Context) error {
	if !a.isLoggedIn() {
		return session.ErrNotAuthenticated
	}
	svc := a.session.Service()

	earn, err := svc.GetEarnPositions(ctx)
	if err != nil {
		return err
	}
	borrow, err := svc.GetBorrowPositions(ctx)
	if err != nil {
		return err
	}

	printPositions("Earn", earn)
	printPositions("Borrow", borrow)
	return nil
}

func printPositions(title string, r result.Result[[]client.Position]) {
	result.Match(r,
		func(ps []client.Position) struct{} {
			if len(ps) == 0 {
				printlnFn(title + ": none")
				return struct{}{}
			}
			printlnFn(title + ":")
			for _, p := range ps {
				printlnFn(fmt.Sprintf("  %-12s %-8s %14.8g  APY %.2f%%", p.PoolID, p.Asset, p.Amount, p.APY))
			}
			return struct{}{}
		},
		func(msg string) struct{} {
			printlnFn(title+": unavailable:", msg)
			return struct{}{}
		},
	)
}

func (a *App) Deposit(ctx context.Context, args []string) error {
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid amount %q", args[0])
	}

	balance, err := a.session.UpdateBalance(ctx, amount)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("New balance: %.8g", balance))
	return nil
}

func subaccountArg(args []string, i int) ([]byte, error) {
	if len(args) <= i {
		return nil, nil
	}
	return accountid.ParseSubaccount(args[i])
}

func formatBalance(bal *big.Int, md ledger.TokenMetadata) string {
	return strings.TrimSpace(ledger.FormatAmount(bal, md.Decimals) + " " + md.Symbol)
}

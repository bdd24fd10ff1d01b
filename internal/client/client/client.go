package client

import (
	"context"

	"github.com/dmitrijs2005/lendkeeper/internal/principal"
	"github.com/dmitrijs2005/lendkeeper/internal/result"
)

// Client is the lending-pool service contract.
type Client interface {
	Close() error
	IsAuthenticated(ctx context.Context) (bool, error)
	GetUserInfo(ctx context.Context, p principal.Principal) (result.Result[UserRecord], error)
	RegisterUser(ctx context.Context, p principal.Principal, username string) (result.Result[UserRecord], error)
	UpdateBalance(ctx context.Context, amount float64) (result.Result[float64], error)
	GetEarnPositions(ctx context.Context) (result.Result[[]Position], error)
	GetBorrowPositions(ctx context.Context) (result.Result[[]Position], error)
}

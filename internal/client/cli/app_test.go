package cli

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/lendkeeper/internal/accountid"
	"github.com/dmitrijs2005/lendkeeper/internal/client/agent"
	"github.com/dmitrijs2005/lendkeeper/internal/client/agent/agenttest"
	"github.com/dmitrijs2005/lendkeeper/internal/client/client"
	"github.com/dmitrijs2005/lendkeeper/internal/client/config"
	"github.com/dmitrijs2005/lendkeeper/internal/client/ledger"
	"github.com/dmitrijs2005/lendkeeper/internal/client/session"
	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"github.com/dmitrijs2005/lendkeeper/internal/identity"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"github.com/dmitrijs2005/lendkeeper/internal/principal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	poolID   = "be2us-64aaa-aaaaa-qaabq-cai"
	legacyID = "ryjl3-tyaaa-aaaaa-aaaba-cai"
	tokenA   = "mxzaz-hqaaa-aaaar-qaada-cai"
	tokenB   = "ss2fx-dyaaa-aaaar-qacoq-cai"
)

type stubProvider struct {
	id identity.Identity
}

func (p *stubProvider) Restore(context.Context) (identity.Identity, bool, error) {
	return nil, false, nil
}

func (p *stubProvider) Login(context.Context) (identity.Identity, error) {
	return p.id, nil
}

func (p *stubProvider) Logout(context.Context) error {
	return nil
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func canisterOf(ctx context.Context) string {
	md, _ := metadata.FromOutgoingContext(ctx)
	if v := md.Get(common.CanisterIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

type testEnv struct {
	app       *App
	conn      *agenttest.FakeConn
	legacyBal atomic.Value
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{conn: agenttest.NewFakeConn()}
	env.legacyBal.Store("150000000")

	env.conn.Handle(ledger.MethodAccountBalance, func(context.Context, proto.Message) (proto.Message, error) {
		return structpb.NewStruct(map[string]any{"amount": env.legacyBal.Load().(string)})
	})
	env.conn.Handle(ledger.MethodBalanceOf, func(ctx context.Context, _ proto.Message) (proto.Message, error) {
		if canisterOf(ctx) == tokenB {
			return nil, status.Error(codes.Unavailable, "ledger down")
		}
		return structpb.NewStruct(map[string]any{"amount": "42"})
	})
	env.conn.Handle(ledger.MethodMetadata, func(ctx context.Context, _ proto.Message) (proto.Message, error) {
		if canisterOf(ctx) != legacyID {
			return nil, status.Error(codes.Internal, "no metadata")
		}
		return structpb.NewStruct(map[string]any{"entries": []any{
			map[string]any{"key": ledger.KeyName, "value": "Internet Computer"},
			map[string]any{"key": ledger.KeySymbol, "value": "ICP"},
			map[string]any{"key": ledger.KeyDecimals, "value": 8},
		}})
	})
	env.conn.Handle(client.MethodIsAuthenticated, func(context.Context, proto.Message) (proto.Message, error) {
		return wrapperspb.Bool(true), nil
	})
	env.conn.Handle(client.MethodGetUserInfo, func(context.Context, proto.Message) (proto.Message, error) {
		return structpb.NewStruct(map[string]any{"ok": map[string]any{"username": "alice", "balance": 10}})
	})

	cfg := &config.Config{
		LendingCanisterID: poolID,
		LegacyLedgerID:    legacyID,
		TrackedLedgers:    []string{legacyID, tokenA, tokenB},
	}

	key, err := identity.GenerateEd25519()
	require.NoError(t, err)
	user := identity.NewDelegated(key, principal.MustFromText("rdmx6-jaaaa-aaaaa-aaadq-cai"), "token")

	m := sessionFor(env.conn, &stubProvider{id: user})
	gl := ledger.NewGRPCLedger(m)
	env.app = &App{
		config:       cfg,
		session:      m,
		ledgers:      ledger.NewGateway(legacyID, gl, gl),
		log:          logging.Nop(),
		lastBalances: make(map[string]string),
	}
	m.Subscribe(env.app.onSessionEvent)
	require.NoError(t, m.Initialize(context.Background()))
	return env
}

func sessionFor(conn *agenttest.FakeConn, p *stubProvider) *session.Manager {
	return session.New(session.Deps{
		Provider: p,
		NewConn: func(ctx context.Context, id identity.Identity) (session.Conn, error) {
			a, err := agent.NewWithConn(ctx, conn, agent.Options{Host: "h", Identity: id})
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		NewService: func(c session.Conn) (client.Client, error) {
			svc, err := client.NewGRPCClient(c, poolID, nil)
			if err != nil {
				return nil, err
			}
			return svc, nil
		},
	})
}

func TestNewApp_InvalidConfig(t *testing.T) {
	_, err := NewApp(context.Background(), &config.Config{Network: "moon"}, logging.Nop())
	require.ErrorIs(t, err, common.ErrConfigInvalid)
}

func TestNewApp_WiresWithoutNetwork(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Host = config.LocalHost
	cfg.IdentityProviderURL = config.LocalIdentityProvider
	cfg.LendingCanisterID = poolID
	cfg.DatabasePath = filepath.Join(t.TempDir(), "session.db")

	a, err := NewApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "(uninitialized)", a.getStatus())
	a.Close()
}

func TestAccountID(t *testing.T) {
	lines := capturePrints(t)
	env := newTestEnv(t)

	require.NoError(t, env.app.AccountID(context.Background(), nil))
	require.NoError(t, env.app.AccountID(context.Background(), []string{"01"}))
	require.Error(t, env.app.AccountID(context.Background(), []string{"zz"}))

	sub := make([]byte, accountid.SubaccountSize)
	sub[31] = 1
	assert.Equal(t, []string{
		accountid.MustDerive(principal.Anonymous(), nil).Hex(),
		accountid.MustDerive(principal.Anonymous(), sub).Hex(),
	}, *lines)
}

func TestBalance_UsesMetadataOrFallback(t *testing.T) {
	lines := capturePrints(t)
	env := newTestEnv(t)

	require.NoError(t, env.app.Balance(context.Background(), []string{legacyID}))
	require.NoError(t, env.app.Balance(context.Background(), []string{tokenA}))
	require.Error(t, env.app.Balance(context.Background(), []string{tokenB}))

	assert.Equal(t, []string{"1.5 ICP", "0.00000042"}, *lines)
}

func TestBalances_ReportsPartialFailure(t *testing.T) {
	lines := capturePrints(t)
	env := newTestEnv(t)

	require.NoError(t, env.app.Balances(context.Background()))

	require.Len(t, *lines, 3)
	assert.Equal(t, legacyID+": 1.5 ICP", (*lines)[0])
	assert.Equal(t, tokenA+": 0.00000042", (*lines)[1])
	assert.True(t, strings.HasPrefix((*lines)[2], tokenB+": unavailable"))
}

func TestMetadata(t *testing.T) {
	lines := capturePrints(t)
	env := newTestEnv(t)

	require.NoError(t, env.app.Metadata(context.Background(), []string{legacyID}))
	assert.Contains(t, *lines, "Symbol:   ICP")

	require.Error(t, env.app.Metadata(context.Background(), []string{tokenA}))
}

func TestLoginPositionsDepositLogout(t *testing.T) {
	lines := capturePrints(t)
	env := newTestEnv(t)
	ctx := context.Background()

	env.conn.Handle(client.MethodGetEarnPositions, func(context.Context, proto.Message) (proto.Message, error) {
		return structpb.NewStruct(map[string]any{"ok": []any{
			map[string]any{"pool_id": "btc", "asset": "ckBTC", "amount": 1, "apy": 3.5},
		}})
	})
	env.conn.Handle(client.MethodGetBorrowPositions, func(context.Context, proto.Message) (proto.Message, error) {
		return structpb.NewStruct(map[string]any{"err": "borrowing paused"})
	})
	env.conn.Handle(client.MethodUpdateBalance, func(context.Context, proto.Message) (proto.Message, error) {
		return structpb.NewStruct(map[string]any{"ok": 12.5})
	})

	require.ErrorIs(t, env.app.Positions(ctx), session.ErrNotAuthenticated)

	require.NoError(t, env.app.Login(ctx))
	assert.True(t, env.app.isLoggedIn())
	assert.Equal(t, "(alice)", env.app.getStatus())

	require.NoError(t, env.app.Positions(ctx))
	require.NoError(t, env.app.Deposit(ctx, []string{"2.5"}))
	require.Error(t, env.app.Deposit(ctx, []string{"-1"}))
	require.NoError(t, env.app.WhoAmI(ctx))

	require.NoError(t, env.app.Logout(ctx))
	require.NoError(t, env.app.Logout(ctx))
	assert.Equal(t, "(anonymous)", env.app.getStatus())

	assert.Contains(t, *lines, "Logged in as rdmx6-jaaaa-aaaaa-aaadq-cai")
	assert.Contains(t, *lines, "Borrow: unavailable: borrowing paused")
	assert.Contains(t, *lines, "New balance: 12.5")
	assert.Contains(t, *lines, "Username:   alice")

	var logouts int
	for _, l := range *lines {
		if l == "Logged out" {
			logouts++
		}
	}
	assert.Equal(t, 1, logouts)
}

func TestPollBalances_ReportsChanges(t *testing.T) {
	lines := capturePrints(t)
	env := newTestEnv(t)

	env.app.pollBalances(context.Background())
	assert.Empty(t, *lines)

	env.legacyBal.Store("250000000")
	env.app.pollBalances(context.Background())
	assert.Equal(t, []string{"Balance on " + legacyID + " changed: 1.5 ICP -> 2.5 ICP"}, *lines)
}

func TestSessionEventsResetWatcher(t *testing.T) {
	capturePrints(t)
	env := newTestEnv(t)

	env.app.pollBalances(context.Background())
	require.NotEmpty(t, env.app.lastBalances)

	require.NoError(t, env.app.Login(context.Background()))
	assert.Empty(t, env.app.lastBalances)
}

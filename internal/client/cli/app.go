package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/lendkeeper/internal/client/agent"
	"github.com/dmitrijs2005/lendkeeper/internal/client/authprovider"
	"github.com/dmitrijs2005/lendkeeper/internal/client/client"
	"github.com/dmitrijs2005/lendkeeper/internal/client/config"
	"github.com/dmitrijs2005/lendkeeper/internal/client/ledger"
	"github.com/dmitrijs2005/lendkeeper/internal/client/session"
	"github.com/dmitrijs2005/lendkeeper/internal/client/storage"
	"github.com/dmitrijs2005/lendkeeper/internal/identity"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"github.com/dmitrijs2005/lendkeeper/internal/retry"
)

type App struct {
	config  *config.Config
	session *session.Manager
	ledgers *ledger.Gateway
	db      *sql.DB
	log     logging.Logger
	reader  *bufio.Reader
	out     io.Writer

	mu           sync.Mutex
	lastBalances map[string]string
}

// NewApp opens the session database and wires the identity provider,
// session manager and ledger gateway. Nothing touches the network until
// Run.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	providerKey, err := authprovider.ParseProviderKey(c.IdentityProviderKey)
	if err != nil {
		return nil, err
	}

	db, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	a := &App{
		config:       c,
		db:           db,
		log:          log,
		reader:       bufio.NewReader(os.Stdin),
		out:          os.Stdout,
		lastBalances: make(map[string]string),
	}

	provider, err := authprovider.NewAuthClient(authprovider.Config{
		ProviderURL:     c.IdentityProviderURL,
		ProviderKey:     providerKey,
		AllowUnverified: c.IsLocal(),
		Passphrase:      []byte(c.KeystorePassphrase),
	}, db, authprovider.OpenerFunc(a.showAuthorizeURL), authprovider.TokenSourceFunc(a.readDelegation), log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.session = session.New(session.Deps{
		Provider:   provider,
		NewConn:    a.connect,
		NewService: a.service,
		Logger:     log,
	})

	gl := ledger.NewGRPCLedger(a.session)
	a.ledgers = ledger.NewGateway(c.LegacyLedgerID, gl, gl, ledger.WithLogger(log))

	a.session.Subscribe(a.onSessionEvent)
	return a, nil
}

func (a *App) connect(ctx context.Context, id identity.Identity) (session.Conn, error) {
	ag, err := agent.New(ctx, agent.Options{
		Host:         a.config.Host,
		Identity:     id,
		FetchRootKey: a.config.IsLocal(),
		RootKeyRetry: retry.Policy{Attempts: a.config.RootKeyAttempts, Delay: a.config.RootKeyRetryDelay},
		Insecure:     a.config.IsLocal(),
		RateLimit:    a.config.QueryRateLimit,
		Logger:       a.log,
	})
	if err != nil {
		return nil, err
	}
	return ag, nil
}

func (a *App) service(conn session.Conn) (client.Client, error) {
	c, err := client.NewGRPCClient(conn, a.config.LendingCanisterID, a.log)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) showAuthorizeURL(_ context.Context, url string) error {
	_, err := fmt.Fprintf(a.out, "Open this URL in your browser to log in:\n  %s\n", url)
	return err
}

func (a *App) readDelegation(context.Context) (string, error) {
	return GetSecret(a.reader, "Paste the delegation token shown by the identity provider", a.out)
}

// Run initializes the session, starts the balance watcher and blocks in the
// REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.session.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartBalanceWatcher(ctx, a.config.BalancePollInterval)

	printlnFn("Welcome to lendkeeper (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

// Close releases the connection and the database.
func (a *App) Close() {
	if err := a.session.Close(); err != nil {
		a.log.Warn(context.Background(), "close session", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn(context.Background(), "close database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.AuthState().IsAuthenticated()
}

func (a *App) getStatus() string {
	st := a.session.AuthState()
	if !st.IsAuthenticated() {
		return "(" + st.State.String() + ")"
	}
	name := st.Principal.Text()
	if st.UserInfo != nil && st.UserInfo.Username != "" {
		name = st.UserInfo.Username
	}
	return fmt.Sprintf("(%s)", name)
}

func (a *App) onSessionEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventLoginSucceeded, session.EventLoggedOut:
		a.mu.Lock()
		clear(a.lastBalances)
		a.mu.Unlock()
	}
}

// Package session owns the caller's identity and the connection and service
// client built for it.
//
// A Manager holds exactly one (identity, connection, client) slot. Login and
// logout build the replacement slot completely before swapping it in, so a
// reader never sees a half-built session. The Manager is an explicit value:
// construct one at startup and pass it to whatever needs it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/lendkeeper/internal/client/authprovider"
	"github.com/dmitrijs2005/lendkeeper/internal/client/client"
	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"github.com/dmitrijs2005/lendkeeper/internal/identity"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"google.golang.org/protobuf/proto"
)

var (
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoConnection       = errors.New("no connection")
)

// Conn is a connection bound to one identity. *agent.Agent implements it.
type Conn interface {
	Call(ctx context.Context, canisterID, method string, req, reply proto.Message) error
	Close() error
}

// ConnFactory connects as id.
type ConnFactory func(ctx context.Context, id identity.Identity) (Conn, error)

// ServiceFactory builds the lending-pool client over conn. The client owns
// conn from then on and closes it in Close.
type ServiceFactory func(conn Conn) (client.Client, error)

// Deps are the collaborators a Manager is built from.
type Deps struct {
	Provider   authprovider.Provider
	NewConn    ConnFactory
	NewService ServiceFactory
	Logger     logging.Logger
}

type Manager struct {
	deps Deps
	log  logging.Logger

	// op serializes Initialize, Login and Logout.
	op sync.Mutex

	mu    sync.RWMutex
	state State
	id    identity.Identity
	conn  Conn
	svc   client.Client
	user  *client.UserRecord

	subsMu sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

func New(deps Deps) *Manager {
	log := deps.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		deps:  deps,
		log:   log,
		state: StateUninitialized,
		id:    identity.Anonymous{},
		subs:  make(map[int]func(Event)),
	}
}

// Initialize restores a persisted login if there is one and otherwise
// connects anonymously. Failing to build the connection or client is fatal.
func (m *Manager) Initialize(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	if m.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}
	if m.deps.Provider == nil || m.deps.NewConn == nil || m.deps.NewService == nil {
		return fmt.Errorf("%w: session dependencies missing", common.ErrConfigInvalid)
	}

	id, restored, err := m.deps.Provider.Restore(ctx)
	if err != nil {
		m.log.Warn(ctx, "restore session failed, continuing anonymously", "error", err)
		restored = false
	}

	if !restored {
		conn, svc, err := m.build(ctx, identity.Anonymous{})
		if err != nil {
			return err
		}
		m.install(identity.Anonymous{}, conn, svc, nil, StateAnonymousReady)
		m.log.Info(ctx, "session ready", "state", StateAnonymousReady)
		return nil
	}

	conn, svc, err := m.build(ctx, id)
	if err != nil {
		return err
	}
	user, err := ensureRegistered(ctx, svc, id.Principal(), m.log)
	if err != nil {
		m.log.Warn(ctx, "registration check failed for restored session", "error", err)
	}
	m.install(id, conn, svc, user, StateAuthenticated)
	m.log.Info(ctx, "session restored", "principal", id.Principal().Text())
	m.emit(EventLoginSucceeded)
	return nil
}

// Login authenticates through the identity provider. When already
// authenticated it rebuilds the connection for the current identity and
// re-runs registration without a new handshake. On failure the previous
// session stays in place.
func (m *Manager) Login(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	prior := m.State()
	switch prior {
	case StateUninitialized:
		return common.ErrNotInitialized
	case StateAuthenticated:
		return m.reconnect(ctx)
	}

	m.setState(StateAuthenticating)

	id, err := m.deps.Provider.Login(ctx)
	if err != nil {
		m.setState(prior)
		m.log.Warn(ctx, "login failed", "error", err)
		return err
	}

	conn, svc, err := m.build(ctx, id)
	if err != nil {
		m.setState(prior)
		m.forget(ctx)
		return err
	}

	user, err := ensureRegistered(ctx, svc, id.Principal(), m.log)
	if err != nil {
		_ = svc.Close()
		m.setState(prior)
		m.forget(ctx)
		return err
	}

	m.install(id, conn, svc, user, StateAuthenticated)
	m.log.Info(ctx, "logged in", "principal", id.Principal().Text(), "registered", user != nil)
	m.emit(EventLoginSucceeded)
	return nil
}

func (m *Manager) reconnect(ctx context.Context) error {
	m.mu.RLock()
	id := m.id
	m.mu.RUnlock()

	conn, svc, err := m.build(ctx, id)
	if err != nil {
		return err
	}
	user, err := ensureRegistered(ctx, svc, id.Principal(), m.log)
	if err != nil {
		_ = svc.Close()
		return err
	}

	m.install(id, conn, svc, user, StateAuthenticated)
	m.emit(EventLoginSucceeded)
	return nil
}

// forget drops a provider session that never made it into the slot.
func (m *Manager) forget(ctx context.Context) {
	if err := m.deps.Provider.Logout(ctx); err != nil {
		m.log.Warn(ctx, "discard provider session failed", "error", err)
	}
}

// Logout returns to the anonymous baseline. Calling it while not
// authenticated does nothing.
func (m *Manager) Logout(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	if m.State() != StateAuthenticated {
		return nil
	}

	var errs []error
	if err := m.deps.Provider.Logout(ctx); err != nil {
		errs = append(errs, fmt.Errorf("provider logout: %w", err))
	}

	conn, svc, err := m.build(ctx, identity.Anonymous{})
	if err != nil {
		errs = append(errs, err)
		conn, svc = nil, nil
	}
	m.install(identity.Anonymous{}, conn, svc, nil, StateAnonymousReady)
	m.log.Info(ctx, "logged out")
	m.emit(EventLoggedOut)

	return errors.Join(errs...)
}

// RefreshUserInfo refetches the cached account record.
func (m *Manager) RefreshUserInfo(ctx context.Context) (*client.UserRecord, error) {
	m.mu.RLock()
	state, id, svc := m.state, m.id, m.svc
	m.mu.RUnlock()

	if state != StateAuthenticated || svc == nil {
		return nil, ErrNotAuthenticated
	}

	res, err := svc.GetUserInfo(ctx, id.Principal())
	if err != nil {
		return nil, err
	}
	rec, err := res.Unwrap()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.svc != svc {
		m.mu.Unlock()
		return &rec, nil
	}
	m.user = &rec
	m.mu.Unlock()

	m.emit(EventUserInfoUpdated)
	return &rec, nil
}

// UpdateBalance applies amount remotely and then refreshes the cached
// record. A rejected update leaves the cached record untouched.
func (m *Manager) UpdateBalance(ctx context.Context, amount float64) (float64, error) {
	m.mu.RLock()
	state, svc := m.state, m.svc
	m.mu.RUnlock()

	if state != StateAuthenticated || svc == nil {
		return 0, ErrNotAuthenticated
	}

	res, err := svc.UpdateBalance(ctx, amount)
	if err != nil {
		return 0, err
	}
	balance, err := res.Unwrap()
	if err != nil {
		return 0, err
	}

	if _, err := m.RefreshUserInfo(ctx); err != nil {
		m.log.Warn(ctx, "refresh user info after balance update failed", "error", err)
		m.dropUser(svc)
	}
	return balance, nil
}

// dropUser forgets a cached record the last update made stale, unless the
// slot has been replaced since.
func (m *Manager) dropUser(svc client.Client) {
	m.mu.Lock()
	if m.svc == svc {
		m.user = nil
	}
	m.mu.Unlock()
}

// Call sends a call over the current connection, so long-lived users such
// as the ledger gateway follow login and logout.
func (m *Manager) Call(ctx context.Context, canisterID, method string, req, reply proto.Message) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil {
		return ErrNoConnection
	}
	return conn.Call(ctx, canisterID, method, req, reply)
}

// Service returns the current lending-pool client, or nil before
// Initialize.
func (m *Manager) Service() client.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.svc
}

// Identity returns the current identity.
func (m *Manager) Identity() identity.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// AuthState returns a snapshot of the session.
func (m *Manager) AuthState() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot()
}

func (m *Manager) snapshot() AuthState {
	s := AuthState{State: m.state, Principal: m.id.Principal()}
	if m.user != nil {
		u := *m.user
		s.UserInfo = &u
	}
	return s
}

// Subscribe registers fn for session events and returns a function that
// removes it. fn runs on the goroutine that caused the event.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

// Close releases the current connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	svc := m.svc
	m.svc, m.conn = nil, nil
	m.mu.Unlock()

	if svc == nil {
		return nil
	}
	return svc.Close()
}

func (m *Manager) build(ctx context.Context, id identity.Identity) (Conn, client.Client, error) {
	conn, err := m.deps.NewConn(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("connect as %s: %w", id.Principal().Text(), err)
	}
	svc, err := m.deps.NewService(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("build service client: %w", err)
	}
	return conn, svc, nil
}

// install swaps in a fully built slot and closes the one it replaces.
func (m *Manager) install(id identity.Identity, conn Conn, svc client.Client, user *client.UserRecord, state State) {
	m.mu.Lock()
	old := m.svc
	m.id, m.conn, m.svc, m.user, m.state = id, conn, svc, user, state
	m.mu.Unlock()

	if old != nil && old != svc {
		if err := old.Close(); err != nil {
			m.log.Warn(context.Background(), "close replaced connection", "error", err)
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) emit(kind EventKind) {
	ev := Event{Kind: kind, State: m.AuthState()}

	m.subsMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

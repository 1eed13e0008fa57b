// Package session owns the client's authentication lifecycle: deciding at
// startup whether a persisted session is still good, and keeping the
// credential store consistent through login, refresh, and logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mravshan/libra/internal/client/api"
	"github.com/mravshan/libra/internal/client/credstore"
	"github.com/mravshan/libra/internal/errs"
	"github.com/mravshan/libra/internal/model"
)

// State is the session lifecycle state.
type State int

const (
	StateUnknown State = iota
	StateChecking
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// API is the backend surface the session manager needs.
type API interface {
	Login(ctx context.Context, username, password string) (api.LoginResult, error)
	Logout(ctx context.Context) error
	IsUserVerified(ctx context.Context) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// Manager drives the session state machine. Safe for concurrent use;
// concurrent Bootstrap calls share a single in-flight check.
type Manager struct {
	api   API
	store credstore.Store
	log   *zap.Logger

	group singleflight.Group

	mu     sync.RWMutex
	state  State
	onAuth []func(context.Context)
}

// NewManager constructs a Manager in StateUnknown.
func NewManager(backend API, store credstore.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{api: backend, store: store, log: log, state: StateUnknown}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnAuthenticated registers a hook fired whenever the session becomes
// authenticated (successful bootstrap or login). Hooks run synchronously.
func (m *Manager) OnAuthenticated(fn func(context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAuth = append(m.onAuth, fn)
}

// Bootstrap resolves the persisted session into Authenticated or Anonymous.
// The decision ladder:
//
//	no stored access token            -> Anonymous (refresh never attempted)
//	stored token verifies             -> Authenticated
//	verify fails, refresh succeeds    -> Authenticated with the new token
//	verify and refresh both rejected  -> Anonymous, both tokens purged
//
// Transport failures resolve to Anonymous without purging, so the session
// survives offline starts. Cached profile data is never purged here.
func (m *Manager) Bootstrap(ctx context.Context) (State, error) {
	v, err, _ := m.group.Do("bootstrap", func() (any, error) {
		return m.bootstrap(ctx)
	})
	st, _ := v.(State)
	return st, err
}

func (m *Manager) bootstrap(ctx context.Context) (State, error) {
	m.setState(StateChecking)

	access, err := m.store.Get(credstore.KeyAccessToken)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			m.setState(StateAnonymous)
			return StateAnonymous, err
		}
		access = ""
	}
	if access == "" {
		m.log.Debug("no stored session")
		m.setState(StateAnonymous)
		return StateAnonymous, nil
	}

	if err := m.api.IsUserVerified(ctx); err == nil {
		m.setState(StateAuthenticated)
		m.fireAuthenticated(ctx)
		return StateAuthenticated, nil
	} else if !rejectedByServer(err) {
		m.log.Warn("session check unreachable", zap.Error(err))
		m.setState(StateAnonymous)
		return StateAnonymous, err
	}

	refresh, err := m.store.Get(credstore.KeyRefreshToken)
	if err != nil || refresh == "" {
		m.purgeTokens()
		m.setState(StateAnonymous)
		return StateAnonymous, nil
	}

	newAccess, err := m.api.RefreshAccessToken(ctx, refresh)
	if err != nil {
		if rejectedByServer(err) {
			m.log.Info("stored session expired")
			m.purgeTokens()
		} else {
			m.log.Warn("token refresh unreachable", zap.Error(err))
		}
		m.setState(StateAnonymous)
		return StateAnonymous, nil
	}

	if err := m.store.Set(credstore.KeyAccessToken, newAccess); err != nil {
		m.setState(StateAnonymous)
		return StateAnonymous, err
	}
	m.setState(StateAuthenticated)
	m.fireAuthenticated(ctx)
	return StateAuthenticated, nil
}

// Login authenticates, persists the token pair and profile, and moves the
// session to Authenticated.
func (m *Manager) Login(ctx context.Context, username, password string) (model.Profile, error) {
	res, err := m.api.Login(ctx, username, password)
	if err != nil {
		return model.Profile{}, err
	}
	if err := m.store.Set(credstore.KeyAccessToken, res.AccessToken); err != nil {
		return model.Profile{}, err
	}
	if err := m.store.Set(credstore.KeyRefreshToken, res.RefreshToken); err != nil {
		return model.Profile{}, err
	}
	if b, err := json.Marshal(res.User); err == nil {
		_ = m.store.Set(credstore.KeyUser, string(b))
	}
	m.setState(StateAuthenticated)
	m.fireAuthenticated(ctx)
	return res.User, nil
}

// Logout revokes the session server-side best-effort and always clears the
// local tokens and cached profile. The push token stays cached so a later
// login can republish it without asking the device again.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		m.log.Warn("server logout failed, clearing local session anyway", zap.Error(err))
	}
	m.purgeTokens()
	_ = m.store.Delete(credstore.KeyUser)
	m.setState(StateAnonymous)
	return nil
}

// Profile returns the locally cached profile, if any.
func (m *Manager) Profile() (model.Profile, error) {
	raw, err := m.store.Get(credstore.KeyUser)
	if err != nil {
		return model.Profile{}, err
	}
	var p model.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) purgeTokens() {
	_ = m.store.Delete(credstore.KeyAccessToken)
	_ = m.store.Delete(credstore.KeyRefreshToken)
}

func (m *Manager) fireAuthenticated(ctx context.Context) {
	m.mu.RLock()
	hooks := make([]func(context.Context), len(m.onAuth))
	copy(hooks, m.onAuth)
	m.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

// rejectedByServer distinguishes a definite server-side rejection from a
// transport failure. Only rejections may invalidate stored credentials.
func rejectedByServer(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr)
}

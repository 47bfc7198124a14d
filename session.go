package sdk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/planpilot/planpilot-go/credstore"
	"github.com/planpilot/planpilot-go/token"
)

// defaultSweepInterval is how often the manager checks the stored token for
// expiry.
const defaultSweepInterval = 5 * time.Minute

// Session is a snapshot of the reactive session state.
type Session struct {
	User        *User
	AccessToken string
}

// IsAuthenticated reports whether both an access token and a profile are
// present. A token alone means "has credentials, not yet authenticated".
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.User != nil
}

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	// Credentials is the durable store the session mirrors. Required.
	Credentials *credstore.Credentials
	// SweepInterval between background expiry checks. Defaults to 5 minutes.
	SweepInterval time.Duration
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// OnChange fires after every state transition with the new snapshot.
	OnChange func(Session)
	// OnExpired fires when the sweep (or hydration) detects an expired token
	// and forces a logout. The embedding app routes to its login entry here.
	OnExpired func()
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SessionManager mirrors the credential store into reactive in-memory state:
// it hydrates at startup, exposes mutators for login/logout flows, and sweeps
// for token expiry in the background. Construct one per application and
// dispose of it with Close.
type SessionManager struct {
	creds     *credstore.Credentials
	interval  time.Duration
	log       zerolog.Logger
	onChange  func(Session)
	onExpired func()
	now       func() time.Time

	mu      sync.RWMutex
	user    *User
	token   string
	loading bool

	done      chan struct{}
	hydrate   sync.Once
	closeOnce sync.Once
}

// NewSessionManager creates an unhydrated manager. Call Hydrate before
// reading state; until then IsLoading reports true.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Credentials == nil {
		return nil, ConfigError{Reason: "credential store required"}
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		creds:     cfg.Credentials,
		interval:  interval,
		log:       log,
		onChange:  cfg.OnChange,
		onExpired: cfg.OnExpired,
		now:       now,
		loading:   true,
		done:      make(chan struct{}),
	}, nil
}

// Hydrate loads the stored credential record into memory, runs one expiry
// check, and starts the background sweep. It settles the manager into the
// ready state exactly once regardless of what it finds; corrupt state is
// wiped rather than propagated.
func (m *SessionManager) Hydrate() {
	m.hydrate.Do(func() {
		m.checkExpiry()

		user := m.creds.User()
		tok := m.creds.AccessToken()

		m.mu.Lock()
		if user != nil && tok != "" {
			m.user = user
			m.token = tok
		}
		m.loading = false
		m.mu.Unlock()

		m.notify()
		go m.sweep()
	})
}

func (m *SessionManager) sweep() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.checkExpiry()
		}
	}
}

// checkExpiry decodes the stored token and forces a logout when it has
// expired. Undecodable tokens count as expired.
func (m *SessionManager) checkExpiry() {
	tok := m.creds.AccessToken()
	if tok == "" {
		return
	}
	if !token.IsExpired(tok, m.now()) {
		return
	}
	m.log.Info().Msg("access token expired, clearing session")
	m.clear()
	if m.onExpired != nil {
		m.onExpired()
	}
}

// Snapshot returns the current session state.
func (m *SessionManager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Session{User: m.user, AccessToken: m.token}
}

// User returns the current user, or nil.
func (m *SessionManager) User() *User { return m.Snapshot().User }

// AccessToken returns the current access token, or "".
func (m *SessionManager) AccessToken() string { return m.Snapshot().AccessToken }

// IsAuthenticated reports whether the credential store holds both an access
// token and a profile. The store, not the in-memory mirror, is the source of
// truth here so a profile persisted by another component counts immediately.
func (m *SessionManager) IsAuthenticated() bool { return m.creds.IsAuthenticated() }

// IsLoading reports true only before the first hydration completes.
func (m *SessionManager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// SetUser updates the in-memory user and, when non-nil, persists it. Passing
// nil only clears memory; the logout path is responsible for storage.
func (m *SessionManager) SetUser(user *User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	if user != nil {
		m.creds.SetUser(user)
	}
	m.notify()
}

// SetAccessToken updates the in-memory token and, when non-empty, persists it.
func (m *SessionManager) SetAccessToken(tok string) {
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()
	if tok != "" {
		m.creds.SetAccessToken(tok)
	}
	m.notify()
}

// SetUserAndToken updates both; used by login and OAuth-callback completion.
func (m *SessionManager) SetUserAndToken(user *User, tok string) {
	m.mu.Lock()
	m.user = user
	m.token = tok
	m.mu.Unlock()
	if user != nil {
		m.creds.SetUser(user)
	}
	if tok != "" {
		m.creds.SetAccessToken(tok)
	}
	m.notify()
}

// Logout clears the in-memory state and wipes the credential store.
func (m *SessionManager) Logout() {
	m.log.Info().Msg("logging out")
	m.clear()
}

func (m *SessionManager) clear() {
	m.mu.Lock()
	m.user = nil
	m.token = ""
	m.mu.Unlock()
	m.creds.ClearAll()
	m.notify()
}

func (m *SessionManager) notify() {
	if m.onChange == nil {
		return
	}
	m.onChange(m.Snapshot())
}

// Close stops the background sweep. Safe to call more than once.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

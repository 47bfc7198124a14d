package sdk

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/planpilot/planpilot-go/testutil"
)

// fakeClock is a mutable clock for sweep tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestHydrateEmptyStore(t *testing.T) {
	creds := newTestCreds()
	m, err := NewSessionManager(SessionManagerConfig{Credentials: creds})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	defer m.Close()

	if !m.IsLoading() {
		t.Fatal("expected loading before hydration")
	}
	m.Hydrate()
	if m.IsLoading() {
		t.Fatal("expected loading to settle after hydration")
	}
	if m.IsAuthenticated() || m.User() != nil || m.AccessToken() != "" {
		t.Fatal("expected empty session")
	}
}

func TestHydrateRestoresStoredSession(t *testing.T) {
	creds := newTestCreds()
	tok := testutil.MakeExpiringToken("u1", "a@b.com", time.Now().Add(time.Hour))
	creds.SetAccessToken(tok)
	creds.SetUser(&User{ID: "u1", Email: "a@b.com", Name: "a"})

	m, err := NewSessionManager(SessionManagerConfig{Credentials: creds})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	defer m.Close()
	m.Hydrate()

	if !m.IsAuthenticated() {
		t.Fatal("expected restored session to authenticate")
	}
	if u := m.User(); u == nil || u.ID != "u1" {
		t.Fatalf("unexpected user %+v", u)
	}
	if m.AccessToken() != tok {
		t.Fatal("expected restored token")
	}
}

func TestHydrateClearsExpiredToken(t *testing.T) {
	creds := newTestCreds()
	creds.SetAccessToken(testutil.MakeExpiringToken("u1", "a@b.com", time.Now().Add(-time.Minute)))
	creds.SetUser(&User{ID: "u1", Email: "a@b.com"})

	var expired atomic.Bool
	m, err := NewSessionManager(SessionManagerConfig{
		Credentials: creds,
		OnExpired:   func() { expired.Store(true) },
	})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	defer m.Close()
	m.Hydrate()

	if !expired.Load() {
		t.Fatal("expected expiry callback during hydration")
	}
	if m.IsAuthenticated() || creds.AccessToken() != "" {
		t.Fatal("expected store wiped for expired token")
	}
	if m.IsLoading() {
		t.Fatal("hydration must settle even after an expiry wipe")
	}
}

func TestHydrateWithUndecodableToken(t *testing.T) {
	creds := newTestCreds()
	creds.SetAccessToken("garbage")
	m, err := NewSessionManager(SessionManagerConfig{Credentials: creds})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	defer m.Close()
	m.Hydrate()

	// Fail closed: an undecodable token counts as expired and is wiped.
	if creds.AccessToken() != "" {
		t.Fatal("expected undecodable token wiped")
	}
}

func TestSweepForcesLogout(t *testing.T) {
	creds := newTestCreds()
	clock := &fakeClock{now: time.Now()}
	tok := testutil.MakeExpiringToken("u1", "a@b.com", clock.Now().Add(30*time.Minute))
	creds.SetAccessToken(tok)
	creds.SetUser(&User{ID: "u1", Email: "a@b.com"})

	expired := make(chan struct{}, 1)
	m, err := NewSessionManager(SessionManagerConfig{
		Credentials:   creds,
		SweepInterval: 5 * time.Millisecond,
		Now:           clock.Now,
		OnExpired:     func() { expired <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	defer m.Close()
	m.Hydrate()

	if !m.IsAuthenticated() {
		t.Fatal("expected live session after hydration")
	}

	clock.Advance(time.Hour)
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("sweep did not detect expiry")
	}
	if m.IsAuthenticated() || creds.AccessToken() != "" || creds.User() != nil {
		t.Fatal("expected sweep to behave like logout")
	}
}

func TestMutatorsPersistNonNilOnly(t *testing.T) {
	creds := newTestCreds()
	m, err := NewSessionManager(SessionManagerConfig{Credentials: creds})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	defer m.Close()
	m.Hydrate()

	m.SetAccessToken("A")
	if m.IsAuthenticated() {
		t.Fatal("token alone must not authenticate")
	}
	m.SetUser(&User{ID: "1", Email: "a@b.com"})
	if !m.IsAuthenticated() {
		t.Fatal("expected authenticated after profile set")
	}

	// Nil/empty updates clear memory but never storage; logout owns that.
	m.SetUser(nil)
	m.SetAccessToken("")
	if creds.User() == nil || creds.AccessToken() != "A" {
		t.Fatal("nil mutators must not touch storage")
	}

	m.Logout()
	if creds.User() != nil || creds.AccessToken() != "" {
		t.Fatal("expected logout to wipe storage")
	}
}

func TestOnChangeNotifications(t *testing.T) {
	creds := newTestCreds()
	var changes atomic.Int32
	m, err := NewSessionManager(SessionManagerConfig{
		Credentials: creds,
		OnChange:    func(Session) { changes.Add(1) },
	})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	defer m.Close()

	m.Hydrate()
	m.SetUserAndToken(&User{ID: "1", Email: "a@b.com"}, "tok")
	m.Logout()
	if got := changes.Load(); got != 3 {
		t.Fatalf("expected 3 notifications (hydrate, set, logout), got %d", got)
	}
}

func TestCloseStopsSweep(t *testing.T) {
	creds := newTestCreds()
	m, err := NewSessionManager(SessionManagerConfig{
		Credentials:   creds,
		SweepInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	m.Hydrate()
	m.Close()
	m.Close() // idempotent
}

package credstore

import (
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"
)

func newTestCredentials(t *testing.T, opts ...Option) *Credentials {
	t.Helper()
	return New(NewMemMedium(), NewCookieStore(NewMemMedium()), opts...)
}

func TestAccessTokenLastWriteWins(t *testing.T) {
	creds := newTestCredentials(t)
	creds.SetAccessToken("first")
	creds.SetAccessToken("second")
	if got := creds.AccessToken(); got != "second" {
		t.Fatalf("expected last write, got %q", got)
	}
}

func TestUserRoundTrip(t *testing.T) {
	creds := newTestCredentials(t)
	creds.SetUser(&User{ID: "u1", Email: "a@b.com", Name: "a"})
	u := creds.User()
	if u == nil || u.ID != "u1" || u.Email != "a@b.com" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestCorruptUserSelfHeals(t *testing.T) {
	kv := NewMemMedium()
	creds := New(kv, NewCookieStore(NewMemMedium()))
	if err := kv.Set(KeyUser, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if u := creds.User(); u != nil {
		t.Fatalf("expected nil for corrupt profile, got %+v", u)
	}
	// The corrupted record is purged; a second read stays nil and quiet.
	if _, ok, _ := kv.Get(KeyUser); ok {
		t.Fatal("expected corrupt record to be purged")
	}
	if u := creds.User(); u != nil {
		t.Fatalf("expected nil on repeat read, got %+v", u)
	}
}

func TestIsAuthenticatedNeedsTokenAndProfile(t *testing.T) {
	creds := newTestCredentials(t)
	creds.SetAccessToken("A")
	if creds.IsAuthenticated() {
		t.Fatal("token alone must not authenticate")
	}
	if !creds.HasCredentials() {
		t.Fatal("token alone should count as having credentials")
	}
	creds.SetUser(&User{ID: "1", Email: "a@b.com", Name: "a"})
	if !creds.IsAuthenticated() {
		t.Fatal("token plus profile should authenticate")
	}
}

func TestClearAll(t *testing.T) {
	creds := newTestCredentials(t)
	creds.SetAccessToken("tok")
	creds.SetUser(&User{ID: "u1", Email: "a@b.com"})
	creds.SetSessionID("sess-1")
	creds.SetRememberMe(true)

	creds.ClearAll()
	creds.ClearAll() // idempotent

	if creds.AccessToken() != "" || creds.User() != nil || creds.SessionID() != "" {
		t.Fatal("expected empty record after ClearAll")
	}
	if creds.RememberMe() {
		t.Fatal("expected rememberMe cleared")
	}
}

func TestFileMediumPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	first := NewFileMedium(path)
	if err := first.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	second := NewFileMedium(path)
	v, ok, err := second.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestFailingMediumNeverPropagates(t *testing.T) {
	creds := New(failingMedium{}, NewCookieStore(NewMemMedium()))
	creds.SetAccessToken("tok") // must not panic
	if got := creds.AccessToken(); got != "" {
		t.Fatalf("expected empty on medium failure, got %q", got)
	}
	if u := creds.User(); u != nil {
		t.Fatalf("expected nil user on medium failure, got %+v", u)
	}
	creds.ClearAll() // must not panic
}

type failingMedium struct{}

func (failingMedium) Get(key string) (string, bool, error) {
	return "", false, &StorageError{Op: "read", Key: key, Err: errBroken}
}
func (failingMedium) Set(key, _ string) error {
	return &StorageError{Op: "write", Key: key, Err: errBroken}
}
func (failingMedium) Delete(key string) error {
	return &StorageError{Op: "remove", Key: key, Err: errBroken}
}

var errBroken = &StorageError{Op: "io", Key: "disk", Err: nil}

func TestCookieStoreSecureScoping(t *testing.T) {
	store := NewCookieStore(NewMemMedium())
	if err := store.Set("sessionId", "s1", CookieOptions{Days: 1, Secure: true}); err != nil {
		t.Fatalf("set: %v", err)
	}

	httpsURL, _ := url.Parse("https://api.example.com")
	httpURL, _ := url.Parse("http://localhost:3000")

	if got := store.Cookies(httpsURL); len(got) != 1 {
		t.Fatalf("expected secure cookie over https, got %d", len(got))
	}
	if got := store.Cookies(httpURL); len(got) != 0 {
		t.Fatalf("secure cookie must not travel over http, got %d", len(got))
	}
}

func TestCookieStoreExpiry(t *testing.T) {
	store := NewCookieStore(NewMemMedium())
	base := time.Now()
	store.now = func() time.Time { return base }
	if err := store.Set("sessionId", "s1", CookieOptions{Days: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := store.Get("sessionId"); !ok {
		t.Fatal("expected cookie readable before expiry")
	}
	store.now = func() time.Time { return base.Add(25 * time.Hour) }
	if _, ok, _ := store.Get("sessionId"); ok {
		t.Fatal("expected cookie absent after expiry window")
	}
}

func TestCookieJarHidesHTTPOnlyValues(t *testing.T) {
	store := NewCookieStore(NewMemMedium())
	u, _ := url.Parse("http://localhost:3000/api")
	store.SetCookies(u, []*http.Cookie{{
		Name:     "refreshToken",
		Value:    "secret",
		HttpOnly: true,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	}})

	// Client logic cannot read the secret.
	if _, ok, _ := store.Get("refreshToken"); ok {
		t.Fatal("http-only cookie must not be client-readable")
	}
	// The jar still sends it with requests.
	cookies := store.Cookies(u)
	if len(cookies) != 1 || cookies[0].Value != "secret" {
		t.Fatalf("expected jar to carry the cookie, got %+v", cookies)
	}
}

func TestCookieJarServerDeletion(t *testing.T) {
	store := NewCookieStore(NewMemMedium())
	u, _ := url.Parse("http://localhost:3000/api")
	store.SetCookies(u, []*http.Cookie{{Name: "sessionId", Value: "s1", Expires: time.Now().Add(time.Hour)}})
	store.SetCookies(u, []*http.Cookie{{Name: "sessionId", Value: "", MaxAge: -1}})
	if got := store.Cookies(u); len(got) != 0 {
		t.Fatalf("expected cookie removed by server deletion, got %+v", got)
	}
}

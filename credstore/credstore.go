// Package credstore persists the client's credential record — access token,
// refresh token, session id, cached user profile, remember-me flag — across
// two media: a client-readable key/value store and a cookie-equivalent store
// for long-lived secrets.
//
// Storage failures are never fatal to callers. Persistence here is a
// convenience cache, not a source of truth the caller can block on; every
// accessor swallows medium errors, logs them, and substitutes the zero value.
package credstore

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Storage keys for the client-readable medium.
const (
	KeyAccessToken = "accessToken"
	KeyUser        = "user"
	KeyRememberMe  = "rememberMe"
)

// Cookie names for the cookie-equivalent medium.
const (
	CookieRefreshToken = "refreshToken"
	CookieSessionID    = "sessionId"
)

// Expiry windows for cookie-borne credentials.
const (
	RefreshTokenTTLDays = 30
	SessionIDTTLDays    = 1
)

// User is the cached identity snapshot stored alongside the tokens.
// ID and email are always present on a stored profile.
type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role,omitempty"`
	IsVerified bool       `json:"isVerified,omitempty"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// Credentials is the durable credential record. One record exists per client
// profile; it lives until explicit logout, expiry-triggered clear, or a
// corruption-triggered purge.
type Credentials struct {
	kv      Medium
	cookies *CookieStore
	log     zerolog.Logger
	secure  bool
}

// Option configures a Credentials store.
type Option func(*Credentials)

// WithLogger sets the logger for swallowed storage failures.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Credentials) { c.log = log }
}

// WithSecureTransport marks the API origin as encrypted, which turns on the
// Secure flag for cookie-borne secrets.
func WithSecureTransport(secure bool) Option {
	return func(c *Credentials) { c.secure = secure }
}

// New creates a credential store over the given client-readable medium and
// cookie store.
func New(kv Medium, cookies *CookieStore, opts ...Option) *Credentials {
	c := &Credentials{kv: kv, cookies: cookies, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFileBacked creates a credential store persisted under dir, with the
// key/value record and cookie records in separate files.
func NewFileBacked(dir string, opts ...Option) *Credentials {
	kv := NewFileMedium(dir + "/credentials.json")
	cookies := NewCookieStore(NewFileMedium(dir + "/cookies.json"))
	return New(kv, cookies, opts...)
}

// CookieJar exposes the cookie medium as an http.CookieJar for the request
// pipeline. Client code routes credentialed requests through this jar instead
// of reading the refresh secret.
func (c *Credentials) CookieJar() http.CookieJar { return c.cookies }

func (c *Credentials) get(key string) string {
	v, ok, err := c.kv.Get(key)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("credential read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (c *Credentials) set(key, value string) {
	if err := c.kv.Set(key, value); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("credential write failed")
	}
}

func (c *Credentials) remove(key string) {
	if err := c.kv.Delete(key); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("credential remove failed")
	}
}

// AccessToken returns the stored access token, or "" when absent.
func (c *Credentials) AccessToken() string { return c.get(KeyAccessToken) }

// SetAccessToken overwrites the stored access token.
func (c *Credentials) SetAccessToken(tok string) { c.set(KeyAccessToken, tok) }

// RemoveAccessToken deletes the stored access token.
func (c *Credentials) RemoveAccessToken() { c.remove(KeyAccessToken) }

// User returns the cached profile, or nil when absent. A profile that fails
// to parse is purged before returning nil, so the read self-heals.
func (c *Credentials) User() *User {
	raw := c.get(KeyUser)
	if raw == "" {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		c.log.Error().Err(err).Msg("cached profile corrupt, purging")
		c.remove(KeyUser)
		return nil
	}
	return &u
}

// SetUser caches the profile. Nil profiles are ignored; clearing goes through
// RemoveUser or ClearAll.
func (c *Credentials) SetUser(u *User) {
	if u == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		c.log.Error().Err(err).Msg("profile encode failed")
		return
	}
	c.set(KeyUser, string(data))
}

// RemoveUser deletes the cached profile.
func (c *Credentials) RemoveUser() { c.remove(KeyUser) }

// SessionID returns the session correlator, or "" when absent.
func (c *Credentials) SessionID() string {
	v, ok, err := c.cookies.Get(CookieSessionID)
	if err != nil {
		c.log.Error().Err(err).Msg("session id read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// SetSessionID stores the session correlator in the cookie medium with a
// one-day window.
func (c *Credentials) SetSessionID(id string) {
	err := c.cookies.Set(CookieSessionID, id, CookieOptions{
		Days:     SessionIDTTLDays,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("session id write failed")
	}
}

// SetRefreshToken stores the refresh secret in the cookie medium. Normally
// the server sets this via a response cookie and client code never touches
// it; this fallback exists for lower-security configurations.
func (c *Credentials) SetRefreshToken(tok string) {
	c.log.Warn().Msg("storing refresh token from client side; prefer server-set cookies")
	err := c.cookies.Set(CookieRefreshToken, tok, CookieOptions{
		Days:     RefreshTokenTTLDays,
		Secure:   c.secure,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("refresh token write failed")
	}
}

// RememberMe reports the stored auto-login preference.
func (c *Credentials) RememberMe() bool { return c.get(KeyRememberMe) == "true" }

// SetRememberMe stores the auto-login preference.
func (c *Credentials) SetRememberMe(remember bool) {
	if remember {
		c.set(KeyRememberMe, "true")
	} else {
		c.set(KeyRememberMe, "false")
	}
}

// HasCredentials reports whether an access token is stored. This alone does
// not make the session authenticated; a cached profile is also required.
func (c *Credentials) HasCredentials() bool { return c.AccessToken() != "" }

// IsAuthenticated reports whether both an access token and a cached profile
// are present.
func (c *Credentials) IsAuthenticated() bool {
	return c.AccessToken() != "" && c.User() != nil
}

// ClearAll removes every known key across both media. Safe to call
// repeatedly and from any state.
func (c *Credentials) ClearAll() {
	for _, key := range []string{KeyAccessToken, KeyUser, KeyRememberMe} {
		c.remove(key)
	}
	if err := c.cookies.Delete(CookieRefreshToken); err != nil {
		c.log.Error().Err(err).Msg("refresh token remove failed")
	}
	if err := c.cookies.Delete(CookieSessionID); err != nil {
		c.log.Error().Err(err).Msg("session id remove failed")
	}
}

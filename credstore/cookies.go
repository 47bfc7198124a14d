package credstore

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// cookiesKey is the medium key holding the serialized cookie records.
const cookiesKey = "__cookies__"

// CookieOptions controls how a cookie record is written.
type CookieOptions struct {
	// Days until the cookie expires. Defaults to 7.
	Days int
	// Secure restricts the cookie to encrypted transports.
	Secure bool
	// HTTPOnly hides the value from Get; the cookie still travels with
	// requests through the jar.
	HTTPOnly bool
	// SameSite defaults to Lax.
	SameSite http.SameSite
}

type cookieRecord struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"httpOnly"`
	SameSite int       `json:"sameSite"`
}

func (r cookieRecord) expired(now time.Time) bool {
	return !r.Expires.IsZero() && !r.Expires.After(now)
}

// CookieStore is the cookie-equivalent credential medium. It doubles as the
// HTTP client's cookie jar, so secrets the server sets via Set-Cookie (the
// refresh token in particular) accompany credentialed requests without client
// logic ever reading their values.
type CookieStore struct {
	mu     sync.Mutex
	medium Medium
	now    func() time.Time
}

// NewCookieStore creates a cookie store persisted through the given medium.
func NewCookieStore(medium Medium) *CookieStore {
	return &CookieStore{medium: medium, now: time.Now}
}

func (s *CookieStore) load() map[string]cookieRecord {
	records := map[string]cookieRecord{}
	raw, ok, err := s.medium.Get(cookiesKey)
	if err != nil || !ok {
		return records
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		// Corrupt cookie state is unrecoverable; purge it.
		_ = s.medium.Delete(cookiesKey)
		return map[string]cookieRecord{}
	}
	return records
}

func (s *CookieStore) store(records map[string]cookieRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return &StorageError{Op: "encode", Key: cookiesKey, Err: err}
	}
	return s.medium.Set(cookiesKey, string(data))
}

// Set writes a named cookie with the given options.
func (s *CookieStore) Set(name, value string, opts CookieOptions) error {
	days := opts.Days
	if days <= 0 {
		days = 7
	}
	sameSite := opts.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load()
	records[name] = cookieRecord{
		Name:     name,
		Value:    value,
		Expires:  s.now().Add(time.Duration(days) * 24 * time.Hour),
		Secure:   opts.Secure,
		HTTPOnly: opts.HTTPOnly,
		SameSite: int(sameSite),
	}
	return s.store(records)
}

// Get returns a client-readable cookie value. HTTP-only records and expired
// records read as absent.
func (s *CookieStore) Get(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.load()[name]
	if !ok || rec.HTTPOnly || rec.expired(s.now()) {
		return "", false, nil
	}
	return rec.Value, true, nil
}

// Delete removes a named cookie. Idempotent.
func (s *CookieStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load()
	if _, ok := records[name]; !ok {
		return nil
	}
	delete(records, name)
	return s.store(records)
}

// Clear removes every cookie record.
func (s *CookieStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.medium.Delete(cookiesKey)
}

// SetCookies implements http.CookieJar. Cookies the server expires are
// dropped; everything else is stored by name, last-write-wins.
func (s *CookieStore) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load()
	now := s.now()
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!expires.IsZero() && !expires.After(now)) {
			delete(records, c.Name)
			continue
		}
		records[c.Name] = cookieRecord{
			Name:     c.Name,
			Value:    c.Value,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: int(c.SameSite),
		}
	}
	_ = s.store(records)
}

// Cookies implements http.CookieJar. Secure records stay home on unencrypted
// transports.
func (s *CookieStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []*http.Cookie
	for _, rec := range s.load() {
		if rec.expired(now) {
			continue
		}
		if rec.Secure && u != nil && u.Scheme != "https" {
			continue
		}
		out = append(out, &http.Cookie{Name: rec.Name, Value: rec.Value})
	}
	return out
}

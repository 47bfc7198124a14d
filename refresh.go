package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/planpilot/planpilot-go/routes"
)

// refreshCall is one in-flight refresh operation shared by every waiter.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// refresher coordinates token refresh with single-flight semantics: however
// many requests fail with 401 concurrently, at most one refresh call is in
// flight, and all waiters share its outcome.
type refresher struct {
	mu     sync.Mutex
	call   *refreshCall
	client *Client
}

// refresh returns a fresh access token, joining an in-flight refresh when one
// exists. The refresh itself runs detached from any single caller's context:
// a canceled caller abandons only its own wait, while live waiters still get
// the outcome. The new token is written to the credential store before the
// call completes, so concurrent requests reading the store observe it
// immediately.
func (r *refresher) refresh(ctx context.Context) (string, error) {
	r.mu.Lock()
	call := r.call
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		r.call = call
		detached := context.WithoutCancel(ctx)
		go func() {
			call.token, call.err = r.do(detached)
			close(call.done)
			r.mu.Lock()
			r.call = nil
			r.mu.Unlock()
		}()
	}
	r.mu.Unlock()

	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// do issues the dedicated refresh request. The body is empty; the refresh
// secret travels via the cookie jar. No Authorization header is attached —
// the expired token is exactly what we are replacing.
func (r *refresher) do(ctx context.Context) (string, error) {
	c := r.client
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.authBaseURL+routes.AuthRefreshToken, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{
			Kind:    classifyTransportErrorKind(err),
			Message: "refresh request failed",
			Cause:   err,
		}
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return "", decodeAPIError(resp)
	}
	var payload struct {
		Success     bool   `json:"success"`
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("planpilot: decode refresh response: %w", err)
	}
	if !payload.Success || payload.AccessToken == "" {
		return "", errRefreshFailed
	}
	// Persist before returning control so any concurrent request that reads
	// the store after this point gets the new token.
	c.creds.SetAccessToken(payload.AccessToken)
	c.log.Debug().Int64("expires_in", payload.ExpiresIn).Msg("access token refreshed")
	return payload.AccessToken, nil
}

// Package sdk provides the PlanPilot Go client: an authenticated HTTP
// pipeline with automatic retry and token refresh, durable credential
// storage, and a session manager that mirrors the stored credentials into
// reactive state.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/planpilot/planpilot-go/credstore"
	"github.com/planpilot/planpilot-go/headers"
)

const (
	defaultBaseURL   = "http://localhost:3000/api"
	defaultUserAgent = "planpilot-sdk/" + Version
	defaultTimeout   = 30 * time.Second

	envBaseURL = "PLANPILOT_API_URL"
	envAuthURL = "PLANPILOT_AUTH_URL"
)

// Config wires credentials, base URLs, and telemetry for the API client.
type Config struct {
	// BaseURL is the API origin. Falls back to PLANPILOT_API_URL, then the
	// local development default.
	BaseURL string
	// AuthBaseURL is the auth subservice origin. Falls back to
	// PLANPILOT_AUTH_URL, then BaseURL.
	AuthBaseURL string
	// Credentials is the durable credential store. Required.
	Credentials *credstore.Credentials
	// HTTPClient is optional; when set, its cookie jar is replaced with the
	// credential store's jar unless one is already configured.
	HTTPClient *http.Client
	// Retry controls transport-failure backoff. Zero value means defaults.
	Retry RetryConfig
	// Timeout bounds each HTTP attempt. Defaults to 30 seconds.
	Timeout time.Duration
	// Telemetry hooks fire around every attempt.
	Telemetry TelemetryHooks
	// Logger receives pipeline events. Defaults to a no-op logger.
	Logger *zerolog.Logger
	// UserAgent overrides the default SDK user agent.
	UserAgent string
	// OnSessionExpired fires after the pipeline wipes credentials because a
	// refresh chain failed. The embedding app routes to its login entry here.
	OnSessionExpired func()
}

// Client provides high-level helpers for interacting with the PlanPilot API.
type Client struct {
	baseURL     string
	authBaseURL string
	httpClient  *http.Client
	creds       *credstore.Credentials
	retry       RetryConfig
	timeout     time.Duration
	telemetry   TelemetryHooks
	log         zerolog.Logger
	userAgent   string
	refresher   *refresher
	onExpired   func()

	// Grouped service clients.
	Auth  *AuthClient
	Plans *PlansClient
}

// NewClient validates the configuration and returns a ready-to-use Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Credentials == nil {
		return nil, ConfigError{Reason: "credential store required"}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv(envBaseURL)
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	authBaseURL := cfg.AuthBaseURL
	if authBaseURL == "" {
		authBaseURL = os.Getenv(envAuthURL)
	}
	if authBaseURL == "" {
		authBaseURL = normalized
	} else {
		authBaseURL, err = normalizeBaseURL(authBaseURL)
		if err != nil {
			return nil, err
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		httpClient.Jar = cfg.Credentials.CookieJar()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	client := &Client{
		baseURL:     normalized,
		authBaseURL: authBaseURL,
		httpClient:  httpClient,
		creds:       cfg.Credentials,
		retry:       cfg.Retry.normalized(),
		timeout:     timeout,
		telemetry:   cfg.Telemetry,
		log:         log,
		userAgent:   ua,
		onExpired:   cfg.OnSessionExpired,
	}
	client.refresher = &refresher{client: client}
	client.Auth = &AuthClient{client: client}
	client.Plans = &PlansClient{client: client}
	return client, nil
}

// Credentials returns the client's credential store.
func (c *Client) Credentials() *credstore.Credentials { return c.creds }

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ConfigError{Reason: "base URL required"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", ConfigError{Reason: fmt.Sprintf("invalid base URL: %v", err)}
	}
	if u.Scheme == "" {
		return "", ConfigError{Reason: "base URL missing scheme (http/https)"}
	}
	if u.Host == "" {
		return "", ConfigError{Reason: "base URL missing host"}
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

// noRefreshKey marks requests that must not enter the refresh-on-401 path,
// such as the login call itself.
type noRefreshKey struct{}

func withoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRefreshKey{}, true)
}

func refreshDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRefreshKey{}).(bool)
	return v
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set(headers.RequestID, uuid.NewString())
	injectTraceparent(ctx, req)
	return req, nil
}

// prepare attaches per-attempt headers. The credential store is re-read on
// every attempt so a token refreshed by a concurrent request is picked up
// without going through the 401 path.
func (c *Client) prepare(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if tok := c.creds.AccessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if sid := c.creds.SessionID(); sid != "" {
		req.Header.Set(headers.SessionID, sid)
	}
}

// send runs the full pipeline for one logical request: per-attempt timeout,
// exponential backoff on transport failure, and a single coordinated
// refresh-then-resend on 401. The returned response body is fully buffered.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	retries := 0
	refreshed := false
	for {
		resp, err := c.attempt(req)
		if err != nil {
			kind := classifyTransportErrorKind(err)
			if kind == TransportErrorCanceled || ctx.Err() != nil {
				return nil, &TransportError{Kind: TransportErrorCanceled, Message: "request canceled", Cause: err}
			}
			if retries < c.retry.MaxRetries {
				retries++
				delay := c.retry.backoffDelay(retries)
				c.log.Debug().
					Int("retry", retries).
					Dur("backoff", delay).
					Str("kind", string(kind)).
					Msg("transport failure, backing off")
				if werr := sleepCtx(ctx, delay); werr != nil {
					return nil, &TransportError{Kind: TransportErrorCanceled, Message: "request canceled during backoff", Cause: werr}
				}
				continue
			}
			return nil, &TransportError{Kind: kind, Message: "request failed after retries", Cause: err}
		}

		if resp.StatusCode == http.StatusUnauthorized && !refreshDisabled(ctx) {
			origErr := decodeAPIError(resp)
			if refreshed {
				// The resend failed again; the session is over.
				c.expireSession("request unauthorized after refresh")
				return nil, origErr
			}
			refreshed = true
			if _, rerr := c.refresher.refresh(ctx); rerr != nil {
				if ctx.Err() != nil || errors.Is(rerr, context.Canceled) {
					// Cancellation is the caller abandoning the request, not a
					// failed session; the store stays as it is.
					return nil, &TransportError{Kind: TransportErrorCanceled, Message: "request canceled during token refresh", Cause: rerr}
				}
				c.log.Warn().Err(rerr).Msg("token refresh failed")
				c.expireSession("token refresh failed")
				return nil, origErr
			}
			// Store now holds the new token; prepare() on the next attempt
			// overwrites the Authorization header before the single resend.
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, decodeAPIError(resp)
		}
		return resp, nil
	}
}

// attempt performs a single HTTP exchange with the per-attempt timeout and
// buffers the response body so the attempt context can be released.
func (c *Client) attempt(req *http.Request) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(req.Context(), c.timeout)
	defer cancel()
	r := req.Clone(attemptCtx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	c.prepare(r)
	if c.telemetry.OnHTTPRequest != nil {
		c.telemetry.OnHTTPRequest(req.Context(), r)
	}
	c.telemetry.log(req.Context(), LogLevelInfo, "http_request", map[string]any{
		"method": r.Method,
		"url":    r.URL.String(),
	})
	start := time.Now()
	resp, err := c.httpClient.Do(r)
	if c.telemetry.OnHTTPResponse != nil {
		c.telemetry.OnHTTPResponse(req.Context(), r, resp, err, time.Since(start))
	}
	c.telemetry.metric(req.Context(), "sdk_http_request_latency_ms", float64(time.Since(start).Milliseconds()), map[string]string{
		"path": r.URL.Path,
	})
	if err != nil {
		return nil, err
	}
	data, rerr := io.ReadAll(resp.Body)
	//nolint:errcheck // best-effort cleanup after full read
	_ = resp.Body.Close()
	if rerr != nil {
		return nil, rerr
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

// sendAndDecode sends a JSON request and decodes the response body into out.
// Pass a nil out to discard the body.
func (c *Client) sendAndDecode(ctx context.Context, method, path string, payload, out any) error {
	req, err := c.newJSONRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// expireSession wipes credentials and notifies the embedding app. Idempotent;
// the sweep and a failing request may both call it.
func (c *Client) expireSession(reason string) {
	c.log.Info().Str("reason", reason).Msg("clearing credentials")
	c.creds.ClearAll()
	if c.onExpired != nil {
		c.onExpired()
	}
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.HasPrefix(path, "/auth/") {
		return c.authBaseURL + path
	}
	return c.baseURL + path
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var errRefreshFailed = errors.New("planpilot: refresh did not return a token")

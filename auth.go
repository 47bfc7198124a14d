package sdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/planpilot/planpilot-go/routes"
	"github.com/planpilot/planpilot-go/token"
)

// LoginRequest carries email/password credentials for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// RememberMe gates auto-login UX; it does not change where credentials
	// are stored.
	RememberMe bool `json:"-"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthResponse mirrors the auth endpoints' response envelope. The refresh
// token and session id never appear in the body; the server sets them via
// response cookies captured by the credential store's jar.
type AuthResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	ExpiresIn   int64  `json:"expiresIn,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// VerifyResponse reports whether the current access token is still accepted.
type VerifyResponse struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user,omitempty"`
}

// AuthClient wraps authentication-related endpoints.
type AuthClient struct {
	client *Client
}

func (a *AuthClient) ensureInitialized() error {
	if a == nil || a.client == nil {
		return fmt.Errorf("planpilot: auth client not initialized")
	}
	return nil
}

// Login exchanges credentials for an access token and persists the resulting
// credential record: access token and remember-me in the client-readable
// store, refresh token and session id via the response cookies, and a profile
// derived from the token's claims when decodable.
//
// A 401 here means bad credentials, not an expired session, so the call is
// exempt from the refresh-on-401 path.
func (a *AuthClient) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	if err := a.ensureInitialized(); err != nil {
		return AuthResponse{}, err
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return AuthResponse{}, ConfigError{Reason: "email and password required"}
	}
	var resp AuthResponse
	if err := a.client.sendAndDecode(withoutRefresh(ctx), http.MethodPost, routes.AuthLogin, req, &resp); err != nil {
		return AuthResponse{}, err
	}
	a.persist(resp, req.RememberMe)
	return resp, nil
}

// Register creates an account. On success the server returns the new user
// alongside the token; both are persisted.
func (a *AuthClient) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	if err := a.ensureInitialized(); err != nil {
		return AuthResponse{}, err
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return AuthResponse{}, ConfigError{Reason: "email and password required"}
	}
	var resp AuthResponse
	if err := a.client.sendAndDecode(withoutRefresh(ctx), http.MethodPost, routes.AuthRegister, req, &resp); err != nil {
		return AuthResponse{}, err
	}
	a.persist(resp, false)
	return resp, nil
}

// persist writes a successful auth response into the credential store.
func (a *AuthClient) persist(resp AuthResponse, rememberMe bool) {
	if !resp.Success || resp.AccessToken == "" {
		return
	}
	creds := a.client.creds
	creds.SetAccessToken(resp.AccessToken)
	creds.SetRememberMe(rememberMe)
	switch {
	case resp.User != nil:
		creds.SetUser(resp.User)
	default:
		// Login responses omit the profile; derive one from the token so the
		// session is authenticated without an extra round-trip.
		claims, err := token.Decode(resp.AccessToken)
		if err != nil {
			return
		}
		ident, err := claims.Identity()
		if err != nil {
			return
		}
		creds.SetUser(&User{ID: ident.ID, Email: ident.Email, Name: ident.Name, Role: ident.Role})
	}
}

// Logout invalidates the server-side session and clears the credential store.
// The store is cleared even when the server call fails.
func (a *AuthClient) Logout(ctx context.Context) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	err := a.client.sendAndDecode(withoutRefresh(ctx), http.MethodPost, routes.AuthLogout, nil, nil)
	a.client.creds.ClearAll()
	if err != nil {
		a.client.log.Warn().Err(err).Msg("server logout failed, local credentials cleared anyway")
		return err
	}
	return nil
}

// Profile fetches the authenticated user's profile and refreshes the cached
// copy.
func (a *AuthClient) Profile(ctx context.Context) (*User, error) {
	if err := a.ensureInitialized(); err != nil {
		return nil, err
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
		User    *User  `json:"user,omitempty"`
	}
	if err := a.client.sendAndDecode(ctx, http.MethodGet, routes.AuthProfile, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, &APIError{Status: http.StatusOK, Message: resp.Message}
	}
	a.client.creds.SetUser(resp.User)
	return resp.User, nil
}

// Verify probes whether the current access token is still accepted.
func (a *AuthClient) Verify(ctx context.Context) (VerifyResponse, error) {
	if err := a.ensureInitialized(); err != nil {
		return VerifyResponse{}, err
	}
	var resp VerifyResponse
	if err := a.client.sendAndDecode(withoutRefresh(ctx), http.MethodGet, routes.AuthVerify, nil, &resp); err != nil {
		return VerifyResponse{}, err
	}
	return resp, nil
}

// Refresh forces a token refresh outside the 401 path. The new token is
// persisted before this returns.
func (a *AuthClient) Refresh(ctx context.Context) (string, error) {
	if err := a.ensureInitialized(); err != nil {
		return "", err
	}
	return a.client.refresher.refresh(ctx)
}

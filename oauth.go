package sdk

import (
	"fmt"
	"net/url"

	"github.com/planpilot/planpilot-go/routes"
	"github.com/planpilot/planpilot-go/token"
)

// OAuthError reports a failed OAuth callback with a human-readable message.
type OAuthError struct {
	Code    string
	Message string
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("planpilot: oauth %s: %s", e.Code, e.Message)
}

// oauthErrorMessages maps provider error codes to user-facing messages.
// Unknown codes fall back to the server-supplied message.
var oauthErrorMessages = map[string]string{
	"access_denied":        "Sign-in was cancelled. Please try again.",
	"invalid_token":        "The sign-in response could not be verified. Please try again.",
	"account_not_verified": "This account has not been verified yet. Check your inbox for a verification email.",
	"server_error":         "The sign-in service is temporarily unavailable. Please try again later.",
}

// GoogleCallbackResult is the outcome of a completed OAuth sign-in.
type GoogleCallbackResult struct {
	User        *User
	AccessToken string
}

// GoogleAuthURL returns the browser redirect entry point for Google sign-in.
func (a *AuthClient) GoogleAuthURL() string {
	return a.client.authBaseURL + routes.AuthGoogle
}

// CompleteGoogleCallback finishes an OAuth sign-in from the redirect URL the
// provider sent the browser to. The access token arrives as a query
// parameter; the user identity is derived from its claims since OAuth
// callbacks carry no separate profile. On success the credential record is
// persisted.
//
// Error redirects (error/message query parameters) surface as *OAuthError; a
// token that fails to decode surfaces as *token.MalformedTokenError.
func (a *AuthClient) CompleteGoogleCallback(callbackURL string) (GoogleCallbackResult, error) {
	if err := a.ensureInitialized(); err != nil {
		return GoogleCallbackResult{}, err
	}
	u, err := url.Parse(callbackURL)
	if err != nil {
		return GoogleCallbackResult{}, &OAuthError{Code: "invalid_callback", Message: "The sign-in redirect could not be parsed."}
	}
	query := u.Query()
	if code := query.Get("error"); code != "" {
		msg, ok := oauthErrorMessages[code]
		if !ok {
			msg = query.Get("message")
		}
		if msg == "" {
			msg = "Sign-in failed. Please try again."
		}
		return GoogleCallbackResult{}, &OAuthError{Code: code, Message: msg}
	}
	accessToken := query.Get("accessToken")
	if accessToken == "" {
		return GoogleCallbackResult{}, &OAuthError{Code: "missing_token", Message: "The sign-in response did not include an access token."}
	}
	claims, err := token.Decode(accessToken)
	if err != nil {
		return GoogleCallbackResult{}, err
	}
	ident, err := claims.Identity()
	if err != nil {
		return GoogleCallbackResult{}, err
	}
	user := &User{ID: ident.ID, Email: ident.Email, Name: ident.Name, Role: ident.Role}
	creds := a.client.creds
	creds.SetAccessToken(accessToken)
	creds.SetUser(user)
	return GoogleCallbackResult{User: user, AccessToken: accessToken}, nil
}

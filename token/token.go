// Package token decodes bearer tokens issued by the PlanPilot API without a
// server round-trip. Tokens are JWT-shaped (header.payload.signature); the
// codec reads claims and expiry only and never verifies signatures — that is
// the server's job.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRole is assumed when a token carries no role claim.
const DefaultRole = "user"

// Claims is the claim set embedded into PlanPilot access tokens.
//
// This is a DTO matching the server's access token contract. The SDK keeps
// this struct local rather than sharing types with the server.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	Name   string `json:"name,omitempty"`

	jwt.RegisteredClaims
}

// Identity is the user identity derived from a decoded token, used when the
// server does not separately return a profile (e.g. OAuth callbacks).
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// MalformedTokenError reports a token that is not a three-segment JWT or whose
// payload is not valid JSON.
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token: malformed token: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("token: malformed token: %s", e.Reason)
}

func (e *MalformedTokenError) Unwrap() error { return e.Err }

var parser = jwt.NewParser()

// Decode splits and parses a bearer token's claims without verifying its
// signature. It returns a MalformedTokenError when the token does not have
// exactly three segments or its payload does not parse.
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &MalformedTokenError{Reason: "empty token"}
	}
	if strings.Count(raw, ".") != 2 {
		return nil, &MalformedTokenError{Reason: "expected 3 segments"}
	}
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, &MalformedTokenError{Reason: "invalid payload", Err: err}
	}
	return claims, nil
}

// IsExpired reports whether the token's exp claim is at or before now.
// Decode failures count as expired: expiry checking fails closed.
func IsExpired(raw string, now time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		// No exp claim means the token cannot expire.
		return false
	}
	return !claims.ExpiresAt.After(now)
}

// ExpiresAt returns the token's expiry, or the zero time when the token has
// no exp claim. Decode failures propagate.
func ExpiresAt(raw string) (time.Time, error) {
	claims, err := Decode(raw)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// Identity derives a user identity from the claims. The display name falls
// back to the local part of the email and the role to DefaultRole. Both the
// user id and email must be present.
func (c *Claims) Identity() (Identity, error) {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	if id == "" || c.Email == "" {
		return Identity{}, &MalformedTokenError{Reason: "missing userId or email claim"}
	}
	name := c.Name
	if name == "" {
		name = c.Email
		if at := strings.Index(name, "@"); at > 0 {
			name = name[:at]
		}
	}
	role := c.Role
	if role == "" {
		role = DefaultRole
	}
	return Identity{ID: id, Email: c.Email, Name: name, Role: role}, nil
}

// Package testutil provides helpers for SDK tests.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// TokenClaims is the claim set accepted by MakeToken.
type TokenClaims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Name   string `json:"name,omitempty"`
	Exp    int64  `json:"exp,omitempty"`
	Iat    int64  `json:"iat,omitempty"`
	Iss    string `json:"iss,omitempty"`
	Aud    string `json:"aud,omitempty"`
}

// MakeToken builds an unsigned three-segment bearer token carrying the given
// claims. The signature segment is junk; the SDK never verifies it.
func MakeToken(claims TokenClaims) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal claims: %v", err))
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".sig"
}

// MakeExpiringToken builds a token for the given user that expires at exp.
func MakeExpiringToken(userID, email string, exp time.Time) string {
	return MakeToken(TokenClaims{
		UserID: userID,
		Email:  email,
		Exp:    exp.Unix(),
		Iat:    time.Now().Add(-time.Minute).Unix(),
	})
}

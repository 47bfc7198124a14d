package token

import (
	"errors"
	"testing"
	"time"

	"github.com/planpilot/planpilot-go/testutil"
)

func TestDecode(t *testing.T) {
	t.Run("ValidToken", func(t *testing.T) {
		raw := testutil.MakeToken(testutil.TokenClaims{
			UserID: "u1",
			Email:  "ana@example.com",
			Role:   "admin",
			Exp:    time.Now().Add(time.Hour).Unix(),
		})
		claims, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if claims.UserID != "u1" || claims.Email != "ana@example.com" || claims.Role != "admin" {
			t.Fatalf("unexpected claims %+v", claims)
		}
	})

	t.Run("WrongSegmentCount", func(t *testing.T) {
		for _, raw := range []string{"", "abc", "a.b", "a.b.c.d"} {
			if _, err := Decode(raw); err == nil {
				t.Fatalf("expected error for %q", raw)
			} else {
				var malformed *MalformedTokenError
				if !errors.As(err, &malformed) {
					t.Fatalf("expected MalformedTokenError for %q, got %v", raw, err)
				}
			}
		}
	})

	t.Run("NonJSONPayload", func(t *testing.T) {
		_, err := Decode("aGVhZGVy.bm90LWpzb24.c2ln")
		var malformed *MalformedTokenError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedTokenError, got %v", err)
		}
	})
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	t.Run("PastExp", func(t *testing.T) {
		raw := testutil.MakeExpiringToken("u1", "a@b.com", now.Add(-time.Minute))
		if !IsExpired(raw, now) {
			t.Fatal("expected past exp to be expired")
		}
	})

	t.Run("FutureExp", func(t *testing.T) {
		raw := testutil.MakeExpiringToken("u1", "a@b.com", now.Add(time.Hour))
		if IsExpired(raw, now) {
			t.Fatal("expected future exp to be valid")
		}
	})

	t.Run("MalformedFailsClosed", func(t *testing.T) {
		for _, raw := range []string{"", "not-a-token", "a.b", "aGVhZGVy.bm90LWpzb24.c2ln"} {
			if !IsExpired(raw, now) {
				t.Fatalf("expected %q to count as expired", raw)
			}
		}
	})

	t.Run("NoExpClaim", func(t *testing.T) {
		raw := testutil.MakeToken(testutil.TokenClaims{UserID: "u1", Email: "a@b.com"})
		if IsExpired(raw, now) {
			t.Fatal("token without exp cannot expire")
		}
	})
}

func TestIdentity(t *testing.T) {
	t.Run("DerivesNameAndRole", func(t *testing.T) {
		raw := testutil.MakeToken(testutil.TokenClaims{UserID: "u1", Email: "dana@example.com"})
		claims, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		ident, err := claims.Identity()
		if err != nil {
			t.Fatalf("identity: %v", err)
		}
		if ident.Name != "dana" {
			t.Fatalf("expected name from email local part, got %q", ident.Name)
		}
		if ident.Role != DefaultRole {
			t.Fatalf("expected default role, got %q", ident.Role)
		}
	})

	t.Run("ExplicitClaimsWin", func(t *testing.T) {
		raw := testutil.MakeToken(testutil.TokenClaims{
			UserID: "u1", Email: "dana@example.com", Name: "Dana", Role: "admin",
		})
		claims, _ := Decode(raw)
		ident, err := claims.Identity()
		if err != nil {
			t.Fatalf("identity: %v", err)
		}
		if ident.Name != "Dana" || ident.Role != "admin" {
			t.Fatalf("unexpected identity %+v", ident)
		}
	})

	t.Run("MissingEmail", func(t *testing.T) {
		raw := testutil.MakeToken(testutil.TokenClaims{UserID: "u1"})
		claims, _ := Decode(raw)
		if _, err := claims.Identity(); err == nil {
			t.Fatal("expected error for missing email")
		}
	})
}

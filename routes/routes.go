// Package routes provides shared API route constants used by the SDK so
// endpoint paths live in one place.
package routes

const (
	// AuthLogin exchanges email/password credentials for an access token.
	// The refresh token and session id arrive via response cookies.
	AuthLogin = "/auth/login"

	// AuthRegister creates an account and returns a token plus the new user.
	AuthRegister = "/auth/register"

	// AuthRefreshToken mints a new access token. The refresh secret travels
	// via the cookie jar, not the request body.
	AuthRefreshToken = "/auth/refresh-token" // #nosec G101 -- route path, not a credential

	// AuthLogout invalidates the server-side session. Best effort; the client
	// clears local credentials regardless of the outcome.
	AuthLogout = "/auth/logout"

	// AuthProfile returns the authenticated user's profile.
	AuthProfile = "/auth/profile"

	// AuthVerify probes whether the current access token is still valid.
	AuthVerify = "/auth/verify"

	// AuthGoogle is the browser redirect entry point for Google OAuth.
	AuthGoogle = "/auth/google"

	// PlansGenerate generates a plan from free-form input.
	PlansGenerate = "/ai/generate-plan"

	// PlansSave persists a generated plan.
	PlansSave = "/plans/save-ai-plan"

	// PlansHistory lists previously saved plans.
	PlansHistory = "/plans/history"
)

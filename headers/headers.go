// Package headers defines HTTP header constants used across the PlanPilot API.
// This is the single source of truth for header names used in API requests.
package headers

const (
	// SessionID is the opaque session correlator attached to outgoing requests.
	SessionID = "X-Session-Id"

	// RequestID is the header for request correlation / idempotency. One id
	// is minted per logical request; retries and resends reuse it.
	RequestID = "X-Request-Id"

	// Traceparent carries W3C trace context on outgoing requests.
	Traceparent = "Traceparent"
)

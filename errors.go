package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// APIError captures a structured error response from the PlanPilot API.
// Status 401 is the authorization failure the pipeline reacts to; every other
// status passes through to the caller untouched.
type APIError struct {
	Status     int
	Message    string
	RetryAfter int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("planpilot: http %d: %s", e.Status, msg)
}

// IsAuthorization reports whether this is a 401 authorization failure.
func (e *APIError) IsAuthorization() bool { return e.Status == http.StatusUnauthorized }

// AsAPIError extracts an *APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode}
	if len(data) == 0 {
		apiErr.Message = resp.Status
		return apiErr
	}
	var payload struct {
		Success    bool   `json:"success"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = payload.Message
	apiErr.RetryAfter = payload.RetryAfter
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

// TransportErrorKind classifies network-level failures.
type TransportErrorKind string

const (
	TransportErrorTimeout    TransportErrorKind = "timeout"
	TransportErrorDNS        TransportErrorKind = "dns"
	TransportErrorConnection TransportErrorKind = "connection"
	TransportErrorCanceled   TransportErrorKind = "canceled"
	TransportErrorOther      TransportErrorKind = "other"
)

// TransportError reports that no HTTP response was received.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("planpilot: %s (%s): %v", e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("planpilot: %s (%s)", e.Message, e.Kind)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func classifyTransportErrorKind(err error) TransportErrorKind {
	if err == nil {
		return TransportErrorOther
	}
	if errors.Is(err, context.Canceled) {
		return TransportErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportErrorTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportErrorDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportErrorTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransportErrorConnection
	}
	return TransportErrorOther
}

// ConfigError reports invalid client configuration.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string { return "planpilot: " + e.Reason }

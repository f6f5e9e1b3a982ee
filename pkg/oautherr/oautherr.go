package oautherr

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Error codes from RFC 6749 §4.1.2.1 and §5.2.
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidClient           = "invalid_client"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeAccessDenied            = "access_denied"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeUnsupportedGrantType    = "unsupported_grant_type"
	CodeInvalidScope            = "invalid_scope"
	CodeInvalidGrant            = "invalid_grant"
	CodeServerError             = "server_error"
	CodeTemporarilyUnavailable  = "temporarily_unavailable"
)

// Error is an RFC 6749 protocol error. For server_error the internal cause
// stays on Err and only the correlation id leaves the process.
type Error struct {
	Code          string
	Description   string
	State         string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Json renders the RFC-shaped error object for the token endpoint.
func (e *Error) Json() map[string]string {
	body := map[string]string{"error": e.Code}
	if e.Description != "" {
		body["error_description"] = e.Description
	}
	if e.CorrelationID != "" {
		body["correlation_id"] = e.CorrelationID
	}
	return body
}

// Query renders the error as redirect query parameters for the
// authorization endpoint.
func (e *Error) Query() url.Values {
	q := url.Values{}
	q.Set("error", e.Code)
	if e.Description != "" {
		q.Set("error_description", e.Description)
	}
	if e.State != "" {
		q.Set("state", e.State)
	}
	if e.CorrelationID != "" {
		q.Set("correlation_id", e.CorrelationID)
	}
	return q
}

func New(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

func (e *Error) WithState(state string) *Error {
	e.State = state
	return e
}

// Internal wraps an unexpected failure as a generic server_error with a
// correlation id. The cause never reaches the caller.
func Internal(err error) *Error {
	return &Error{
		Code:          CodeServerError,
		Description:   "internal error",
		CorrelationID: uuid.NewString(),
		Err:           fmt.Errorf("server_error: %w", err),
	}
}

package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API error by its protocol meaning.
type Kind string

const (
	// KindAuthentication covers rejected or expired credentials (HTTP 401).
	KindAuthentication Kind = "authentication"

	// KindNotFound covers unknown resources (HTTP 404) and results that
	// are not yet available.
	KindNotFound Kind = "not_found"

	// KindClient covers other 4xx request errors.
	KindClient Kind = "client"

	// KindServer covers 5xx server errors.
	KindServer Kind = "server"

	// KindUnexpected covers statuses outside the documented ranges and
	// malformed response payloads.
	KindUnexpected Kind = "unexpected"
)

// APIError is a classified error response from the Salesforce API.
type APIError struct {
	StatusCode int
	Kind       Kind
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("salesforce %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("salesforce %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// errorForStatus maps an HTTP status to an APIError. Statuses inside
// 200-299 must not be passed here.
func errorForStatus(status int, body string) *APIError {
	var kind Kind
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuthentication
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status >= 400 && status < 500:
		kind = KindClient
	case status >= 500 && status < 600:
		kind = KindServer
	default:
		kind = KindUnexpected
		body = fmt.Sprintf("unexpected response: %d %s", status, body)
	}
	return &APIError{StatusCode: status, Kind: kind, Message: body}
}

// KindOf returns the classification of err, or "" when err is not an
// APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuthentication reports whether err is an authentication failure.
func IsAuthentication(err error) bool {
	return KindOf(err) == KindAuthentication
}

// IsNotFound reports whether err is a not-found condition, including
// "results not yet available" on a job results fetch.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

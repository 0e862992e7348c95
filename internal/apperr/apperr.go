// Package apperr defines the error taxonomy shared by every route and
// vendor adapter in the service. Handlers translate these into structured
// JSON error bodies; raw vendor internals never reach the caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	// KindInvalidInput means caller-supplied data failed a local
	// precondition. Never retried, never forwarded to a vendor.
	KindInvalidInput Kind = "invalid_input"

	// KindConfiguration means a required credential or identifier is
	// absent. A deployment problem, not a user mistake.
	KindConfiguration Kind = "configuration"

	// KindVendor means the external service answered with a non-success
	// status. Status and normalized message are carried through.
	KindVendor Kind = "vendor"

	// KindTransport means the external service could not be reached at
	// all, so there is no response body to parse.
	KindTransport Kind = "transport"

	KindInternal Kind = "internal"
)

// Error is the single error variant used across the workflow.
type Error struct {
	Kind    Kind
	Message string
	// Status is the vendor's HTTP status when Kind is KindVendor.
	Status int
	// VendorPayload holds the raw (truncated) vendor error body for
	// diagnostics. Logged, returned in the details field, never parsed
	// by callers.
	VendorPayload string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the taxonomy onto response codes. Vendor errors pass
// their original status through when it is usable.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindVendor:
		if e.Status >= 400 && e.Status < 600 {
			return e.Status
		}
		return http.StatusBadGateway
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

func Vendor(message string, status int, payload string) *Error {
	return &Error{Kind: KindVendor, Message: message, Status: status, VendorPayload: payload}
}

func Transport(message string, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

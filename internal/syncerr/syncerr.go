// Package syncerr defines the error kinds the sync pipeline distinguishes.
package syncerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindAuth: bad credentials or expired token. Triggers re-authentication,
	// never an entry failure.
	KindAuth Kind = "AUTH_ERROR"
	// KindValidation: the remote rejected the payload. Not retried automatically.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindTransient: network failure, timeout or 5xx. Retried with backoff.
	KindTransient Kind = "TRANSIENT_ERROR"
	// KindIntegrity: a local queue invariant is violated. Surfaced, not corrected.
	KindIntegrity Kind = "INTEGRITY_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Status  int    // HTTP status when the error came from the remote API
	Body    string // response body, kept as the entry's last_error
	// Ambiguous is set when the remote may or may not have applied the call.
	Ambiguous bool
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Auth(message string, err error) *Error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

func Validation(status int, body string) *Error {
	return &Error{Kind: KindValidation, Message: "remote rejected request", Status: status, Body: body}
}

// Invalid is a ValidationError raised locally, before anything reaches the remote.
func Invalid(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Transient(message string, status int, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Status: status, Err: err}
}

// Timeout marks an outcome as unknown: the request may have been applied.
func Timeout(err error) *Error {
	return &Error{Kind: KindTransient, Message: "timeout: remote outcome unknown", Ambiguous: true, Err: err}
}

func Integrity(message string) *Error {
	return &Error{Kind: KindIntegrity, Message: message}
}

// Is reports whether any error in err's chain is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether an entry that failed with err may be retried automatically.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	return true
}

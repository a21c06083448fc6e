// Package upstream normalizes failures from the three remote backends into a
// small taxonomy the orchestrator can act on. Every client translates raw
// HTTP responses into *Error before returning, so the saga never inspects
// status codes itself.
package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a remote failure.
type Kind string

const (
	// KindValidation means the backend rejected the payload as malformed.
	KindValidation Kind = "validation"

	// KindAuth means a missing, expired, or rejected credential.
	KindAuth Kind = "auth"

	// KindAuthorization means the caller is not allowed to act on the target.
	KindAuthorization Kind = "authorization"

	// KindConflict means the resource already exists (duplicate email).
	KindConflict Kind = "conflict"

	// KindNotFound means the resource does not exist.
	KindNotFound Kind = "not_found"

	// KindUpstream means a 5xx or a network-level failure.
	KindUpstream Kind = "upstream"
)

// Error is the normalized remote failure returned by all backend clients.
type Error struct {
	Kind    Kind
	Backend string // "keycloak", "profile", "fhir"
	Message string
	Status  int // upstream HTTP status, 0 for network failures
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Backend, e.Kind, e.Message, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s [%s]: %s (status %d)", e.Backend, e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Backend, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a normalized error for a backend.
func New(kind Kind, backend, message string) *Error {
	return &Error{Kind: kind, Backend: backend, Message: message}
}

// Wrap builds a normalized error around a transport-level failure.
func Wrap(kind Kind, backend, message string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Message: message, Err: err}
}

// FromStatus maps an unexpected upstream HTTP status to the taxonomy.
func FromStatus(backend string, status int, body string) *Error {
	kind := KindUpstream
	switch {
	case status == http.StatusConflict:
		kind = KindConflict
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindValidation
	}
	msg := body
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kind, Backend: backend, Message: msg, Status: status}
}

// KindOf extracts the Kind from an error chain, defaulting to KindUpstream.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUpstream
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to the client-facing status the composite API
// returns. Internal detail stays in logs; callers only see this mapping.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuth:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// DeleteOutcome reports what a best-effort delete actually did. Compensation
// needs to tell "removed" apart from "was already gone" and from "failed".
type DeleteOutcome int

const (
	// Deleted means the backend confirmed removal.
	Deleted DeleteOutcome = iota
	// AlreadyAbsent means the backend had no such resource (treated as
	// success by every delete path).
	AlreadyAbsent
	// DeleteFailed means the backend errored; the accompanying error says why.
	DeleteFailed
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case AlreadyAbsent:
		return "already_absent"
	default:
		return "failed"
	}
}

// Gone reports whether the resource no longer exists after the attempt.
func (o DeleteOutcome) Gone() bool {
	return o == Deleted || o == AlreadyAbsent
}

package dispatch

import (
	"errors"
	"strings"
)

// Code is the wire-visible identifier of an expected business outcome. All of
// these surface to callers as structured results, never as 5xx faults.
type Code string

const (
	CodeOfferNotPending     Code = "offer_not_pending"
	CodeRequestNotPending   Code = "request_not_pending"
	CodeProviderUnavailable Code = "provider_unavailable"
	CodeNotFound            Code = "not_found"
	CodeTransientConflict   Code = "transient_conflict"
)

// Error is a business outcome with a stable code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

var (
	ErrOfferNotPending     = &Error{CodeOfferNotPending, "offer is no longer pending"}
	ErrRequestNotPending   = &Error{CodeRequestNotPending, "request is no longer pending"}
	ErrProviderUnavailable = &Error{CodeProviderUnavailable, "provider is not available"}
	ErrNotFound            = &Error{CodeNotFound, "record not found"}
	ErrTransientConflict   = &Error{CodeTransientConflict, "transient conflict, safe to retry once"}
)

// CodeOf extracts the business code from an error chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Retryable reports whether an error is a transient conflict worth exactly
// one retry at the caller boundary.
func Retryable(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeTransientConflict
}

// transientDBError classifies driver-level contention failures. Postgres
// reports lock and serialization trouble with these phrases regardless of
// which statement hit them.
func transientDBError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"deadlock detected",
		"could not serialize access",
		"lock timeout",
		"canceling statement due to lock timeout",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

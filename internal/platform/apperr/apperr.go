package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable error taxonomy exposed to callers. Every failure of
// the service layer maps to exactly one kind.
type Kind string

const (
	KindValidationFailed   Kind = "validation_failed"
	KindAlreadyExists      Kind = "already_exists"
	KindNotInNetwork       Kind = "not_in_network"
	KindSenseDuplicate     Kind = "sense_duplicate"
	KindPrimaryConflict    Kind = "primary_conflict"
	KindLinkSelfForbidden  Kind = "link_self_forbidden"
	KindLinkTargetNotFound Kind = "link_target_not_found"
	KindLinkTypeInvalid    Kind = "link_type_invalid"
	KindLinkExists         Kind = "link_exists"
	KindLinkLimitExceeded  Kind = "link_limit_exceeded"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindConsistencyDrift   Kind = "consistency_drift"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

type Error struct {
	Status int
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	if e.Status != 0 {
		return fmt.Sprintf("app error (%d)", e.Status)
	}
	return "app error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, kind Kind, err error) *Error {
	return &Error{Status: status, Kind: kind, Err: err}
}

func Newf(status int, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Status: status, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Validation wraps a field-level validation failure.
func Validation(err error) *Error {
	return New(http.StatusBadRequest, KindValidationFailed, err)
}

// Unavailable marks a transient store failure as retryable.
func Unavailable(err error) *Error {
	return New(http.StatusServiceUnavailable, KindStoreUnavailable, err)
}

// KindOf reports the taxonomy kind of err, or KindInternal when err does
// not carry one.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether err is a transient failure eligible for the
// coordinator's bounded retry. Validation and invariant errors are never
// retried.
func Retryable(err error) bool {
	return IsKind(err, KindStoreUnavailable)
}

// StatusOf returns the HTTP status an error maps to.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// Package apperr defines the error taxonomy shared by the checkout
// path, the consumers, and the HTTP adapter. Every failure surfaced to
// a caller carries a machine-readable kind and a human message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	// Validation is malformed input; never retried.
	Validation Kind = iota
	// NotFound is a missing cart, product, or order.
	NotFound
	// Conflict covers insufficient inventory, idempotency conflicts,
	// and duplicate SKUs.
	Conflict
	// InvalidState is an illegal order status transition.
	InvalidState
	// TransientInfra is a lock timeout or connection loss; the whole
	// operation is safe to retry.
	TransientInfra
	// PaymentFailure is caught and converted into a FAILED
	// payment-completed event, never thrown to the checkout caller.
	PaymentFailure
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "VALIDATION_ERROR"
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case InvalidState:
		return "INVALID_STATE"
	case TransientInfra:
		return "TRANSIENT_INFRA"
	case PaymentFailure:
		return "PAYMENT_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatus maps the kind to its HTTP equivalent.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case InvalidState:
		return http.StatusConflict
	case TransientInfra:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain; unclassified errors
// report TransientInfra so callers treat them as retryable.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var ie *InsufficientInventoryError
	if errors.As(err, &ie) {
		return Conflict
	}
	return TransientInfra
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	if kind == Conflict {
		var ie *InsufficientInventoryError
		return errors.As(err, &ie)
	}
	return false
}

// ErrEmptyCart rejects checkout on a cart with no items.
var ErrEmptyCart = New(Validation, "cannot checkout with empty cart")

// ErrIdempotencyConflict signals a reused idempotency key with a
// different request body. Maps to 422.
var ErrIdempotencyConflict = New(Conflict, "idempotency key already used with a different request body")

// InsufficientInventoryError reports a failed inventory reservation.
// The surrounding transaction is rolled back wholesale.
type InsufficientInventoryError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %d: requested=%d, available=%d",
		e.ProductID, e.Requested, e.Available)
}

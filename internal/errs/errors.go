// Package errs provides the unified error type used across all of StorRi.
//
// Every subsystem (transport, blob, queue, checkpoint, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates to handle errors without importing wire-level packages.
//
// Usage:
//
//	// In the transport — wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "round trip timed out", netErr)
//
//	// In a caller — check error kind:
//	if errs.IsNotFound(err) {
//	    // blob/container/queue/message does not exist
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing wire-level status codes.
// The transport maps HTTP statuses and service error codes to one of these
// kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown            ErrKind = iota
	ErrKindNotFound                   // no container, blob, queue or message
	ErrKindPreconditionFailed         // ETag / lease / tag condition not met
	ErrKindReceiptMismatch            // stale or superseded pop receipt
	ErrKindThrottled                  // server busy or rate limited
	ErrKindIntegrityMismatch          // downloaded bytes fail hash validation
	ErrKindInvalidInput               // bad arguments, rejected before any I/O
	ErrKindTimeout                    // context deadline / cancellation
	ErrKindConnectionFailed           // cannot reach the storage endpoint
	ErrKindIOFailed                   // stream consumption failed after retries
	ErrKindAlreadyExists              // container or queue already exists
	ErrKindPermissionDenied           // credential rejected by the service
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindPreconditionFailed:
		return "precondition_failed"
	case ErrKindReceiptMismatch:
		return "receipt_mismatch"
	case ErrKindThrottled:
		return "throttled"
	case ErrKindIntegrityMismatch:
		return "integrity_mismatch"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindIOFailed:
		return "io_failed"
	case ErrKindAlreadyExists:
		return "already_exists"
	case ErrKindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all StorRi subsystems.
// Op and Resource identify which operation failed against which resource,
// so callers have enough context to decide whether to resume.
type Error struct {
	Kind     ErrKind
	Op       string // e.g. "blob.Download", "queue.UpdateMessage"
	Resource string // e.g. "container/blob", "queue/messageID"
	Message  string
	Cause    error // original wire-level error, preserved for logging
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s]", e.Kind)
	if e.Op != "" {
		s += " " + e.Op
	}
	if e.Resource != "" {
		s += " " + e.Resource
	}
	s += ": " + e.Message
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, op, resource, msg string) *Error {
	return &Error{Kind: kind, Op: op, Resource: resource, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// WithOp annotates err with the operation and resource when err is (or
// wraps) an *Error; other errors are wrapped as Unknown. Existing
// annotations are kept — the innermost operation wins.
func WithOp(err error, op, resource string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		if cp.Op == "" {
			cp.Op = op
		}
		if cp.Resource == "" {
			cp.Resource = resource
		}
		return &cp
	}
	return &Error{Kind: ErrKindUnknown, Op: op, Resource: resource, Message: "operation failed", Cause: err}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing container, blob,
// queue, or message.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsPreconditionFailed reports whether err was caused by an unmet ETag,
// lease, or tag condition.
func IsPreconditionFailed(err error) bool {
	return kindOf(err) == ErrKindPreconditionFailed
}

// IsReceiptMismatch reports whether err was caused by a stale pop receipt.
func IsReceiptMismatch(err error) bool {
	return kindOf(err) == ErrKindReceiptMismatch
}

// IsThrottled reports whether err is a server-busy / rate-limit response.
func IsThrottled(err error) bool {
	return kindOf(err) == ErrKindThrottled
}

// IsIntegrityMismatch reports whether downloaded content failed hash
// validation. Distinct from IsIOFailed: the bytes arrived, but were wrong.
func IsIntegrityMismatch(err error) bool {
	return kindOf(err) == ErrKindIntegrityMismatch
}

// IsInvalidInput reports whether err was caused by bad input from the
// caller. These errors are raised before any network call.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsIOFailed reports whether err is a terminal stream failure — the
// download engine exhausted its resume budget.
func IsIOFailed(err error) bool {
	return kindOf(err) == ErrKindIOFailed
}

// IsAlreadyExists reports whether err represents a create of a container
// or queue that already exists.
func IsAlreadyExists(err error) bool {
	return kindOf(err) == ErrKindAlreadyExists
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

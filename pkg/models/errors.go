package models

import "errors"

// Kind is the closed error taxonomy the core raises. Callers switch on
// Kind rather than on error strings.
type Kind int

const (
	// KindValidationFailed marks a rejected input field.
	KindValidationFailed Kind = iota
	// KindDuplicateSuppressed marks a write suppressed by the dedup window.
	KindDuplicateSuppressed
	// KindStoreUnavailable marks a fatal store open/lock failure.
	KindStoreUnavailable
	// KindFtsUnavailable marks a full-text index fault; callers fall back to LIKE.
	KindFtsUnavailable
	// KindEmbeddingUnavailable marks a degraded embedding provider.
	KindEmbeddingUnavailable
	// KindQueryMalformed marks a query that sanitized to empty.
	KindQueryMalformed
	// KindResourceExceeded marks a bound (e.g. maxCandidates) being hit; not an error condition.
	KindResourceExceeded
	// KindTransactionAborted marks a rolled-back multi-statement transaction.
	KindTransactionAborted
)

func (k Kind) String() string {
	switch k {
	case KindValidationFailed:
		return "ValidationFailed"
	case KindDuplicateSuppressed:
		return "DuplicateSuppressed"
	case KindStoreUnavailable:
		return "StoreUnavailable"
	case KindFtsUnavailable:
		return "FtsUnavailable"
	case KindEmbeddingUnavailable:
		return "EmbeddingUnavailable"
	case KindQueryMalformed:
		return "QueryMalformed"
	case KindResourceExceeded:
		return "ResourceExceeded"
	case KindTransactionAborted:
		return "TransactionAborted"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a taxonomy Kind and, for validation
// failures, the offending field name.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Kind.String() + ": " + e.Field + ": " + e.errString()
	}
	return e.Kind.String() + ": " + e.errString()
}

func (e *Error) errString() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error of the given kind wrapping err.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ValidationError builds a KindValidationFailed error naming the bad field.
func ValidationError(field string, err error) *Error {
	return &Error{Kind: KindValidationFailed, Field: field, Err: err}
}

// IsKind reports whether err (or anything it wraps) carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrDuplicateSuppressed is the sentinel returned by createObservation
// when a matching content_hash was seen within the dedup window.
var ErrDuplicateSuppressed = &Error{Kind: KindDuplicateSuppressed, Err: errors.New("duplicate observation suppressed")}

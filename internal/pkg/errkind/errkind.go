package errkind

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure for retry policy. Workers look only at the
// kind, never at the concrete error, when deciding between retry,
// dead-letter, no-op and fail-closed.
type Kind string

const (
	// Transient failures (network, 5xx, timeouts, broker unavailable)
	// retry with backoff up to the attempt cap.
	Transient Kind = "transient"
	// Permanent failures (schema violation, dimension mismatch, blocked
	// attachment, oversize) go straight to the dead-letter bucket.
	Permanent Kind = "permanent"
	// NotFound means the referenced record disappeared between enqueue
	// and execute. The job acks as a no-op success.
	NotFound Kind = "not_found"
	// Conflict is a CAS miss on mark-indexed / clear-vector-key. The
	// caller re-reads and either acks or retries as transient.
	Conflict Kind = "conflict"
	// TenantViolation is an attempted vector call without a guild filter
	// or a cross-tenant read. Fail closed, log, alert. Never recoverable.
	TenantViolation Kind = "tenant_violation"
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return string(e.kind)
	}
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *kindError) Unwrap() error { return e.err }

// Wrap tags err with a kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// New builds a tagged error from a format string.
func New(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Of reports the kind tagged onto err, walking the Unwrap chain.
// Untagged errors default to Transient: retrying an unknown failure is
// safe because every job handler is idempotent, while dead-lettering a
// recoverable one loses work.
func Of(err error) Kind {
	if err == nil {
		return ""
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}
	return Transient
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && Of(err) == kind
}

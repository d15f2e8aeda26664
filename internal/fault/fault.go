// Package fault classifies failures crossing a component boundary into a
// small set of kinds. Callers wrap errors with [Wrap]; the HTTP boundary folds
// every kind into one generic server fault while logs and metrics keep the kind.
package fault

import (
	"errors"
	"fmt"
	"net"
)

// Kind identifies the category of a failure.
type Kind string

const (
	// KindProviderUnavailable means an embedding, reranking, generation or
	// index dependency could not be reached.
	KindProviderUnavailable Kind = "provider_unavailable"
	// KindProviderTimeout means a dependency exceeded its per-call budget.
	KindProviderTimeout Kind = "provider_timeout"
	// KindGenerationFailure means the generator produced no usable output.
	KindGenerationFailure Kind = "generation_failure"
	// KindIndexWriteFailure means ingestion could not persist records.
	KindIndexWriteFailure Kind = "index_write_failure"
	// KindUnknown is reported for errors that were never classified.
	KindUnknown Kind = "unknown"
)

// Sentinels usable with errors.Is.
var (
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrProviderTimeout     = &Error{Kind: KindProviderTimeout}
	ErrGenerationFailure   = &Error{Kind: KindGenerationFailure}
	ErrIndexWriteFailure   = &Error{Kind: KindIndexWriteFailure}
)

// Error is a classified failure.
type Error struct {
	// Kind is the failure category.
	Kind Kind
	// Op names the operation that failed (e.g. "embedder.embed").
	Op string
	// Err is the underlying cause. May be nil for sentinels.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a fault of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Wrap classifies err as kind. A nil err yields nil. An err that already
// carries a kind keeps it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify wraps err like [Wrap], but transport failures take precedence over
// fallback: a network timeout becomes ProviderTimeout and any other net.Error
// (dial refused, DNS, reset; *url.Error included) becomes ProviderUnavailable.
func Classify(fallback Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindProviderTimeout, Op: op, Err: err}
		}
		return &Error{Kind: KindProviderUnavailable, Op: op, Err: err}
	}
	return &Error{Kind: fallback, Op: op, Err: err}
}

// New creates a classified error from a message.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// KindOf returns the kind of the first classified error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

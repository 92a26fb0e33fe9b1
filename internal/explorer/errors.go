package explorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/joseerobless/blockexplorer/internal/chain"
)

// Kind classifies why a resolution failed.
type Kind uint8

const (
	// KindTransport is a network or provider failure.
	KindTransport Kind = iota + 1
	// KindNotFound is a height or hash that does not exist (yet).
	KindNotFound
	// KindInvalidAddress is a malformed account address.
	KindInvalidAddress
	// KindConsistency is an internal invariant violation of a single resolution.
	KindConsistency
)

// ErrSuperseded is returned to a caller whose resolution finished after a
// newer input was submitted to the same session. Its result was discarded.
var ErrSuperseded = errors.New("superseded by a newer input")

// ResolutionError is the only error kind resolvers return. Raw provider
// errors stay reachable through Unwrap.
type ResolutionError struct {
	Kind Kind
	Op   string
	Err  error
}

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindInvalidAddress:
		return "invalid_address"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first ResolutionError in err's tree, or 0.
func KindOf(err error) Kind {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Kind
	}
	return 0
}

// IsKind reports whether err carries a ResolutionError of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// resolutionError converts a chain error into a ResolutionError and counts
// it. Errors that already are ResolutionErrors and caller cancellations pass
// through untouched.
func resolutionError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return err
	}

	kind := KindTransport
	switch {
	case errors.Is(err, chain.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, chain.ErrInvalidAddress):
		kind = KindInvalidAddress
	}

	return newResolutionError(kind, op, err)
}

func consistencyError(op string, format string, args ...any) error {
	return newResolutionError(KindConsistency, op, fmt.Errorf(format, args...))
}

func newResolutionError(kind Kind, op string, err error) *ResolutionError {
	metrics.GetOrCreateCounter(fmt.Sprintf(`explorer_resolution_errors_total{op=%q,kind=%q}`, op, kind)).Inc()
	return &ResolutionError{Kind: kind, Op: op, Err: err}
}

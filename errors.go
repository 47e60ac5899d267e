package kiln

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError is returned when a key is registered neither locally nor in
// any ancestor container. Registered holds the full key set that was
// searched; Suggestion is a fuzzy match for the requested key, if one was
// close enough.
type NotFoundError struct {
	Key        string
	Registered []string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("provider not found: %q", e.Key)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	if len(e.Registered) > 0 {
		msg += fmt.Sprintf(" [registered: %s]", strings.Join(e.Registered, ", "))
	}
	return msg
}

// CycleError is returned when a key is re-entered while already resolving
// on the same call stack. Chain lists the path from the resolution root to
// the re-entered key, which appears twice.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Chain, " -> "))
}

// NilResultError is returned when a factory produces no value.
type NilResultError struct {
	Key   string
	Chain []string
}

func (e *NilResultError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("factory for %q returned nil (chain: %s)", e.Key, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("factory for %q returned nil", e.Key)
}

// FactoryError wraps an unexpected error (or recovered panic) raised by a
// factory body. Resolution errors of this package's own kinds are never
// wrapped; they pass through unchanged.
type FactoryError struct {
	Key   string
	Chain []string
	Cause error
}

func (e *FactoryError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("factory for %q failed (chain: %s): %v", e.Key, strings.Join(e.Chain, " -> "), e.Cause)
	}
	return fmt.Sprintf("factory for %q failed: %v", e.Key, e.Cause)
}

func (e *FactoryError) Unwrap() error {
	return e.Cause
}

// StuckKeysError is returned by Preload when some keys of the transitive
// closure could not be placed into any topological level. This indicates a
// cycle spanning separate resolve calls, invisible to the per-call guard.
type StuckKeysError struct {
	Keys []string
}

func (e *StuckKeysError) Error() string {
	return fmt.Sprintf("preload could not order keys (cross-call cycle?): %s", strings.Join(e.Keys, ", "))
}

// AggregateError wraps two or more failures from a batch operation. A batch
// that fails exactly once returns that error directly.
type AggregateError struct {
	Op   string
	Errs []error
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%s: %d failures: %s", e.Op, len(e.Errs), strings.Join(parts, "; "))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errs
}

// isResolutionError reports whether err is one of this package's own
// resolution error kinds, which propagate through nested factory calls
// without being re-wrapped.
func isResolutionError(err error) bool {
	var (
		notFound *NotFoundError
		cycle    *CycleError
		nilRes   *NilResultError
		factory  *FactoryError
	)
	return errors.As(err, &notFound) ||
		errors.As(err, &cycle) ||
		errors.As(err, &nilRes) ||
		errors.As(err, &factory)
}

// batchError reduces collected batch failures to the contract error shape:
// nil for none, the error itself for one, an aggregate for several.
func batchError(op string, errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &AggregateError{Op: op, Errs: errs}
	}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means no series or snapshot could be obtained,
	// not even a stale one.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInsufficientHistory means a series is too short for a computation.
	// The analytics engines encode this as absent fields rather than
	// returning it.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrInvalidParameter reports a malformed window, threshold or level.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrProviderFailure wraps a network or timeout failure from a provider.
	ErrProviderFailure = errors.New("provider failure")

	// ErrNotFound means the instrument is absent from the dataset.
	ErrNotFound = errors.New("not found")
)

// ProviderError records one failed provider attempt.
type ProviderError struct {
	Provider string
	Attempt  int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Attempt == 0 {
		return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s attempt %d: %v", e.Provider, e.Attempt, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports ErrProviderFailure so callers can classify with errors.Is.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailure }

// InvalidParam builds an ErrInvalidParameter error for the named field.
func InvalidParam(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParameter, field, fmt.Sprintf(format, args...))
}

// UserMessage maps an error to the text shown to an end user. Data and
// provider failures become a retry-later message; everything else is shown
// as-is.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "instrument not found"
	case errors.Is(err, ErrDataUnavailable), errors.Is(err, ErrProviderFailure):
		return "market data is temporarily unavailable, please retry later"
	case errors.Is(err, ErrInvalidParameter):
		return err.Error()
	default:
		return "analysis failed: " + err.Error()
	}
}

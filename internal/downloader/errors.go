package downloader

import (
	"context"
	"errors"
	"fmt"

	dghttp "github.com/ligustah/datagov/internal/http"
)

var (
	// ErrInvalidConfiguration is the only error returned by Start and
	// Download; everything else is reported per resource.
	ErrInvalidConfiguration = errors.New("downloader: invalid configuration")

	ErrInvalidDestination = errors.New("downloader: invalid destination")
	ErrInvalidResource    = errors.New("downloader: invalid resource")
	ErrSizeMismatch       = errors.New("downloader: size mismatch")
	ErrCancelled          = errors.New("downloader: cancelled")

	// ErrTransient matches transfers that failed transiently on every
	// attempt.
	ErrTransient = dghttp.ErrRetriesExhausted
)

// TransientError records the attempts of a transfer that never
// succeeded. It unwraps to the last attempt's error, so errors.As still
// finds an *http.StatusError.
type TransientError = dghttp.RetryError

// DestinationError is returned when the destination directory or file
// cannot be prepared.
type DestinationError struct {
	Path string
	Err  error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("invalid destination %s: %v", e.Path, e.Err)
}

func (e *DestinationError) Unwrap() []error {
	return []error{ErrInvalidDestination, e.Err}
}

// SizeMismatchError is returned when the bytes received differ from the
// declared Content-Length.
type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}

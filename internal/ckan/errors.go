package ckan

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the catalog has no such dataset or
// organization.
var ErrNotFound = errors.New("ckan: not found")

// UpstreamError is any other catalog failure: a non-2xx response, an
// unsuccessful action, an unreadable body or a transport error.
type UpstreamError struct {
	Action string
	// Status is the HTTP status code, 0 when no response was received.
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("ckan: %s failed (status %d): %s", e.Action, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("ckan: %s failed (status %d)", e.Action, e.Status)
	case e.Message != "":
		return fmt.Sprintf("ckan: %s failed: %s", e.Action, e.Message)
	}
	return fmt.Sprintf("ckan: %s failed", e.Action)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

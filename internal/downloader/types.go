package downloader

import (
	"fmt"
	"net/url"
	"time"
)

// Descriptor identifies one downloadable resource.
type Descriptor struct {
	ID  string
	URL string
	// Name and Format may be empty.
	Name   string
	Format string
	// SizeHint is the size published by the catalog, -1 when unknown.
	// The transfer trusts the server, not the hint.
	SizeHint int64
}

// Validate reports whether d can be transferred.
func (d Descriptor) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("%w: missing URL", ErrInvalidResource)
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResource, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidResource, d.URL)
	}
	return nil
}

// DisplayName is the label used in progress and log output.
func (d Descriptor) DisplayName() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.ID != "":
		return d.ID
	}
	return d.URL
}

// Request is one download invocation.
type Request struct {
	DatasetID string
	Resources []Descriptor
	// BaseDir is the already resolved base directory, see ResolveBaseDir.
	BaseDir     string
	Concurrency int
}

type Status int

const (
	StatusSucceeded Status = iota + 1
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Outcome is the final result for one resource of a request.
type Outcome struct {
	Index    int
	Resource Descriptor
	Status   Status

	// Path and Bytes are set on success.
	Path  string
	Bytes int64

	// Err is the reason for a failed or skipped resource.
	Err     error
	Elapsed time.Duration
}

// Summary counts outcomes by status.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Bytes     int64
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case StatusSucceeded:
			s.Succeeded++
			s.Bytes += o.Bytes
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// OK reports whether every resource succeeded.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// RunState is the lifecycle of a Run.
type RunState int

const (
	StatePending RunState = iota
	StateRunning
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

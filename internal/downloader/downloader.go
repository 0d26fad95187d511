package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"golang.org/x/sync/semaphore"

	dghttp "github.com/ligustah/datagov/internal/http"
	"github.com/ligustah/datagov/internal/metrics"
	"github.com/ligustah/datagov/internal/progress"
)

// Options configures the downloader.
type Options struct {
	// HTTP carries the transfers and the retry policy.
	// Default: a client built from dghttp.DefaultOptions()
	HTTP *dghttp.Client

	// FS is where files are written.
	// Default: osfs.New()
	FS vfs.FileSystem

	// ProgressInterval and ProgressBytes bound how long and how many bytes
	// may pass between two progress publications of a transfer.
	// Default: 250ms, 256 KiB
	ProgressInterval time.Duration
	ProgressBytes    int64

	// ProgressWindow is the trailing window used for throughput.
	// Default: 2s
	ProgressWindow time.Duration

	// NoProgress stops transfers from publishing progress. Run.Progress
	// still reports completion.
	NoProgress bool

	// Metrics is optional.
	Metrics *metrics.Metrics

	Logger logr.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		ProgressInterval: 250 * time.Millisecond,
		ProgressBytes:    256 * 1024,
		ProgressWindow:   2 * time.Second,
	}
}

// Downloader runs download requests. One Downloader may run several
// requests at once; they share the HTTP client and the destination
// planner.
type Downloader struct {
	opts    Options
	planner *Planner
	exec    *executor
}

// New creates a downloader.
func New(opts Options) *Downloader {
	defaults := DefaultOptions()
	if opts.HTTP == nil {
		opts.HTTP = dghttp.NewClient(dghttp.DefaultOptions())
	}
	if opts.FS == nil {
		opts.FS = osfs.New()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaults.ProgressInterval
	}
	if opts.ProgressBytes <= 0 {
		opts.ProgressBytes = defaults.ProgressBytes
	}
	if opts.ProgressWindow <= 0 {
		opts.ProgressWindow = defaults.ProgressWindow
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}

	return &Downloader{
		opts:    opts,
		planner: NewPlanner(opts.FS),
		exec: &executor{
			client:   opts.HTTP,
			fs:       opts.FS,
			interval: opts.ProgressInterval,
			every:    opts.ProgressBytes,
		},
	}
}

// Download runs req and waits for every outcome.
func (d *Downloader) Download(ctx context.Context, req Request) ([]Outcome, error) {
	run, err := d.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}

// Start validates req and begins downloading in the background. The only
// error it returns matches ErrInvalidConfiguration; per-resource failures
// are reported in the outcomes.
func (d *Downloader) Start(ctx context.Context, req Request) (*Run, error) {
	switch {
	case req.Concurrency <= 0:
		return nil, fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfiguration, req.Concurrency)
	case req.BaseDir == "":
		return nil, fmt.Errorf("%w: base directory is empty", ErrInvalidConfiguration)
	case req.DatasetID == "":
		return nil, fmt.Errorf("%w: dataset id is empty", ErrInvalidConfiguration)
	}

	r := &Run{
		id:  uuid.NewString(),
		req: req,
		agg: progress.NewAggregator(progress.Options{
			Total:  len(req.Resources),
			Window: d.opts.ProgressWindow,
		}),
		outcomes: make([]Outcome, len(req.Resources)),
		done:     make(chan struct{}),
	}
	r.log = d.opts.Logger.WithValues("run", r.id, "dataset", req.DatasetID)

	go d.dispatch(ctx, r)
	return r, nil
}

// dispatch plans every resource in order, then admits them as slots free
// up. It never stops early because a sibling failed.
func (d *Downloader) dispatch(ctx context.Context, r *Run) {
	r.setState(StateRunning)
	r.log.V(1).Info("download started", "resources", len(r.req.Resources), "concurrency", r.req.Concurrency, "dir", r.req.BaseDir)

	var sink progress.Sink = r.agg
	if d.opts.NoProgress {
		sink = progress.Discard
	}

	// Plan sequentially so duplicate names are numbered in resource order.
	dests := make([]*Destination, len(r.req.Resources))
	for i, res := range r.req.Resources {
		if err := res.Validate(); err != nil {
			r.outcomes[i] = Outcome{Index: i, Resource: res, Status: StatusSkipped, Err: err}
			d.opts.Metrics.TransferSkipped()
			continue
		}
		dest, err := d.planner.Plan(r.req.BaseDir, r.req.DatasetID, res)
		if err != nil {
			r.outcomes[i] = Outcome{Index: i, Resource: res, Status: StatusFailed, Err: err}
			d.opts.Metrics.TransferStarted()
			d.opts.Metrics.TransferFinished(metrics.StatusFailed, 0, 0)
			sink.Publish(progress.TransferProgress{Index: i, Name: res.DisplayName(), Total: -1, State: progress.StateFailed})
			continue
		}
		dests[i] = dest
	}

	sem := semaphore.NewWeighted(int64(r.req.Concurrency))
	var wg sync.WaitGroup

	for i, res := range r.req.Resources {
		dest := dests[i]
		if dest == nil {
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			r.skipCancelled(ctx, i, res, dest, d.opts.Metrics)
			continue
		}
		if ctx.Err() != nil {
			sem.Release(1)
			r.skipCancelled(ctx, i, res, dest, d.opts.Metrics)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer dest.Release()

			d.opts.Metrics.TransferStarted()
			out := d.exec.transfer(ctx, i, res, dest.Path, sink)
			d.opts.Metrics.TransferFinished(out.Status.String(), out.Bytes, out.Elapsed)

			r.log.V(1).Info("transfer finished",
				"index", i,
				"resource", res.DisplayName(),
				"status", out.Status.String(),
				"path", dest.Path,
				"bytes", out.Bytes,
				"elapsed", out.Elapsed,
				"error", out.Err,
			)
			r.outcomes[i] = out
		}()
	}

	wg.Wait()

	s := Summarize(r.outcomes)
	r.log.V(1).Info("download finished", "succeeded", s.Succeeded, "failed", s.Failed, "skipped", s.Skipped, "bytes", s.Bytes)

	r.agg.Close()
	r.setState(StateCompleted)
	close(r.done)
}

// Run is one request in progress.
type Run struct {
	id       string
	req      Request
	agg      *progress.Aggregator
	outcomes []Outcome
	done     chan struct{}
	log      logr.Logger

	mu    sync.Mutex
	state RunState
}

// ID is a unique identifier for the run.
func (r *Run) ID() string {
	return r.id
}

// Request returns the request the run was started with.
func (r *Run) Request() Request {
	return r.req
}

// State reports where the run is in its lifecycle.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Progress returns the run's progress aggregator. It is closed when the
// run completes.
func (r *Run) Progress() *progress.Aggregator {
	return r.agg
}

// Done is closed once every outcome is final.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run completes and returns one outcome per
// resource, in request order.
func (r *Run) Wait() []Outcome {
	<-r.done
	return r.outcomes
}

func (r *Run) setState(s RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) skipCancelled(ctx context.Context, i int, res Descriptor, dest *Destination, m *metrics.Metrics) {
	dest.Release()
	r.outcomes[i] = Outcome{Index: i, Resource: res, Status: StatusSkipped, Err: cancelled(ctx)}
	m.TransferSkipped()
}

package progress

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"
)

// State is the lifecycle state of one transfer as seen by a Sink.
type State int

const (
	StateRunning State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferProgress is a point-in-time copy of one transfer's counters.
// Publishers hand out values; receivers never mutate shared state.
type TransferProgress struct {
	// Index is the resource position in its request.
	Index int
	Name  string

	// Bytes written so far by the current attempt.
	Bytes int64

	// Total is the expected size, or -1 when unknown.
	Total int64

	Started time.Time
	Updated time.Time
	State   State
}

// Sink receives transfer progress. Publish must not block.
type Sink interface {
	Publish(p TransferProgress)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(TransferProgress) {}

// TransferView is the aggregated view of one active transfer.
type TransferView struct {
	Index int
	Name  string
	Bytes int64
	Total int64

	// Throughput in bytes per second over the trailing window.
	Throughput float64

	// ETA is only meaningful when HasETA is set: the total is known and
	// the transfer is moving.
	ETA    time.Duration
	HasETA bool
}

// Snapshot is the combined view of a request's transfers.
type Snapshot struct {
	Time time.Time

	// Total is the number of resources in the request.
	Total     int
	Active    int
	Succeeded int
	Failed    int

	// Bytes counts active and succeeded transfers.
	Bytes int64
	// ActiveBytes counts in-flight transfers only.
	ActiveBytes int64

	// Throughput in bytes per second over the trailing window.
	Throughput float64

	// Transfers lists active transfers ordered by index.
	Transfers []TransferView

	// Done is set once the request has completed.
	Done bool
}

// Options configures an Aggregator.
type Options struct {
	// Total is the number of resources in the request.
	Total int

	// Window is the trailing span used to compute throughput.
	// Default: 2s
	Window time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// Aggregator merges progress published by concurrent transfers into
// snapshots. Snapshots are only computed when asked for, so an aggregator
// nobody reads costs a map update per publication.
type Aggregator struct {
	opts Options

	mu        sync.Mutex
	transfers map[int]*transferState
	received  int64
	overall   window
	succeeded int
	failed    int
	closed    bool
	done      chan struct{}
}

type transferState struct {
	last     TransferProgress
	received int64
	rate     window
}

// NewAggregator creates an aggregator for one request.
func NewAggregator(opts Options) *Aggregator {
	if opts.Window <= 0 {
		opts.Window = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &Aggregator{
		opts:      opts,
		transfers: make(map[int]*transferState),
		done:      make(chan struct{}),
	}
	a.overall = newWindow(opts.Window, opts.Now())
	return a
}

// Publish records p. Publications after Close are ignored.
func (a *Aggregator) Publish(p TransferProgress) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	now := a.opts.Now()
	st, ok := a.transfers[p.Index]
	if !ok {
		st = &transferState{rate: newWindow(a.opts.Window, now)}
		a.transfers[p.Index] = st
	} else if st.last.State != StateRunning {
		// Terminal states are final.
		return
	}

	// A retry starts again from zero; count what the new attempt received.
	delta := p.Bytes - st.last.Bytes
	if delta < 0 {
		delta = p.Bytes
	}

	st.received += delta
	a.received += delta
	st.last = p
	st.rate.add(now, st.received)
	a.overall.add(now, a.received)

	switch p.State {
	case StateSucceeded:
		a.succeeded++
	case StateFailed:
		a.failed++
	}
}

// Snapshot returns the current combined view.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.opts.Now()
	s := Snapshot{
		Time:       now,
		Total:      a.opts.Total,
		Succeeded:  a.succeeded,
		Failed:     a.failed,
		Throughput: a.overall.rate(now),
		Done:       a.closed,
	}

	for _, st := range a.transfers {
		switch st.last.State {
		case StateSucceeded:
			s.Bytes += st.last.Bytes
		case StateRunning:
			s.Active++
			s.Bytes += st.last.Bytes
			s.ActiveBytes += st.last.Bytes

			view := TransferView{
				Index:      st.last.Index,
				Name:       st.last.Name,
				Bytes:      st.last.Bytes,
				Total:      st.last.Total,
				Throughput: st.rate.rate(now),
			}
			if view.Total >= 0 && view.Throughput > 0 {
				remaining := view.Total - view.Bytes
				if remaining < 0 {
					remaining = 0
				}
				view.ETA = time.Duration(float64(remaining) / view.Throughput * float64(time.Second))
				view.HasETA = true
			}
			s.Transfers = append(s.Transfers, view)
		}
	}

	sort.Slice(s.Transfers, func(i, j int) bool {
		return s.Transfers[i].Index < s.Transfers[j].Index
	})

	return s
}

// Snapshots returns a lazy sequence of snapshots taken every interval.
// The sequence ends after yielding a final snapshot once the aggregator
// is closed, or when ctx ends.
func (a *Aggregator) Snapshots(ctx context.Context, interval time.Duration) iter.Seq[Snapshot] {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return func(yield func(Snapshot) bool) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-a.done:
				yield(a.Snapshot())
				return
			case <-ticker.C:
				if !yield(a.Snapshot()) {
					return
				}
			}
		}
	}
}

// Close marks the request as complete. It is safe to call more than once.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	close(a.done)
}

// Done is closed once the request has completed.
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

type sample struct {
	t time.Time
	n int64
}

// window holds cumulative byte counts over a trailing span. The oldest
// sample kept is the newest one at or before the window start, so the
// rate always covers the full span once enough time has passed.
type window struct {
	span    time.Duration
	samples []sample
}

func newWindow(span time.Duration, start time.Time) window {
	return window{span: span, samples: []sample{{t: start}}}
}

func (w *window) add(t time.Time, n int64) {
	w.samples = append(w.samples, sample{t: t, n: n})
	w.prune(t)
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	for len(w.samples) > 1 && !w.samples[1].t.After(cutoff) {
		w.samples = w.samples[1:]
	}
}

func (w *window) rate(now time.Time) float64 {
	w.prune(now)
	if len(w.samples) == 0 {
		return 0
	}

	first := w.samples[0]
	last := w.samples[len(w.samples)-1]
	elapsed := now.Sub(first.t).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(last.n-first.n) / elapsed
}

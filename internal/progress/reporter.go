package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RendererOptions configures the progress renderer.
type RendererOptions struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Label names the request in the header line (usually the dataset).
	Label string
}

// Renderer writes human-readable progress for one request, driven by the
// snapshots of an Aggregator.
type Renderer struct {
	opts RendererOptions

	mu      sync.Mutex
	start   time.Time
	done    chan struct{}
	started bool
}

// NewRenderer creates a new progress renderer.
func NewRenderer(opts RendererOptions) *Renderer {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Renderer{
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start begins rendering snapshots from agg until it closes or ctx ends.
func (r *Renderer) Start(ctx context.Context, agg *Aggregator) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.start = time.Now()
	r.mu.Unlock()

	first := agg.Snapshot()
	fmt.Fprintf(r.opts.Output, "[datagov] Downloading %d resources from %s\n", first.Total, r.opts.Label)

	go func() {
		defer close(r.done)

		for s := range agg.Snapshots(ctx, r.opts.UpdateInterval) {
			if s.Done {
				break
			}
			r.printProgress(s)
		}
		r.printFinalStatus(agg.Snapshot())
	}()
}

// Wait blocks until the final status line has been written.
func (r *Renderer) Wait() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		<-r.done
	}
}

// printProgress outputs the current progress.
func (r *Renderer) printProgress(s Snapshot) {
	finished := s.Succeeded + s.Failed

	var eta string
	if d, ok := maxETA(s.Transfers); ok {
		eta = formatDuration(d)
	} else {
		eta = "calculating..."
	}

	fmt.Fprintf(r.opts.Output, "\r[datagov] Progress: %d/%d done | %d active | %s | Speed: %s/s | ETA: %s    ",
		finished,
		s.Total,
		s.Active,
		formatBytes(s.Bytes),
		formatBytes(int64(s.Throughput)),
		eta,
	)
}

// printFinalStatus outputs the final status.
func (r *Renderer) printFinalStatus(s Snapshot) {
	duration := time.Since(r.start)
	avgSpeed := float64(s.Bytes) / duration.Seconds()

	var b strings.Builder
	fmt.Fprintf(&b, "\r[datagov] Finished: %d/%d succeeded", s.Succeeded, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " | %d failed", s.Failed)
	}
	fmt.Fprintf(&b, " | %s in %s | Average speed: %s/s    \n",
		formatBytes(s.Bytes),
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
	io.WriteString(r.opts.Output, b.String())
}

// maxETA returns the longest ETA, or false if any active transfer has none.
func maxETA(views []TransferView) (time.Duration, bool) {
	if len(views) == 0 {
		return 0, false
	}
	var longest time.Duration
	for _, v := range views {
		if !v.HasETA {
			return 0, false
		}
		if v.ETA > longest {
			longest = v.ETA
		}
	}
	return longest, true
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KiB = 1024
		MiB = KiB * 1024
		GiB = MiB * 1024
		TiB = GiB * 1024
	)

	switch {
	case b >= TiB:
		return fmt.Sprintf("%.1f TiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.1f GiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.1f MiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.1f KiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// FormatDuration is exported for use by other packages.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}

// ParseBytes parses a human-readable byte string. IEC suffixes (KiB, MiB,
// GiB, TiB) are powers of 1024, SI suffixes (KB, MB, GB, TB) powers of 1000.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)

	units := []struct {
		suffix     string
		multiplier float64
	}{
		{"TiB", 1 << 40},
		{"GiB", 1 << 30},
		{"MiB", 1 << 20},
		{"KiB", 1 << 10},
		{"TB", 1e12},
		{"GB", 1e9},
		{"MB", 1e6},
		{"KB", 1e3},
		{"B", 1},
	}

	multiplier := 1.0
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			multiplier = u.multiplier
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}

	return int64(value * multiplier), nil
}

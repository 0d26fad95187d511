package downloader

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mandelsoft/vfs/pkg/vfs"

	dghttp "github.com/ligustah/datagov/internal/http"
	"github.com/ligustah/datagov/internal/progress"
)

const copyBufferSize = 32 * 1024

// executor moves one resource from its URL to its destination.
type executor struct {
	client   *dghttp.Client
	fs       vfs.FileSystem
	interval time.Duration
	every    int64
}

// transfer downloads d to dest and reports progress to sink. The file only
// appears at dest once every byte has been written and synced.
func (e *executor) transfer(ctx context.Context, index int, d Descriptor, dest string, sink progress.Sink) Outcome {
	start := time.Now()
	out := Outcome{Index: index, Resource: d}

	tp := progress.TransferProgress{
		Index:   index,
		Name:    d.DisplayName(),
		Total:   d.SizeHint,
		Started: start,
		Updated: start,
		State:   progress.StateRunning,
	}
	sink.Publish(tp)

	var written int64
	_, err := e.client.Retry(ctx, func(ctx context.Context, attempt int) error {
		n, err := e.attempt(ctx, d, dest, &tp, sink)
		written = n
		return err
	})

	out.Elapsed = time.Since(start)
	tp.Updated = time.Now()

	if err != nil {
		if ctx.Err() != nil {
			err = cancelled(ctx)
		}
		tp.State = progress.StateFailed
		sink.Publish(tp)

		out.Status = StatusFailed
		out.Err = err
		return out
	}

	tp.Bytes = written
	tp.State = progress.StateSucceeded
	sink.Publish(tp)

	out.Status = StatusSucceeded
	out.Path = dest
	out.Bytes = written
	return out
}

// attempt performs one GET and streams the body into a temporary file
// next to dest. The temporary file is removed on every failure.
func (e *executor) attempt(ctx context.Context, d Descriptor, dest string, tp *progress.TransferProgress, sink progress.Sink) (int64, error) {
	resp, err := e.client.Get(ctx, d.URL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	expected := resp.ContentLength
	tp.Bytes = 0
	tp.Total = d.SizeHint
	if expected >= 0 {
		tp.Total = expected
	}
	tp.Updated = time.Now()
	sink.Publish(*tp)

	tmp := dest + "." + uuid.NewString()[:8] + ".part"
	f, err := e.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, &DestinationError{Path: tmp, Err: err}
	}

	written, err := e.copy(f, tmp, resp.Body, expected, tp, sink)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err == nil {
		if rerr := e.fs.Rename(tmp, dest); rerr != nil {
			err = &DestinationError{Path: dest, Err: rerr}
		}
	}
	if err != nil {
		e.fs.Remove(tmp)
		return written, err
	}
	return written, nil
}

// copy streams src to dst, publishing progress every e.every bytes or
// e.interval, whichever comes first.
func (e *executor) copy(dst io.Writer, path string, src io.Reader, expected int64, tp *progress.TransferProgress, sink progress.Sink) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var (
		written     int64
		unpublished int64
		lastPublish = time.Now()
	)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, &DestinationError{Path: path, Err: werr}
			}
			written += int64(n)
			unpublished += int64(n)

			if expected >= 0 && written > expected {
				return written, &SizeMismatchError{Expected: expected, Actual: written}
			}

			if unpublished >= e.every || time.Since(lastPublish) >= e.interval {
				tp.Bytes = written
				tp.Updated = time.Now()
				sink.Publish(*tp)
				unpublished = 0
				lastPublish = tp.Updated
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if expected >= 0 && errors.Is(rerr, io.ErrUnexpectedEOF) {
				return written, &SizeMismatchError{Expected: expected, Actual: written}
			}
			return written, rerr
		}
	}

	tp.Bytes = written
	tp.Updated = time.Now()
	sink.Publish(*tp)

	if expected >= 0 && written != expected {
		return written, &SizeMismatchError{Expected: expected, Actual: written}
	}
	return written, nil
}

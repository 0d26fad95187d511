// Package testutils provides shared test infrastructure: a file server
// with per-path fault injection and an in-memory CKAN catalog.
package testutils

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// GenerateTestData generates deterministic test data of the given size.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// Fault changes how the file server answers requests for one path.
type Fault struct {
	// Status is sent instead of the file. With FailTimes set, only the
	// first FailTimes requests get it.
	Status    int
	FailTimes int

	// TruncateAt declares the full Content-Length but closes the
	// connection after this many bytes. Ignored when Truncate is false.
	Truncate   bool
	TruncateAt int64

	// Block writes BlockAfter bytes, then holds the request open until
	// the client goes away or Release is called.
	Block      bool
	BlockAfter int64

	// Delay is slept before answering.
	Delay time.Duration

	// OmitLength streams the body without a Content-Length header.
	OmitLength bool
}

// FileServer serves in-memory files over HTTP.
type FileServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	faults   map[string]Fault
	requests map[string]int

	release     chan struct{}
	releaseOnce sync.Once
}

// NewFileServer starts a file server that is closed when t finishes.
func NewFileServer(t *testing.T) *FileServer {
	t.Helper()

	fs := &FileServer{
		files:    make(map[string][]byte),
		faults:   make(map[string]Fault),
		requests: make(map[string]int),
		release:  make(chan struct{}),
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(func() {
		fs.Release()
		fs.srv.Close()
	})
	return fs
}

// AddFile registers data at path and returns its URL.
func (fs *FileServer) AddFile(path string, data []byte) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = data
	return fs.URL(path)
}

// SetFault installs f for path.
func (fs *FileServer) SetFault(path string, f Fault) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.faults[path] = f
}

// URL returns the absolute URL of path.
func (fs *FileServer) URL(path string) string {
	return fs.srv.URL + path
}

// Requests returns how many requests were made for path.
func (fs *FileServer) Requests(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.requests[path]
}

// Release unblocks every request held by a Block fault.
func (fs *FileServer) Release() {
	fs.releaseOnce.Do(func() { close(fs.release) })
}

func (fs *FileServer) serve(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.requests[r.URL.Path]++
	n := fs.requests[r.URL.Path]
	data, ok := fs.files[r.URL.Path]
	fault, faulty := fs.faults[r.URL.Path]
	fs.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if faulty && fault.Delay > 0 {
		select {
		case <-time.After(fault.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if faulty && fault.Status != 0 && (fault.FailTimes == 0 || n <= fault.FailTimes) {
		http.Error(w, http.StatusText(fault.Status), fault.Status)
		return
	}

	if !faulty || !fault.OmitLength {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	switch {
	case faulty && fault.Truncate:
		end := min(fault.TruncateAt, int64(len(data)))
		w.Write(data[:end])
		// Returning short of Content-Length makes the server drop the
		// connection.
	case faulty && fault.Block:
		end := min(fault.BlockAfter, int64(len(data)))
		w.Write(data[:end])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-fs.release:
			w.Write(data[end:])
		}
	default:
		w.Write(data)
	}
}

// AssertFileContent fails t unless path on fs holds exactly expected.
func AssertFileContent(t *testing.T, fs vfs.FileSystem, path string, expected []byte) {
	t.Helper()

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	CompareReaderToData(t, f, expected)
}

// CompareReaderToData compares reader output with expected data in chunks.
func CompareReaderToData(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()

	buf := make([]byte, 64*1024)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}

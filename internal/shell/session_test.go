package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"

	"github.com/ligustah/datagov/internal/downloader"
	"github.com/ligustah/datagov/internal/explorer"
)

// recorder is an Explorer that records the calls it receives.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	dir   string
}

func (r *recorder) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	for prefix, err := range r.fail {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Search(_ context.Context, query string, opts explorer.SearchOptions) error {
	return r.record(fmt.Sprintf("search %q %d", query, opts.Limit))
}

func (r *recorder) Show(_ context.Context, id string) error {
	return r.record("show " + id)
}

func (r *recorder) Download(_ context.Context, id string, indexes ...int) (downloader.Summary, error) {
	return downloader.Summary{}, r.record(fmt.Sprintf("download %s %v", id, indexes))
}

func (r *recorder) ListOrganizations(_ context.Context, limit int) error {
	return r.record(fmt.Sprintf("list %d", limit))
}

func (r *recorder) Suggest(_ context.Context, prefix string, _ int) error {
	return r.record("suggest " + prefix)
}

func (r *recorder) Info() error {
	return r.record("info")
}

func (r *recorder) SetDownloadDir(path string) (string, error) {
	if err := r.record("setdir " + path); err != nil {
		return "", err
	}
	r.dir = path
	return path, nil
}

func TestSessionScript(t *testing.T) {
	rec := &recorder{}
	var out bytes.Buffer
	script := strings.Join([]string{
		"#!/usr/bin/env datagov shell",
		"",
		"search climate data 20",
		"show sample-set",
		"dl sample-set 0 2",
		"ls orgs",
		`cd "/tmp/My Downloads"`,
		"info",
		"suggest elec",
		"quit",
		"show never-reached",
	}, "\n")

	s := NewSession(Options{Explorer: rec, In: strings.NewReader(script), Out: &out})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []string{
		`search "climate data" 20`,
		"show sample-set",
		"download sample-set [0 2]",
		"list 0",
		"setdir /tmp/My Downloads",
		"info",
		"suggest elec",
	}, rec.Calls())
	assert.Equal(t, "/tmp/My Downloads", rec.dir)
	assert.Equal(t, Stats{Commands: 7}, s.Stats())
	assert.Contains(t, out.String(), "Goodbye!")
	assert.NotContains(t, out.String(), "data.gov>", "no prompt without a terminal")
}

func TestSessionErrorsDoNotEndSession(t *testing.T) {
	rec := &recorder{fail: map[string]error{"show": errors.New("dataset not found")}}
	var out, logs bytes.Buffer

	s := NewSession(Options{
		Explorer: rec,
		In:       strings.NewReader("show missing\nbogus\ninfo\n"),
		Out:      &out,
		Logger:   buflogr.NewWithBuffer(&logs),
	})
	require.NoError(t, s.Run(context.Background()), "end of input ends the session")

	assert.Equal(t, []string{"show missing", "info"}, rec.Calls())
	assert.Equal(t, Stats{Commands: 2, Failed: 2}, s.Stats())

	text := out.String()
	assert.Contains(t, text, "Error: dataset not found")
	assert.Contains(t, text, `Error: invalid command: unknown command "bogus"`)
	assert.Contains(t, logs.String(), "command failed")
}

func TestSessionInteractive(t *testing.T) {
	rec := &recorder{}
	var out bytes.Buffer

	s := NewSession(Options{Explorer: rec, In: strings.NewReader("help\n"), Out: &out, Interactive: true})
	require.NoError(t, s.Run(context.Background()))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Data.gov Interactive Explorer\n"), text)
	assert.Contains(t, text, "data.gov> ")
	assert.Contains(t, text, "Available Commands")
	assert.Contains(t, text, "search <query> [limit]")
	assert.Contains(t, text, "Example: download my-dataset 0 2")
	assert.Empty(t, rec.Calls(), "help is handled by the session")
}

func TestSessionContextCancel(t *testing.T) {
	rec := &recorder{}
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(Options{Explorer: rec, In: in, Out: io.Discard})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	_, err := io.WriteString(w, "info\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
}

func TestExecUnsupported(t *testing.T) {
	s := NewSession(Options{Explorer: &recorder{}})
	assert.ErrorIs(t, s.Exec(context.Background(), Command{Kind: Kind(42)}), ErrInvalidCommand)
	assert.NoError(t, s.Exec(context.Background(), Command{}))
}

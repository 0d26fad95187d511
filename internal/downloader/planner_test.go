package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBaseDir(t *testing.T) {
	dirs := Dirs{Home: "/home/user", Working: "/work"}

	tests := []struct {
		name     string
		mode     Mode
		override string
		want     string
	}{
		{"direct default", ModeDirect, "", "/work"},
		{"interactive default", ModeInteractive, "", "/home/user/Downloads"},
		{"absolute override", ModeInteractive, "/srv/data", "/srv/data"},
		{"relative override", ModeDirect, "out", "/work/out"},
		{"relative override interactive", ModeInteractive, "./out/../dl", "/work/dl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveBaseDir(tt.mode, tt.override, dirs))
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		d    Descriptor
		stem string
		ext  string
	}{
		{Descriptor{Name: "data", Format: "CSV"}, "data", ".csv"},
		{Descriptor{Name: "data.csv", Format: "CSV"}, "data", ".csv"},
		{Descriptor{Name: "Report.CSV", Format: "csv"}, "Report", ".CSV"},
		{Descriptor{Name: "shapes", Format: "ESRI Shapefile"}, "shapes", ".esrishapefile"},
		{Descriptor{Name: "archive.tar.gz"}, "archive.tar", ".gz"},
		{Descriptor{Name: "a/b\\c\x00"}, "abc", ""},
		{Descriptor{Name: "  spaced  ", Format: "txt"}, "spaced", ".txt"},
		{Descriptor{URL: "https://example.com/files/My%20File.json", Format: "JSON"}, "My File", ".json"},
		{Descriptor{Name: "..", URL: "https://example.com/x/rows.xml"}, "rows", ".xml"},
		{Descriptor{ID: "r1", URL: "https://example.com/"}, "r1", ""},
		{Descriptor{URL: "https://example.com", Format: "zip"}, "resource", ".zip"},
		{Descriptor{Name: ".csv", Format: "csv"}, ".csv", ".csv"},
	}

	for _, tt := range tests {
		stem, ext := FileName(tt.d)
		assert.Equal(t, tt.stem, stem, "stem of %+v", tt.d)
		assert.Equal(t, tt.ext, ext, "ext of %+v", tt.d)
	}
}

func TestPlanDuplicates(t *testing.T) {
	p := NewPlanner(memoryfs.New())

	var paths []string
	for _, name := range []string{"data", "data", "notes"} {
		dest, err := p.Plan("/data", "sample-set", Descriptor{Name: name, Format: "CSV"})
		require.NoError(t, err)
		paths = append(paths, dest.Path)
	}

	assert.Equal(t, []string{
		"/data/sample-set/data.csv",
		"/data/sample-set/data-1.csv",
		"/data/sample-set/notes.csv",
	}, paths)
}

func TestPlanExistingFile(t *testing.T) {
	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll("/data/sample-set", 0o755))
	require.NoError(t, vfs.WriteFile(fs, "/data/sample-set/data.csv", []byte("old"), 0o644))
	require.NoError(t, vfs.WriteFile(fs, "/data/sample-set/data-1.csv", []byte("old"), 0o644))

	p := NewPlanner(fs)
	dest, err := p.Plan("/data", "sample-set", Descriptor{Name: "data", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "/data/sample-set/data-2.csv", dest.Path)
	assert.Equal(t, "/data/sample-set", dest.Dir)
}

func TestPlanRelease(t *testing.T) {
	p := NewPlanner(memoryfs.New())
	d := Descriptor{Name: "data", Format: "csv"}

	first, err := p.Plan("/data", "sample-set", d)
	require.NoError(t, err)
	first.Release()
	first.Release()

	second, err := p.Plan("/data", "sample-set", d)
	require.NoError(t, err)
	assert.Equal(t, first.Path, second.Path, "released names are reused when nothing was written")
}

func TestPlanConcurrentClaims(t *testing.T) {
	p := NewPlanner(memoryfs.New())

	const perWorker = 25
	var (
		mu    sync.Mutex
		seen  = make(map[string]bool)
		wg    sync.WaitGroup
		errCh = make(chan error, 4*perWorker)
	)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				dest, err := p.Plan("/data", "sample-set", Descriptor{Name: "data", Format: "csv"})
				if err != nil {
					errCh <- err
					return
				}
				mu.Lock()
				if seen[dest.Path] {
					errCh <- fmt.Errorf("duplicate path %s", dest.Path)
				}
				seen[dest.Path] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
	assert.Len(t, seen, 4*perWorker)
}

func TestPlanSanitizesDatasetID(t *testing.T) {
	p := NewPlanner(memoryfs.New())

	dest, err := p.Plan("/data", "../escape", Descriptor{Name: "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dest.Path, "/data/"), dest.Path)
	assert.Equal(t, "/data/..escape/x", dest.Path)

	_, err = p.Plan("/data", "..", Descriptor{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidDestination)
}

func TestPlanInvalidDestination(t *testing.T) {
	base := t.TempDir()
	// A regular file where the dataset directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(base, "sample-set"), []byte("x"), 0o644))

	p := NewPlanner(osfs.New())
	_, err := p.Plan(base, "sample-set", Descriptor{Name: "data"})

	require.ErrorIs(t, err, ErrInvalidDestination)
	var destErr *DestinationError
	require.ErrorAs(t, err, &destErr)
	assert.Equal(t, filepath.Join(base, "sample-set"), destErr.Path)
}

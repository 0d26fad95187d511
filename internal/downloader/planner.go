package downloader

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Mode selects how the default base directory is chosen.
type Mode int

const (
	// ModeDirect is a one-shot command: files land in the working
	// directory.
	ModeDirect Mode = iota
	// ModeInteractive is the shell: files land in ~/Downloads.
	ModeInteractive
)

func (m Mode) String() string {
	if m == ModeInteractive {
		return "interactive"
	}
	return "direct"
}

// Dirs are the environment directories used to pick a base directory.
type Dirs struct {
	Home    string
	Working string
}

// ResolveBaseDir picks the base directory for a request. A non-empty
// override wins; a relative override is taken relative to the working
// directory.
func ResolveBaseDir(mode Mode, override string, dirs Dirs) string {
	if override != "" {
		if filepath.IsAbs(override) || dirs.Working == "" {
			return filepath.Clean(override)
		}
		return filepath.Join(dirs.Working, override)
	}
	if mode == ModeInteractive {
		return filepath.Join(dirs.Home, "Downloads")
	}
	return dirs.Working
}

// Destination is a planned, claimed destination path. Release must be
// called once the transfer has ended.
type Destination struct {
	Path string
	Dir  string

	release func()
	once    sync.Once
}

// Release drops the claim on the path.
func (d *Destination) Release() {
	if d == nil || d.release == nil {
		return
	}
	d.once.Do(d.release)
}

// Planner assigns destination paths. Names are unique across everything
// on disk and everything claimed by in-flight transfers, including those
// of other requests sharing the planner.
type Planner struct {
	fs vfs.VFS

	mu   sync.Mutex
	dirs map[string]*dirClaims
}

type dirClaims struct {
	mu    sync.Mutex
	names map[string]bool
}

// NewPlanner creates a planner over fs.
func NewPlanner(fs vfs.FileSystem) *Planner {
	return &Planner{
		fs:   vfs.New(fs),
		dirs: make(map[string]*dirClaims),
	}
}

// Plan creates the dataset directory under baseDir and claims a free
// file name for d.
func (p *Planner) Plan(baseDir, datasetID string, d Descriptor) (*Destination, error) {
	sub := sanitize(datasetID)
	if sub == "" {
		return nil, &DestinationError{Path: baseDir, Err: fmt.Errorf("dataset id %q has no usable path segment", datasetID)}
	}

	dir := p.fs.Join(baseDir, sub)
	if err := p.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, &DestinationError{Path: dir, Err: err}
	}
	if ok, err := p.fs.DirExists(dir); err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("not a directory")
		}
		return nil, &DestinationError{Path: dir, Err: err}
	}

	stem, ext := FileName(d)
	claims := p.claims(dir)

	claims.mu.Lock()
	defer claims.mu.Unlock()

	for n := 0; ; n++ {
		name := stem + ext
		if n > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		if claims.names[name] {
			continue
		}

		full := p.fs.Join(dir, name)
		exists, err := p.fs.Exists(full)
		if err != nil {
			return nil, &DestinationError{Path: full, Err: err}
		}
		if exists {
			continue
		}

		claims.names[name] = true
		return &Destination{
			Path: full,
			Dir:  dir,
			release: func() {
				claims.mu.Lock()
				delete(claims.names, name)
				claims.mu.Unlock()
			},
		}, nil
	}
}

func (p *Planner) claims(dir string) *dirClaims {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.dirs[dir]
	if !ok {
		c = &dirClaims{names: make(map[string]bool)}
		p.dirs[dir] = c
	}
	return c
}

// FileName derives the file name for d, split into stem and extension.
// The stem comes from the resource name, else the last URL path segment,
// else the resource id, else "resource". The extension is the lowercased
// format unless the name already carries it.
func FileName(d Descriptor) (stem, ext string) {
	name := sanitize(d.Name)
	if name == "" {
		name = sanitize(urlSegment(d.URL))
	}
	if name == "" {
		name = sanitize(d.ID)
	}
	if name == "" {
		name = "resource"
	}

	format := formatExt(d.Format)
	if format == "" {
		ext = path.Ext(name)
		if ext == name {
			ext = ""
		}
		return strings.TrimSuffix(name, ext), ext
	}

	ext = "." + format
	if strings.HasSuffix(strings.ToLower(name), ext) && len(name) > len(ext) {
		return name[:len(name)-len(ext)], name[len(name)-len(ext):]
	}
	return name, ext
}

func urlSegment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	seg := path.Base(u.Path)
	if seg == "/" || seg == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	return seg
}

func formatExt(format string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(format) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sanitize makes s safe as a single path segment.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "." || s == ".." {
		return ""
	}
	return s
}

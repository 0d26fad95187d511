package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/ligustah/datagov/internal/ckan"
	"github.com/ligustah/datagov/internal/config"
	"github.com/ligustah/datagov/internal/downloader"
	"github.com/ligustah/datagov/internal/progress"
)

// ErrInvalidArgument is returned for arguments that cannot be served, such
// as a resource index outside the dataset.
var ErrInvalidArgument = errors.New("invalid argument")

// Catalog is the part of the CKAN client used by the explorer.
type Catalog interface {
	downloader.Catalog
	PackageSearch(ctx context.Context, p ckan.SearchParams) (*ckan.SearchResult, error)
	OrganizationList(ctx context.Context, limit int) ([]string, error)
	DatasetAutocomplete(ctx context.Context, q string, limit int) ([]ckan.AutocompleteResult, error)
}

// Options configures an Explorer.
type Options struct {
	Catalog    Catalog
	Downloader *downloader.Downloader
	Config     config.Config
	Mode       downloader.Mode

	// Out receives command output.
	// Default: os.Stdout
	Out io.Writer

	// Progress receives live progress while downloading. Nil disables it.
	Progress io.Writer

	// Color enables colored output.
	Color bool

	// FS is used to validate download directories.
	// Default: osfs.New()
	FS vfs.FileSystem

	Logger logr.Logger
}

// Explorer implements the catalog commands shared by direct mode and the
// interactive shell.
type Explorer struct {
	opts Options
	p    palette

	// downloadDir overrides Config.DownloadDir once set by SetDownloadDir.
	downloadDir string
}

// New creates an explorer.
func New(opts Options) *Explorer {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.FS == nil {
		opts.FS = osfs.New()
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Explorer{
		opts:        opts,
		p:           newPalette(opts.Color),
		downloadDir: opts.Config.DownloadDir,
	}
}

// Mode returns the operating mode the explorer was created for.
func (e *Explorer) Mode() downloader.Mode {
	return e.opts.Mode
}

// DefaultSearchLimit is used when Search is called without a limit.
const DefaultSearchLimit = 10

// SearchOptions narrows a search.
type SearchOptions struct {
	// Limit is the number of results to show.
	// Default: DefaultSearchLimit
	Limit int

	Organization string
	Format       string
}

// Search lists datasets matching query.
func (e *Explorer) Search(ctx context.Context, query string, opts SearchOptions) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty search query", ErrInvalidArgument)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}

	e.printf("%s '%s'...\n", e.p.info.Sprint("Searching for"), query)

	res, err := e.opts.Catalog.PackageSearch(ctx, ckan.SearchParams{
		Query:        query,
		Rows:         opts.Limit,
		Organization: opts.Organization,
		Format:       opts.Format,
	})
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}

	e.printf("\n%s %d results:\n\n", e.p.ok.Sprint("Found"), res.Count)
	for i, pkg := range res.Results {
		e.printf("%s. %s %s\n", e.p.index.Sprintf("%2d", i+1), e.p.name.Sprint(pkg.Name), e.p.dim.Sprint(pkg.Title))
		if notes := oneLine(pkg.Notes); notes != "" {
			e.printf("   %s\n", e.p.dim.Sprint(truncate(notes, 100)))
		}
		e.printf("\n")
	}
	if shown := len(res.Results); res.Count > shown {
		e.printf("... and %d more results\n", res.Count-shown)
	}
	return nil
}

// Show prints dataset details and its downloadable resources, indexed
// the way Download expects them.
func (e *Explorer) Show(ctx context.Context, datasetID string) error {
	e.printf("%s dataset '%s'...\n", e.p.info.Sprint("Fetching"), datasetID)

	pkg, err := e.opts.Catalog.PackageShow(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("show %q: %w", datasetID, err)
	}

	e.printf("\n%s\n", e.p.title.Sprint("Dataset Details"))
	e.printf("%s: %s\n", e.p.label.Sprint("Name"), e.p.name.Sprint(pkg.Name))
	if pkg.Title != "" {
		e.printf("%s: %s\n", e.p.label.Sprint("Title"), pkg.Title)
	}
	if pkg.Organization != nil {
		org := pkg.Organization.Title
		if org == "" {
			org = pkg.Organization.Name
		}
		e.printf("%s: %s\n", e.p.label.Sprint("Organization"), org)
	}
	if pkg.Notes != "" {
		e.printf("\n%s:\n%s\n", e.p.label.Sprint("Description"), e.p.dim.Sprint(pkg.Notes))
	}
	if pkg.LicenseTitle != "" {
		e.printf("\n%s: %s\n", e.p.label.Sprint("License"), e.p.ok.Sprint(pkg.LicenseTitle))
	}
	if pkg.Author != "" {
		e.printf("%s: %s\n", e.p.label.Sprint("Author"), pkg.Author)
	}
	if pkg.Maintainer != "" {
		e.printf("%s: %s\n", e.p.label.Sprint("Maintainer"), pkg.Maintainer)
	}
	if pkg.MetadataModified != "" {
		e.printf("%s: %s\n", e.p.label.Sprint("Modified"), pkg.MetadataModified)
	}
	if len(pkg.Tags) > 0 {
		tags := make([]string, 0, len(pkg.Tags))
		for _, t := range pkg.Tags {
			tags = append(tags, t.Name)
		}
		e.printf("%s: %s\n", e.p.label.Sprint("Tags"), strings.Join(tags, ", "))
	}

	descs := downloader.Resolve(pkg)
	if len(descs) == 0 {
		e.printf("\n%s No downloadable resources found\n\n", e.p.warn.Sprint("Warning:"))
		return nil
	}

	e.printf("\n%d downloadable resources:\n", len(descs))
	for i, d := range descs {
		name := d.Name
		if name == "" {
			name = "Unnamed"
		}
		format := d.Format
		if format == "" {
			format = "Unknown"
		}
		var size string
		if d.SizeHint >= 0 {
			size = " (" + progress.FormatBytes(d.SizeHint) + ")"
		}
		e.printf("  %s. %s %s%s\n", e.p.index.Sprint(i), e.p.name.Sprint(name), e.p.format.Sprintf("[%s]", format), e.p.dim.Sprint(size))
		if desc := oneLine(description(pkg, d)); desc != "" {
			e.printf("     %s\n", e.p.dim.Sprint(truncate(desc, 80)))
		}
	}

	e.printf("\nUse 'download %s' to download all resources\n", pkg.Name)
	e.printf("Use 'download %s <index>' to download a specific resource\n\n", pkg.Name)
	return nil
}

// Download fetches the downloadable resources of datasetID, or only those
// at indexes when any are given. Failed resources do not make Download
// return an error; they are reported in the Summary.
func (e *Explorer) Download(ctx context.Context, datasetID string, indexes ...int) (downloader.Summary, error) {
	e.printf("%s dataset '%s'...\n", e.p.info.Sprint("Fetching"), datasetID)

	all, err := downloader.ResolveDataset(ctx, e.opts.Catalog, datasetID)
	if err != nil {
		return downloader.Summary{}, fmt.Errorf("resolve %q: %w", datasetID, err)
	}
	if len(all) == 0 {
		e.printf("%s No downloadable resources found in this dataset.\n", e.p.warn.Sprint("Warning:"))
		return downloader.Summary{}, nil
	}

	// positions maps request positions back to catalog indexes
	resources, positions := all, make([]int, len(all))
	for i := range positions {
		positions[i] = i
	}
	if len(indexes) > 0 {
		resources, positions = make([]downloader.Descriptor, 0, len(indexes)), make([]int, 0, len(indexes))
		for _, idx := range indexes {
			if idx < 0 || idx >= len(all) {
				return downloader.Summary{}, fmt.Errorf("%w: resource index %d is out of range (0-%d)", ErrInvalidArgument, idx, len(all)-1)
			}
			resources = append(resources, all[idx])
			positions = append(positions, idx)
		}
	}

	baseDir, err := e.BaseDir()
	if err != nil {
		return downloader.Summary{}, err
	}

	e.printf("%s %d resources...\n", e.p.info.Sprint("Downloading"), len(resources))

	run, err := e.opts.Downloader.Start(ctx, downloader.Request{
		DatasetID:   datasetID,
		Resources:   resources,
		BaseDir:     baseDir,
		Concurrency: e.opts.Config.Concurrency,
	})
	if err != nil {
		return downloader.Summary{}, err
	}

	var renderer *progress.Renderer
	if e.opts.Progress != nil {
		renderer = progress.NewRenderer(progress.RendererOptions{
			Output:         e.opts.Progress,
			UpdateInterval: 500 * time.Millisecond,
			Label:          datasetID,
		})
		renderer.Start(ctx, run.Progress())
	}

	outcomes := run.Wait()
	if renderer != nil {
		renderer.Wait()
	}

	for i, o := range outcomes {
		idx := positions[i]
		switch o.Status {
		case downloader.StatusSucceeded:
			e.printf("  %s Resource %d: %s\n", e.p.ok.Sprint("✓"), idx, e.p.path.Sprint(o.Path))
		case downloader.StatusFailed:
			e.printf("  %s Resource %d: %s\n", e.p.fail.Sprint("✗"), idx, e.p.fail.Sprint(o.Err))
		case downloader.StatusSkipped:
			e.printf("  %s Resource %d skipped: %s\n", e.p.warn.Sprint("-"), idx, o.Err)
		}
	}

	summary := downloader.Summarize(outcomes)
	e.printf("\n%s %s downloaded, %s failed, %d skipped (%s)\n",
		e.p.label.Sprint("Summary:"),
		e.p.ok.Sprint(summary.Succeeded),
		e.p.fail.Sprint(summary.Failed),
		summary.Skipped,
		progress.FormatBytes(summary.Bytes),
	)

	e.opts.Logger.V(1).Info("download summary", "dataset", datasetID, "run", run.ID(),
		"succeeded", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// ListOrganizations prints the catalog's organizations. A limit of zero
// lists all of them.
func (e *Explorer) ListOrganizations(ctx context.Context, limit int) error {
	e.printf("%s organizations...\n", e.p.info.Sprint("Fetching"))

	orgs, err := e.opts.Catalog.OrganizationList(ctx, limit)
	if err != nil {
		return fmt.Errorf("list organizations: %w", err)
	}

	e.printf("\n%s %d organizations:\n", e.p.ok.Sprint("Government"), len(orgs))
	for i, org := range orgs {
		e.printf("%s. %s\n", e.p.index.Sprintf("%3d", i+1), org)
	}
	return nil
}

// Suggest prints dataset names starting with prefix.
func (e *Explorer) Suggest(ctx context.Context, prefix string, limit int) error {
	results, err := e.opts.Catalog.DatasetAutocomplete(ctx, prefix, limit)
	if err != nil {
		return fmt.Errorf("autocomplete %q: %w", prefix, err)
	}
	if len(results) == 0 {
		e.printf("No datasets start with '%s'\n", prefix)
		return nil
	}
	for _, r := range results {
		e.printf("  %s %s\n", e.p.name.Sprint(r.Name), e.p.dim.Sprint(r.Title))
	}
	return nil
}

// Info prints the session settings.
func (e *Explorer) Info() error {
	dir, err := e.BaseDir()
	if err != nil {
		return err
	}

	e.printf("\n%s\n", e.p.title.Sprint("Client Information"))
	e.printf("Mode: %s\n", e.opts.Mode)
	e.printf("Download directory: %s\n", e.p.path.Sprint(dir))
	e.printf("CKAN endpoint: %s\n", e.p.path.Sprint(e.opts.Config.CatalogURL))
	e.printf("Concurrency: %d\n", e.opts.Config.Concurrency)
	return nil
}

// SetDownloadDir changes the base download directory of this explorer.
// The directory is created when missing. It returns the resolved path.
func (e *Explorer) SetDownloadDir(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty download directory", ErrInvalidArgument)
	}

	cfg := e.opts.Config
	cfg.DownloadDir = path
	dir, err := cfg.BaseDir(e.opts.Mode)
	if err != nil {
		return "", err
	}

	if err := e.opts.FS.MkdirAll(dir, 0o755); err != nil {
		return "", &downloader.DestinationError{Path: dir, Err: err}
	}
	if ok, err := vfs.DirExists(e.opts.FS, dir); err != nil || !ok {
		return "", &downloader.DestinationError{Path: dir, Err: errors.New("not a directory")}
	}

	e.downloadDir = path
	e.printf("%s Download directory set to: %s\n", e.p.ok.Sprint("Success!"), e.p.path.Sprint(dir))
	return dir, nil
}

// BaseDir returns the download base directory currently in effect.
func (e *Explorer) BaseDir() (string, error) {
	cfg := e.opts.Config
	cfg.DownloadDir = e.downloadDir
	return cfg.BaseDir(e.opts.Mode)
}

func (e *Explorer) printf(format string, args ...any) {
	fmt.Fprintf(e.opts.Out, format, args...)
}

// description finds the catalog description of d.
func description(pkg *ckan.Package, d downloader.Descriptor) string {
	for _, r := range pkg.Resources {
		if r.ID == d.ID && r.URL == d.URL {
			return r.Description
		}
	}
	return ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

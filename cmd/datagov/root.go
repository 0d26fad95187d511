package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ligustah/datagov/internal/ckan"
	"github.com/ligustah/datagov/internal/config"
	"github.com/ligustah/datagov/internal/downloader"
	"github.com/ligustah/datagov/internal/explorer"
	dghttp "github.com/ligustah/datagov/internal/http"
	"github.com/ligustah/datagov/internal/logging"
	"github.com/ligustah/datagov/internal/metrics"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	ConfigFile  string
	EnvFile     string
	CatalogURL  string
	APIKey      string
	DownloadDir string
	Concurrency int
	NoProgress  bool
	NoColor     bool
	Verbosity   int
	LogFormat   string
	MetricsFile string
}

func (o *globalOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", "", "path to a YAML configuration file")
	fs.StringVar(&o.EnvFile, "env-file", "", "path to a .env file (default: ./.env when present)")
	fs.StringVar(&o.CatalogURL, "catalog-url", "", "CKAN API root (default "+ckan.DefaultBaseURL+")")
	fs.StringVar(&o.APIKey, "api-key", "", "CKAN API key")
	fs.StringVar(&o.DownloadDir, "download-dir", "", "base download directory")
	fs.IntVar(&o.Concurrency, "concurrency", 0, "maximum parallel transfers (default 4)")
	fs.BoolVar(&o.NoProgress, "no-progress", false, "do not display download progress")
	fs.BoolVar(&o.NoColor, "no-color", false, "disable colored output")
	fs.IntVarP(&o.Verbosity, "verbose", "v", 0, "log verbosity")
	fs.StringVar(&o.LogFormat, "log-format", "", "log format: text or json")
	fs.StringVar(&o.MetricsFile, "metrics-file", "", "write transfer metrics in Prometheus text format to this file on exit")
}

// app holds the streams and the components built for one invocation.
type app struct {
	opts   globalOptions
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg      config.Config
	log      logr.Logger
	registry *prometheus.Registry
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr, log: logr.Discard()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "datagov",
		Short: "Search and download datasets from a CKAN open data catalog",
		Long: `datagov searches a CKAN catalog such as catalog.data.gov, shows dataset
metadata and downloads resource files.

Without a command it starts the interactive shell.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	a.opts.AddFlags(root.PersistentFlags())

	root.AddCommand(
		a.searchCommand(),
		a.showCommand(),
		a.downloadCommand(),
		a.listCommand(),
		a.suggestCommand(),
		a.infoCommand(),
		a.shellCommand(),
	)
	return root
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		return nil
	}
}

// loadConfig layers defaults, the config file, the .env file, the
// environment and the flags.
func (a *app) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if a.opts.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(a.opts.ConfigFile); err != nil {
			return config.Config{}, err
		}
	}
	if err := config.LoadDotEnv(a.opts.EnvFile); err != nil {
		return config.Config{}, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	cfg = cfg.Merge(config.Config{
		CatalogURL:  a.opts.CatalogURL,
		APIKey:      a.opts.APIKey,
		DownloadDir: a.opts.DownloadDir,
		Concurrency: a.opts.Concurrency,
		Log:         config.LogConfig{Verbosity: a.opts.Verbosity, Format: a.opts.LogFormat},
	})
	if a.opts.NoProgress {
		cfg.Progress = false
	}
	if a.opts.NoColor {
		cfg.Color = false
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("%w: %w", downloader.ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// explorer builds the components for one command run in mode.
func (a *app) explorer(mode downloader.Mode) (*explorer.Explorer, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	a.cfg = cfg

	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", downloader.ErrInvalidConfiguration, err)
	}
	a.log = logging.New(logging.Options{
		Writer:    a.stderr,
		Verbosity: cfg.Log.Verbosity,
		Format:    format,
	})

	a.registry = prometheus.NewRegistry()
	m := metrics.New(a.registry)

	client := dghttp.NewClient(cfg.HTTPOptions())
	catalog := ckan.NewClient(ckan.Options{
		BaseURL: cfg.CatalogURL,
		APIKey:  cfg.APIKey,
		HTTP:    client,
		Logger:  a.log.WithName("ckan"),
	})

	dl := downloader.New(downloader.Options{
		HTTP:             client,
		ProgressInterval: cfg.ProgressInterval,
		ProgressBytes:    cfg.ProgressBytes,
		NoProgress:       !cfg.Progress,
		Metrics:          m,
		Logger:           a.log.WithName("downloader"),
	})

	var progressOut io.Writer
	if cfg.Progress && isTerminal(a.stderr) {
		progressOut = a.stderr
	}

	a.log.V(1).Info("configuration loaded", "catalog", cfg.CatalogURL, "mode", mode.String(), "concurrency", cfg.Concurrency)

	return explorer.New(explorer.Options{
		Catalog:    catalog,
		Downloader: dl,
		Config:     cfg,
		Mode:       mode,
		Out:        a.stdout,
		Progress:   progressOut,
		Color:      cfg.Color && isTerminal(a.stdout),
		Logger:     a.log.WithName("explorer"),
	}), nil
}

// finish writes the metrics file when one was requested.
func (a *app) finish() error {
	if a.opts.MetricsFile == "" || a.registry == nil {
		return nil
	}
	if err := metrics.WriteFile(a.registry, a.opts.MetricsFile); err != nil {
		return err
	}
	a.log.V(1).Info("metrics written", "path", a.opts.MetricsFile)
	return nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

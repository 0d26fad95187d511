package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/go-logr/logr"

	"github.com/ligustah/datagov/internal/downloader"
	"github.com/ligustah/datagov/internal/explorer"
)

// Explorer runs the catalog commands. *explorer.Explorer implements it.
type Explorer interface {
	Search(ctx context.Context, query string, opts explorer.SearchOptions) error
	Show(ctx context.Context, datasetID string) error
	Download(ctx context.Context, datasetID string, indexes ...int) (downloader.Summary, error)
	ListOrganizations(ctx context.Context, limit int) error
	Suggest(ctx context.Context, prefix string, limit int) error
	Info() error
	SetDownloadDir(path string) (string, error)
}

// Options configures a Session.
type Options struct {
	Explorer Explorer

	// In is read line by line.
	// Default: os.Stdin
	In io.Reader

	// Out receives the banner, prompts and errors.
	// Default: os.Stdout
	Out io.Writer

	// Interactive prints the banner and a prompt before every line.
	// Scripts piped on stdin run without them.
	Interactive bool

	Color  bool
	Logger logr.Logger
}

// Stats counts what a session did.
type Stats struct {
	Commands int
	Failed   int
}

// Session is one run of the interactive shell.
type Session struct {
	opts Options

	prompt *color.Color
	errc   *color.Color
	bold   *color.Color
	stats  Stats
}

// NewSession creates a session.
func NewSession(opts Options) *Session {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}

	s := &Session{
		opts:   opts,
		prompt: color.New(color.FgGreen, color.Bold),
		errc:   color.New(color.FgRed, color.Bold),
		bold:   color.New(color.FgBlue, color.Bold),
	}
	for _, c := range []*color.Color{s.prompt, s.errc, s.bold} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// Stats returns the counters of the session so far.
func (s *Session) Stats() Stats {
	return s.stats
}

// Run reads and executes commands until quit, end of input or ctx ends.
// Command failures are printed and do not end the session.
func (s *Session) Run(ctx context.Context) error {
	if s.opts.Interactive {
		fmt.Fprintln(s.opts.Out, s.bold.Sprint("Data.gov Interactive Explorer"))
		fmt.Fprintln(s.opts.Out, "Type 'help' for available commands, 'quit' to exit")
		fmt.Fprintln(s.opts.Out)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if s.opts.Interactive {
			fmt.Fprint(s.opts.Out, s.prompt.Sprint("data.gov>")+" ")
		}

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.opts.Out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			if s.opts.Interactive {
				fmt.Fprintln(s.opts.Out)
			}
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
			default:
			}
			return nil
		}

		cmd, err := Parse(line)
		if err != nil {
			s.stats.Failed++
			fmt.Fprintf(s.opts.Out, "%s %v\n", s.errc.Sprint("Error:"), err)
			continue
		}
		if cmd.Kind == KindNone {
			continue
		}
		if cmd.Kind == KindQuit {
			fmt.Fprintln(s.opts.Out, "Goodbye!")
			return nil
		}

		s.stats.Commands++
		if err := s.Exec(ctx, cmd); err != nil {
			s.stats.Failed++
			s.opts.Logger.V(1).Info("command failed", "command", cmd.Kind.String(), "error", err.Error())
			fmt.Fprintf(s.opts.Out, "%s %v\n", s.errc.Sprint("Error:"), err)
		}
	}
}

// Exec runs one parsed command.
func (s *Session) Exec(ctx context.Context, cmd Command) error {
	ex := s.opts.Explorer
	switch cmd.Kind {
	case KindNone, KindQuit:
		return nil
	case KindSearch:
		return ex.Search(ctx, cmd.Query, explorer.SearchOptions{Limit: cmd.Limit})
	case KindShow:
		return ex.Show(ctx, cmd.DatasetID)
	case KindDownload:
		_, err := ex.Download(ctx, cmd.DatasetID, cmd.Indexes...)
		return err
	case KindList:
		return ex.ListOrganizations(ctx, cmd.Limit)
	case KindSuggest:
		return ex.Suggest(ctx, cmd.Query, cmd.Limit)
	case KindSetDir:
		_, err := ex.SetDownloadDir(cmd.Path)
		return err
	case KindInfo:
		return ex.Info()
	case KindHelp:
		s.printHelp()
		return nil
	default:
		return fmt.Errorf("%w: unsupported command %s", ErrInvalidCommand, cmd.Kind)
	}
}

func (s *Session) printHelp() {
	fmt.Fprintf(s.opts.Out, "\n%s\n\n", s.bold.Sprint("Available Commands"))
	for _, u := range usages {
		fmt.Fprintf(s.opts.Out, "%s %s\n", s.prompt.Sprintf("%-34s", u.syntax), u.summary)
		fmt.Fprintf(s.opts.Out, "%-34s Example: %s\n\n", "", u.example)
	}
	fmt.Fprintln(s.opts.Out, "Short forms: s (search), d (show), dl (download), ls (list), cd (setdir), q (quit)")
	fmt.Fprintln(s.opts.Out, "Quote multi-word arguments: setdir \"My Downloads\"")
	fmt.Fprintln(s.opts.Out, "Lines starting with # are ignored, so scripts can be piped in.")
	fmt.Fprintln(s.opts.Out)
}

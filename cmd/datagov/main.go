package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ligustah/datagov/internal/ckan"
	"github.com/ligustah/datagov/internal/downloader"
	"github.com/ligustah/datagov/internal/explorer"
	"github.com/ligustah/datagov/internal/shell"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitCatalogError   = 3
	ExitPartialFailure = 4
)

var (
	// errUsage marks bad command lines.
	errUsage = errors.New("invalid usage")
	// errPartialFailure is returned when some resources were not downloaded.
	errPartialFailure = errors.New("download incomplete")
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// execute runs the CLI with the given streams and returns the exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if ferr := a.finish(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var upstream *ckan.UpstreamError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errPartialFailure):
		return ExitPartialFailure
	case errors.Is(err, errUsage),
		errors.Is(err, explorer.ErrInvalidArgument),
		errors.Is(err, shell.ErrInvalidCommand),
		errors.Is(err, downloader.ErrInvalidConfiguration):
		return ExitInvalidArgs
	case errors.Is(err, ckan.ErrNotFound), errors.As(err, &upstream):
		return ExitCatalogError
	default:
		return ExitGeneralError
	}
}

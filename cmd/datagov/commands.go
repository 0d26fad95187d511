package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligustah/datagov/internal/downloader"
	"github.com/ligustah/datagov/internal/explorer"
	"github.com/ligustah/datagov/internal/shell"
)

func (a *app) searchCommand() *cobra.Command {
	var opts explorer.SearchOptions
	cmd := &cobra.Command{
		Use:   "search QUERY... [LIMIT]",
		Short: "Search for datasets",
		Long: `search lists datasets matching QUERY. A trailing number is taken as the
result limit, so "datagov search climate 20" shows up to 20 results.`,
		Example: `  datagov search climate data 20
  datagov search "air quality" --organization epa-gov --format CSV`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := shell.ParseArgs(append([]string{"search"}, args...))
			if err != nil {
				return err
			}
			if opts.Limit == 0 {
				opts.Limit = parsed.Limit
			}

			ex, err := a.explorer(downloader.ModeDirect)
			if err != nil {
				return err
			}
			return ex.Search(cmd.Context(), parsed.Query, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, fmt.Sprintf("number of results (default %d)", explorer.DefaultSearchLimit))
	cmd.Flags().StringVar(&opts.Organization, "organization", "", "only datasets of this organization")
	cmd.Flags().StringVar(&opts.Format, "format", "", "only datasets with a resource in this format")
	return cmd
}

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show DATASET",
		Aliases: []string{"describe"},
		Short:   "Show detailed dataset information",
		Example: "  datagov show consumer-complaint-database",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := a.explorer(downloader.ModeDirect)
			if err != nil {
				return err
			}
			return ex.Show(cmd.Context(), args[0])
		},
	}
}

func (a *app) downloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "download DATASET [INDEX...]",
		Aliases: []string{"dl"},
		Short:   "Download dataset resources",
		Long: `download fetches the downloadable resources of DATASET into
<download-dir>/<DATASET>/. Give resource indexes, as printed by show, to
download only those.

The exit code is 4 when one or more resources could not be downloaded.`,
		Example: `  datagov download consumer-complaint-database
  datagov download consumer-complaint-database 0 2 --download-dir ./data`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := shell.ParseArgs(append([]string{"download"}, args...))
			if err != nil {
				return err
			}

			ex, err := a.explorer(downloader.ModeDirect)
			if err != nil {
				return err
			}
			summary, err := ex.Download(cmd.Context(), parsed.DatasetID, parsed.Indexes...)
			if err != nil {
				return err
			}
			if !summary.OK() {
				return fmt.Errorf("%w: %d failed, %d skipped", errPartialFailure, summary.Failed, summary.Skipped)
			}
			return nil
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list organizations [LIMIT]",
		Aliases: []string{"ls"},
		Short:   "List government organizations",
		Example: "  datagov list orgs 25",
		Args:    usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := shell.ParseArgs(append([]string{"list"}, args...))
			if err != nil {
				return err
			}

			ex, err := a.explorer(downloader.ModeDirect)
			if err != nil {
				return err
			}
			return ex.ListOrganizations(cmd.Context(), parsed.Limit)
		},
	}
}

func (a *app) suggestCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "suggest PREFIX",
		Short:   "Suggest dataset names starting with PREFIX",
		Example: "  datagov suggest elect",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := a.explorer(downloader.ModeDirect)
			if err != nil {
				return err
			}
			return ex.Suggest(cmd.Context(), args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of suggestions")
	return cmd
}

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "info",
		Aliases: []string{"status"},
		Short:   "Show the effective settings",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ex, err := a.explorer(downloader.ModeDirect)
			if err != nil {
				return err
			}
			return ex.Info()
		},
	}
}

func (a *app) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell (default)",
		Long: `shell reads commands from standard input. On a terminal it prints a
prompt; otherwise it runs the piped lines as a script.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd)
		},
	}
}

func (a *app) runShell(cmd *cobra.Command) error {
	ex, err := a.explorer(downloader.ModeInteractive)
	if err != nil {
		return err
	}

	session := shell.NewSession(shell.Options{
		Explorer:    ex,
		In:          a.stdin,
		Out:         a.stdout,
		Interactive: isTerminal(a.stdin),
		Color:       a.cfg.Color && isTerminal(a.stdout),
		Logger:      a.log.WithName("shell"),
	})
	return session.Run(cmd.Context())
}

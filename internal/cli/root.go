// Package cli implements the cashflow command line. Commands operate on an Env opened
// once per invocation, so tests can run them against an in-memory ledger.
package cli

import (
	"context"
	"fmt"

	"github.com/dvloznov/cashflow-planner/internal/backup"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/insights"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/dvloznov/cashflow-planner/internal/notionsync"
	"github.com/spf13/cobra"
)

// Syncer runs one sync cycle.
type Syncer interface {
	Sync(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error)
}

// Backups reads and writes backup documents.
type Backups interface {
	Export(ctx context.Context, location string) (backup.Document, error)
	Import(ctx context.Context, location string) (domain.Dataset, error)
}

// InsightsSource produces the advisory text.
type InsightsSource interface {
	Insights(ctx context.Context, in insights.Input) string
}

// NotionExporter mirrors transactions into Notion.
type NotionExporter interface {
	Export(ctx context.Context, ds domain.Dataset, opts notionsync.Options) (notionsync.Result, error)
}

// Env is what a command works on. Only Ledger is required; commands needing a
// missing service fail with ExitCommandError.
type Env struct {
	Ledger   *ledger.Ledger
	Sync     Syncer
	Backup   Backups
	Insights InsightsSource
	Notion   NotionExporter

	// Close is called once the command finishes, whatever its outcome.
	Close func()
}

// OpenFunc builds the Env for one invocation.
type OpenFunc func(ctx context.Context, opts *RootOptions) (*Env, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	open OpenFunc
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. open is invoked lazily by each subcommand.
func NewRootCommand(open OpenFunc) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "cashflow",
		Short: "Personal cashflow planner",
		Long:  "Track transactions and recurring plans, project balances per billing cycle and sync across devices.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewTransactionCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewPeriodCommand(opts))
	cmd.AddCommand(NewCycleDayCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewInsightsCommand(opts))
	cmd.AddCommand(NewNotionExportCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withEnv opens the environment, runs fn and closes it.
func withEnv(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, env *Env, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := opts.open(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	if env.Close != nil {
		defer env.Close()
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return fn(ctx, env, out)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/insights"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/dvloznov/cashflow-planner/internal/notionsync"
	"github.com/dvloznov/cashflow-planner/internal/syncer"
	"github.com/spf13/cobra"
)

func notConfigured(what string) error {
	return NewExitError(ExitCommandError, what+" is not configured")
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sync",
		Short:         "Pull, merge and push the dataset once",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				if env.Sync == nil {
					return notConfigured("sync")
				}
				run, err := env.Sync.Sync(ctx, jobs.TriggerManual)
				switch {
				case errors.Is(err, syncer.ErrSyncDisabled):
					return notConfigured("sync")
				case err != nil:
					return WrapExitError(ExitFailure, "sync failed", err)
				}
				return out.Success(run, func(w io.Writer) {
					fmt.Fprintf(w, "Synced %s in %s: %d transactions, %d plans, %d tombstones\n",
						run.SyncID, run.Duration().Round(time.Millisecond), run.Transactions, run.Plans, run.Tombstones)
				})
			})
		},
	}
}

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import a JSON backup (local path or gs://bucket/object)",
	}

	export := &cobra.Command{
		Use:           "export <location>",
		Short:         "Write the dataset to a backup file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				if env.Backup == nil {
					return notConfigured("backup")
				}
				doc, err := env.Backup.Export(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "export failed", err)
				}
				data := map[string]interface{}{
					"location":     args[0],
					"transactions": len(doc.Transactions),
					"plans":        len(doc.Plans),
				}
				return out.Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d transactions and %d plans to %s\n", len(doc.Transactions), len(doc.Plans), args[0])
				})
			})
		},
	}

	imp := &cobra.Command{
		Use:           "import <location>",
		Short:         "Merge a backup file into the dataset",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				if env.Backup == nil {
					return notConfigured("backup")
				}
				merged, err := env.Backup.Import(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "import failed", err)
				}
				data := map[string]interface{}{
					"location":     args[0],
					"transactions": len(merged.Transactions),
					"plans":        len(merged.Plans),
				}
				return out.Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %s; ledger now holds %d transactions and %d plans\n", args[0], len(merged.Transactions), len(merged.Plans))
				})
			})
		},
	}

	cmd.AddCommand(export, imp)
	return cmd
}

// NewInsightsCommand creates the insights command.
func NewInsightsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "insights",
		Short:         "Ask the model for advice on the current period",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				if env.Insights == nil {
					return notConfigured("insights")
				}
				state := env.Ledger.State()
				text := env.Insights.Insights(ctx, insights.Input{
					Transactions: state.Dataset.Transactions,
					Plans:        state.Dataset.Plans,
					Snapshot:     env.Ledger.Snapshot(),
					Stamp:        state.Dataset.LastModified,
				})
				return out.Success(map[string]string{"insights": text}, func(w io.Writer) {
					fmt.Fprintln(w, text)
				})
			})
		},
	}
}

// NotionExportOptions holds flags for notion-export.
type NotionExportOptions struct {
	*RootOptions
	From   string
	To     string
	DryRun bool
}

// NewNotionExportCommand creates the notion-export command.
func NewNotionExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotionExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "notion-export",
		Short:         "Mirror transactions into the configured Notion database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotionExport(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "first transaction date to export (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last transaction date to export (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report changes without writing to Notion")

	return cmd
}

func runNotionExport(opts *NotionExportOptions, cmd *cobra.Command) error {
	var exportOpts notionsync.Options
	exportOpts.DryRun = opts.DryRun
	if opts.From != "" {
		d, err := parseDate("from", opts.From)
		if err != nil {
			return err
		}
		exportOpts.From = d
	}
	if opts.To != "" {
		d, err := parseDate("to", opts.To)
		if err != nil {
			return err
		}
		exportOpts.To = d
	}
	if exportOpts.From.IsValid() && exportOpts.To.IsValid() && exportOpts.To.Before(exportOpts.From) {
		return NewExitError(ExitCommandError, "--to must not be before --from")
	}

	return withEnv(opts.RootOptions, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
		if env.Notion == nil {
			return notConfigured("Notion export (NOTION_TOKEN, NOTION_DB_ID)")
		}
		res, err := env.Notion.Export(ctx, env.Ledger.State().Dataset, exportOpts)
		if err != nil {
			return WrapExitError(ExitFailure, "Notion export failed", err)
		}
		return out.Success(res, func(w io.Writer) {
			prefix := ""
			if opts.DryRun {
				prefix = "[dry run] "
			}
			fmt.Fprintf(w, "%screated %d, updated %d, unchanged %d, archived %d, failed %d\n",
				prefix, res.Created, res.Updated, res.Unchanged, res.Archived, res.Failed)
		})
	})
}

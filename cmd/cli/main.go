package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/cashflow-planner/internal/app"
	"github.com/dvloznov/cashflow-planner/internal/cli"
	"github.com/dvloznov/cashflow-planner/internal/config"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/dvloznov/cashflow-planner/internal/notionsync"
	"github.com/rs/zerolog"
)

func main() {
	cmd := cli.NewRootCommand(openApp)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

// openApp wires the full application. Logs go to stderr so JSON output stays clean.
// Local edits are pushed with one sync before exit when sync is configured.
func openApp(ctx context.Context, opts *cli.RootOptions) (*cli.Env, error) {
	level := zerolog.WarnLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsole(os.Stderr, level)
	cfg := config.Load(log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	dirty := false
	a.Ledger.OnChange(func(_ ledger.State, _ []ledger.Field, origin ledger.Origin) {
		if origin == ledger.OriginLocal {
			dirty = true
		}
	})

	env := &cli.Env{
		Ledger:   a.Ledger,
		Sync:     a.Sync,
		Backup:   a.Backup,
		Insights: a.Insights,
		Close: func() {
			if dirty && cfg.SyncConfigured() {
				if _, err := a.Sync.Sync(ctx, jobs.TriggerChange); err != nil {
					log.Warn().Err(err).Msg("Changes saved locally but not synced")
				}
			}
			a.Close()
		},
	}
	if cfg.NotionToken != "" && cfg.NotionDBID != "" {
		env.Notion = notionsync.NewExporter(notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDBID)
	}
	return env, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/config"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/localstore"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/dvloznov/cashflow-planner/internal/notionsync"
)

func main() {
	log := logger.New()
	cfg := config.Load(log)

	// Parse CLI flags
	fromStr := flag.String("from", "", "First transaction date in YYYY-MM-DD format (optional)")
	toStr := flag.String("to", "", "Last transaction date in YYYY-MM-DD format (optional)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDBID, "Notion database ID (or set NOTION_DB_ID)")
	dbPath := flag.String("db", cfg.DatabasePath, "Local ledger database (or set DATABASE_PATH)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	opts := notionsync.Options{DryRun: *dryRun}
	if *fromStr != "" {
		d, err := civil.ParseDate(*fromStr)
		if err != nil {
			log.Fatal().Err(err).Str("from", *fromStr).Msg("Error: invalid from date, expected YYYY-MM-DD")
		}
		opts.From = d
	}
	if *toStr != "" {
		d, err := civil.ParseDate(*toStr)
		if err != nil {
			log.Fatal().Err(err).Str("to", *toStr).Msg("Error: invalid to date, expected YYYY-MM-DD")
		}
		opts.To = d
	}
	if opts.From.IsValid() && opts.To.IsValid() && opts.To.Before(opts.From) {
		log.Fatal().Str("from", *fromStr).Str("to", *toStr).Msg("Error: to date must not be before from date")
	}

	// Create context with timeout so the export doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := localstore.Open(ctx, *dbPath, domain.SystemClock{}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local ledger")
	}
	defer store.Close()

	state, err := store.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load local ledger")
	}

	exporter := notionsync.NewExporter(notionsync.NewNotionClient(*notionToken), *notionDBID)
	res, err := exporter.Export(ctx, state.Dataset, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Export completed: created %d, updated %d, unchanged %d, archived %d, failed %d\n",
		res.Created, res.Updated, res.Unchanged, res.Archived, res.Failed)
}

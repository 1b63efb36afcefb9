// Package notionsync mirrors ledger transactions into a Notion database.
// Pages are keyed by the transaction id, so repeated exports update in place,
// and pages of deleted transactions are archived.
package notionsync

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/jomei/notionapi"
)

// BatchSize is the number of transactions logged as one progress batch.
const BatchSize = 50

// Options narrows an export. Zero dates leave that side of the range open.
type Options struct {
	From   civil.Date
	To     civil.Date
	DryRun bool
}

func (o Options) includes(d civil.Date) bool {
	if o.From.IsValid() && d.Before(o.From) {
		return false
	}
	if o.To.IsValid() && d.After(o.To) {
		return false
	}
	return true
}

// Result counts what an export did, or would do in dry-run mode.
type Result struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Archived  int `json:"archived"`
	Failed    int `json:"failed"`
}

// NotionService is the part of the Notion API an export touches: one database query
// plus page create, update and archive.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	ArchivePage(ctx context.Context, pageID string) error
}

// Exporter writes transactions into one Notion database.
type Exporter struct {
	client     NotionService
	databaseID string
}

// NewExporter creates an exporter for the given database.
func NewExporter(client NotionService, databaseID string) *Exporter {
	return &Exporter{client: client, databaseID: databaseID}
}

// Export brings the Notion database in line with ds. Pages whose stored stamp matches
// the transaction are left alone. Per-page failures are logged and counted; only a
// failure to list the database aborts the export.
func (e *Exporter) Export(ctx context.Context, ds domain.Dataset, opts Options) (Result, error) {
	log := logger.FromContext(ctx)
	var res Result

	log.Info().
		Str("from", opts.From.String()).
		Str("to", opts.To.String()).
		Bool("dry_run", opts.DryRun).
		Int("transaction_count", len(ds.Transactions)).
		Msg("Starting Notion export")

	pages, err := queryAllNotionPages(ctx, e.client, e.databaseID)
	if err != nil {
		return res, fmt.Errorf("Export: %w", err)
	}

	existing := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		if id := extractRecordID(page); id != "" {
			existing[id] = page
		}
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	var txs []domain.Transaction
	live := make(map[string]bool, len(ds.Transactions))
	for _, tx := range ds.Transactions {
		live[tx.ID] = true
		if opts.includes(tx.Date) {
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	for i := 0; i < len(txs); i += BatchSize {
		end := i + BatchSize
		if end > len(txs) {
			end = len(txs)
		}
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, tx := range txs[i:end] {
			e.exportOne(ctx, tx, existing, opts.DryRun, &res)
		}
	}

	for id := range ds.DeletedIDs {
		page, ok := existing[id]
		if !ok || live[id] {
			continue
		}
		if opts.DryRun {
			log.Info().Str("transaction_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive Notion page")
			res.Archived++
			continue
		}
		if err := e.client.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("transaction_id", id).Str("page_id", string(page.ID)).Msg("Failed to archive Notion page")
			res.Failed++
			continue
		}
		log.Info().Str("transaction_id", id).Str("page_id", string(page.ID)).Msg("Archived Notion page")
		res.Archived++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Notion export completed")

	return res, nil
}

func (e *Exporter) exportOne(ctx context.Context, tx domain.Transaction, existing map[string]notionapi.Page, dryRun bool, res *Result) {
	log := logger.FromContext(ctx).With().Str("transaction_id", tx.ID).Logger()

	page, found := existing[tx.ID]
	if found && extractLastModified(page) == tx.LastModified {
		res.Unchanged++
		return
	}

	if dryRun {
		if found {
			log.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] Would update Notion page")
			res.Updated++
		} else {
			log.Info().Msg("[DRY RUN] Would create Notion page")
			res.Created++
		}
		return
	}

	props := TransactionToNotionProperties(tx)
	if found {
		if _, err := e.client.UpdatePage(ctx, string(page.ID), props); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
			res.Failed++
			return
		}
		res.Updated++
		return
	}

	created, err := e.client.CreatePage(ctx, e.databaseID, props)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create Notion page")
		res.Failed++
		return
	}
	log.Debug().Str("page_id", string(created.ID)).Msg("Created Notion page")
	res.Created++
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return all, nil
}

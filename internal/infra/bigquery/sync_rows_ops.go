package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"google.golang.org/api/iterator"
)

// SyncRowStore is a remote store with one sync_rows row per sync id.
type SyncRowStore struct {
	*Client
	now func() time.Time
}

// NewSyncRowStore creates a store over an open client.
func NewSyncRowStore(c *Client) *SyncRowStore {
	return &SyncRowStore{Client: c, now: time.Now}
}

// Pull returns the dataset stored for syncID, or nil when there is none.
func (s *SyncRowStore) Pull(ctx context.Context, syncID string) (*domain.Dataset, error) {
	q := s.client.Query(pullQuery(s.projectID, s.datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "sync_id", Value: syncID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Pull: reading query: %w", err)
	}

	var row SyncRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Pull: iterating: %w", err)
	}

	ds, err := row.Dataset()
	if err != nil {
		return nil, fmt.Errorf("Pull: %w", err)
	}
	return ds, nil
}

// Push upserts the dataset for syncID, replacing any previous content.
func (s *SyncRowStore) Push(ctx context.Context, syncID string, ds domain.Dataset) error {
	row, err := NewSyncRow(syncID, ds, s.now())
	if err != nil {
		return fmt.Errorf("Push: %w", err)
	}

	params := []bigquery.QueryParameter{
		{Name: "sync_id", Value: row.SyncID},
		{Name: "payload", Value: row.Payload},
		{Name: "last_modified", Value: row.LastModified},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
	if err := s.runDML(ctx, pushQuery(s.projectID, s.datasetID), params); err != nil {
		return fmt.Errorf("Push: upserting %s: %w", syncID, err)
	}
	return nil
}

func pullQuery(projectID, datasetID string) string {
	return `
		SELECT sync_id, payload, last_modified, updated_ts
		FROM ` + tableRef(projectID, datasetID, syncRowsTable) + `
		WHERE sync_id = @sync_id
		ORDER BY updated_ts DESC
		LIMIT 1
	`
}

func pushQuery(projectID, datasetID string) string {
	return `
		MERGE ` + tableRef(projectID, datasetID, syncRowsTable) + ` T
		USING (SELECT @sync_id AS sync_id) S
		ON T.sync_id = S.sync_id
		WHEN MATCHED THEN
			UPDATE SET payload = @payload, last_modified = @last_modified, updated_ts = @updated_ts
		WHEN NOT MATCHED THEN
			INSERT (sync_id, payload, last_modified, updated_ts)
			VALUES (@sync_id, @payload, @last_modified, @updated_ts)
	`
}

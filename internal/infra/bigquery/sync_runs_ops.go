package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"google.golang.org/api/iterator"
)

// SyncRunStore keeps sync run history in the sync_runs table.
type SyncRunStore struct {
	*Client
}

// NewSyncRunStore creates a run store over an open client.
func NewSyncRunStore(c *Client) *SyncRunStore {
	return &SyncRunStore{Client: c}
}

// SaveRun inserts the run or updates its status, finish time and counts.
func (s *SyncRunStore) SaveRun(ctx context.Context, run *jobs.SyncRun) error {
	if run.RunID == "" {
		return fmt.Errorf("SaveRun: run ID is required")
	}
	row := SyncRunRowFrom(run)

	q := `
		MERGE ` + tableRef(s.projectID, s.datasetID, syncRunsTable) + ` T
		USING (SELECT @run_id AS run_id) S
		ON T.run_id = S.run_id
		WHEN MATCHED THEN
			UPDATE SET
				status = @status,
				finished_ts = @finished_ts,
				error_message = @error_message,
				remote_found = @remote_found,
				transactions = @transactions,
				plans = @plans,
				tombstones = @tombstones
		WHEN NOT MATCHED THEN
			INSERT (run_id, sync_id, trigger, status, started_ts, finished_ts, error_message,
				remote_found, transactions, plans, tombstones)
			VALUES (@run_id, @sync_id, @trigger, @status, @started_ts, @finished_ts, @error_message,
				@remote_found, @transactions, @plans, @tombstones)
	`

	params := []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "sync_id", Value: row.SyncID},
		{Name: "trigger", Value: row.Trigger},
		{Name: "status", Value: row.Status},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "finished_ts", Value: row.FinishedTS},
		{Name: "error_message", Value: row.ErrorMessage},
		{Name: "remote_found", Value: row.RemoteFound},
		{Name: "transactions", Value: row.Transactions},
		{Name: "plans", Value: row.Plans},
		{Name: "tombstones", Value: row.Tombstones},
	}

	if err := s.runDML(ctx, q, params); err != nil {
		return fmt.Errorf("SaveRun: %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SyncRunStore) GetRun(ctx context.Context, runID string) (*jobs.SyncRun, error) {
	runs, err := s.query(ctx, "WHERE run_id = @run_id", []bigquery.QueryParameter{{Name: "run_id", Value: runID}}, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("GetRun: %s: %w", runID, jobs.ErrRunNotFound)
	}
	return runs[0], nil
}

// ListRuns retrieves runs, newest first.
func (s *SyncRunStore) ListRuns(ctx context.Context, filter jobs.RunFilter) ([]*jobs.SyncRun, error) {
	where, params := runFilterClause(filter)
	runs, err := s.query(ctx, where, params, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	return runs, nil
}

func (s *SyncRunStore) query(ctx context.Context, where string, params []bigquery.QueryParameter, limit, offset int) ([]*jobs.SyncRun, error) {
	sql := `
		SELECT run_id, sync_id, trigger, status, started_ts, finished_ts, error_message,
			remote_found, transactions, plans, tombstones
		FROM ` + tableRef(s.projectID, s.datasetID, syncRunsTable) + `
		` + where + `
		ORDER BY started_ts DESC, run_id
	`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			sql += fmt.Sprintf(" OFFSET %d", offset)
		}
	} else if offset > 0 {
		// BigQuery requires LIMIT before OFFSET.
		sql += fmt.Sprintf(" LIMIT 9223372036854775807 OFFSET %d", offset)
	}

	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	runs := []*jobs.SyncRun{}
	for {
		var row SyncRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating: %w", err)
		}
		runs = append(runs, row.SyncRun())
	}
	return runs, nil
}

func runFilterClause(filter jobs.RunFilter) (string, []bigquery.QueryParameter) {
	var (
		conds  []string
		params []bigquery.QueryParameter
	)
	if filter.Status != "" {
		conds = append(conds, "status = @status")
		params = append(params, bigquery.QueryParameter{Name: "status", Value: string(filter.Status)})
	}
	if filter.Trigger != "" {
		conds = append(conds, "trigger = @trigger")
		params = append(params, bigquery.QueryParameter{Name: "trigger", Value: string(filter.Trigger)})
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), params
}

// Ensure SyncRunStore implements RunStore interface.
var _ jobs.RunStore = (*SyncRunStore)(nil)

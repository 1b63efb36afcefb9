package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
)

// SyncRunRow represents a sync run record in BigQuery.
type SyncRunRow struct {
	RunID   string `bigquery:"run_id"`
	SyncID  string `bigquery:"sync_id"`
	Trigger string `bigquery:"trigger"`
	Status  string `bigquery:"status"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	ErrorMessage string `bigquery:"error_message"`
	RemoteFound  bool   `bigquery:"remote_found"`

	Transactions int64 `bigquery:"transactions"`
	Plans        int64 `bigquery:"plans"`
	Tombstones   int64 `bigquery:"tombstones"`
}

// SyncRunRowFrom converts a run to its row form.
func SyncRunRowFrom(run *jobs.SyncRun) *SyncRunRow {
	row := &SyncRunRow{
		RunID:        run.RunID,
		SyncID:       run.SyncID,
		Trigger:      string(run.Trigger),
		Status:       string(run.Status),
		StartedTS:    run.StartedAt,
		ErrorMessage: run.Error,
		RemoteFound:  run.RemoteFound,
		Transactions: int64(run.Transactions),
		Plans:        int64(run.Plans),
		Tombstones:   int64(run.Tombstones),
	}
	if run.CompletedAt != nil {
		row.FinishedTS = bigquery.NullTimestamp{Timestamp: *run.CompletedAt, Valid: true}
	}
	return row
}

// SyncRun converts the row back to a run.
func (r *SyncRunRow) SyncRun() *jobs.SyncRun {
	run := &jobs.SyncRun{
		RunID:        r.RunID,
		SyncID:       r.SyncID,
		Trigger:      jobs.Trigger(r.Trigger),
		Status:       jobs.RunStatus(r.Status),
		StartedAt:    r.StartedTS,
		Error:        r.ErrorMessage,
		RemoteFound:  r.RemoteFound,
		Transactions: int(r.Transactions),
		Plans:        int(r.Plans),
		Tombstones:   int(r.Tombstones),
	}
	if r.FinishedTS.Valid {
		t := r.FinishedTS.Timestamp
		run.CompletedAt = &t
	}
	return run
}

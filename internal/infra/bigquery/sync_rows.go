package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/domain"
)

// SyncRow is one synchronized dataset, keyed by the user's sync id.
type SyncRow struct {
	SyncID       string    `bigquery:"sync_id"`
	Payload      string    `bigquery:"payload"`       // dataset document as JSON
	LastModified int64     `bigquery:"last_modified"` // Unix ms, copied from the payload
	UpdatedTS    time.Time `bigquery:"updated_ts"`
}

// NewSyncRow encodes ds for storage.
func NewSyncRow(syncID string, ds domain.Dataset, now time.Time) (*SyncRow, error) {
	payload, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("NewSyncRow: encoding dataset: %w", err)
	}
	return &SyncRow{
		SyncID:       syncID,
		Payload:      string(payload),
		LastModified: int64(ds.LastModified),
		UpdatedTS:    now,
	}, nil
}

// Dataset decodes the stored payload.
func (r *SyncRow) Dataset() (*domain.Dataset, error) {
	var ds domain.Dataset
	if err := json.Unmarshal([]byte(r.Payload), &ds); err != nil {
		return nil, fmt.Errorf("SyncRow.Dataset: decoding payload for %s: %w", r.SyncID, err)
	}
	return &ds, nil
}

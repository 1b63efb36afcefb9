// Package backup exports the dataset as a standalone JSON document and restores it.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/gcsuploader"
	"github.com/dvloznov/cashflow-planner/internal/records"
	"github.com/rs/zerolog"
)

// Version is written into every exported document.
const Version = "1.0"

// Document is the exported file.
type Document struct {
	Transactions  []domain.Transaction   `json:"transactions"`
	Plans         []domain.RecurringPlan `json:"plans"`
	CycleStartDay int                    `json:"cycleStartDay"`
	DeletedIDs    domain.Tombstones      `json:"deletedIds"`
	ExportDate    time.Time              `json:"exportDate"`
	Version       string                 `json:"version"`
}

// rawDocument defers record decoding to the records package.
type rawDocument struct {
	Transactions  json.RawMessage `json:"transactions"`
	Plans         json.RawMessage `json:"plans"`
	CycleStartDay json.RawMessage `json:"cycleStartDay"`
	DeletedIDs    json.RawMessage `json:"deletedIds"`
	ExportDate    string          `json:"exportDate"`
	Version       string          `json:"version"`
}

// NewDocument builds a document from ds stamped with the export time.
func NewDocument(ds domain.Dataset, exportedAt time.Time) Document {
	ds = ds.Clone()
	ds.SortRecords()

	doc := Document{
		Transactions:  ds.Transactions,
		Plans:         ds.Plans,
		CycleStartDay: ds.CycleStartDay,
		DeletedIDs:    ds.DeletedIDs,
		ExportDate:    exportedAt.UTC(),
		Version:       Version,
	}
	if doc.Transactions == nil {
		doc.Transactions = []domain.Transaction{}
	}
	if doc.Plans == nil {
		doc.Plans = []domain.RecurringPlan{}
	}
	if doc.DeletedIDs == nil {
		doc.DeletedIDs = domain.Tombstones{}
	}
	return doc
}

// Encode renders the document as indented JSON.
func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("Encode: %w", err)
	}
	return data, nil
}

// Decode parses a backup, repairing legacy or malformed records the same way local
// loading does. The returned dataset is stamped with the export time so a merge
// prefers settings changed after the backup was taken.
func Decode(data []byte, today civil.Date, log zerolog.Logger) (domain.Dataset, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Dataset{}, fmt.Errorf("Decode: parsing document: %w", err)
	}

	dec := records.NewDecoder(today, log)
	txs, err := dec.Transactions(raw.Transactions)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("Decode: %w", err)
	}
	plans, err := dec.Plans(raw.Plans)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("Decode: %w", err)
	}

	ds := domain.Dataset{
		Transactions:  txs,
		Plans:         plans,
		CycleStartDay: domain.DefaultCycleStartDay,
		DeletedIDs:    dec.Tombstones(raw.DeletedIDs),
	}

	var day float64
	if len(raw.CycleStartDay) > 0 && json.Unmarshal(raw.CycleStartDay, &day) == nil && day >= 1 && day <= 31 {
		ds.CycleStartDay = int(day)
	}
	if t, err := time.Parse(time.RFC3339, raw.ExportDate); err == nil {
		ds.LastModified = domain.StampOf(t)
	} else {
		ds.LastModified = latestStamp(ds)
	}

	log.Info().
		Str("version", raw.Version).
		Int("transactions", len(ds.Transactions)).
		Int("plans", len(ds.Plans)).
		Int("repairs", dec.Fixes).
		Msg("Backup decoded")
	return ds, nil
}

func latestStamp(ds domain.Dataset) domain.Stamp {
	var latest domain.Stamp
	for _, tx := range ds.Transactions {
		latest = max(latest, tx.LastModified)
	}
	for _, p := range ds.Plans {
		latest = max(latest, p.LastModified)
	}
	for _, ts := range ds.DeletedIDs {
		latest = max(latest, ts)
	}
	return latest
}

// Files writes and reads backup documents on local disk or, for gs:// locations,
// through a storage service.
type Files struct {
	storage gcsuploader.StorageService
}

// NewFiles creates a Files. storage may be nil when only local paths are used.
func NewFiles(storage gcsuploader.StorageService) *Files {
	return &Files{storage: storage}
}

// Write stores data at location.
func (f *Files) Write(ctx context.Context, location string, data []byte) error {
	if gcsuploader.IsGCSURI(location) {
		if f.storage == nil {
			return fmt.Errorf("Write: no storage configured for %s", location)
		}
		if err := f.storage.Upload(ctx, location, data); err != nil {
			return fmt.Errorf("Write: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(location, data, 0o600); err != nil {
		return fmt.Errorf("Write: writing %s: %w", location, err)
	}
	return nil
}

// Read loads the document at location.
func (f *Files) Read(ctx context.Context, location string) ([]byte, error) {
	if gcsuploader.IsGCSURI(location) {
		if f.storage == nil {
			return nil, fmt.Errorf("Read: no storage configured for %s", location)
		}
		data, err := f.storage.Fetch(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("Read: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("Read: reading %s: %w", location, err)
	}
	return data, nil
}

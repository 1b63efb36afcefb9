package backup

import (
	"context"
	"fmt"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/rs/zerolog"
)

// Ledger is the state being backed up.
type Ledger interface {
	State() ledger.State
	Import(ds domain.Dataset) domain.Dataset
}

// Service exports the ledger to backup locations and merges backups back in.
type Service struct {
	ledger Ledger
	files  *Files
	clock  domain.Clock
	log    zerolog.Logger
}

// NewService creates a backup service.
func NewService(l Ledger, files *Files, clock domain.Clock, log zerolog.Logger) *Service {
	return &Service{
		ledger: l,
		files:  files,
		clock:  clock,
		log:    log.With().Str("component", "backup").Logger(),
	}
}

// Snapshot returns the current state as a document.
func (s *Service) Snapshot() Document {
	return NewDocument(s.ledger.State().Dataset, s.clock.Now())
}

// Export writes the current state to location.
func (s *Service) Export(ctx context.Context, location string) (Document, error) {
	doc := s.Snapshot()
	data, err := doc.Encode()
	if err != nil {
		return Document{}, fmt.Errorf("Export: %w", err)
	}
	if err := s.files.Write(ctx, location, data); err != nil {
		return Document{}, fmt.Errorf("Export: %w", err)
	}

	s.log.Info().
		Str("location", location).
		Int("transactions", len(doc.Transactions)).
		Int("plans", len(doc.Plans)).
		Msg("Backup exported")
	return doc, nil
}

// Import reads the backup at location and merges it into the ledger.
func (s *Service) Import(ctx context.Context, location string) (domain.Dataset, error) {
	data, err := s.files.Read(ctx, location)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("Import: %w", err)
	}
	return s.ImportBytes(data)
}

// ImportBytes merges an already loaded backup document into the ledger.
func (s *Service) ImportBytes(data []byte) (domain.Dataset, error) {
	ds, err := Decode(data, domain.Today(s.clock), s.log)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("ImportBytes: %w", err)
	}
	merged := s.ledger.Import(ds)
	s.log.Info().
		Int("transactions", len(merged.Transactions)).
		Int("plans", len(merged.Plans)).
		Msg("Backup merged")
	return merged, nil
}

// Package localstore persists the ledger state on the device in SQLite.
//
// Each ledger field is stored under its own key as a JSON value, so a change to one
// field rewrites only that row.
package localstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/dvloznov/cashflow-planner/internal/records"
	"github.com/dvloznov/cashflow-planner/internal/schedule"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a key-value table of ledger fields.
type Store struct {
	db    *sql.DB
	clock domain.Clock
	log   zerolog.Logger
}

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string, clock domain.Clock, log zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: opening database %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: pinging database: %w", err)
	}

	s := &Store{db: db, clock: clock, log: log.With().Str("component", "localstore").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: loading embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate: creating sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate: creating migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			s.log.Debug().Msg("No local migrations to apply")
			return nil
		}
		return fmt.Errorf("migrate: applying migrations: %w", err)
	}
	s.log.Info().Msg("Local migrations applied")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the stored state. Missing keys yield defaults, and malformed records
// are repaired by the records decoder rather than rejected.
func (s *Store) Load(ctx context.Context) (ledger.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return ledger.State{}, fmt.Errorf("Load: querying kv: %w", err)
	}
	defer rows.Close()

	values := map[ledger.Field][]byte{}
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return ledger.State{}, fmt.Errorf("Load: scanning row: %w", err)
		}
		values[ledger.Field(key)] = value
	}
	if err := rows.Err(); err != nil {
		return ledger.State{}, fmt.Errorf("Load: iterating rows: %w", err)
	}

	today := domain.Today(s.clock)
	dec := records.NewDecoder(today, s.log)

	var state ledger.State
	state.Dataset.Transactions, err = dec.Transactions(values[ledger.FieldTransactions])
	if err != nil {
		s.log.Warn().Err(err).Msg("Discarding unreadable transactions")
	}
	state.Dataset.Plans, err = dec.Plans(values[ledger.FieldPlans])
	if err != nil {
		s.log.Warn().Err(err).Msg("Discarding unreadable plans")
	}
	state.Dataset.DeletedIDs = dec.Tombstones(values[ledger.FieldDeletedIDs])
	state.Dataset.CycleStartDay = s.intValue(values, ledger.FieldCycleStartDay, domain.DefaultCycleStartDay)
	state.Dataset.LastModified = domain.Stamp(s.intValue(values, ledger.FieldLastModified, 0))

	state.ViewDate = today
	if raw, ok := values[ledger.FieldViewDate]; ok {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			state.ViewDate, _ = schedule.ParseDate(str, today)
		}
	}

	if dec.Fixes > 0 {
		s.log.Warn().Int("fixes", dec.Fixes).Msg("Repaired stored records on load")
	}
	return state, nil
}

func (s *Store) intValue(values map[ledger.Field][]byte, field ledger.Field, fallback int) int {
	raw, ok := values[field]
	if !ok {
		return fallback
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		// Some older values were stored as quoted numbers.
		var str string
		if json.Unmarshal(raw, &str) != nil {
			s.log.Warn().Str("field", string(field)).Msg("Unreadable stored number, using default")
			return fallback
		}
		if f, err = strconv.ParseFloat(str, 64); err != nil {
			s.log.Warn().Str("field", string(field)).Str("value", str).Msg("Unreadable stored number, using default")
			return fallback
		}
	}
	return int(f)
}

// Save writes the given fields of state in a single transaction.
func (s *Store) Save(ctx context.Context, state ledger.State, fields []ledger.Field) error {
	if len(fields) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Save: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UnixMilli()
	for _, field := range fields {
		value, err := encodeField(state, field)
		if err != nil {
			return fmt.Errorf("Save: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			string(field), string(value), now)
		if err != nil {
			return fmt.Errorf("Save: writing %s: %w", field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Save: committing: %w", err)
	}
	return nil
}

func encodeField(state ledger.State, field ledger.Field) ([]byte, error) {
	var v any
	switch field {
	case ledger.FieldTransactions:
		v = nonNil(state.Dataset.Transactions)
	case ledger.FieldPlans:
		v = nonNil(state.Dataset.Plans)
	case ledger.FieldCycleStartDay:
		v = state.Dataset.CycleStartDay
	case ledger.FieldDeletedIDs:
		ids := state.Dataset.DeletedIDs
		if ids == nil {
			ids = domain.Tombstones{}
		}
		v = ids
	case ledger.FieldLastModified:
		v = state.Dataset.LastModified
	case ledger.FieldViewDate:
		v = state.ViewDate.String()
	default:
		return nil, fmt.Errorf("unknown field %q", field)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", field, err)
	}
	return data, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Listen persists every ledger change. It is meant for ledger.OnChange.
func (s *Store) Listen(state ledger.State, fields []ledger.Field, origin ledger.Origin) {
	if err := s.Save(context.Background(), state, fields); err != nil {
		s.log.Error().Err(err).Str("origin", string(origin)).Msg("Failed to persist ledger change")
	}
}


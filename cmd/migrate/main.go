// Command migrate creates and evolves the BigQuery tables used by the bigquery sync
// backend. Applied versions are recorded in schema_migrations.
package main

import (
	"context"
	"crypto/sha256"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cashflow-planner/internal/config"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches 0001_name.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type target struct {
	projectID string
	datasetID string
}

func (t target) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.projectID, t.datasetID, name)
}

func main() {
	log := logger.New()
	cfg := config.Load(log)

	projectID := flag.String("project", cfg.BQProjectID, "GCP project ID (or set BQ_PROJECT_ID)")
	datasetID := flag.String("dataset", cfg.BQDatasetID, "BigQuery dataset ID (or set BQ_DATASET_ID)")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "", "Read migrations from this directory instead of the built-in set")
	dryRun := flag.Bool("dry-run", false, "List pending migrations without applying them")
	flag.Parse()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}
	if *datasetID == "" {
		log.Fatal().Msg("Error: -dataset flag is required. Please specify the BigQuery dataset.")
	}
	tgt := target{projectID: *projectID, datasetID: *datasetID}

	var source fs.FS
	if *migrationsDir != "" {
		source = os.DirFS(*migrationsDir)
	} else {
		sub, err := fs.Sub(embedded, "migrations")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open built-in migrations")
		}
		source = sub
	}

	migrations, err := readMigrations(source, tgt, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, tgt.projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", tgt.projectID).Str("dataset", tgt.datasetID).Msg("Connected to BigQuery")

	if err := runStatement(ctx, client, schemaMigrationsDDL(tgt), nil); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := getAppliedMigrations(ctx, client, tgt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	for _, m := range checksumDrift(migrations, applied) {
		log.Warn().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration has changed since it was run")
	}

	todo := pending(migrations, applied)
	if len(todo) == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return
	}

	for _, m := range todo {
		mlog := log.With().Int("version", m.Version).Str("name", m.Name).Logger()
		if *dryRun {
			mlog.Info().Msg("[DRY RUN] Would apply migration")
			continue
		}

		if err := runStatement(ctx, client, m.SQL, nil); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to execute migration")
		}
		if err := recordMigration(ctx, client, tgt, m, *appliedBy); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to record migration")
		}
		mlog.Info().Msg("Migration applied")
	}

	log.Info().Int("applied", len(todo)).Bool("dry_run", *dryRun).Msg("Migrations complete")
}

func schemaMigrationsDDL(t target) string {
	return `
		CREATE TABLE IF NOT EXISTS ` + t.table("schema_migrations") + ` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)`
}

// readMigrations loads every migration file in source, sorted by version. Placeholders
// {{PROJECT_ID}} and {{DATASET_ID}} are substituted; the checksum covers the file as
// written so it does not depend on the target dataset.
func readMigrations(source fs.FS, t target, log zerolog.Logger) ([]Migration, error) {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid name")
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("version %04d used by both %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(source, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", t.projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", t.datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// pending returns the migrations whose version has not been applied, in order.
func pending(migrations []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var out []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// checksumDrift returns applied migrations whose file content has changed since.
func checksumDrift(migrations []Migration, applied []AppliedMigration) []Migration {
	sums := make(map[int]string, len(applied))
	for _, am := range applied {
		sums[am.Version] = am.Checksum
	}

	var out []Migration
	for _, m := range migrations {
		if sum, ok := sums[m.Version]; ok && sum != "" && sum != m.Checksum {
			out = append(out, m)
		}
	}
	return out
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client, t target) ([]AppliedMigration, error) {
	query := client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + t.table("schema_migrations") + `
		ORDER BY version ASC`)
	it, err := query.Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, t target, m Migration, appliedBy string) error {
	sql := `
		INSERT INTO ` + t.table("schema_migrations") + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`

	return runStatement(ctx, client, sql, []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	})
}

// runStatement runs one DDL or DML statement and waits for it to finish.
func runStatement(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) error {
	query := client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nvandessel/layerbench/internal/report"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 2

// schemaV1 holds whole result records only.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS results (
    id TEXT PRIMARY KEY,
    protocol_a TEXT NOT NULL,
    protocol_b TEXT NOT NULL,
    generated_at TEXT NOT NULL,
    overall_efficiency_a REAL,  -- NULL when undefined
    overall_efficiency_b REAL,
    record TEXT NOT NULL,       -- canonical JSON record
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_generated ON results(generated_at);
CREATE INDEX IF NOT EXISTS idx_results_protocols ON results(protocol_a, protocol_b);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// schemaV2 adds one row per verdict so a metric can be tracked across
// comparisons without decoding every record.
const schemaV2 = `
CREATE TABLE IF NOT EXISTS verdicts (
    result_id TEXT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
    metric_name TEXT NOT NULL,
    layer TEXT NOT NULL,
    winner TEXT NOT NULL,
    delta_pct REAL,
    p_value REAL,
    PRIMARY KEY (result_id, metric_name)
);
CREATE INDEX IF NOT EXISTS idx_verdicts_metric ON verdicts(metric_name);
`

// InitSchema initializes the database schema.
// It creates all tables and applies migrations as needed.
// Runs integrity validation before migrations on existing databases.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ddl := range []string{schemaV1, schemaV2} {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema applies migrations from currentVersion to SchemaVersion.
func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if currentVersion < 2 {
		if err := migrateV1ToV2(ctx, tx); err != nil {
			return fmt.Errorf("v1 to v2: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateV1ToV2 creates the verdicts table and backfills it from the
// stored records.
func migrateV1ToV2(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, schemaV2); err != nil {
		return fmt.Errorf("failed to create verdicts table: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT record FROM results`)
	if err != nil {
		return fmt.Errorf("failed to read results: %w", err)
	}
	var records []report.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan result: %w", err)
		}
		var rec report.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode stored record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, rec := range records {
		if err := insertVerdicts(ctx, tx, rec); err != nil {
			return err
		}
	}
	return nil
}

// ValidateIntegrity runs SQLite integrity checks on the database.
// It runs PRAGMA integrity_check and PRAGMA foreign_key_check.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}

// ResetSchema drops all tables and recreates the schema.
// Only use for testing.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"verdicts", "results", "schema_version"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return InitSchema(ctx, db)
}

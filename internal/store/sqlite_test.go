package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/constants"
)

func TestSQLiteResultStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteResultStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	if err := s.Save(ctx, testResult("r1", "lwm2m", "matter", epoch, compare.WinnerA)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := filepath.Join(dir, constants.ResultsDBName); s.Path() != want {
		t.Errorf("Path() = %s, want %s", s.Path(), want)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteResultStore(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Verdicts()[0].Winner != compare.WinnerA {
		t.Errorf("winner = %s, want A", got.Verdicts()[0].Winner)
	}
}

func TestSQLiteResultStore_NullEfficiency(t *testing.T) {
	s, err := NewSQLiteResultStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	// Only an incomparable verdict, so both efficiencies are undefined.
	r := testResult("r1", "lwm2m", "matter", epoch, compare.WinnerIncomparable)
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var effA sql.NullFloat64
	if err := s.db.QueryRow(`SELECT overall_efficiency_a FROM results WHERE id = 'r1'`).Scan(&effA); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if effA.Valid {
		t.Errorf("overall_efficiency_a = %v, want NULL", effA.Float64)
	}
}

func TestSQLiteResultStore_MigratesV1(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, constants.ResultsDBName)
	ctx := context.Background()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open error = %v", err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		t.Fatalf("create v1 schema error = %v", err)
	}
	if _, err := db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (1, ?)`,
		formatTime(time.Now())); err != nil {
		t.Fatalf("insert version error = %v", err)
	}

	rec := testResult("legacy", "lwm2m", "matter", epoch, compare.WinnerB).Record()
	data, _ := json.Marshal(rec)
	if _, err := db.Exec(`INSERT INTO results (id, protocol_a, protocol_b, generated_at, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, rec.ID, rec.ProtocolA, rec.ProtocolB,
		formatTime(rec.GeneratedAt), string(data), formatTime(time.Now())); err != nil {
		t.Fatalf("insert v1 row error = %v", err)
	}
	db.Close()

	s, err := NewSQLiteResultStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() on v1 database error = %v", err)
	}
	defer s.Close()

	version, err := getSchemaVersion(ctx, s.db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	points, err := s.MetricHistory(ctx, "transport_time")
	if err != nil {
		t.Fatalf("MetricHistory() error = %v", err)
	}
	if len(points) != 1 || points[0].ResultID != "legacy" || points[0].Winner != compare.WinnerB {
		t.Errorf("backfilled history = %+v, want one legacy B point", points)
	}
}

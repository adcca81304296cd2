package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/constants"
	"github.com/nvandessel/layerbench/internal/report"
)

// SQLiteResultStore implements ResultStore using SQLite for persistence.
type SQLiteResultStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteResultStore opens (or creates) dir/results.db.
func NewSQLiteResultStore(dir string) (*SQLiteResultStore, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, constants.ResultsDBName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteResultStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteResultStore) Path() string {
	return s.dbPath
}

// Save stores a result and its per-metric verdict rows.
func (s *SQLiteResultStore) Save(ctx context.Context, r *report.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := r.Record()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", rec.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (id, protocol_a, protocol_b, generated_at,
			overall_efficiency_a, overall_efficiency_b, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProtocolA, rec.ProtocolB, formatTime(rec.GeneratedAt),
		nullFloat(rec.OverallEfficiencyA), nullFloat(rec.OverallEfficiencyB),
		string(data), formatTime(time.Now()))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%s: %w", rec.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert result %s: %w", rec.ID, err)
	}

	if err := insertVerdicts(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func insertVerdicts(ctx context.Context, tx *sql.Tx, rec report.Record) error {
	for _, v := range rec.Verdicts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO verdicts (result_id, metric_name, layer, winner, delta_pct, p_value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, v.MetricName, string(v.Layer), string(v.Winner),
			nullFloat(v.DeltaPct), nullFloat(v.PValue))
		if err != nil {
			return fmt.Errorf("failed to insert verdict %s/%s: %w", rec.ID, v.MetricName, err)
		}
	}
	return nil
}

// Get loads a result by ID.
func (s *SQLiteResultStore) Get(ctx context.Context, id string) (*report.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM results WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", id, err)
	}

	var rec report.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", id, err)
	}
	return report.FromRecord(rec)
}

// List returns stored results newest first.
func (s *SQLiteResultStore) List(ctx context.Context, opts ListOptions) ([]ResultSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT record FROM results`
	var args []any
	if opts.Protocol != "" {
		query += ` WHERE protocol_a = ? OR protocol_b = ?`
		args = append(args, opts.Protocol, opts.Protocol)
	}
	query += ` ORDER BY generated_at DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []ResultSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var rec report.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		r, err := report.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(r))
	}
	return out, rows.Err()
}

// MetricHistory returns every stored verdict for metric, oldest first.
func (s *SQLiteResultStore) MetricHistory(ctx context.Context, metric string) ([]MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.result_id, r.protocol_a, r.protocol_b, r.generated_at, v.winner, v.delta_pct, v.p_value
		FROM verdicts v JOIN results r ON r.id = v.result_id
		WHERE v.metric_name = ?
		ORDER BY r.generated_at, v.result_id`, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", metric, err)
	}
	defer rows.Close()

	var out []MetricPoint
	for rows.Next() {
		var (
			p         MetricPoint
			generated string
			winner    string
			delta     sql.NullFloat64
			pValue    sql.NullFloat64
		)
		if err := rows.Scan(&p.ResultID, &p.ProtocolA, &p.ProtocolB, &generated, &winner, &delta, &pValue); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		p.GeneratedAt, err = time.Parse(timeLayout, generated)
		if err != nil {
			return nil, fmt.Errorf("bad generated_at %q: %w", generated, err)
		}
		p.Winner = compare.Winner(winner)
		p.DeltaPct = fromNull(delta)
		p.PValue = fromNull(pValue)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a result and its verdict rows.
func (s *SQLiteResultStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete result %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// isConstraintViolation reports whether err is a primary key or unique
// constraint failure from the driver.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

// Package store implements durable persistence (C6): an embedded SQLite
// database holding check_results and cycle_reports, migrated with goose and
// accessed through sqlx, plus a background retention sweep.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the durable persistence layer behind the scheduler and the API's
// read endpoints.
type Store struct {
	db     *sqlx.DB
	logger logging.Logger
}

// cycleRow is the sqlx destination for one cycle_reports row.
type cycleRow struct {
	CycleID    string    `db:"cycle_id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	DurationMS int64     `db:"duration_ms"`
	Total      int       `db:"total"`
	Passed     int       `db:"passed"`
	Warned     int       `db:"warned"`
	Failed     int       `db:"failed"`
	Errored    int       `db:"errored"`
	Truncated  bool      `db:"truncated"`
}

// resultRow is the sqlx destination for one check_results row: the
// denormalized per-result row described alongside the cycle-summary row.
type resultRow struct {
	ID          int64     `db:"id"`
	CycleID     string    `db:"cycle_id"`
	CheckID     string    `db:"check_id"`
	Status      string    `db:"status"`
	LatencyMS   int64     `db:"latency_ms"`
	Message     string    `db:"message"`
	DetailsJSON string    `db:"details_json"`
	TraceID     string    `db:"trace_id"`
	Timestamp   time.Time `db:"ts"`
}

// Open opens (or creates) the SQLite database at path and migrates it to the
// latest schema. If the file is missing or the schema is unreadable, it
// initializes fresh and logs a warning rather than failing startup (§4.6
// "it must not crash").
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver: single writer, avoid SQLITE_BUSY under concurrent checks
	if err := db.PingContext(ctx); err != nil {
		logger.WarnCtx(ctx, "database unreachable, recreating", zap.Error(err))
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("store: set dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		logger.WarnCtx(ctx, "migration failed, database may be corrupt; reinitializing", zap.Error(err))
		if resetErr := resetSchema(db.DB); resetErr != nil {
			return nil, fmt.Errorf("store: reinitialize after failed migration: %w", resetErr)
		}
	}

	return &Store{db: db, logger: logger}, nil
}

func resetSchema(db *sql.DB) error {
	if _, err := db.Exec(`DROP TABLE IF EXISTS check_results; DROP TABLE IF EXISTS cycle_reports; DROP TABLE IF EXISTS goose_db_version;`); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveCycle persists a completed cycle's summary row and every per-check
// result row in a single transaction (§4.6 write policy).
func (s *Store) SaveCycle(ctx context.Context, report check.CycleReport) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO cycle_reports (cycle_id, started_at, finished_at, duration_ms, total, passed, warned, failed, errored, truncated)
		VALUES (:cycle_id, :started_at, :finished_at, :duration_ms, :total, :passed, :warned, :failed, :errored, :truncated)`,
		cycleRow{
			CycleID:    report.CycleID,
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			DurationMS: report.DurationMS,
			Total:      report.TotalChecks,
			Passed:     report.Passed,
			Warned:     report.Warned,
			Failed:     report.Failed,
			Errored:    report.Errored,
			Truncated:  report.Truncated,
		})
	if err != nil {
		return fmt.Errorf("store: insert cycle_reports: %w", err)
	}

	for _, r := range report.Results {
		detailsJSON, jerr := r.DetailsJSON()
		if jerr != nil {
			detailsJSON = []byte("{}")
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO check_results (cycle_id, check_id, status, latency_ms, message, details_json, trace_id, ts)
			VALUES (:cycle_id, :check_id, :status, :latency_ms, :message, :details_json, :trace_id, :ts)`,
			resultRow{
				CycleID:     report.CycleID,
				CheckID:     r.CheckID,
				Status:      string(r.Status),
				LatencyMS:   r.LatencyMS,
				Message:     r.Message,
				DetailsJSON: string(detailsJSON),
				TraceID:     r.TraceID,
				Timestamp:   r.Timestamp,
			})
		if err != nil {
			return fmt.Errorf("store: insert check_results: %w", err)
		}
	}

	return tx.Commit()
}

// RecentCycles returns the n most recently started cycles, newest first,
// with their full result sets reattached (§4.6 read API, §4.8 GET /report).
func (s *Store) RecentCycles(ctx context.Context, n int) ([]check.CycleReport, error) {
	if n <= 0 {
		n = 1
	}
	var rows []cycleRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT cycle_id, started_at, finished_at, duration_ms, total, passed, warned, failed, errored, truncated
		FROM cycle_reports ORDER BY started_at DESC LIMIT ?`, n); err != nil {
		return nil, fmt.Errorf("store: select cycle_reports: %w", err)
	}

	reports := make([]check.CycleReport, 0, len(rows))
	for _, row := range rows {
		results, err := s.resultsForCycle(ctx, row.CycleID)
		if err != nil {
			return nil, err
		}
		reports = append(reports, check.CycleReport{
			CycleID: row.CycleID, StartedAt: row.StartedAt, FinishedAt: row.FinishedAt,
			DurationMS: row.DurationMS, TotalChecks: row.Total, Passed: row.Passed,
			Warned: row.Warned, Failed: row.Failed, Errored: row.Errored,
			Truncated: row.Truncated, Results: results,
		})
	}
	return reports, nil
}

func (s *Store) resultsForCycle(ctx context.Context, cycleID string) ([]check.Result, error) {
	var rows []resultRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, cycle_id, check_id, status, latency_ms, message, details_json, trace_id, ts
		FROM check_results WHERE cycle_id = ? ORDER BY id ASC`, cycleID); err != nil {
		return nil, fmt.Errorf("store: select check_results: %w", err)
	}
	out := make([]check.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toResult())
	}
	return out, nil
}

// History returns up to limit persisted results for checkID within
// [since, until), newest first (§4.6 read API, §4.8 GET /checks/{id}/history).
func (s *Store) History(ctx context.Context, checkID string, since, until time.Time, limit int) ([]check.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	if until.IsZero() {
		until = time.Now().UTC().Add(24 * time.Hour)
	}
	var rows []resultRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, cycle_id, check_id, status, latency_ms, message, details_json, trace_id, ts
		FROM check_results WHERE check_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts DESC LIMIT ?`, checkID, since, until, limit); err != nil {
		return nil, fmt.Errorf("store: select history: %w", err)
	}
	out := make([]check.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toResult())
	}
	return out, nil
}

// LatestResult returns the most recently persisted result for checkID.
func (s *Store) LatestResult(ctx context.Context, checkID string) (check.Result, error) {
	var row resultRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, cycle_id, check_id, status, latency_ms, message, details_json, trace_id, ts
		FROM check_results WHERE check_id = ? ORDER BY ts DESC LIMIT 1`, checkID)
	if errors.Is(err, sql.ErrNoRows) {
		return check.Result{}, sql.ErrNoRows
	}
	if err != nil {
		return check.Result{}, fmt.Errorf("store: select latest result: %w", err)
	}
	return row.toResult(), nil
}

func (row resultRow) toResult() check.Result {
	var details map[string]any
	_ = json.Unmarshal([]byte(row.DetailsJSON), &details)
	return check.Result{
		CheckID:   row.CheckID,
		Timestamp: row.Timestamp,
		Status:    check.Status(row.Status),
		LatencyMS: row.LatencyMS,
		Message:   row.Message,
		Details:   details,
		TraceID:   row.TraceID,
	}
}

// RunRetentionSweep deletes rows older than retention every interval until
// ctx is cancelled. Ring buffers are independent and unaffected (§4.6).
func (s *Store) RunRetentionSweep(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx, retention)
		}
	}
}

func (s *Store) sweepOnce(ctx context.Context, retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM check_results WHERE ts < ?`, cutoff); err != nil {
		s.logger.ErrorCtx(ctx, "retention sweep: delete check_results failed", zap.Error(err))
		return
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cycle_reports WHERE started_at < ?`, cutoff); err != nil {
		s.logger.ErrorCtx(ctx, "retention sweep: delete cycle_reports failed", zap.Error(err))
	}
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rhythmset/internal/config"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// timeLayout has fixed-width fractional seconds so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// inTx runs fn in a transaction, retrying the whole transaction while the
// database is busy.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Open initializes or connects to the catalog database under the log dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	return OpenPath(cfg.CatalogPath())
}

// OpenPath opens the catalog database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// BeginRun inserts a running run with a fresh uuid.
func (s *Store) BeginRun(ctx context.Context, kind RunKind, configTOML string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
		ConfigTOML: configTOML,
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, kind, status, started_at, config_toml) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Status, run.StartedAt.Format(timeLayout), nullableString(configTOML),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun records the terminal state and counts of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, runErr error, succeeded, failed int) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ?, succeeded = ?, failed = ? WHERE id = ?`,
		status, time.Now().UTC().Format(timeLayout), nullableString(message), succeeded, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordOutcomes stores per-record preprocessing results for a run.
func (s *Store) RecordOutcomes(ctx context.Context, runID string, outcomes []Outcome) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO record_outcomes
            (run_id, record_id, status, reason, error_message, record_group, total_windows, positive_windows)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare outcome insert: %w", err)
		}
		defer stmt.Close()
		for _, o := range outcomes {
			status := "ok"
			if !o.OK {
				status = "failed"
			}
			if _, err := stmt.ExecContext(ctx, runID, o.RecordID, status, nullableString(o.Reason),
				nullableString(o.ErrorMessage), nullableString(o.Group), o.TotalWindows, o.PositiveWindows); err != nil {
				return fmt.Errorf("insert outcome %s: %w", o.RecordID, err)
			}
		}
		return nil
	})
}

// SaveAllocation stores the allocation table, split statistics and warnings
// of a split run in one transaction.
func (s *Store) SaveAllocation(ctx context.Context, runID string, rows []Allocation, stats []SplitStat, warnings []Warning) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `INSERT INTO allocations
                (run_id, record_id, split, category, record_group, total_windows, positive_windows)
                VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, r.RecordID, r.Split, r.Category, r.Group, r.TotalWindows, r.PositiveWindows); err != nil {
				return fmt.Errorf("insert allocation %s: %w", r.RecordID, err)
			}
		}
		for _, st := range stats {
			if _, err := tx.ExecContext(ctx, `INSERT INTO split_stats
                (run_id, split, records, windows, positive_windows, negative_windows, positive_ratio)
                VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, st.Split, st.Records, st.Windows, st.PositiveWindows, st.NegativeWindows, st.PositiveRatio); err != nil {
				return fmt.Errorf("insert split stats %s: %w", st.Split, err)
			}
		}
		for i, w := range warnings {
			if _, err := tx.ExecContext(ctx, `INSERT INTO split_warnings (run_id, seq, code, split, message) VALUES (?, ?, ?, ?, ?)`,
				runID, i, w.Code, nullableString(w.Split), w.Message); err != nil {
				return fmt.Errorf("insert warning: %w", err)
			}
		}
		return nil
	})
}

const runColumns = "id, kind, status, started_at, finished_at, config_toml, error_message, succeeded, failed"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		kind        string
		status      string
		startedRaw  string
		finishedRaw sql.NullString
		configTOML  sql.NullString
		errMessage  sql.NullString
	)
	if err := scanner.Scan(&run.ID, &kind, &status, &startedRaw, &finishedRaw, &configTOML, &errMessage, &run.Succeeded, &run.Failed); err != nil {
		return nil, err
	}
	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	run.ConfigTOML = configTOML.String
	run.ErrorMessage = errMessage.String
	if t, err := time.Parse(timeLayout, startedRaw); err == nil {
		run.StartedAt = t
	}
	if finishedRaw.Valid {
		if t, err := time.Parse(timeLayout, finishedRaw.String); err == nil {
			run.FinishedAt = t
		}
	}
	return &run, nil
}

// GetRun fetches a run by id. A missing run returns nil without error.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent completed run of a kind, or nil.
func (s *Store) LatestRun(ctx context.Context, kind RunKind) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs WHERE kind = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		kind, StatusCompleted)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Outcomes returns the record outcomes of a run ordered by record id.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT record_id, status, reason, error_message, record_group, total_windows, positive_windows
        FROM record_outcomes WHERE run_id = ? ORDER BY record_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o                    Outcome
			status               string
			reason, message, grp sql.NullString
		)
		if err := rows.Scan(&o.RecordID, &status, &reason, &message, &grp, &o.TotalWindows, &o.PositiveWindows); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.OK = status == "ok"
		o.Reason = reason.String
		o.ErrorMessage = message.String
		o.Group = grp.String
		out = append(out, o)
	}
	return out, rows.Err()
}

// Allocations returns the allocation table of a split run ordered by split then record id.
func (s *Store) Allocations(ctx context.Context, runID string) ([]Allocation, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT record_id, split, category, record_group, total_windows, positive_windows
        FROM allocations WHERE run_id = ?
        ORDER BY CASE split WHEN 'train' THEN 0 WHEN 'val' THEN 1 ELSE 2 END, record_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.RecordID, &a.Split, &a.Category, &a.Group, &a.TotalWindows, &a.PositiveWindows); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SplitStats returns the per-split statistics of a split run.
func (s *Store) SplitStats(ctx context.Context, runID string) ([]SplitStat, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT split, records, windows, positive_windows, negative_windows, positive_ratio
        FROM split_stats WHERE run_id = ?
        ORDER BY CASE split WHEN 'train' THEN 0 WHEN 'val' THEN 1 ELSE 2 END`, runID)
	if err != nil {
		return nil, fmt.Errorf("query split stats: %w", err)
	}
	defer rows.Close()

	var out []SplitStat
	for rows.Next() {
		var st SplitStat
		if err := rows.Scan(&st.Split, &st.Records, &st.Windows, &st.PositiveWindows, &st.NegativeWindows, &st.PositiveRatio); err != nil {
			return nil, fmt.Errorf("scan split stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Warnings returns the validation warnings of a split run in emission order.
func (s *Store) Warnings(ctx context.Context, runID string) ([]Warning, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT code, split, message FROM split_warnings WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	defer rows.Close()

	var out []Warning
	for rows.Next() {
		var (
			w     Warning
			split sql.NullString
		)
		if err := rows.Scan(&w.Code, &split, &w.Message); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		w.Split = split.String
		out = append(out, w)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

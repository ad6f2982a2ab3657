package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/schemacheck/internal/report"
)

// timeLayout is fixed-width UTC so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// dialect holds the schema statements of a database/sql backend. Both
// supported drivers use ? placeholders.
type dialect struct {
	schema []string
}

var sqliteDialect = dialect{schema: []string{
	`CREATE TABLE IF NOT EXISTS check_runs (
		run_id TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		table_count INTEGER NOT NULL,
		success_count INTEGER NOT NULL,
		info_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		total_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS check_findings (
		run_id TEXT NOT NULL REFERENCES check_runs(run_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		check_name TEXT NOT NULL,
		table_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}}

var mysqlDialect = dialect{schema: []string{
	`CREATE TABLE IF NOT EXISTS check_runs (
		run_id VARCHAR(36) NOT NULL PRIMARY KEY,
		generated_at VARCHAR(32) NOT NULL,
		table_count INT NOT NULL,
		success_count INT NOT NULL,
		info_count INT NOT NULL,
		warning_count INT NOT NULL,
		error_count INT NOT NULL,
		total_count INT NOT NULL,
		INDEX idx_check_runs_generated_at (generated_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS check_findings (
		run_id VARCHAR(36) NOT NULL,
		seq INT NOT NULL,
		check_name VARCHAR(64) NOT NULL,
		table_name VARCHAR(255) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL,
		file VARCHAR(1024) NOT NULL,
		line INT NOT NULL,
		PRIMARY KEY (run_id, seq),
		CONSTRAINT fk_check_findings_run FOREIGN KEY (run_id) REFERENCES check_runs (run_id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}}

// sqlStore is the database/sql backend used for SQLite and MySQL.
type sqlStore struct {
	db  *sql.DB
	log *slog.Logger
}

func openSQL(ctx context.Context, driverName, conn string, d dialect, log *slog.Logger) (*sqlStore, error) {
	db, err := sql.Open(driverName, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create history tables: %w", err)
		}
	}
	return &sqlStore{db: db, log: log}, nil
}

func (s *sqlStore) Save(ctx context.Context, r *report.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := r.Summary
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO check_runs (run_id, generated_at, table_count, success_count, info_count, warning_count, error_count, total_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.GeneratedAt.UTC().Format(timeLayout), len(r.Tables),
		sum.Success, sum.Info, sum.Warning, sum.Error, sum.Total); err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO check_findings (run_id, seq, check_name, table_name, severity, message, details, file, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, res := range r.Results {
		details, err := encodeDetails(res.Details)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.RunID, i, res.Check, res.Table, string(res.Severity),
			res.Message, details, res.File, res.Line); err != nil {
			return fmt.Errorf("failed to save finding %d of run %s: %w", i, r.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.RunID, err)
	}
	s.log.Debug("run saved", "run_id", r.RunID, "findings", len(r.Results))
	return nil
}

func (s *sqlStore) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, generated_at, table_count, success_count, info_count, warning_count, error_count, total_count
		 FROM check_runs
		 ORDER BY generated_at DESC, run_id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var generated string
		sum := &run.Summary
		if err := rows.Scan(&run.RunID, &generated, &run.Tables,
			&sum.Success, &sum.Info, &sum.Warning, &sum.Error, &sum.Total); err != nil {
			return nil, err
		}
		if run.GeneratedAt, err = time.Parse(timeLayout, generated); err != nil {
			return nil, fmt.Errorf("run %s has invalid timestamp %q: %w", run.RunID, generated, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *sqlStore) Findings(ctx context.Context, runID string) ([]report.CheckResult, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM check_runs WHERE run_id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT check_name, table_name, severity, message, details, file, line
		 FROM check_findings
		 WHERE run_id = ?
		 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []report.CheckResult{}
	for rows.Next() {
		var res report.CheckResult
		var severity, details string
		if err := rows.Scan(&res.Check, &res.Table, &severity, &res.Message, &details, &res.File, &res.Line); err != nil {
			return nil, err
		}
		if res.Severity, err = report.ParseSeverity(severity); err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		if res.Details, err = decodeDetails(details); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/schemacheck/internal/report"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS check_runs (
		run_id TEXT PRIMARY KEY,
		generated_at TIMESTAMPTZ NOT NULL,
		table_count INTEGER NOT NULL,
		success_count INTEGER NOT NULL,
		info_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		total_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS check_findings (
		run_id TEXT NOT NULL REFERENCES check_runs (run_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		check_name TEXT NOT NULL,
		table_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		details JSONB NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// postgresStore keeps a single pgx connection; the CLI saves one report per
// process.
type postgresStore struct {
	conn *pgx.Conn
	log  *slog.Logger
}

func openPostgres(ctx context.Context, connString string, log *slog.Logger) (*postgresStore, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("failed to create history tables: %w", err)
		}
	}
	return &postgresStore{conn: conn, log: log}, nil
}

func (s *postgresStore) Save(ctx context.Context, r *report.Report) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sum := r.Summary
	if _, err := tx.Exec(ctx,
		`INSERT INTO check_runs (run_id, generated_at, table_count, success_count, info_count, warning_count, error_count, total_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.RunID, r.GeneratedAt, len(r.Tables),
		sum.Success, sum.Info, sum.Warning, sum.Error, sum.Total); err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.RunID, err)
	}

	rows := make([][]any, 0, len(r.Results))
	for i, res := range r.Results {
		details, err := encodeDetails(res.Details)
		if err != nil {
			return err
		}
		rows = append(rows, []any{r.RunID, i, res.Check, res.Table, string(res.Severity),
			res.Message, []byte(details), res.File, res.Line})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"check_findings"},
		[]string{"run_id", "seq", "check_name", "table_name", "severity", "message", "details", "file", "line"},
		pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("failed to save findings of run %s: %w", r.RunID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.RunID, err)
	}
	s.log.Debug("run saved", "run_id", r.RunID, "findings", len(r.Results))
	return nil
}

func (s *postgresStore) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT run_id, generated_at, table_count, success_count, info_count, warning_count, error_count, total_count
		 FROM check_runs
		 ORDER BY generated_at DESC, run_id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		sum := &run.Summary
		if err := rows.Scan(&run.RunID, &run.GeneratedAt, &run.Tables,
			&sum.Success, &sum.Info, &sum.Warning, &sum.Error, &sum.Total); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *postgresStore) Findings(ctx context.Context, runID string) ([]report.CheckResult, error) {
	var one int
	err := s.conn.QueryRow(ctx, `SELECT 1 FROM check_runs WHERE run_id = $1`, runID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
	}

	rows, err := s.conn.Query(ctx,
		`SELECT check_name, table_name, severity, message, details::text, file, line
		 FROM check_findings
		 WHERE run_id = $1
		 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}
	defer rows.Close()

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

func (s *postgresStore) Close() error {
	return s.conn.Close(context.Background())
}

// Package history persists consistency reports so that runs can be listed
// and compared later. SQLite, PostgreSQL and MySQL backends are selected by
// URL scheme.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tordrt/schemacheck/internal/logging"
	"github.com/tordrt/schemacheck/internal/report"
)

// Backend names returned by ParseURL
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// ErrRunNotFound is returned by Findings for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one stored run without its findings.
type RunSummary struct {
	RunID       string
	GeneratedAt time.Time
	Tables      int
	Summary     report.Summary
}

// Store saves and reads back reports.
type Store interface {
	Save(ctx context.Context, r *report.Report) error
	// Recent lists the newest runs first.
	Recent(ctx context.Context, limit int) ([]RunSummary, error)
	// Findings returns the results of one run in report order.
	Findings(ctx context.Context, runID string) ([]report.CheckResult, error)
	Close() error
}

// Open connects to the history database named by rawURL and creates the
// history tables when they are missing.
func Open(ctx context.Context, rawURL string, log *slog.Logger) (Store, error) {
	driver, conn, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	log = logging.OrDiscard(log).With("history", driver)

	var s Store
	switch driver {
	case DriverPostgres:
		s, err = openPostgres(ctx, conn, log)
	case DriverMySQL:
		s, err = openSQL(ctx, "mysql", conn, mysqlDialect, log)
	case DriverSQLite:
		s, err = openSQL(ctx, "sqlite3", conn, sqliteDialect, log)
	default:
		err = fmt.Errorf("unsupported database type: %s", driver)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("history store opened")
	return s, nil
}

// ParseURL detects the backend and returns the driver connection string
func ParseURL(url string) (driver, connectionStr string, err error) {
	if url == "" {
		return "", "", fmt.Errorf("history URL is required")
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres, url, nil
	}

	if strings.HasPrefix(url, "mysql://") {
		// The Go MySQL driver takes a DSN without scheme
		return DriverMySQL, strings.TrimPrefix(url, "mysql://"), nil
	}

	if strings.HasPrefix(url, "sqlite://") {
		return DriverSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	}

	return "", "", fmt.Errorf("invalid history URL scheme (must start with postgres://, mysql://, or sqlite://)")
}

func encodeDetails(d report.Details) (string, error) {
	if len(d) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode details: %w", err)
	}
	return string(data), nil
}

func decodeDetails(s string) (report.Details, error) {
	d := report.Details{}
	if s == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("failed to decode details: %w", err)
	}
	return d, nil
}

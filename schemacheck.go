// Package schemacheck verifies that the DDL files, YAML table details,
// Markdown table definitions and the entity relationship registry of a
// database design agree with each other.
//
// # Quick Start
//
// The simplest way to use this package is Run followed by FormatReport:
//
//	rep, err := schemacheck.Run(ctx, &schemacheck.Options{BaseDir: "docs/database"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = schemacheck.FormatReport(rep, &schemacheck.OutputOptions{Format: "markdown"})
//	os.Exit(schemacheck.ExitCode(rep))
//
// # Source Layout
//
// Under BaseDir the sources are expected at:
//   - ddl/<TABLE>.sql: one CREATE TABLE per file (all_tables.sql and names starting with "-" are skipped)
//   - table-details/<TABLE>_details.yaml: the YAML table detail
//   - tables/テーブル定義書_<TABLE>_<logical name>.md: the table definition document
//
// An entity relationship registry is optional. Without an explicit path,
// table-details/entity_relationships.yaml is picked up when present.
//
// # Severities
//
// Something only the YAML detail declares is an ERROR, something only the
// DDL declares is a WARNING. ExitCode maps a report to 0 (clean), 1 (any
// ERROR) or 2 (WARNING only).
package schemacheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tordrt/schemacheck/internal/check"
	"github.com/tordrt/schemacheck/internal/ddl"
	"github.com/tordrt/schemacheck/internal/erd"
	"github.com/tordrt/schemacheck/internal/formatter"
	"github.com/tordrt/schemacheck/internal/loader"
	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
	"github.com/tordrt/schemacheck/internal/yamlschema"
)

// Default source directories, relative to BaseDir.
const (
	DefaultBaseDir   = "docs/database"
	DefaultDDLDir    = "ddl"
	DefaultYAMLDir   = "table-details"
	DefaultTablesDir = "tables"
)

// Options configures a consistency run.
//
// All fields are optional. Relative directories are resolved against BaseDir.
// If both Tables and ExcludeTables name a table, the exclusion wins.
type Options struct {
	// BaseDir is the root of the design documents. Defaults to DefaultBaseDir.
	BaseDir string

	// DDLDir, YAMLDir and TablesDir locate the three per-table sources.
	DDLDir    string
	YAMLDir   string
	TablesDir string

	// EntityRegistry is the path of the entity relationship YAML. When empty,
	// entity_relationships.yaml in YAMLDir is used if it exists; otherwise
	// registry checks are skipped.
	EntityRegistry string

	// Tables restricts the run to these tables. Tables missing from every
	// source are still reported.
	Tables []string

	// ExcludeTables removes tables from the run.
	ExcludeTables []string

	// Checks selects the checks to run. Empty runs all of them.
	Checks []string

	// Logger receives progress and diagnostics. Nil discards them.
	Logger *slog.Logger

	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// OutputOptions configures report output.
//
// If OutputDir is set, an _overview file and one file per table are written
// there and Writer is ignored. Otherwise the report goes to Writer, or
// os.Stdout when Writer is nil.
type OutputOptions struct {
	Writer    io.Writer
	OutputDir string
	// Format is "text", "markdown" or "json". Defaults to text.
	Format string
	// Color styles severities in text output.
	Color bool
}

// Run loads every source and runs the selected checks.
//
// Per-table problems (unparseable files, missing sources, mismatches) become
// results in the report. Only configuration problems, such as a missing source
// directory or an unknown check name, and cancellation are returned as errors.
func Run(ctx context.Context, opts *Options) (*report.Report, error) {
	if opts == nil {
		opts = &Options{}
	}
	if err := check.ValidateChecks(opts.Checks); err != nil {
		return nil, &schema.ConfigurationError{Setting: "checks", Msg: err.Error()}
	}

	base := orDefault(opts.BaseDir, DefaultBaseDir)
	resolve := func(dir, def string) string {
		dir = orDefault(dir, def)
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(base, dir)
	}

	cfg := loader.Config{
		DDLDir:      resolve(opts.DDLDir, DefaultDDLDir),
		YAMLDir:     resolve(opts.YAMLDir, DefaultYAMLDir),
		MarkdownDir: resolve(opts.TablesDir, DefaultTablesDir),
		Exclude:     opts.ExcludeTables,
		Tables:      opts.Tables,
	}
	if opts.EntityRegistry != "" {
		cfg.EntityRegistryPath = resolve(opts.EntityRegistry, "")
	} else if def := filepath.Join(cfg.YAMLDir, erd.DefaultFileName); fileExists(def) {
		cfg.EntityRegistryPath = def
	}

	src, err := loader.New(cfg, opts.Logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	return check.NewEngine(check.Options{Checks: opts.Checks, Now: opts.Now}, opts.Logger).Run(ctx, src)
}

// FormatReport writes a report according to out. A nil out writes text to
// os.Stdout.
func FormatReport(r *report.Report, out *OutputOptions) error {
	if out == nil {
		out = &OutputOptions{}
	}

	if out.OutputDir != "" {
		return formatter.NewMultiFileFormatter(out.OutputDir, out.Format).Format(r)
	}

	w := out.Writer
	if w == nil {
		w = os.Stdout
	}
	f, err := formatter.New(out.Format, w, out.Color)
	if err != nil {
		return err
	}
	return f.Format(r)
}

// ExitCode maps a report to the process exit status: 1 when any result is an
// ERROR, 2 when the worst result is a WARNING, 0 otherwise.
func ExitCode(r *report.Report) int {
	switch {
	case r.HasErrors():
		return 1
	case r.HasWarnings():
		return 2
	}
	return 0
}

// GenerateDDL renders the CREATE TABLE statement for a YAML table detail file.
func GenerateDDL(yamlPath string) (string, error) {
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		return "", &schema.FileOperationError{Op: "read", Path: yamlPath, Err: err}
	}
	t, err := yamlschema.ParseBytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", yamlPath, err)
	}
	return ddl.Generate(t), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package schemacheck

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tordrt/schemacheck/internal/check"
	"github.com/tordrt/schemacheck/internal/erd"
	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
)

const employeeDDL = `CREATE TABLE MST_Employee (
    id VARCHAR(50) NOT NULL,
    name VARCHAR(100) NOT NULL,
    PRIMARY KEY (id)
);`

const employeeYAML = `table_name: MST_Employee
logical_name: 社員
revision_history:
  - {version: 1.0.0, date: "2024-04-01", content: initial}
overview: Employee master holding the basic profile of every employee in the company.
columns:
  - {name: id, type: VARCHAR(50), nullable: false, primary_key: true}
  - {name: name, type: VARCHAR(100), nullable: false}
%s
notes:
  - id is issued by the HR system
  - name is the legal name
  - rows are never physically deleted
rules:
  - id is immutable
  - name must not be blank
  - updates are audited
`

func writeTree(t *testing.T, extraColumn string) string {
	t.Helper()
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		"ddl/MST_Employee.sql":                      employeeDDL,
		"ddl/all_tables.sql":                        "CREATE TABLE ignored (id INT);",
		"table-details/MST_Employee_details.yaml":   strings.Replace(employeeYAML, "%s", extraColumn, 1),
		"table-details/README.md":                   "not a detail file",
		"tables/テーブル定義書_MST_Employee_社員.md": "# MST_Employee\n",
	})
	return base
}

// writeFiles writes content under base, keyed by slash-separated relative path.
func writeFiles(t *testing.T, base string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(base, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name        string
		extraColumn string
		checks      []string
		wantExit    int
		wantMessage string
	}{
		{
			name:     "consistent sources",
			wantExit: 0,
		},
		{
			name:        "YAML-only column",
			extraColumn: "  - {name: email, type: VARCHAR(255)}",
			wantExit:    1,
			wantMessage: "YAML-only column email",
		},
		{
			name:        "YAML-only column outside selected checks",
			extraColumn: "  - {name: email, type: VARCHAR(255)}",
			checks:      []string{"existence", "naming"},
			wantExit:    0,
		},
	}

	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := writeTree(t, tt.extraColumn)

			rep, err := Run(context.Background(), &Options{
				BaseDir: base,
				Checks:  tt.checks,
				Now:     func() time.Time { return now },
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got := ExitCode(rep); got != tt.wantExit {
				t.Errorf("ExitCode() = %d, want %d\n%+v", got, tt.wantExit, rep.Results)
			}
			if !rep.GeneratedAt.Equal(now) {
				t.Errorf("GeneratedAt = %v, want %v", rep.GeneratedAt, now)
			}
			if len(rep.Tables) != 1 || rep.Tables[0] != "MST_Employee" {
				t.Errorf("Tables = %v, want [MST_Employee]", rep.Tables)
			}
			if tt.wantMessage != "" {
				found := false
				for _, r := range rep.Results {
					if strings.Contains(r.Message, tt.wantMessage) {
						found = true
					}
				}
				if !found {
					t.Errorf("no result mentions %q", tt.wantMessage)
				}
			}
		})
	}
}

func TestRunWarningsOnly(t *testing.T) {
	base := writeTree(t, "")
	ddlPath := filepath.Join(base, "ddl", "MST_Employee.sql")
	withExtra := strings.Replace(employeeDDL, "    PRIMARY KEY", "    note TEXT,\n    PRIMARY KEY", 1)
	if err := os.WriteFile(ddlPath, []byte(withExtra), 0644); err != nil {
		t.Fatal(err)
	}

	rep, err := Run(context.Background(), &Options{BaseDir: base})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := ExitCode(rep); got != 2 {
		t.Errorf("ExitCode() = %d, want 2\n%+v", got, rep.Results)
	}
}

// writeRelatedTree lays out MST_Employee referencing MST_Department, with
// every source consistent.
func writeRelatedTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		"ddl/MST_Department.sql": `CREATE TABLE MST_Department (
    id VARCHAR(50) NOT NULL,
    name VARCHAR(100) NOT NULL,
    PRIMARY KEY (id)
);`,
		"ddl/MST_Employee.sql": `CREATE TABLE MST_Employee (
    id VARCHAR(50) NOT NULL,
    name VARCHAR(100) NOT NULL,
    department_id VARCHAR(50),
    PRIMARY KEY (id),
    CONSTRAINT fk_emp_dept FOREIGN KEY (department_id) REFERENCES MST_Department (id)
);`,
		"table-details/MST_Department_details.yaml": strings.NewReplacer(
			"MST_Employee", "MST_Department", "社員", "部署", "%s", "").Replace(employeeYAML),
		"table-details/MST_Employee_details.yaml": strings.Replace(employeeYAML, "%s",
			"  - {name: department_id, type: VARCHAR(50), is_fk: true}", 1),
		"tables/テーブル定義書_MST_Department_部署.md": "# MST_Department\n",
		"tables/テーブル定義書_MST_Employee_社員.md":   "# MST_Employee\n",
	})
	return base
}

func TestRunTableSelection(t *testing.T) {
	base := writeRelatedTree(t)

	tests := []struct {
		name       string
		opts       Options
		wantTables []string
	}{
		{
			name:       "all tables",
			wantTables: []string{"MST_Department", "MST_Employee"},
		},
		{
			name:       "target outside the referenced table",
			opts:       Options{Tables: []string{"MST_Employee"}},
			wantTables: []string{"MST_Employee"},
		},
		{
			name:       "referenced table excluded",
			opts:       Options{ExcludeTables: []string{"MST_Department"}},
			wantTables: []string{"MST_Employee"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.BaseDir = base
			rep, err := Run(context.Background(), &opts)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := ExitCode(rep); got != 0 {
				t.Errorf("ExitCode() = %d, want 0\n%+v", got, rep.Results)
			}
			if strings.Join(rep.Tables, ",") != strings.Join(tt.wantTables, ",") {
				t.Errorf("Tables = %v, want %v", rep.Tables, tt.wantTables)
			}
			for _, r := range rep.Results {
				if !slices.Contains(tt.wantTables, r.Table) {
					t.Errorf("result for unselected table %s: %s", r.Table, r.Message)
				}
			}
		})
	}
}

func TestRunDefaultRegistry(t *testing.T) {
	base := writeTree(t, "")
	writeFiles(t, base, map[string]string{
		"table-details/" + erd.DefaultFileName: "entities:\n  - table_name: MST_Other\n",
	})

	rep, err := Run(context.Background(), &Options{BaseDir: base})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := ExitCode(rep); got != 2 {
		t.Errorf("ExitCode() = %d, want 2\n%+v", got, rep.Results)
	}
	found := false
	for _, r := range rep.ResultsFor("MST_Employee") {
		if r.Check == check.CheckExistence && r.Severity == report.SeverityWarning &&
			strings.Contains(r.Message, "entity relation missing") {
			found = true
		}
	}
	if !found {
		t.Errorf("registry in the YAML directory was not picked up\n%+v", rep.Results)
	}

	// An explicit path wins over the default file.
	other := filepath.Join(t.TempDir(), "registry.yaml")
	writeFiles(t, filepath.Dir(other), map[string]string{
		"registry.yaml": "entities:\n  - table_name: MST_Employee\n",
	})
	rep, err = Run(context.Background(), &Options{BaseDir: base, EntityRegistry: other})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := ExitCode(rep); got != 0 {
		t.Errorf("ExitCode() with explicit registry = %d, want 0\n%+v", got, rep.Results)
	}
}

// A minimal YAML detail without any documentation sections next to matching
// DDL, plus one column the DDL lacks.
func TestRunYAMLOnlyColumnWithBareTemplate(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		"ddl/MST_Employee.sql": employeeDDL,
		"table-details/MST_Employee_details.yaml": `table_name: MST_Employee
logical_name: 社員
columns:
  - {name: id, type: VARCHAR(50), nullable: false, primary_key: true}
  - {name: name, type: VARCHAR(100), nullable: false}
  - {name: email, type: VARCHAR(255)}
`,
		"tables/テーブル定義書_MST_Employee_社員.md": "# MST_Employee\n",
	})

	rep, err := Run(context.Background(), &Options{BaseDir: base})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := ExitCode(rep); got != 1 {
		t.Errorf("ExitCode() = %d, want 1", got)
	}

	var errs []report.CheckResult
	format := 0
	for _, r := range rep.Results {
		if r.Severity == report.SeverityError {
			errs = append(errs, r)
		}
		if r.Check == check.CheckYAMLFormat {
			format++
			if r.Severity != report.SeverityWarning {
				t.Errorf("yaml_format result %q has severity %s, want WARNING", r.Message, r.Severity)
			}
		}
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1\n%+v", len(errs), errs)
	}
	if errs[0].Check != check.CheckColumns || !strings.Contains(errs[0].Message, "YAML-only column email") {
		t.Errorf("error = %s %q, want the YAML-only column", errs[0].Check, errs[0].Message)
	}
	if format == 0 {
		t.Error("missing documentation sections were not reported")
	}
}

func TestRunConfigurationErrors(t *testing.T) {
	tests := []struct {
		name        string
		opts        *Options
		wantSetting string
	}{
		{
			name:        "missing base directory",
			opts:        &Options{BaseDir: filepath.Join(t.TempDir(), "nope")},
			wantSetting: "paths.ddl",
		},
		{
			name:        "unknown check",
			opts:        &Options{BaseDir: t.TempDir(), Checks: []string{"spelling"}},
			wantSetting: "checks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.opts)
			var cfgErr *schema.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Run() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Setting != tt.wantSetting {
				t.Errorf("Setting = %q, want %q", cfgErr.Setting, tt.wantSetting)
			}
		})
	}
}

func TestFormatReport(t *testing.T) {
	base := writeTree(t, "")
	rep, err := Run(context.Background(), &Options{BaseDir: base})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tests := []struct {
		name    string
		outOpts *OutputOptions
		want    string
		wantErr bool
	}{
		{
			name:    "text to writer",
			outOpts: &OutputOptions{Format: "text"},
			want:    "TABLE MST_Employee: SUCCESS",
		},
		{
			name:    "markdown to writer",
			outOpts: &OutputOptions{Format: "markdown"},
			want:    "# Consistency Check Report",
		},
		{
			name:    "json to writer",
			outOpts: &OutputOptions{Format: "json"},
			want:    `"run_id"`,
		},
		{
			name:    "unknown format",
			outOpts: &OutputOptions{Format: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.outOpts.Writer = &buf
			err := FormatReport(rep, tt.outOpts)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q\n%s", tt.want, buf.String())
			}
		})
	}

	t.Run("directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "report")
		if err := FormatReport(rep, &OutputOptions{OutputDir: dir}); err != nil {
			t.Fatalf("FormatReport() error = %v", err)
		}
		for _, name := range []string{"_overview.md", "MST_Employee.md"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("expected %s: %v", name, err)
			}
		}
	})
}

func TestGenerateDDL(t *testing.T) {
	base := writeTree(t, "")
	out, err := GenerateDDL(filepath.Join(base, "table-details", "MST_Employee_details.yaml"))
	if err != nil {
		t.Fatalf("GenerateDDL() error = %v", err)
	}
	for _, want := range []string{"CREATE TABLE MST_Employee (", "id VARCHAR(50) NOT NULL", "PRIMARY KEY (id)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}

	if _, err := GenerateDDL(filepath.Join(base, "missing.yaml")); err == nil {
		t.Error("Expected error but got none")
	}
}

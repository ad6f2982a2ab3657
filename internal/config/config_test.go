package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

var knownChecks = []string{"load", "existence", "columns", "naming"}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseDir != "docs/database" {
		t.Errorf("BaseDir = %q", cfg.BaseDir)
	}
	if cfg.Paths.YAML != "table-details" || cfg.Paths.DDL != "ddl" || cfg.Paths.Tables != "tables" {
		t.Errorf("Paths = %+v", cfg.Paths)
	}
	if cfg.Format != FormatText {
		t.Errorf("Format = %q, want text", cfg.Format)
	}
	if cfg.EntityRegistry != "" {
		t.Errorf("EntityRegistry = %q, want empty", cfg.EntityRegistry)
	}
	if err := cfg.Validate(knownChecks); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "schemacheck.yaml")
	content := `
base_dir: /srv/schema
paths:
  yaml: details
entity_registry: details/entity_relationships.yaml
exclude_tables: [WRK_Tmp]
format: markdown
log:
  level: debug
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCHEMACHECK_FORMAT", "json")
	t.Setenv("SCHEMACHECK_TABLES", "MST_Employee, MST_Department")

	v := New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-dir", "", "")
	if err := BindFlags(v, flags, map[string]string{"base_dir": "base-dir"}); err != nil {
		t.Fatalf("BindFlags() error = %v", err)
	}
	if err := flags.Parse([]string{"--base-dir", "/override"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v, file)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag beats file", cfg.BaseDir, "/override"},
		{"env beats file", cfg.Format, FormatJSON},
		{"file beats default", cfg.Paths.YAML, "details"},
		{"default kept", cfg.Paths.DDL, "ddl"},
		{"env list", cfg.Tables, []string{"MST_Employee", "MST_Department"}},
		{"file list", cfg.ExcludeTables, []string{"WRK_Tmp"}},
		{"nested key", cfg.Log.Level, "debug"},
		{"registry path kept relative", cfg.EntityRegistry, "details/entity_relationships.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error but got none")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{BaseDir: ".", Format: FormatMarkdown, Checks: []string{"columns"}}, false},
		{"unknown format", Config{BaseDir: ".", Format: "html"}, true},
		{"unknown check", Config{BaseDir: ".", Format: FormatText, Checks: []string{"spelling"}}, true},
		{"empty base dir", Config{Format: FormatText}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(knownChecks)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}

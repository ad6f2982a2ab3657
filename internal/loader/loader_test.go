package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemacheck/internal/schema"
)

const employeeDDL = `CREATE TABLE MST_Employee (
    id VARCHAR(50) NOT NULL,
    name VARCHAR(100) NOT NULL,
    PRIMARY KEY (id)
);`

const employeeYAML = `table_name: MST_Employee
logical_name: 社員
columns:
  - name: id
    type: VARCHAR(50)
    nullable: false
    primary_key: true
  - name: name
    type: VARCHAR(100)
    nullable: false
`

type fixture struct {
	base string
	cfg  Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		base: base,
		cfg: Config{
			DDLDir:      filepath.Join(base, "ddl"),
			YAMLDir:     filepath.Join(base, "table-details"),
			MarkdownDir: filepath.Join(base, "tables"),
		},
	}
	for _, dir := range []string{f.cfg.DDLDir, f.cfg.YAMLDir, f.cfg.MarkdownDir} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	return f
}

func (f *fixture) write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.DDLDir, "MST_Employee.sql", employeeDDL)
	f.write(t, f.cfg.DDLDir, "all_tables.sql", "CREATE TABLE ignored (id INT);")
	f.write(t, f.cfg.DDLDir, "-draft.sql", "CREATE TABLE draft (id INT);")
	f.write(t, f.cfg.DDLDir, "README.txt", "not ddl")
	f.write(t, f.cfg.YAMLDir, "MST_Employee_details.yaml", employeeYAML)
	f.write(t, f.cfg.MarkdownDir, "テーブル定義書_MST_Employee_社員.md", "# MST_Employee\n")

	src, err := New(f.cfg, nil).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"MST_Employee"}, src.Roster())
	require.Contains(t, src.DDL, "MST_Employee")
	require.Contains(t, src.YAML, "MST_Employee")
	require.Contains(t, src.Markdown, "MST_Employee")
	assert.Equal(t, []string{"id", "name"}, src.DDL["MST_Employee"].ColumnNames())
	assert.Equal(t, "社員", src.Markdown["MST_Employee"].LogicalName)
	assert.Contains(t, src.YAMLDocs, "MST_Employee")
	assert.Empty(t, src.Failures)
	assert.Nil(t, src.Registry)
	assert.Equal(t, filepath.Join(f.cfg.DDLDir, "MST_Employee.sql"), src.File(schema.SourceDDL, "MST_Employee"))
}

func TestLoadRecordsParseFailures(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.DDLDir, "MST_Broken.sql", "CREATE TABLE MST_Broken (id INT")
	f.write(t, f.cfg.YAMLDir, "MST_Broken_details.yaml", "table_name: MST_Broken\n")
	f.write(t, f.cfg.DDLDir, "MST_Employee.sql", employeeDDL)

	src, err := New(f.cfg, nil).Load(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, src.DDL, "MST_Broken")
	assert.NotContains(t, src.YAML, "MST_Broken")
	require.Len(t, src.Failures, 2)
	assert.True(t, src.Failed("MST_Broken", schema.SourceDDL))
	assert.True(t, src.Failed("MST_Broken", schema.SourceYAML))
	assert.Equal(t, []string{"MST_Broken", "MST_Employee"}, src.Roster())

	var perr *schema.ParseError
	require.True(t, errors.As(src.Failures[0].Err, &perr))
	assert.Equal(t, filepath.Join(f.cfg.DDLDir, "MST_Broken.sql"), perr.File)

	var verr *schema.ValidationError
	assert.True(t, errors.As(src.Failures[1].Err, &verr))
}

func TestLoadFilters(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"MST_Employee", "MST_Department", "WRK_Tmp"} {
		f.write(t, f.cfg.DDLDir, name+".sql", "CREATE TABLE "+name+" (id INT);")
	}

	t.Run("exclusion", func(t *testing.T) {
		cfg := f.cfg
		cfg.Exclude = []string{"WRK_Tmp"}
		src, err := New(cfg, nil).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"MST_Department", "MST_Employee"}, src.Roster())
	})

	t.Run("target filter keeps absent tables in roster", func(t *testing.T) {
		cfg := f.cfg
		cfg.Tables = []string{"MST_Employee", "MST_Ghost"}
		src, err := New(cfg, nil).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"MST_Employee", "MST_Ghost"}, src.Roster())
		assert.Len(t, src.DDL, 3, "tables outside the target stay loaded for lookups")
	})

	t.Run("exclusion beats target", func(t *testing.T) {
		cfg := f.cfg
		cfg.Tables = []string{"MST_Employee", "WRK_Tmp"}
		cfg.Exclude = []string{"WRK_Tmp"}
		src, err := New(cfg, nil).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"MST_Employee"}, src.Roster())
	})

	t.Run("excluded tables are known but not loaded", func(t *testing.T) {
		cfg := f.cfg
		cfg.Exclude = []string{"MST_Department"}
		src, err := New(cfg, nil).Load(context.Background())
		require.NoError(t, err)
		assert.NotContains(t, src.DDL, "MST_Department")
		assert.True(t, src.Excluded("MST_Department"))
		assert.True(t, src.KnownTables()["MST_Department"])
		assert.NotContains(t, src.Roster(), "MST_Department")
	})

	t.Run("fully excluded target leaves an empty roster", func(t *testing.T) {
		cfg := f.cfg
		cfg.Tables = []string{"WRK_Tmp"}
		cfg.Exclude = []string{"WRK_Tmp"}
		src, err := New(cfg, nil).Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, src.Roster())
	})
}

func TestLoadConfigurationErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		f := newFixture(t)
		cfg := f.cfg
		cfg.YAMLDir = filepath.Join(f.base, "nope")
		_, err := New(cfg, nil).Load(context.Background())
		var cerr *schema.ConfigurationError
		require.True(t, errors.As(err, &cerr), "got %v", err)
		assert.Equal(t, "paths.yaml", cerr.Setting)
	})

	t.Run("root is a file", func(t *testing.T) {
		f := newFixture(t)
		cfg := f.cfg
		cfg.DDLDir = f.write(t, f.base, "file.sql", "")
		_, err := New(cfg, nil).Load(context.Background())
		var cerr *schema.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("configured registry missing", func(t *testing.T) {
		f := newFixture(t)
		cfg := f.cfg
		cfg.EntityRegistryPath = filepath.Join(f.cfg.YAMLDir, "entity_relationships.yaml")
		_, err := New(cfg, nil).Load(context.Background())
		var cerr *schema.ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "entity_registry", cerr.Setting)
	})
}

func TestLoadRegistry(t *testing.T) {
	f := newFixture(t)
	cfg := f.cfg
	cfg.EntityRegistryPath = f.write(t, f.cfg.YAMLDir, "entity_relationships.yaml",
		"entities:\n  - table_name: MST_Department\n")

	src, err := New(cfg, nil).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, src.Registry)
	assert.True(t, src.KnownTables()["MST_Department"])
	assert.Empty(t, src.Roster(), "registry entries do not join the roster")
}

func TestLoadCancelled(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.DDLDir, "MST_Employee.sql", employeeDDL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(f.cfg, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// Package loader discovers and parses the DDL, YAML and Markdown sources of
// every table, plus the optional entity registry.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/schemacheck/internal/ddl"
	"github.com/tordrt/schemacheck/internal/erd"
	"github.com/tordrt/schemacheck/internal/logging"
	"github.com/tordrt/schemacheck/internal/markdown"
	"github.com/tordrt/schemacheck/internal/schema"
	"github.com/tordrt/schemacheck/internal/yamlschema"
)

const (
	allTablesFile = "all_tables.sql"
	yamlSuffix    = "_details.yaml"
)

// Config names the source roots. All three directories are required.
type Config struct {
	DDLDir             string
	YAMLDir            string
	MarkdownDir        string
	EntityRegistryPath string
	Exclude            []string
	Tables             []string
}

// Failure records a file that could be read but not parsed.
type Failure struct {
	Table  string
	Source string
	File   string
	Err    error
}

// Sources holds everything loaded for one run.
type Sources struct {
	DDL      map[string]*schema.Table
	YAML     map[string]*schema.Table
	Markdown map[string]*schema.Table
	// YAMLDocs keeps the decoded documents for template compliance checks.
	YAMLDocs map[string]map[string]any
	// Files maps source and table to the file path it was loaded from.
	Files    map[string]map[string]string
	Registry *erd.Registry
	Failures []Failure

	target   []string
	excluded map[string]bool
}

// NewSources returns empty sources. Tests build inputs with it directly.
func NewSources() *Sources {
	return &Sources{
		DDL:      make(map[string]*schema.Table),
		YAML:     make(map[string]*schema.Table),
		Markdown: make(map[string]*schema.Table),
		YAMLDocs: make(map[string]map[string]any),
		Files: map[string]map[string]string{
			schema.SourceDDL:      {},
			schema.SourceYAML:     {},
			schema.SourceMarkdown: {},
		},
	}
}

// SetTarget restricts the roster to the given names. Every other loaded
// table stays available for foreign key lookups.
func (s *Sources) SetTarget(tables []string) {
	s.target = schema.SortedCopy(tables)
}

// SetExcluded records tables left out of the run. They never join the roster
// but still count as known tables.
func (s *Sources) SetExcluded(tables []string) {
	s.excluded = make(map[string]bool, len(tables))
	for _, name := range tables {
		s.excluded[name] = true
	}
}

// Excluded reports whether the table was left out of the run.
func (s *Sources) Excluded(table string) bool {
	return s.excluded[table]
}

// Roster returns the tables to check, sorted: the target filter when set,
// otherwise every table seen in DDL, YAML, Markdown or a load failure.
// Excluded tables are never part of it.
func (s *Sources) Roster() []string {
	if len(s.target) > 0 {
		out := make([]string, 0, len(s.target))
		for _, name := range s.target {
			if !s.excluded[name] {
				out = append(out, name)
			}
		}
		return out
	}
	set := make(map[string]bool)
	for _, m := range []map[string]*schema.Table{s.DDL, s.YAML, s.Markdown} {
		for name := range m {
			set[name] = true
		}
	}
	for _, f := range s.Failures {
		set[f.Table] = true
	}
	for name := range s.excluded {
		delete(set, name)
	}
	return sortedKeys(set)
}

// KnownTables returns every table name seen anywhere, including the registry
// and the excluded tables.
func (s *Sources) KnownTables() map[string]bool {
	set := make(map[string]bool)
	for _, m := range []map[string]*schema.Table{s.DDL, s.YAML, s.Markdown} {
		for name := range m {
			set[name] = true
		}
	}
	for _, f := range s.Failures {
		set[f.Table] = true
	}
	if s.Registry != nil {
		for _, name := range s.Registry.Tables() {
			set[name] = true
		}
	}
	for name := range s.excluded {
		set[name] = true
	}
	return set
}

// Failed reports whether loading the table from source failed.
func (s *Sources) Failed(table, source string) bool {
	for _, f := range s.Failures {
		if f.Table == table && f.Source == source {
			return true
		}
	}
	return false
}

// File returns the path a table was loaded from, or "".
func (s *Sources) File(source, table string) string {
	return s.Files[source][table]
}

// Loader reads the configured roots.
type Loader struct {
	cfg     Config
	log     *slog.Logger
	exclude map[string]bool
	target  map[string]bool
}

// New returns a loader. A nil logger discards output.
func New(cfg Config, log *slog.Logger) *Loader {
	l := &Loader{
		cfg:     cfg,
		log:     logging.OrDiscard(log),
		exclude: make(map[string]bool),
		target:  make(map[string]bool),
	}
	for _, name := range cfg.Exclude {
		l.exclude[name] = true
	}
	for _, name := range cfg.Tables {
		l.target[name] = true
	}
	return l
}

// Load reads every source. Only a configuration problem or cancellation
// returns an error; per-file problems are logged or recorded as Failures.
func (l *Loader) Load(ctx context.Context) (*Sources, error) {
	if err := l.checkRoots(); err != nil {
		return nil, err
	}

	src := NewSources()
	src.SetExcluded(sortedKeys(l.exclude))
	if len(l.target) > 0 {
		src.SetTarget(sortedKeys(l.target))
	}

	if l.cfg.EntityRegistryPath != "" {
		reg, err := erd.Load(l.cfg.EntityRegistryPath)
		if err != nil {
			return nil, &schema.ConfigurationError{Setting: "entity_registry", Msg: "cannot load registry", Err: err}
		}
		src.Registry = reg
	}

	if err := l.loadDDL(ctx, src); err != nil {
		return nil, err
	}
	if err := l.loadYAML(ctx, src); err != nil {
		return nil, err
	}
	if err := l.loadMarkdown(ctx, src); err != nil {
		return nil, err
	}

	l.log.Info("sources loaded",
		"ddl", len(src.DDL),
		"yaml", len(src.YAML),
		"markdown", len(src.Markdown),
		"failures", len(src.Failures),
		"registry", src.Registry != nil)
	return src, nil
}

func (l *Loader) checkRoots() error {
	roots := []struct{ setting, dir string }{
		{"paths.ddl", l.cfg.DDLDir},
		{"paths.yaml", l.cfg.YAMLDir},
		{"paths.tables", l.cfg.MarkdownDir},
	}
	for _, r := range roots {
		if r.dir == "" {
			return &schema.ConfigurationError{Setting: r.setting, Msg: "directory not configured"}
		}
		info, err := os.Stat(r.dir)
		if err != nil {
			return &schema.ConfigurationError{Setting: r.setting, Msg: "cannot access " + r.dir, Err: err}
		}
		if !info.IsDir() {
			return &schema.ConfigurationError{Setting: r.setting, Msg: r.dir + " is not a directory"}
		}
	}
	return nil
}

// wanted applies the exclusion set. The target filter only narrows the
// roster: tables outside it are still loaded so that foreign keys pointing at
// them resolve.
func (l *Loader) wanted(table string) bool {
	return table != "" && !l.exclude[table]
}

// files lists directory entries accepted by nameOf, which maps a file name to
// a table name ("" to skip).
func (l *Loader) files(dir string, nameOf func(string) string) ([][2]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &schema.ConfigurationError{Setting: dir, Msg: "cannot list directory", Err: err}
	}
	var out [][2]string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		table := nameOf(e.Name())
		if !l.wanted(table) {
			continue
		}
		out = append(out, [2]string{table, filepath.Join(dir, e.Name())})
	}
	return out, nil
}

func (l *Loader) read(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		ferr := &schema.FileOperationError{Path: path, Op: "read", Err: err}
		l.log.Warn("skipping unreadable file", "error", ferr)
		return nil, false
	}
	return data, true
}

func (l *Loader) fail(src *Sources, f Failure) {
	l.log.Warn("table source failed to load", "table", f.Table, "source", f.Source, "file", f.File, "error", f.Err)
	src.Failures = append(src.Failures, f)
}

func ddlTableName(file string) string {
	if !strings.HasSuffix(file, ".sql") || file == allTablesFile || strings.HasPrefix(file, "-") {
		return ""
	}
	return strings.TrimSuffix(file, ".sql")
}

func yamlTableName(file string) string {
	if !strings.HasSuffix(file, yamlSuffix) || strings.HasPrefix(file, "-") {
		return ""
	}
	return strings.TrimSuffix(file, yamlSuffix)
}

func markdownTableName(file string) string {
	table, _, ok := markdown.ParseFileName(file)
	if !ok {
		return ""
	}
	return table
}

func (l *Loader) loadDDL(ctx context.Context, src *Sources) error {
	files, err := l.files(l.cfg.DDLDir, ddlTableName)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		table, path := f[0], f[1]
		data, ok := l.read(path)
		if !ok {
			continue
		}
		t, err := ddl.Parse(string(data))
		if err != nil {
			l.fail(src, Failure{Table: table, Source: schema.SourceDDL, File: path, Err: withFile(err, path)})
			continue
		}
		if t.Name != table {
			l.log.Debug("DDL table name differs from file name", "file", path, "table", t.Name)
			t.Name = table
		}
		src.DDL[table] = t
		src.Files[schema.SourceDDL][table] = path
	}
	return nil
}

func (l *Loader) loadYAML(ctx context.Context, src *Sources) error {
	files, err := l.files(l.cfg.YAMLDir, yamlTableName)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		table, path := f[0], f[1]
		data, ok := l.read(path)
		if !ok {
			continue
		}
		doc, err := yamlschema.Decode(data)
		if err != nil {
			l.fail(src, Failure{Table: table, Source: schema.SourceYAML, File: path, Err: withFile(err, path)})
			continue
		}
		t, err := yamlschema.Parse(doc)
		if err != nil {
			l.fail(src, Failure{Table: table, Source: schema.SourceYAML, File: path, Err: withFile(err, path)})
			continue
		}
		if t.Name != table {
			l.log.Debug("YAML table_name differs from file name", "file", path, "table", t.Name)
			t.Name = table
		}
		src.YAML[table] = t
		src.YAMLDocs[table] = doc
		src.Files[schema.SourceYAML][table] = path
	}
	return nil
}

func (l *Loader) loadMarkdown(ctx context.Context, src *Sources) error {
	files, err := l.files(l.cfg.MarkdownDir, markdownTableName)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		table, path := f[0], f[1]
		data, ok := l.read(path)
		if !ok {
			continue
		}
		t, err := markdown.Parse(string(data))
		if err != nil {
			// The file name already identifies the table; keep a bare entry.
			l.log.Debug("markdown content not parsed", "file", path, "error", err)
			t = &schema.Table{}
		}
		t.Name = table
		if t.LogicalName == "" {
			_, t.LogicalName, _ = markdown.ParseFileName(filepath.Base(path))
		}
		src.Markdown[table] = t
		src.Files[schema.SourceMarkdown][table] = path
	}
	return nil
}

// withFile stamps the file path onto parse and validation errors.
func withFile(err error, path string) error {
	var perr *schema.ParseError
	if errors.As(err, &perr) {
		perr.File = path
		return err
	}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		verr.File = path
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

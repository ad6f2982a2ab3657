package check

import (
	"errors"
	"fmt"

	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
	"github.com/tordrt/schemacheck/internal/yamlschema"
)

// Existence issue types
const (
	IssueAbsent          = "absent_everywhere"
	IssueDDLMissing      = "ddl_missing"
	IssueYAMLMissing     = "yaml_missing"
	IssueMarkdownMissing = "markdown_missing"
	IssueRegistryMissing = "registry_missing"
)

func loadIssue(err error) string {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return "validation_error"
	}
	return "parse_error"
}

func errorLine(err error) int {
	var perr *schema.ParseError
	if errors.As(err, &perr) {
		return perr.Line
	}
	return 0
}

type presence struct {
	ddl, yaml, markdown bool
	// registry is nil when no registry was loaded.
	registry *bool
}

func (p presence) String() string {
	mark := func(b bool) string {
		if b {
			return "✓"
		}
		return "✗"
	}
	reg := "-"
	if p.registry != nil {
		reg = mark(*p.registry)
	}
	return fmt.Sprintf("ddl=%s yaml=%s markdown=%s entity_registry=%s",
		mark(p.ddl), mark(p.yaml), mark(p.markdown), reg)
}

// presenceOf treats a source that failed to load as present; the failure is
// already reported by the load stage.
func (r *run) presenceOf(table string) presence {
	_, ddl := r.src.DDL[table]
	_, yaml := r.src.YAML[table]
	_, md := r.src.Markdown[table]
	p := presence{
		ddl:      ddl || r.src.Failed(table, schema.SourceDDL),
		yaml:     yaml || r.src.Failed(table, schema.SourceYAML),
		markdown: md,
	}
	if r.src.Registry != nil {
		has := r.src.Registry.Has(table)
		p.registry = &has
	}
	return p
}

// checkExistence emits exactly one result per table from the presence matrix.
// DDL absence outranks YAML absence, and the Markdown definition is checked
// before the entity registry.
func (r *run) checkExistence(table string) []report.CheckResult {
	p := r.presenceOf(table)
	var res report.CheckResult
	otherPresent := p.markdown || (p.registry != nil && *p.registry)

	switch {
	case !p.ddl && !p.yaml && !otherPresent:
		res = result(CheckExistence, table, report.SeverityError, IssueAbsent,
			"table absent from all sources")
	case !p.ddl:
		res = result(CheckExistence, table, report.SeverityError, IssueDDLMissing,
			"DDL missing: no DDL file defines this table")
		res.Details.Set(report.KeySource, schema.SourceDDL)
	case !p.yaml:
		res = result(CheckExistence, table, report.SeverityError, IssueYAMLMissing,
			"YAML detail missing: no table detail YAML for this table")
		res.Details.Set(report.KeySource, schema.SourceYAML)
	case !p.markdown:
		res = result(CheckExistence, table, report.SeverityWarning, IssueMarkdownMissing,
			"definition doc missing: no table definition Markdown for this table")
		res.Details.Set(report.KeySource, schema.SourceMarkdown)
	case p.registry != nil && !*p.registry:
		res = result(CheckExistence, table, report.SeverityWarning, IssueRegistryMissing,
			"entity relation missing: table is not in the entity registry")
		res.Details.Set(report.KeySource, schema.SourceRegistry)
	default:
		res = success(CheckExistence, table, "table present in all sources")
	}
	res.Details.Set(report.KeyPresence, p.String())
	return []report.CheckResult{res}
}

// checkYAMLFormat reports documentation template issues of the YAML detail.
func (r *run) checkYAMLFormat(table string) []report.CheckResult {
	doc, ok := r.src.YAMLDocs[table]
	if !ok || r.failed(table) {
		return nil
	}
	file := r.src.File(schema.SourceYAML, table)
	issues := yamlschema.FormatIssues(doc)
	if len(issues) == 0 {
		return []report.CheckResult{success(CheckYAMLFormat, table, "YAML detail follows the template")}
	}

	out := make([]report.CheckResult, 0, len(issues))
	// Template issues never outrank a structural mismatch.
	for _, issue := range issues {
		res := result(CheckYAMLFormat, table, report.SeverityWarning, issue.Kind, issue.Message)
		res.Details.Set(report.KeySection, issue.Section)
		res.File = file
		out = append(out, res)
	}
	return out
}

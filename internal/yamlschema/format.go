package yamlschema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minOverviewChars = 50
	minListEntries   = 3
)

// RequiredSections are the documentation sections every detail document is
// expected to carry. They are not needed to build the table structure, so
// their absence is a template issue rather than a parse failure.
var RequiredSections = []string{"revision_history", "overview", "notes", "rules"}

// Issue kinds
const (
	IssueMissing       = "section_missing"
	IssueEmpty         = "section_empty"
	IssueTooShort      = "section_too_short"
	IssueTooFewEntries = "section_too_few_entries"
)

// FormatIssue is one template compliance problem.
type FormatIssue struct {
	Section string
	Kind    string
	Message string
}

// FormatIssues checks a detail document against the documentation template.
// Issues are returned in RequiredSections order.
func FormatIssues(doc map[string]any) []FormatIssue {
	var issues []FormatIssue
	for _, section := range RequiredSections {
		v, ok := doc[section]
		if !ok || v == nil {
			issues = append(issues, FormatIssue{section, IssueMissing, fmt.Sprintf("required section %s is missing", section)})
			continue
		}
		if isEmpty(v) {
			issues = append(issues, FormatIssue{section, IssueEmpty, fmt.Sprintf("required section %s is empty", section)})
			continue
		}

		switch section {
		case "overview":
			if n := utf8.RuneCountInString(strings.TrimSpace(scalarString(v))); n < minOverviewChars {
				issues = append(issues, FormatIssue{section, IssueTooShort,
					fmt.Sprintf("overview is %d characters, expected at least %d", n, minOverviewChars)})
			}
		case "notes", "rules":
			if n := entries(v); n < minListEntries {
				issues = append(issues, FormatIssue{section, IssueTooFewEntries,
					fmt.Sprintf("%s has %d entries, expected at least %d", section, n, minListEntries)})
			}
		}
	}
	return issues
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func entries(v any) int {
	switch x := v.(type) {
	case []any:
		return len(x)
	case map[string]any:
		return len(x)
	case string:
		n := 0
		for _, line := range strings.Split(x, "\n") {
			if strings.TrimSpace(line) != "" {
				n++
			}
		}
		return n
	}
	return 1
}

// Package markdown extracts a table description from a table-definition
// Markdown document. Extraction is best-effort: only the table name is
// required, columns are read from the first pipe table that looks like a
// column list.
package markdown

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/tordrt/schemacheck/internal/ddl"
	"github.com/tordrt/schemacheck/internal/schema"
)

// FilePrefix starts every table-definition file name.
const FilePrefix = "テーブル定義書_"

var (
	headingRe   = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	tableNameRe = regexp.MustCompile(`\b((?:MST|TRN|HIS|SYS|WRK)_[A-Za-z0-9_]+)\b`)
	separatorRe = regexp.MustCompile(`^\|?\s*:?-{2,}:?\s*(\|\s*:?-{2,}:?\s*)*\|?$`)
)

var (
	nameHeaders     = []string{"物理名", "カラム名", "column", "name", "physical name"}
	typeHeaders     = []string{"データ型", "型", "type", "data type"}
	logicalHeaders  = []string{"論理名", "logical name", "logical"}
	nullHeaders     = []string{"null", "nullable", "null許可"}
	pkHeaders       = []string{"pk", "主キー", "primary key"}
	lengthHeaders   = []string{"桁数", "長さ", "length"}
	defaultHeaders  = []string{"デフォルト", "デフォルト値", "default"}
	tableNameLabels = []string{"テーブル名", "物理名", "table", "table name"}
	logicalLabels   = []string{"論理名", "logical name"}
)

// ParseFileName splits "テーブル定義書_<table>_<logical>.md". Table names
// contain underscores, so the logical name is whatever follows the last one.
func ParseFileName(name string) (table, logical string, ok bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, ".md") {
		return "", "", false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), ".md")
	i := strings.LastIndexByte(stem, '_')
	if i <= 0 {
		return stem, "", stem != ""
	}
	return stem[:i], stem[i+1:], true
}

// Parse reads a table-definition document.
func Parse(text string) (*schema.Table, error) {
	table := &schema.Table{}
	var rows [][]string
	var inTable, columnsDone bool
	var cols columnIndex

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if !strings.HasPrefix(line, "|") {
			if inTable && !columnsDone && cols.valid() {
				columnsDone = true
			}
			inTable = false
			rows = nil
			if m := headingRe.FindStringSubmatch(line); m != nil && table.Name == "" {
				if name := tableNameRe.FindString(m[1]); name != "" {
					table.Name = name
				}
			}
			continue
		}

		cells := splitRow(line)
		if separatorRe.MatchString(line) {
			if len(rows) == 1 {
				cols = headerIndex(rows[0])
				inTable = true
				if !cols.valid() {
					readMetadata(table, rows[0])
				}
			}
			continue
		}
		rows = append(rows, cells)
		if !inTable || len(rows) < 2 {
			continue
		}

		switch {
		case !columnsDone && cols.valid():
			if col, ok := cols.column(cells); ok {
				table.Columns = append(table.Columns, col)
			}
		case !cols.valid():
			readMetadata(table, cells)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &schema.ParseError{Source: schema.SourceMarkdown, Line: lineNo, Msg: err.Error()}
	}

	if table.Name == "" {
		return nil, &schema.ParseError{Source: schema.SourceMarkdown, Msg: "no table name found"}
	}
	for _, c := range table.Columns {
		if c.PrimaryKey {
			table.PrimaryKey = append(table.PrimaryKey, c.Name)
		}
	}
	return table, nil
}

// readMetadata reads key/value rows such as "| テーブル名 | MST_Employee |".
func readMetadata(t *schema.Table, cells []string) {
	if len(cells) < 2 {
		return
	}
	key, value := strings.ToLower(strings.TrimSpace(cells[0])), stripMarkup(cells[1])
	switch {
	case contains(tableNameLabels, key) && t.Name == "":
		t.Name = value
	case contains(logicalLabels, key) && t.LogicalName == "":
		t.LogicalName = value
	}
}

type columnIndex struct {
	name, typ, logical, null, pk, length, def int
}

func (c columnIndex) valid() bool {
	return c.name >= 0 && c.typ >= 0
}

func headerIndex(header []string) columnIndex {
	idx := columnIndex{-1, -1, -1, -1, -1, -1, -1}
	for i, h := range header {
		h = strings.ToLower(stripMarkup(h))
		switch {
		case idx.name < 0 && contains(nameHeaders, h):
			idx.name = i
		case idx.typ < 0 && contains(typeHeaders, h):
			idx.typ = i
		case idx.logical < 0 && contains(logicalHeaders, h):
			idx.logical = i
		case idx.null < 0 && contains(nullHeaders, h):
			idx.null = i
		case idx.pk < 0 && contains(pkHeaders, h):
			idx.pk = i
		case idx.length < 0 && contains(lengthHeaders, h):
			idx.length = i
		case idx.def < 0 && contains(defaultHeaders, h):
			idx.def = i
		}
	}
	return idx
}

func (c columnIndex) column(cells []string) (schema.Column, bool) {
	get := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return stripMarkup(cells[i])
	}
	col := schema.Column{Name: get(c.name), Comment: get(c.logical), Nullable: true}
	if col.Name == "" {
		return col, false
	}
	base, args := ddl.SplitType(get(c.typ))
	if l := get(c.length); args == "" && l != "" && l != "-" {
		args = l
	}
	ddl.ApplyType(&col, base, args)

	switch strings.ToUpper(get(c.null)) {
	case "NO", "NOT NULL", "×", "N", "FALSE":
		col.Nullable = false
	}
	switch strings.ToUpper(get(c.pk)) {
	case "○", "◯", "YES", "Y", "PK", "TRUE", "✓":
		col.PrimaryKey = true
		col.Nullable = false
	}
	if d := get(c.def); d != "" && d != "-" && !strings.EqualFold(d, "NULL") {
		col.DefaultValue = &d
	}
	return col, true
}

func splitRow(line string) []string {
	line = strings.TrimPrefix(strings.TrimSuffix(line, "|"), "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`*")
	return strings.TrimSpace(s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

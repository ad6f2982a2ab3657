// Package ddl recovers table structure from CREATE TABLE / ALTER TABLE /
// CREATE INDEX text and renders tables back to DDL.
//
// Parsing happens in two stages. The scanner (scan.go) finds statement bodies
// and splits them into top-level definitions and tokens while tracking
// parenthesis depth and quote state. The classifier (this file) decides what
// each definition means. Unknown data types and modifiers are accepted.
package ddl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tordrt/schemacheck/internal/schema"
)

var (
	createTableRe  = regexp.MustCompile("(?i)\\bCREATE\\s+(?:TEMPORARY\\s+)?TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?((?:`[^`]+`|\"[^\"]+\"|\\[[^\\]]+\\]|[\\w$]+)(?:\\s*\\.\\s*(?:`[^`]+`|\"[^\"]+\"|\\[[^\\]]+\\]|[\\w$]+))?)\\s*\\(")
	tableCommentRe = regexp.MustCompile(`(?i)\bCOMMENT\s*=?\s*('(?:[^'\\]|\\.|'')*')`)
)

// clauseKeywords start table-level clauses rather than column definitions.
var clauseKeywords = map[string]bool{
	"PRIMARY":    true,
	"FOREIGN":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"CONSTRAINT": true,
	"KEY":        true,
	"INDEX":      true,
	"FULLTEXT":   true,
	"SPATIAL":    true,
}

// modifierKeywords end a DEFAULT value.
var modifierKeywords = map[string]bool{
	"NOT":            true,
	"NULL":           true,
	"PRIMARY":        true,
	"UNIQUE":         true,
	"KEY":            true,
	"AUTO_INCREMENT": true,
	"AUTOINCREMENT":  true,
	"COMMENT":        true,
	"ON":             true,
	"REFERENCES":     true,
	"CHECK":          true,
	"CONSTRAINT":     true,
	"COLLATE":        true,
	"CHARACTER":      true,
	"CHARSET":        true,
	"UNSIGNED":       true,
	"ZEROFILL":       true,
	"GENERATED":      true,
	"DEFAULT":        true,
}

// Parse parses the first CREATE TABLE statement in text and attaches any
// ALTER TABLE ADD CONSTRAINT and CREATE INDEX statements that target it.
func Parse(text string) (*schema.Table, error) {
	clean := StripComments(text)

	loc := createTableRe.FindStringSubmatchIndex(clean)
	if loc == nil {
		return nil, &schema.ParseError{Source: schema.SourceDDL, Msg: "no CREATE TABLE statement found"}
	}
	open := loc[1] - 1
	name := tableName(clean[loc[2]:loc[3]])

	body, end, err := ExtractBody(clean, open)
	if err != nil {
		return nil, &schema.ParseError{
			Source: schema.SourceDDL,
			Line:   lineAt(clean, loc[0]),
			Msg:    fmt.Sprintf("CREATE TABLE %s: %v", name, err),
		}
	}

	table, err := parseBody(name, body)
	if err != nil {
		return nil, &schema.ParseError{
			Source: schema.SourceDDL,
			Line:   lineAt(clean, loc[0]),
			Msg:    fmt.Sprintf("CREATE TABLE %s: %v", name, err),
		}
	}
	table.Comment = tableOptionsComment(clean[end+1:])

	if err := attachStatements(clean, table); err != nil {
		return nil, err
	}
	finishPrimaryKey(table)
	return table, nil
}

// tableName strips quoting and any schema qualifier.
func tableName(raw string) string {
	parts := strings.Split(raw, ".")
	return UnquoteIdent(strings.TrimSpace(parts[len(parts)-1]))
}

func tableOptionsComment(tail string) string {
	if i := strings.IndexByte(tail, ';'); i >= 0 {
		tail = tail[:i]
	}
	if m := tableCommentRe.FindStringSubmatch(tail); m != nil {
		return UnquoteString(m[1])
	}
	return ""
}

func parseBody(name, body string) (*schema.Table, error) {
	t := &schema.Table{Name: name}
	for _, def := range SplitTopLevel(body, ',') {
		tokens, err := Fields(def)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			continue
		}
		if isClause(tokens[0]) {
			if err := applyClause(t, tokens); err != nil {
				return nil, err
			}
			continue
		}
		col, err := parseColumn(t, tokens)
		if err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, col)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("no column definitions")
	}
	return t, nil
}

// isClause reports whether a definition's first token starts a table clause.
// Quoted identifiers are always columns.
func isClause(first Token) bool {
	if first.Paren || isQuote(first.Text[0]) || first.Text[0] == '[' {
		return false
	}
	return clauseKeywords[first.Upper()]
}

func parseColumn(t *schema.Table, tokens []Token) (schema.Column, error) {
	col := schema.Column{Name: UnquoteIdent(tokens[0].Text), Nullable: true}
	if len(tokens) < 2 {
		return col, fmt.Errorf("column %s has no data type", col.Name)
	}

	i := 1
	typeTok := tokens[i]
	i++
	var args string
	if i < len(tokens) && tokens[i].Paren {
		args = tokens[i].Inner()
		i++
	}
	ApplyType(&col, typeTok.Text, args)

	for i < len(tokens) {
		word := tokens[i].Upper()
		switch word {
		case "NOT":
			if i+1 < len(tokens) && tokens[i+1].Upper() == "NULL" {
				col.Nullable = false
				i += 2
				continue
			}
		case "NULL":
			col.Nullable = true
		case "PRIMARY":
			col.PrimaryKey = true
			if i+1 < len(tokens) && tokens[i+1].Upper() == "KEY" {
				i++
			}
		case "UNIQUE":
			col.Unique = true
			if i+1 < len(tokens) && tokens[i+1].Upper() == "KEY" {
				i++
			}
		case "AUTO_INCREMENT", "AUTOINCREMENT", "IDENTITY":
			col.AutoIncrement = true
		case "DEFAULT":
			value, next := defaultValue(tokens, i+1)
			col.DefaultValue = value
			i = next
			continue
		case "COMMENT":
			if i+1 < len(tokens) {
				col.Comment = UnquoteString(tokens[i+1].Text)
				i += 2
				continue
			}
		case "ON":
			// ON UPDATE <value>
			i += 2
			if i < len(tokens) {
				i++
			}
			if i < len(tokens) && tokens[i].Paren && tokens[i].Glued {
				i++
			}
			continue
		case "CHARACTER", "COLLATE", "CHARSET":
			if word == "CHARACTER" {
				i++
			}
			i += 2
			continue
		case "REFERENCES":
			fk, next := parseReferences(tokens, i)
			fk.Columns = []string{col.Name}
			t.ForeignKeys = append(t.ForeignKeys, fk)
			i = next
			continue
		case "CHECK":
			if i+1 < len(tokens) && tokens[i+1].Paren {
				t.Constraints = append(t.Constraints, schema.Constraint{
					Name:      checkName(t),
					Kind:      schema.ConstraintCheck,
					Condition: strings.TrimSpace(tokens[i+1].Inner()),
				})
				i += 2
				continue
			}
		case "CONSTRAINT":
			i += 2
			continue
		}
		i++
	}

	if col.PrimaryKey {
		col.Nullable = false
	}
	return col, nil
}

// ApplyType fills base type, length/precision/scale and ENUM values.
func ApplyType(col *schema.Column, typeName, args string) {
	col.Type = strings.ToUpper(UnquoteIdent(typeName))
	if args == "" {
		return
	}
	parts := SplitTopLevel(args, ',')
	if col.Type == "ENUM" || col.Type == "SET" {
		col.EnumValues = make([]string, 0, len(parts))
		for _, p := range parts {
			col.EnumValues = append(col.EnumValues, UnquoteString(p))
		}
		return
	}

	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return
		}
		nums = append(nums, n)
	}
	switch {
	case len(nums) == 2:
		col.Precision = schema.IntPtr(nums[0])
		col.Scale = schema.IntPtr(nums[1])
	case len(nums) == 1 && isDecimalType(col.Type):
		col.Precision = schema.IntPtr(nums[0])
	case len(nums) == 1:
		col.Length = schema.IntPtr(nums[0])
	}
}

// defaultValue reads a DEFAULT value starting at tokens[i]. Quoted literals are
// unquoted; bare values such as CURRENT_TIMESTAMP are kept verbatim. DEFAULT
// NULL yields nil.
func defaultValue(tokens []Token, i int) (*string, int) {
	if i >= len(tokens) {
		return nil, i
	}
	first := tokens[i]
	if first.Quoted() {
		v := UnquoteString(first.Text)
		return &v, i + 1
	}
	if first.Upper() == "NULL" {
		return nil, i + 1
	}

	var b strings.Builder
	b.WriteString(first.Text)
	i++
	for i < len(tokens) {
		tok := tokens[i]
		if tok.Paren && tok.Glued {
			b.WriteString(tok.Text)
			i++
			continue
		}
		if modifierKeywords[tok.Upper()] {
			break
		}
		b.WriteByte(' ')
		b.WriteString(tok.Text)
		i++
	}
	v := b.String()
	if len(v) >= 2 && v[0] == '(' && v[len(v)-1] == ')' {
		if inner := strings.TrimSpace(v[1 : len(v)-1]); inner != "" && inner[0] == '\'' {
			v = UnquoteString(inner)
		}
	}
	return &v, i
}

// parseReferences reads "REFERENCES target (cols) [ON DELETE x] [ON UPDATE y]"
// starting at tokens[i] == REFERENCES.
func parseReferences(tokens []Token, i int) (schema.ForeignKey, int) {
	fk := schema.ForeignKey{OnUpdate: schema.ActionRestrict, OnDelete: schema.ActionRestrict}
	i++
	if i < len(tokens) && !tokens[i].Paren {
		fk.RefTable = tableName(tokens[i].Text)
		i++
	}
	if i < len(tokens) && tokens[i].Paren {
		fk.RefColumns = identList(tokens[i].Text)
		i++
	}
	for i+1 < len(tokens) && tokens[i].Upper() == "ON" {
		event := tokens[i+1].Upper()
		action, next := referentialAction(tokens, i+2)
		switch event {
		case "DELETE":
			fk.OnDelete = action
		case "UPDATE":
			fk.OnUpdate = action
		}
		i = next
	}
	for i < len(tokens) && tokens[i].Upper() == "MATCH" {
		i += 2
	}
	return fk, i
}

func referentialAction(tokens []Token, i int) (string, int) {
	if i >= len(tokens) {
		return schema.ActionRestrict, i
	}
	switch tokens[i].Upper() {
	case "SET":
		if i+1 < len(tokens) {
			return schema.NormalizeAction("SET " + tokens[i+1].Upper()), i + 2
		}
	case "NO":
		if i+1 < len(tokens) {
			return schema.NormalizeAction("NO " + tokens[i+1].Upper()), i + 2
		}
	}
	return schema.NormalizeAction(tokens[i].Upper()), i + 1
}

// applyClause handles PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK, KEY/INDEX and
// CONSTRAINT-prefixed clauses, both inside CREATE TABLE and after ALTER TABLE ADD.
func applyClause(t *schema.Table, tokens []Token) error {
	name := ""
	if tokens[0].Upper() == "CONSTRAINT" {
		if len(tokens) < 2 {
			return fmt.Errorf("CONSTRAINT without body")
		}
		if !clauseKeywords[tokens[1].Upper()] {
			name = UnquoteIdent(tokens[1].Text)
			tokens = tokens[2:]
		} else {
			tokens = tokens[1:]
		}
		if len(tokens) == 0 {
			return fmt.Errorf("constraint %s has no body", name)
		}
	}

	switch tokens[0].Upper() {
	case "PRIMARY":
		group := firstParen(tokens)
		if group == "" {
			return fmt.Errorf("PRIMARY KEY without column list")
		}
		t.PrimaryKey = identList(group)

	case "FOREIGN":
		i := 1
		if i < len(tokens) && tokens[i].Upper() == "KEY" {
			i++
		}
		if i < len(tokens) && !tokens[i].Paren {
			if name == "" {
				name = UnquoteIdent(tokens[i].Text)
			}
			i++
		}
		if i >= len(tokens) || !tokens[i].Paren {
			return fmt.Errorf("FOREIGN KEY without column list")
		}
		cols := identList(tokens[i].Text)
		i++
		if i >= len(tokens) || tokens[i].Upper() != "REFERENCES" {
			return fmt.Errorf("FOREIGN KEY %s without REFERENCES", name)
		}
		fk, _ := parseReferences(tokens, i)
		fk.Name = name
		fk.Columns = cols
		t.ForeignKeys = append(t.ForeignKeys, fk)

	case "UNIQUE":
		i := 1
		if i < len(tokens) && (tokens[i].Upper() == "KEY" || tokens[i].Upper() == "INDEX") {
			i++
		}
		if i < len(tokens) && !tokens[i].Paren {
			if name == "" {
				name = UnquoteIdent(tokens[i].Text)
			}
			i++
		}
		if i >= len(tokens) || !tokens[i].Paren {
			return fmt.Errorf("UNIQUE without column list")
		}
		t.Constraints = append(t.Constraints, schema.Constraint{
			Name:    name,
			Kind:    schema.ConstraintUnique,
			Columns: identList(tokens[i].Text),
		})

	case "CHECK":
		if len(tokens) < 2 || !tokens[1].Paren {
			return fmt.Errorf("CHECK without condition")
		}
		if name == "" {
			name = checkName(t)
		}
		t.Constraints = append(t.Constraints, schema.Constraint{
			Name:      name,
			Kind:      schema.ConstraintCheck,
			Condition: strings.TrimSpace(tokens[1].Inner()),
		})

	case "KEY", "INDEX", "FULLTEXT", "SPATIAL":
		i := 1
		if tokens[0].Upper() == "FULLTEXT" || tokens[0].Upper() == "SPATIAL" {
			if i < len(tokens) && (tokens[i].Upper() == "KEY" || tokens[i].Upper() == "INDEX") {
				i++
			}
		}
		idx := schema.Index{Name: name}
		if i < len(tokens) && !tokens[i].Paren {
			idx.Name = UnquoteIdent(tokens[i].Text)
			i++
		}
		if i >= len(tokens) || !tokens[i].Paren {
			return fmt.Errorf("index %s without column list", idx.Name)
		}
		idx.Columns = identList(tokens[i].Text)
		t.Indexes = append(t.Indexes, idx)

	default:
		return fmt.Errorf("unsupported clause %q", tokens[0].Text)
	}
	return nil
}

func firstParen(tokens []Token) string {
	for _, tok := range tokens {
		if tok.Paren {
			return tok.Text
		}
	}
	return ""
}

// checkName numbers unnamed CHECK constraints the way MySQL does.
func checkName(t *schema.Table) string {
	n := len(t.ConstraintsOfKind(schema.ConstraintCheck)) + 1
	return fmt.Sprintf("%s_chk_%d", t.Name, n)
}

// finishPrimaryKey reconciles column-level PRIMARY KEY flags with a PRIMARY KEY
// clause. PK columns are never nullable.
func finishPrimaryKey(t *schema.Table) {
	if len(t.PrimaryKey) == 0 {
		for _, col := range t.Columns {
			if col.PrimaryKey {
				t.PrimaryKey = append(t.PrimaryKey, col.Name)
			}
		}
	}
	for _, name := range t.PrimaryKey {
		if col := t.Column(name); col != nil {
			col.PrimaryKey = true
			col.Nullable = false
		}
	}
}

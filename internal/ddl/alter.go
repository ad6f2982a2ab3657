package ddl

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemacheck/internal/schema"
)

// attachStatements scans every statement outside the CREATE TABLE body for
// ALTER TABLE ... ADD and CREATE [UNIQUE] INDEX and attaches those naming t.
// Statements for other tables and statements that cannot be tokenized are
// ignored. A malformed ADD clause for t is a ParseError.
func attachStatements(text string, t *schema.Table) error {
	cursor := 0
	for _, stmt := range SplitTopLevel(text, ';') {
		offset := cursor
		if i := strings.Index(text[cursor:], stmt); i >= 0 {
			offset = cursor + i
			cursor = offset + len(stmt)
		}

		tokens, err := Fields(stmt)
		if err != nil || len(tokens) < 3 {
			continue
		}
		switch {
		case tokens[0].Upper() == "ALTER" && tokens[1].Upper() == "TABLE":
			if err := attachAlter(stmt, tokens, t); err != nil {
				return &schema.ParseError{
					Source: schema.SourceDDL,
					Line:   lineAt(text, offset),
					Msg:    fmt.Sprintf("ALTER TABLE %s: %v", t.Name, err),
				}
			}
		case tokens[0].Upper() == "CREATE":
			attachIndex(tokens, t)
		}
	}
	return nil
}

func targets(t *schema.Table, raw string) bool {
	return strings.EqualFold(tableName(raw), t.Name)
}

func attachAlter(stmt string, tokens []Token, t *schema.Table) error {
	i := 2
	if i+1 < len(tokens) && tokens[i].Upper() == "ONLY" {
		i++
	}
	if i < len(tokens) && tokens[i].Upper() == "IF" {
		i += 2
	}
	if i >= len(tokens) || !targets(t, tokens[i].Text) {
		return nil
	}

	// Everything after the table name is a comma-separated list of actions.
	rest := stmt
	if idx := indexAfterToken(stmt, tokens[i].Text); idx >= 0 {
		rest = stmt[idx:]
	}
	for _, action := range SplitTopLevel(rest, ',') {
		actionTokens, err := Fields(action)
		if err != nil || len(actionTokens) < 2 || actionTokens[0].Upper() != "ADD" {
			continue
		}
		clause := actionTokens[1:]
		if clause[0].Upper() == "COLUMN" || !clauseKeywords[clause[0].Upper()] {
			continue
		}
		if err := applyClause(t, clause); err != nil {
			return err
		}
	}
	return nil
}

// attachIndex handles CREATE [UNIQUE] INDEX name ON table [USING m] (cols).
func attachIndex(tokens []Token, t *schema.Table) {
	i := 1
	unique := false
	if tokens[i].Upper() == "UNIQUE" {
		unique = true
		i++
	}
	for i < len(tokens) && (tokens[i].Upper() == "FULLTEXT" || tokens[i].Upper() == "SPATIAL") {
		i++
	}
	if i >= len(tokens) || tokens[i].Upper() != "INDEX" {
		return
	}
	i++
	if i+2 < len(tokens) && tokens[i].Upper() == "IF" && tokens[i+1].Upper() == "NOT" {
		i += 3
	}
	if i+1 >= len(tokens) || tokens[i].Upper() == "ON" {
		return
	}
	idx := schema.Index{Name: UnquoteIdent(tokens[i].Text), Unique: unique}
	i++
	if tokens[i].Upper() != "ON" || i+1 >= len(tokens) {
		return
	}
	i++
	if !targets(t, tokens[i].Text) {
		return
	}
	i++
	for i < len(tokens) && !tokens[i].Paren {
		i++
	}
	if i >= len(tokens) {
		return
	}
	idx.Columns = identList(tokens[i].Text)
	t.Indexes = append(t.Indexes, idx)
}

// indexAfterToken returns the offset just past the first occurrence of tok in
// s that follows the ALTER TABLE keywords.
func indexAfterToken(s, tok string) int {
	upper := strings.ToUpper(s)
	start := strings.Index(upper, "TABLE")
	if start < 0 {
		return -1
	}
	idx := strings.Index(s[start+len("TABLE"):], tok)
	if idx < 0 {
		return -1
	}
	return start + len("TABLE") + idx + len(tok)
}

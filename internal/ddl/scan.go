package ddl

import (
	"fmt"
	"strings"
)

// Token is one whitespace-separated unit of a definition. Parenthesized
// groups and quoted strings are never split.
type Token struct {
	Text  string
	Paren bool // Text is a "(...)" group
	Glued bool // no whitespace between this token and the previous one
}

// Upper returns the token text in upper case.
func (t Token) Upper() string {
	return strings.ToUpper(t.Text)
}

// Inner returns the text inside a paren group, or the text itself.
func (t Token) Inner() string {
	if t.Paren && len(t.Text) >= 2 {
		return t.Text[1 : len(t.Text)-1]
	}
	return t.Text
}

// Quoted reports whether the token is a single-quoted string literal.
func (t Token) Quoted() bool {
	return len(t.Text) >= 2 && t.Text[0] == '\'' && t.Text[len(t.Text)-1] == '\''
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"' || c == '`'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// skipQuoted returns the index of the closing quote matching s[i].
// Doubled quotes and backslash escapes (outside backticks) are honoured.
func skipQuoted(s string, i int) (int, bool) {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch {
		case s[j] == '\\' && q != '`':
			j++
		case s[j] == q:
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j, true
		}
	}
	return len(s), false
}

// matchParen returns the index of the parenthesis closing s[i], which must be '('.
func matchParen(s string, i int) (int, bool) {
	depth := 0
	for j := i; j < len(s); j++ {
		c := s[j]
		switch {
		case isQuote(c):
			end, ok := skipQuoted(s, j)
			if !ok {
				return len(s), false
			}
			j = end
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return j, true
			}
			if depth < 0 {
				return j, false
			}
		}
	}
	return len(s), false
}

// StripComments removes "--" line comments and "/* */" block comments that
// appear outside quoted text. Newlines are preserved so line numbers stay valid.
func StripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isQuote(c):
			end, _ := skipQuoted(s, i)
			if end >= len(s) {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(s[i : end+1])
			i = end
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			var comment string
			if end < 0 {
				comment = s[i:]
				i = len(s)
			} else {
				comment = s[i : i+2+end+2]
				i += 2 + end + 1
			}
			b.WriteByte(' ')
			b.WriteString(strings.Repeat("\n", strings.Count(comment, "\n")))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ExtractBody returns the text between the parenthesis at s[open] and its
// matching close, plus the index of the close.
func ExtractBody(s string, open int) (string, int, error) {
	if open < 0 || open >= len(s) || s[open] != '(' {
		return "", 0, fmt.Errorf("expected '(' at offset %d", open)
	}
	end, ok := matchParen(s, open)
	if !ok {
		return "", 0, fmt.Errorf("unbalanced parentheses or quotes starting at offset %d", open)
	}
	return s[open+1 : end], end, nil
}

// SplitTopLevel splits s on sep wherever sep appears outside parentheses and
// quotes. Parts are trimmed; empty parts are dropped.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isQuote(c):
			end, _ := skipQuoted(s, i)
			i = end
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			if p := strings.TrimSpace(s[start:i]); p != "" {
				parts = append(parts, p)
			}
			start = i + 1
		}
	}
	if start < len(s) {
		if p := strings.TrimSpace(s[start:]); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Fields splits a single definition into tokens. A parenthesized group is
// always its own token, even when written directly after a word.
func Fields(s string) ([]Token, error) {
	var tokens []Token
	var cur strings.Builder
	glued := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, Token{Text: cur.String(), Glued: glued})
			cur.Reset()
			glued = true
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isSpace(c):
			flush()
			glued = false
		case c == '(':
			flush()
			end, ok := matchParen(s, i)
			if !ok {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
			tokens = append(tokens, Token{Text: s[i : end+1], Paren: true, Glued: glued && len(tokens) > 0})
			glued = true
			i = end
		case c == ')':
			return nil, fmt.Errorf("unexpected ')' in %q", s)
		case isQuote(c):
			end, ok := skipQuoted(s, i)
			if !ok {
				return nil, fmt.Errorf("unterminated quote in %q", s)
			}
			cur.WriteString(s[i : end+1])
			i = end
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}

// UnquoteIdent strips identifier quoting: `name`, "name" or [name].
func UnquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '`' && s[len(s)-1] == '`':
			return strings.ReplaceAll(s[1:len(s)-1], "``", "`")
		case s[0] == '"' && s[len(s)-1] == '"':
			return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
		case s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// UnquoteString strips single or double quotes from a string literal and
// resolves doubled-quote and backslash escapes. Unquoted input is returned as is.
func UnquoteString(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\' && i+1 < len(inner):
			i++
			b.WriteByte(inner[i])
		case c == q && i+1 < len(inner) && inner[i+1] == q:
			b.WriteByte(q)
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// identList parses "(a, `b`, c(10) DESC)" into plain column names.
func identList(group string) []string {
	inner := group
	if strings.HasPrefix(inner, "(") && strings.HasSuffix(inner, ")") {
		inner = inner[1 : len(inner)-1]
	}
	var names []string
	for _, part := range SplitTopLevel(inner, ',') {
		toks, err := Fields(part)
		if err != nil || len(toks) == 0 {
			continue
		}
		names = append(names, UnquoteIdent(toks[0].Text))
	}
	return names
}

// lineAt returns the 1-based line number of offset i in s.
func lineAt(s string, i int) int {
	if i > len(s) {
		i = len(s)
	}
	return strings.Count(s[:i], "\n") + 1
}

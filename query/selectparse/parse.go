// Package selectparse parses PostgREST-style projection strings such as
// "*, consultation:consultations (*, patient:patients (*))" into a flat
// column list plus a tree of relation specs. Parsing never fails: input the
// grammar rejects degrades to a best-effort scan that treats unmatched
// fragments as plain column names.
package selectparse

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/clinicdesk/localbase/query/descriptor"
)

// Parsed is the outcome of projection-string parsing.
type Parsed struct {
	Columns   []string
	Relations []descriptor.RelationSpec
}

var projectionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Star", Pattern: `\*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Comma", Pattern: `,`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// selectList is the grammar root: one or more comma-separated items.
type selectList struct {
	Items []*selectItem `@@ ( "," @@ )*`
}

// selectItem is a star, a relation, or a plain column. The relation branch
// is tried before the column branch so "table(...)" binds as a relation.
type selectItem struct {
	Star     bool          `  @Star`
	Relation *relationItem `| @@`
	Column   string        `| @Ident`
}

// relationItem matches "alias:table(inner)" or "table(inner)"; inner may be
// absent and recurses into selectList for arbitrary nesting depth.
type relationItem struct {
	Alias string      `( @Ident ":" )?`
	Table string      `@Ident`
	Inner *selectList `"(" @@? ")"`
}

var projectionParser = participle.MustBuild[selectList](
	participle.Lexer(projectionLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(10),
)

// Parse turns a projection string into flat columns and relation specs.
func Parse(s string) Parsed {
	list, err := projectionParser.ParseString("", s)
	if err != nil {
		return fallbackParse(s)
	}
	return list.convert()
}

func (l *selectList) convert() Parsed {
	var out Parsed

	// Tables claimed by aliased relations win over later unaliased mentions
	// of the same table.
	aliasedTables := make(map[string]bool)
	for _, item := range l.Items {
		if item.Relation != nil && item.Relation.Alias != "" {
			aliasedTables[item.Relation.Table] = true
		}
	}

	seenAliases := make(map[string]bool)
	for _, item := range l.Items {
		switch {
		case item.Star:
			out.Columns = append(out.Columns, "*")
		case item.Relation != nil:
			rel := item.Relation
			if rel.Alias == "" && aliasedTables[rel.Table] {
				continue
			}
			spec := rel.toSpec()
			if seenAliases[spec.Alias] {
				continue
			}
			seenAliases[spec.Alias] = true
			out.Relations = append(out.Relations, spec)
		case item.Column != "":
			out.Columns = append(out.Columns, item.Column)
		}
	}
	return out
}

func (r *relationItem) toSpec() descriptor.RelationSpec {
	alias := r.Alias
	if alias == "" {
		alias = r.Table
	}
	spec := descriptor.RelationSpec{Alias: alias, Table: r.Table}
	if r.Inner == nil {
		spec.Columns = []string{"*"}
		return spec
	}
	inner := r.Inner.convert()
	spec.Columns = inner.Columns
	spec.Nested = inner.Relations
	return spec
}

// fallbackParse is the degraded path: scan for aliased relation patterns
// with balanced-paren matching, then unaliased ones, and treat whatever text
// is left as comma-separated plain columns.
func fallbackParse(s string) Parsed {
	var out Parsed
	remaining := s
	capturedTables := make(map[string]bool)
	seenAliases := make(map[string]bool)

	for {
		m := findRelation(remaining, true)
		if m == nil {
			break
		}
		remaining = remaining[:m.start] + remaining[m.end:]
		capturedTables[m.table] = true
		if seenAliases[m.alias] {
			continue
		}
		seenAliases[m.alias] = true
		out.Relations = append(out.Relations, m.toSpec())
	}

	for {
		m := findRelation(remaining, false)
		if m == nil {
			break
		}
		remaining = remaining[:m.start] + remaining[m.end:]
		if capturedTables[m.table] || seenAliases[m.alias] {
			continue
		}
		seenAliases[m.alias] = true
		out.Relations = append(out.Relations, m.toSpec())
	}

	for _, tok := range splitTrim(remaining) {
		out.Columns = append(out.Columns, tok)
	}
	return out
}

type relMatch struct {
	alias string
	table string
	inner string
	start int
	end   int
}

func (m *relMatch) toSpec() descriptor.RelationSpec {
	spec := descriptor.RelationSpec{Alias: m.alias, Table: m.table}
	if isBlank(m.inner) {
		spec.Columns = []string{"*"}
		return spec
	}
	sub := Parse(m.inner)
	spec.Columns = sub.Columns
	spec.Nested = sub.Relations
	return spec
}

// findRelation locates the first "alias:table(inner)" (aliased=true) or
// "table(inner)" pattern with balanced parentheses.
func findRelation(s string, aliased bool) *relMatch {
	for i := 0; i < len(s); i++ {
		if !isIdentStart(s[i]) {
			continue
		}
		j := i
		for j < len(s) && isIdentChar(s[j]) {
			j++
		}
		name := s[i:j]
		k := skipSpaces(s, j)

		if aliased {
			if k >= len(s) || s[k] != ':' {
				i = j
				continue
			}
			k = skipSpaces(s, k+1)
			if k >= len(s) || !isIdentStart(s[k]) {
				i = j
				continue
			}
			m := k
			for m < len(s) && isIdentChar(s[m]) {
				m++
			}
			table := s[k:m]
			p := skipSpaces(s, m)
			if p >= len(s) || s[p] != '(' {
				i = j
				continue
			}
			closing := matchParen(s, p)
			if closing < 0 {
				i = j
				continue
			}
			return &relMatch{alias: name, table: table, inner: s[p+1 : closing], start: i, end: closing + 1}
		}

		if k < len(s) && s[k] == '(' {
			closing := matchParen(s, k)
			if closing < 0 {
				i = j
				continue
			}
			return &relMatch{alias: name, table: name, inner: s[k+1 : closing], start: i, end: closing + 1}
		}
		i = j
	}
	return nil
}

// matchParen returns the index of the parenthesis closing the one at open,
// or -1 when unbalanced.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTrim(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			tok := trimSpaces(s[start:i])
			if tok != "" {
				out = append(out, tok)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpaces(s string) string {
	a, b := 0, len(s)
	for a < b && isSpace(s[a]) {
		a++
	}
	for b > a && isSpace(s[b-1]) {
		b--
	}
	return s[a:b]
}

func isBlank(s string) bool {
	return trimSpaces(s) == ""
}

func skipSpaces(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

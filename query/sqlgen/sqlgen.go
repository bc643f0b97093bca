// Package sqlgen compiles query descriptors into parameterized SQL for the
// embedded engine.
package sqlgen

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clinicdesk/localbase/query/descriptor"
)

// ErrUnsupportedOperator reports a filter operator outside the closed set.
// The operator enum makes this unreachable through the façade; it guards the
// wire path and future operator additions.
var ErrUnsupportedOperator = errors.New("unsupported filter operator")

// Statement is one compiled SQL statement with its arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Select compiles the main read statement. The column list comes from the
// parsed projection; an empty or star-containing list compiles to SELECT *.
func Select(d *descriptor.Descriptor, columns []string) (Statement, error) {
	var parts []string
	var args []any

	parts = append(parts, fmt.Sprintf("SELECT %s FROM %s", columnList(columns), quoteIdentifier(d.Table)))

	where, whereArgs, err := whereClause(d.Conditions)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		parts = append(parts, "WHERE "+where)
		args = append(args, whereArgs...)
	}

	if len(d.Orders) > 0 {
		orderParts := make([]string, len(d.Orders))
		for i, o := range d.Orders {
			direction := "DESC"
			if o.Ascending {
				direction = "ASC"
			}
			orderParts[i] = fmt.Sprintf("%s %s", quoteIdentifier(o.Column), direction)
		}
		parts = append(parts, "ORDER BY "+strings.Join(orderParts, ", "))
	}

	switch {
	case d.Limit != nil:
		parts = append(parts, "LIMIT ?")
		args = append(args, *d.Limit)
		if d.Offset != nil {
			parts = append(parts, "OFFSET ?")
			args = append(args, *d.Offset)
		}
	case d.Offset != nil:
		// The engine accepts OFFSET only after a LIMIT; -1 means unbounded.
		parts = append(parts, "LIMIT -1 OFFSET ?")
		args = append(args, *d.Offset)
	}

	return Statement{SQL: strings.Join(parts, " "), Args: args}, nil
}

// Count compiles the SELECT COUNT(*) twin of a select. It shares the exact
// WHERE clause and ignores ordering and pagination.
func Count(d *descriptor.Descriptor) (Statement, error) {
	where, args, err := whereClause(d.Conditions)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(d.Table))
	if where != "" {
		sql += " WHERE " + where
	}
	return Statement{SQL: sql, Args: args}, nil
}

// Insert compiles one INSERT for a single row. Columns are emitted in sorted
// order so identical row shapes produce identical statement text.
func Insert(table string, row map[string]any) Statement {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdentifier(col)
		marks[i] = "?"
		args[i] = row[col]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	return Statement{SQL: sql, Args: args}
}

// Update compiles the UPDATE statement with the descriptor's WHERE clause.
func Update(d *descriptor.Descriptor, row map[string]any) (Statement, error) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		sets[i] = quoteIdentifier(col) + " = ?"
		args = append(args, row[col])
	}

	where, whereArgs, err := whereClause(d.Conditions)
	if err != nil {
		return Statement{}, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", quoteIdentifier(d.Table), strings.Join(sets, ", "))
	if where != "" {
		sql += " WHERE " + where
		args = append(args, whereArgs...)
	}
	return Statement{SQL: sql, Args: args}, nil
}

// Delete compiles the DELETE statement. Without conditions it compiles to
// WHERE 1=0 so a filterless descriptor cannot wipe a table.
func Delete(d *descriptor.Descriptor) (Statement, error) {
	where, args, err := whereClause(d.Conditions)
	if err != nil {
		return Statement{}, err
	}
	if where == "" {
		where = "1=0"
		args = nil
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdentifier(d.Table), where)
	return Statement{SQL: sql, Args: args}, nil
}

// RelationSelect compiles the batched follow-up fetch for one relation:
// SELECT <cols> FROM table WHERE key IN (...). The caller guarantees keys
// is non-empty.
func RelationSelect(table string, columns []string, keyColumn string, keys []any) Statement {
	marks := make([]string, len(keys))
	for i := range keys {
		marks[i] = "?"
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		columnList(columns), quoteIdentifier(table), quoteIdentifier(keyColumn), strings.Join(marks, ", "))
	return Statement{SQL: sql, Args: keys}
}

// whereClause renders the conditions joined with AND. An empty string means
// no WHERE clause at all.
func whereClause(conds []descriptor.Condition) (string, []any, error) {
	var parts []string
	var args []any
	for _, c := range conds {
		frag, fragArgs, err := condFragment(c)
		if err != nil {
			return "", nil, err
		}
		if frag == "" {
			continue
		}
		parts = append(parts, frag)
		args = append(args, fragArgs...)
	}
	return strings.Join(parts, " AND "), args, nil
}

// condFragment renders one condition. The switch covers every member of the
// operator enum; anything else is an error, never a dropped clause.
func condFragment(c descriptor.Condition) (string, []any, error) {
	col := quoteIdentifier(c.Column)
	switch c.Op {
	case descriptor.Eq:
		return col + " = ?", []any{c.Value}, nil
	case descriptor.Neq:
		return col + " != ?", []any{c.Value}, nil
	case descriptor.Gt:
		return col + " > ?", []any{c.Value}, nil
	case descriptor.Gte:
		return col + " >= ?", []any{c.Value}, nil
	case descriptor.Lt:
		return col + " < ?", []any{c.Value}, nil
	case descriptor.Lte:
		return col + " <= ?", []any{c.Value}, nil
	case descriptor.Is:
		if c.Value == nil {
			return col + " IS NULL", nil, nil
		}
		return col + " IS ?", []any{c.Value}, nil
	case descriptor.Like:
		return col + " LIKE ?", []any{c.Value}, nil
	case descriptor.ILike:
		return col + " LIKE ? COLLATE NOCASE", []any{c.Value}, nil
	case descriptor.In:
		return inFragment(c)
	case descriptor.OrGroup:
		return orFragment(c)
	default:
		return "", nil, fmt.Errorf("%w: %v", ErrUnsupportedOperator, c.Op)
	}
}

// inFragment renders set membership. An empty set produces no clause, not a
// never-true one.
func inFragment(c descriptor.Condition) (string, []any, error) {
	var values []any
	switch v := c.Value.(type) {
	case nil:
		return "", nil, nil
	case []any:
		values = v
	default:
		values = []any{v}
	}
	if len(values) == 0 {
		return "", nil, nil
	}
	marks := make([]string, len(values))
	for i := range values {
		marks[i] = "?"
	}
	return fmt.Sprintf("%s IN (%s)", quoteIdentifier(c.Column), strings.Join(marks, ", ")), values, nil
}

func orFragment(c descriptor.Condition) (string, []any, error) {
	var parts []string
	var args []any
	for _, member := range c.Group {
		frag, fragArgs, err := condFragment(member)
		if err != nil {
			return "", nil, err
		}
		if frag == "" {
			continue
		}
		parts = append(parts, frag)
		args = append(args, fragArgs...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}

func columnList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		if col == "*" {
			return "*"
		}
		quoted[i] = quoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

func quoteIdentifier(name string) string {
	return fmt.Sprintf(`"%s"`, name)
}

package executor

import (
	"context"

	"github.com/clinicdesk/localbase/query/descriptor"
	"github.com/clinicdesk/localbase/query/sqlgen"
	"github.com/clinicdesk/localbase/runtime/types"
	"github.com/clinicdesk/localbase/schema"
)

// fetchRelations attaches related rows to parents, one batched statement
// per relation spec regardless of how many parent rows there are.
func (e *Executor) fetchRelations(ctx context.Context, table string, rows []types.Row, specs []descriptor.RelationSpec) error {
	for _, spec := range specs {
		if err := e.fetchRelation(ctx, table, rows, spec); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) fetchRelation(ctx context.Context, table string, rows []types.Row, spec descriptor.RelationSpec) error {
	rel := schema.Resolve(table, spec.Table)
	if rel.Direction.IsToMany() {
		return e.fetchToMany(ctx, rows, spec, rel)
	}
	return e.fetchToOne(ctx, rows, spec, rel)
}

// fetchToOne resolves a parent object for each row. The current table holds
// the foreign key; rows in the related table are looked up by its referenced
// column and attached one-to-one, nil when there is no match.
func (e *Executor) fetchToOne(ctx context.Context, rows []types.Row, spec descriptor.RelationSpec, rel schema.Relationship) error {
	keys := distinctKeys(rows, rel.Column)
	if len(keys) == 0 {
		for _, row := range rows {
			row[spec.Alias] = nil
		}
		return nil
	}

	related, err := e.relatedRows(ctx, spec, rel.ReferencedColumn, keys)
	if err != nil {
		return err
	}

	byKey := make(map[any]types.Row, len(related))
	for _, r := range related {
		byKey[r[rel.ReferencedColumn]] = r
	}
	for _, row := range rows {
		key := row[rel.Column]
		if key == nil {
			row[spec.Alias] = nil
			continue
		}
		if match, ok := byKey[key]; ok {
			row[spec.Alias] = match
		} else {
			row[spec.Alias] = nil
		}
	}
	return nil
}

// fetchToMany resolves child arrays. The related table holds the foreign
// key; its rows are grouped back onto parents by key. A parent with no
// children gets an empty array, never nil.
func (e *Executor) fetchToMany(ctx context.Context, rows []types.Row, spec descriptor.RelationSpec, rel schema.Relationship) error {
	keys := distinctKeys(rows, rel.Column)
	if len(keys) == 0 {
		for _, row := range rows {
			row[spec.Alias] = []types.Row{}
		}
		return nil
	}

	related, err := e.relatedRows(ctx, spec, rel.ReferencedColumn, keys)
	if err != nil {
		return err
	}

	grouped := make(map[any][]types.Row, len(keys))
	for _, r := range related {
		k := r[rel.ReferencedColumn]
		grouped[k] = append(grouped[k], r)
	}
	for _, row := range rows {
		group := grouped[row[rel.Column]]
		if group == nil {
			group = []types.Row{}
		}
		row[spec.Alias] = group
	}
	return nil
}

// relatedRows runs the one batched lookup for a relation spec and resolves
// its nested relations on the result before it is attached.
func (e *Executor) relatedRows(ctx context.Context, spec descriptor.RelationSpec, keyColumn string, keys []any) ([]types.Row, error) {
	columns := withKeyColumn(spec.Columns, keyColumn)
	for _, nested := range spec.Nested {
		nrel := schema.Resolve(spec.Table, nested.Table)
		columns = withKeyColumn(columns, nrel.Column)
	}

	stmt := sqlgen.RelationSelect(spec.Table, columns, keyColumn, keys)
	rows, err := e.queryRows(ctx, spec.Table, stmt)
	if err != nil {
		return nil, err
	}
	if err := e.fetchRelations(ctx, spec.Table, rows, spec.Nested); err != nil {
		return nil, err
	}
	return rows, nil
}

// withKeyColumn makes sure a narrowed projection still carries the named
// key; without it the fetched rows could not be matched back to parents.
func withKeyColumn(columns []string, key string) []string {
	if len(columns) == 0 {
		return columns
	}
	for _, c := range columns {
		if c == "*" || c == key {
			return columns
		}
	}
	return append(append([]string{}, columns...), key)
}

// distinctKeys collects the unique non-null scalar values of a column
// across rows, in first-seen order.
func distinctKeys(rows []types.Row, column string) []any {
	seen := make(map[any]bool, len(rows))
	keys := make([]any, 0, len(rows))
	for _, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case string, int64, int, float64, bool:
		default:
			continue
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		keys = append(keys, v)
	}
	return keys
}

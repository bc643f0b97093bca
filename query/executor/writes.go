package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/localbase/query/descriptor"
	"github.com/clinicdesk/localbase/query/sqlgen"
	"github.com/clinicdesk/localbase/runtime/types"
	"github.com/clinicdesk/localbase/schema"
)

// Insert writes the payload rows and, when asked, reads the stored rows
// back by primary key so callers see generated keys, stamps, and column
// defaults. Multi-row payloads run inside one transaction: a failing row
// leaves nothing behind.
func (e *Executor) Insert(ctx context.Context, d *descriptor.Descriptor) ([]types.Row, error) {
	if len(d.Payload.Rows) == 0 {
		return nil, errors.New("insert requires a payload")
	}

	pk := schema.PrimaryKeyOf(d.Table)
	prepared := make([]map[string]any, 0, len(d.Payload.Rows))
	keys := make([]any, 0, len(d.Payload.Rows))
	for _, in := range d.Payload.Rows {
		row, err := prepareInsertRow(d.Table, pk, in)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, row)
		keys = append(keys, row[pk])
	}

	if len(prepared) == 1 {
		stmt := sqlgen.Insert(d.Table, prepared[0])
		if _, err := e.exec(ctx, d.Table, stmt); err != nil {
			return nil, fmt.Errorf("insert failed: %w", err)
		}
	} else {
		if err := e.insertAll(ctx, d.Table, prepared); err != nil {
			return nil, err
		}
	}
	e.invalidate(d.Table)

	if !d.Returning {
		return nil, nil
	}
	return e.selectByKeys(ctx, d.Table, pk, keys)
}

// Update applies the first payload row to every matching record, stamping
// updated_at when the table declares it, then reads the rows back with the
// original conditions when asked.
func (e *Executor) Update(ctx context.Context, d *descriptor.Descriptor) ([]types.Row, error) {
	if len(d.Payload.Rows) == 0 {
		return nil, errors.New("update requires a payload")
	}

	row, err := prepareUpdateRow(d.Table, d.Payload.Rows[0])
	if err != nil {
		return nil, err
	}
	stmt, err := sqlgen.Update(d, row)
	if err != nil {
		return nil, err
	}
	if _, err := e.exec(ctx, d.Table, stmt); err != nil {
		return nil, fmt.Errorf("update failed: %w", err)
	}
	e.invalidate(d.Table)

	if !d.Returning {
		return nil, nil
	}
	sel := &descriptor.Descriptor{Table: d.Table, Operation: descriptor.OpSelect, Conditions: d.Conditions}
	selStmt, err := sqlgen.Select(sel, nil)
	if err != nil {
		return nil, err
	}
	return e.queryRows(ctx, d.Table, selStmt)
}

// insertAll writes several rows atomically.
func (e *Executor) insertAll(ctx context.Context, table string, rows []map[string]any) (err error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, row := range rows {
		stmt := sqlgen.Insert(table, row)
		start := time.Now()
		_, execErr := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
		e.notify(Event{Table: table, SQL: stmt.SQL, Args: stmt.Args, Duration: time.Since(start), Err: execErr})
		if execErr != nil {
			err = fmt.Errorf("insert failed: %w", execErr)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// selectByKeys reads rows back by key, preserving the payload order.
func (e *Executor) selectByKeys(ctx context.Context, table, key string, keys []any) ([]types.Row, error) {
	stmt := sqlgen.RelationSelect(table, nil, key, keys)
	rows, err := e.queryRows(ctx, table, stmt)
	if err != nil {
		return nil, err
	}

	byKey := make(map[any]types.Row, len(rows))
	for _, row := range rows {
		byKey[row[key]] = row
	}
	ordered := make([]types.Row, 0, len(keys))
	for _, k := range keys {
		if row, ok := byKey[k]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// prepareInsertRow converts API values to their stored form and fills the
// identity and bookkeeping columns the caller left out.
func prepareInsertRow(table, pk string, in map[string]any) (map[string]any, error) {
	tbl, _ := schema.Lookup(table)

	row := make(map[string]any, len(in)+3)
	for k, v := range in {
		sv, err := storeValue(tbl, k, v)
		if err != nil {
			return nil, err
		}
		row[k] = sv
	}

	if v, ok := row[pk]; !ok || v == nil || v == "" {
		row[pk] = uuid.NewString()
	}
	if tbl != nil {
		now := types.Timestamp()
		if tbl.HasColumn("created_at") {
			if _, ok := row["created_at"]; !ok {
				row["created_at"] = now
			}
		}
		if tbl.HasColumn("updated_at") {
			if _, ok := row["updated_at"]; !ok {
				row["updated_at"] = now
			}
		}
	}
	return row, nil
}

// prepareUpdateRow converts API values to their stored form and stamps
// updated_at unless the caller set it explicitly.
func prepareUpdateRow(table string, in map[string]any) (map[string]any, error) {
	tbl, _ := schema.Lookup(table)

	row := make(map[string]any, len(in)+1)
	for k, v := range in {
		sv, err := storeValue(tbl, k, v)
		if err != nil {
			return nil, err
		}
		row[k] = sv
	}

	if tbl != nil && tbl.HasColumn("updated_at") {
		if _, ok := row["updated_at"]; !ok {
			row["updated_at"] = types.Timestamp()
		}
	}
	return row, nil
}

// storeValue maps an API value to its stored form per the declared column
// type.
func storeValue(tbl *schema.Table, column string, v any) (any, error) {
	if tbl == nil {
		return v, nil
	}
	switch {
	case tbl.IsBool(column):
		return types.ToStoredBool(v), nil
	case tbl.IsJSON(column):
		sv, err := types.ToStoredJSON(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", column, err)
		}
		return sv, nil
	}
	return v, nil
}

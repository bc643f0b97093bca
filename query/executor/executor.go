// Package executor runs compiled statements against the embedded database
// and shapes stored rows for the client: scanning, declared-type conversion,
// batched relation fetching, and the write pipeline.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicdesk/localbase/query/cache"
	"github.com/clinicdesk/localbase/query/descriptor"
	"github.com/clinicdesk/localbase/query/sqlgen"
	"github.com/clinicdesk/localbase/runtime/types"
	"github.com/clinicdesk/localbase/schema"
)

// Event describes one statement executed against the database.
type Event struct {
	Table    string
	SQL      string
	Args     []any
	Duration time.Duration
	Err      error
}

// Observer receives an Event after every executed statement, including the
// per-relation fetches a select fans out into.
type Observer func(Event)

// Executor executes compiled statements over the shared database handle.
type Executor struct {
	db        *sql.DB
	cache     *cache.Cache
	cacheTTL  time.Duration
	observers []Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache enables read-statement caching. Entries are scoped per table
// and dropped whenever that table is written.
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(e *Executor) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithObserver registers a statement observer.
func WithObserver(fn Observer) Option {
	return func(e *Executor) {
		e.observers = append(e.observers, fn)
	}
}

// NewExecutor creates an executor over the shared database handle.
func NewExecutor(db *sql.DB, opts ...Option) *Executor {
	e := &Executor{db: db}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Select runs a read descriptor: the base statement, then one batched fetch
// per relation spec, attaching related results under their aliases.
func (e *Executor) Select(ctx context.Context, d *descriptor.Descriptor, columns []string, rels []descriptor.RelationSpec) ([]types.Row, error) {
	stmt, err := sqlgen.Select(d, columns)
	if err != nil {
		return nil, err
	}
	rows, err := e.queryRows(ctx, d.Table, stmt)
	if err != nil {
		return nil, err
	}
	if err := e.fetchRelations(ctx, d.Table, rows, rels); err != nil {
		return nil, err
	}
	return rows, nil
}

// Count runs the count companion of a select: identical conditions, no
// ordering or pagination.
func (e *Executor) Count(ctx context.Context, d *descriptor.Descriptor) (int64, error) {
	stmt, err := sqlgen.Count(d)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var n int64
	err = e.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n)
	e.notify(Event{Table: d.Table, SQL: stmt.SQL, Args: stmt.Args, Duration: time.Since(start), Err: err})
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// Delete removes matching rows. A delete without conditions compiles to an
// inert statement and removes nothing.
func (e *Executor) Delete(ctx context.Context, d *descriptor.Descriptor) error {
	stmt, err := sqlgen.Delete(d)
	if err != nil {
		return err
	}
	if _, err := e.exec(ctx, d.Table, stmt); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	e.invalidate(d.Table)
	return nil
}

// queryRows executes one read statement, consulting the statement cache
// when enabled. Cached entries are deep-copied in both directions so no
// caller ever mutates a shared row.
func (e *Executor) queryRows(ctx context.Context, table string, stmt sqlgen.Statement) ([]types.Row, error) {
	var key string
	if e.cache != nil {
		key = cache.Key(table, stmt.SQL, stmt.Args)
		if hit, ok := e.cache.Get(key); ok {
			if rows, ok := hit.([]types.Row); ok {
				return types.CloneRows(rows), nil
			}
		}
	}

	start := time.Now()
	raw, err := e.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	e.notify(Event{Table: table, SQL: stmt.SQL, Args: stmt.Args, Duration: time.Since(start), Err: err})
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer raw.Close()

	rows, err := e.scanRows(table, raw)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, types.CloneRows(rows), e.cacheTTL)
	}
	return rows, nil
}

// scanRows reads every row into a map, normalizing byte slices to strings
// and applying the table's declared boolean and JSON conversions.
func (e *Executor) scanRows(table string, raw *sql.Rows) ([]types.Row, error) {
	columns, err := raw.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	tbl, _ := schema.Lookup(table)
	rows := make([]types.Row, 0)
	for raw.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := raw.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		row := make(types.Row, len(columns))
		for i, col := range columns {
			row[col] = convertStored(tbl, col, values[i])
		}
		rows = append(rows, row)
	}
	return rows, raw.Err()
}

// convertStored maps a stored value back to its API shape.
func convertStored(tbl *schema.Table, column string, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if tbl == nil {
		return v
	}
	switch {
	case tbl.IsBool(column):
		return types.FromStoredBool(v)
	case tbl.IsJSON(column):
		return types.FromStoredJSON(v)
	}
	return v
}

func (e *Executor) exec(ctx context.Context, table string, stmt sqlgen.Statement) (sql.Result, error) {
	start := time.Now()
	res, err := e.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	e.notify(Event{Table: table, SQL: stmt.SQL, Args: stmt.Args, Duration: time.Since(start), Err: err})
	return res, err
}

func (e *Executor) invalidate(table string) {
	if e.cache != nil {
		e.cache.InvalidateTable(table)
	}
}

func (e *Executor) notify(ev Event) {
	for _, fn := range e.observers {
		fn(ev)
	}
}

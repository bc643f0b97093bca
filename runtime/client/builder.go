package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/clinicdesk/localbase/query/descriptor"
	"github.com/clinicdesk/localbase/runtime/types"
)

// CountMode selects how a count is computed alongside a select.
type CountMode = descriptor.CountMode

// Exact requests a separate COUNT(*) with the same conditions.
const Exact = descriptor.CountExact

// QueryBuilder accumulates one query. Builders are cheap and single-use:
// every call mutates the same descriptor, Execute runs it exactly once, and
// a later Execute returns the first result again.
type QueryBuilder struct {
	client *Client
	desc   descriptor.Descriptor
	err    error

	once   sync.Once
	result *Result
}

// SelectOption adjusts a select.
type SelectOption func(*descriptor.Descriptor)

// WithCount requests a row count alongside (or, with WithHead, instead of)
// the data.
func WithCount(mode CountMode) SelectOption {
	return func(d *descriptor.Descriptor) { d.Count = mode }
}

// WithHead runs the query without returning row data.
func WithHead() SelectOption {
	return func(d *descriptor.Descriptor) { d.Head = true }
}

// Select sets the projection for a read. Chained after Insert or Update it
// instead asks for the stored rows back.
func (b *QueryBuilder) Select(columns string, opts ...SelectOption) *QueryBuilder {
	if b.desc.Operation != descriptor.OpSelect {
		b.desc.Returning = true
	} else {
		b.desc.Select = columns
	}
	for _, opt := range opts {
		opt(&b.desc)
	}
	return b
}

// Insert stages one object or an array of objects for writing.
func (b *QueryBuilder) Insert(payload any) *QueryBuilder {
	b.desc.Operation = descriptor.OpInsert
	p, err := normalizePayload(payload)
	if err != nil {
		b.fail(err)
		return b
	}
	b.desc.Payload = p
	return b
}

// Update stages a single object whose keys overwrite matching rows.
func (b *QueryBuilder) Update(payload any) *QueryBuilder {
	b.desc.Operation = descriptor.OpUpdate
	p, err := normalizePayload(payload)
	if err == nil && !p.Singular {
		err = errors.New("update takes a single object")
	}
	if err != nil {
		b.fail(err)
		return b
	}
	b.desc.Payload = p
	return b
}

// Delete marks the matching rows for removal. Deletes return no rows.
func (b *QueryBuilder) Delete() *QueryBuilder {
	b.desc.Operation = descriptor.OpDelete
	return b
}

// Eq filters on equality.
func (b *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return b.cond(descriptor.Eq, column, value)
}

// Neq filters on inequality.
func (b *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return b.cond(descriptor.Neq, column, value)
}

// Gt filters on strictly greater than.
func (b *QueryBuilder) Gt(column string, value any) *QueryBuilder {
	return b.cond(descriptor.Gt, column, value)
}

// Gte filters on greater than or equal.
func (b *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return b.cond(descriptor.Gte, column, value)
}

// Lt filters on strictly less than.
func (b *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	return b.cond(descriptor.Lt, column, value)
}

// Lte filters on less than or equal.
func (b *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return b.cond(descriptor.Lte, column, value)
}

// Is compares with IS, matching NULL when value is nil.
func (b *QueryBuilder) Is(column string, value any) *QueryBuilder {
	return b.cond(descriptor.Is, column, value)
}

// Like filters on a case-sensitive pattern.
func (b *QueryBuilder) Like(column, pattern string) *QueryBuilder {
	return b.cond(descriptor.Like, column, pattern)
}

// ILike filters on a case-insensitive pattern.
func (b *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return b.cond(descriptor.ILike, column, pattern)
}

// In filters on set membership. An empty set matches everything rather than
// nothing.
func (b *QueryBuilder) In(column string, values []any) *QueryBuilder {
	return b.cond(descriptor.In, column, values)
}

// Or adds a group of conditions joined with OR, written in the
// "column.operator.value,column.operator.value" form.
func (b *QueryBuilder) Or(group string) *QueryBuilder {
	b.desc.Conditions = append(b.desc.Conditions, descriptor.Or(group))
	return b
}

// OrderOption adjusts one order clause.
type OrderOption func(*descriptor.OrderClause)

// Descending flips an order clause; clauses default to ascending.
func Descending() OrderOption {
	return func(o *descriptor.OrderClause) { o.Ascending = false }
}

// Order appends an ORDER BY clause. Clauses apply in call order.
func (b *QueryBuilder) Order(column string, opts ...OrderOption) *QueryBuilder {
	clause := descriptor.OrderClause{Column: column, Ascending: true}
	for _, opt := range opts {
		opt(&clause)
	}
	b.desc.Orders = append(b.desc.Orders, clause)
	return b
}

// Limit caps the number of returned rows.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.desc.Limit = &n
	return b
}

// Range returns rows from..to inclusive, zero-based.
func (b *QueryBuilder) Range(from, to int) *QueryBuilder {
	offset := from
	limit := to - from + 1
	b.desc.Offset = &offset
	b.desc.Limit = &limit
	return b
}

// Single returns the first matching row as an object instead of an array.
// Matching nothing is an error with code PGRST116.
func (b *QueryBuilder) Single() *QueryBuilder {
	b.desc.Single = true
	return b
}

// Execute runs the query. The context flows through to every statement.
func (b *QueryBuilder) Execute(ctx context.Context) *Result {
	b.once.Do(func() {
		b.result = b.client.run(ctx, &b.desc, b.err)
	})
	return b.result
}

func (b *QueryBuilder) cond(op descriptor.Op, column string, value any) *QueryBuilder {
	b.desc.Conditions = append(b.desc.Conditions, descriptor.Condition{Op: op, Column: column, Value: value})
	return b
}

// fail records the first build error; Execute surfaces it instead of
// running anything.
func (b *QueryBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// normalizePayload turns the accepted payload shapes into descriptor rows.
// Structs round-trip through JSON so they behave exactly like maps.
func normalizePayload(payload any) (descriptor.Payload, error) {
	switch v := payload.(type) {
	case nil:
		return descriptor.Payload{}, errors.New("payload is empty")
	case map[string]any:
		return descriptor.Payload{Rows: []map[string]any{v}, Singular: true}, nil
	case types.Row:
		return descriptor.Payload{Rows: []map[string]any{v}, Singular: true}, nil
	case []map[string]any:
		return descriptor.Payload{Rows: v}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return descriptor.Payload{}, fmt.Errorf("unsupported payload: %w", err)
	}
	if len(raw) > 0 && raw[0] == '[' {
		var rows []map[string]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			return descriptor.Payload{}, fmt.Errorf("unsupported payload: %w", err)
		}
		return descriptor.Payload{Rows: rows}, nil
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return descriptor.Payload{}, fmt.Errorf("unsupported payload: %w", err)
	}
	return descriptor.Payload{Rows: []map[string]any{row}, Singular: true}, nil
}

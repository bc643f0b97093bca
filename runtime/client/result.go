package client

import (
	"context"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/clinicdesk/localbase/query/descriptor"
	"github.com/clinicdesk/localbase/query/selectparse"
	"github.com/clinicdesk/localbase/runtime/types"
)

// CodeNotFound is the stable code carried when Single matches no rows.
const CodeNotFound = "PGRST116"

// Result is the outcome of one executed query. Exactly one of Data and
// Error is meaningful; Count is set only when a count was requested.
type Result struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Count *int64 `json:"count,omitempty"`
}

// Error is the inspectable failure shape carried by a Result. Code is a
// stable identifier (constraint class or CodeNotFound) when one applies.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

var errNoRows = errors.New("no rows returned")

// run executes a descriptor through the middleware chain and folds any
// failure into the result. Callers never see a raw Go error or a panic.
func (c *Client) run(ctx context.Context, d *descriptor.Descriptor, buildErr error) *Result {
	res := &Result{}
	event := &QueryEvent{Table: d.Table, Operation: d.Operation.String()}

	exec := func() error {
		if buildErr != nil {
			return buildErr
		}
		return c.perform(ctx, d, res)
	}

	if err := c.applyMiddleware(ctx, event, exec); err != nil {
		res.Data = nil
		res.Count = nil
		res.Error = mapError(err)
	}
	return res
}

func (c *Client) perform(ctx context.Context, d *descriptor.Descriptor, res *Result) error {
	switch d.Operation {
	case descriptor.OpSelect:
		return c.performSelect(ctx, d, res)

	case descriptor.OpInsert:
		rows, err := c.executor.Insert(ctx, d)
		if err != nil {
			return err
		}
		if !d.Returning {
			return nil
		}
		return shapeRows(d.Single || d.Payload.Singular, rows, res)

	case descriptor.OpUpdate:
		rows, err := c.executor.Update(ctx, d)
		if err != nil {
			return err
		}
		if !d.Returning {
			return nil
		}
		return shapeRows(d.Single, rows, res)

	case descriptor.OpDelete:
		return c.executor.Delete(ctx, d)
	}
	return fmt.Errorf("unsupported operation %q", d.Operation)
}

func (c *Client) performSelect(ctx context.Context, d *descriptor.Descriptor, res *Result) error {
	if d.Count == descriptor.CountExact {
		n, err := c.executor.Count(ctx, d)
		if err != nil {
			return err
		}
		res.Count = &n
	}
	if !d.WantsRows() {
		return nil
	}

	parsed := selectparse.Parse(d.Select)
	rows, err := c.executor.Select(ctx, d, parsed.Columns, parsed.Relations)
	if err != nil {
		return err
	}
	return shapeRows(d.Single, rows, res)
}

// shapeRows sets the result data: an object when a single row was asked
// for, otherwise the (possibly empty) array.
func shapeRows(single bool, rows []types.Row, res *Result) error {
	if single {
		if len(rows) == 0 {
			return errNoRows
		}
		res.Data = rows[0]
		return nil
	}
	if rows == nil {
		rows = []types.Row{}
	}
	res.Data = rows
	return nil
}

// mapError folds engine and pipeline failures into the stable error shape.
// Constraint violations keep their class code so callers can branch on
// duplicate keys or broken references.
func mapError(err error) *Error {
	if errors.Is(err, errNoRows) {
		return &Error{Message: "no rows returned", Code: CodeNotFound}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return &Error{Message: sqliteErr.Error(), Code: constraintCode(sqliteErr)}
	}
	return &Error{Message: err.Error()}
}

func constraintCode(e sqlite3.Error) string {
	switch e.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return "23505"
	case sqlite3.ErrConstraintForeignKey:
		return "23503"
	case sqlite3.ErrConstraintCheck:
		return "23514"
	case sqlite3.ErrConstraintNotNull:
		return "23502"
	}
	return ""
}

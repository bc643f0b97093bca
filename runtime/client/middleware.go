package client

import (
	"context"
	"time"

	"github.com/clinicdesk/localbase/internal/debug"
)

// QueryEvent represents one façade operation as seen by middleware.
type QueryEvent struct {
	Table     string
	Operation string
	Duration  time.Duration
	Error     error
	Start     time.Time
	End       time.Time
}

// Middleware intercepts an operation. Implementations decide whether to
// call next and may inspect the event afterwards; Duration and Error are
// filled in once the operation has run.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// applyMiddleware executes an operation through the middleware chain.
func (c *Client) applyMiddleware(ctx context.Context, event *QueryEvent, exec func() error) error {
	run := func() error {
		event.Start = time.Now()
		err := exec()
		event.End = time.Now()
		event.Duration = event.End.Sub(event.Start)
		event.Error = err
		return err
	}

	if len(c.middlewares) == 0 {
		return run()
	}

	var next func() error
	index := 0
	next = func() error {
		if index >= len(c.middlewares) {
			return run()
		}
		mw := c.middlewares[index]
		index++
		return mw(ctx, event, next)
	}
	return next()
}

// LoggingMiddleware reports every operation through the debug logger.
func LoggingMiddleware() Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil {
			debug.Warn("query failed", "table", event.Table, "operation", event.Operation, "error", err)
		} else {
			debug.Debug("query completed", "table", event.Table, "operation", event.Operation, "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware reports each operation's table, kind, and duration.
func TimingMiddleware(onTiming func(table, operation string, d time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Table, event.Operation, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware reports failed operations.
func ErrorMiddleware(onError func(table, operation string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Table, event.Operation, err)
		}
		return err
	}
}

// Package client is the query façade: fluent builders compiled into
// declarative descriptors and executed against the embedded store, with
// results delivered in a stable data/error/count shape.
package client

import (
	"context"
	"time"

	"github.com/clinicdesk/localbase/query/cache"
	"github.com/clinicdesk/localbase/query/descriptor"
	"github.com/clinicdesk/localbase/query/executor"
	"github.com/clinicdesk/localbase/store"
)

// Client executes queries against one store. The store handle is injected
// by the caller, who owns its lifecycle; the client holds no package-level
// state.
type Client struct {
	store       *store.Store
	executor    *executor.Executor
	middlewares []Middleware
}

type clientConfig struct {
	cacheSize int
	cacheTTL  time.Duration
	observers []executor.Observer
}

// Option configures a Client.
type Option func(*clientConfig)

// WithCache enables the per-table read-statement cache. Entries expire
// after ttl and are dropped whenever their table is written.
func WithCache(size int, ttl time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.cacheSize = size
		cfg.cacheTTL = ttl
	}
}

// WithStatementObserver forwards every executed statement, including
// per-relation fetches, to fn.
func WithStatementObserver(fn executor.Observer) Option {
	return func(cfg *clientConfig) {
		cfg.observers = append(cfg.observers, fn)
	}
}

// New creates a client over an opened store.
func New(s *store.Store, opts ...Option) *Client {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var execOpts []executor.Option
	if cfg.cacheSize > 0 {
		execOpts = append(execOpts, executor.WithCache(cache.New(cfg.cacheSize, cfg.cacheTTL), cfg.cacheTTL))
	}
	for _, obs := range cfg.observers {
		execOpts = append(execOpts, executor.WithObserver(obs))
	}

	return &Client{
		store:    s,
		executor: executor.NewExecutor(s.DB(), execOpts...),
	}
}

// From starts a query against a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		desc:   descriptor.Descriptor{Table: table},
	}
}

// Run executes an already-built descriptor, typically one decoded from its
// wire form.
func (c *Client) Run(ctx context.Context, d *descriptor.Descriptor) *Result {
	return c.run(ctx, d, nil)
}

// Use appends a middleware to the chain. Middlewares run in registration
// order around every operation.
func (c *Client) Use(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// Store returns the injected store handle.
func (c *Client) Store() *store.Store {
	return c.store
}

// Close closes the underlying store. Closing twice is a no-op.
func (c *Client) Close() error {
	return c.store.Close()
}

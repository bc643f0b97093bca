// Package journal provides an opt-in query journal: façade operations are
// buffered and appended as JSON lines to a local file in the background.
// Journaling never breaks the application; write failures are logged and
// dropped.
package journal

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/clinicdesk/localbase/internal/debug"
	"github.com/clinicdesk/localbase/runtime/client"
)

// Entry is one journaled operation.
type Entry struct {
	Table      string    `json:"table"`
	Operation  string    `json:"operation"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Journal buffers entries and flushes them in batches: when the buffer
// reaches the batch size, on every tick, and once more on Stop.
type Journal struct {
	fs            afero.Fs
	path          string
	enabled       bool
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	entries []Entry

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Journal.
type Option func(*Journal)

// WithBatchSize overrides the flush threshold.
func WithBatchSize(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

// WithFlushInterval overrides the background flush period.
func WithFlushInterval(d time.Duration) Option {
	return func(j *Journal) {
		if d > 0 {
			j.flushInterval = d
		}
	}
}

// New creates a journal writing to path. An empty path, or
// LOCALBASE_NO_JOURNAL=1 in the environment, disables it entirely; a
// disabled journal accepts records and drops them.
func New(fs afero.Fs, path string, opts ...Option) *Journal {
	j := &Journal{
		fs:            fs,
		path:          path,
		enabled:       path != "" && !journalDisabled(),
		batchSize:     20,
		flushInterval: 30 * time.Second,
		entries:       make([]Entry, 0, 32),
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}

	if j.enabled {
		j.startBackgroundFlush()
	}
	return j
}

// Enabled reports whether entries are being persisted.
func (j *Journal) Enabled() bool {
	return j.enabled
}

// Record buffers one entry. When the buffer reaches the batch size it is
// flushed before Record returns.
func (j *Journal) Record(table, operation string, duration time.Duration, err error) {
	if !j.enabled {
		return
	}

	entry := Entry{
		Table:      table,
		Operation:  operation,
		DurationMS: float64(duration) / float64(time.Millisecond),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	j.mu.Lock()
	j.entries = append(j.entries, entry)
	full := len(j.entries) >= j.batchSize
	j.mu.Unlock()

	if full {
		j.flush()
	}
}

// Middleware adapts the journal into the client middleware chain.
func (j *Journal) Middleware() client.Middleware {
	return func(ctx context.Context, event *client.QueryEvent, next func() error) error {
		err := next()
		j.Record(event.Table, event.Operation, event.Duration, err)
		return err
	}
}

// Stop flushes the buffer and terminates the background goroutine. Safe to
// call more than once.
func (j *Journal) Stop() {
	if !j.enabled {
		return
	}
	j.stopOnce.Do(func() {
		close(j.stopChan)
	})
	j.wg.Wait()
	j.flush()
}

func (j *Journal) startBackgroundFlush() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.flush()
			case <-j.stopChan:
				return
			}
		}
	}()
}

// flush drains the buffer and appends one JSON line per entry.
func (j *Journal) flush() {
	j.mu.Lock()
	if len(j.entries) == 0 {
		j.mu.Unlock()
		return
	}
	batch := make([]Entry, len(j.entries))
	copy(batch, j.entries)
	j.entries = j.entries[:0]
	j.mu.Unlock()

	f, err := j.fs.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		debug.Warn("journal open failed", "path", j.path, "error", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, entry := range batch {
		if err := enc.Encode(entry); err != nil {
			debug.Warn("journal write failed", "path", j.path, "error", err)
			return
		}
	}
}

func journalDisabled() bool {
	v := os.Getenv("LOCALBASE_NO_JOURNAL")
	return v == "1" || v == "true"
}

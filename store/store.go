// Package store owns the embedded database file: opening it with
// write-ahead journaling and foreign-key enforcement, creating the clinic
// schema idempotently, patching older files forward with additive column
// checks, and gating on the data-format version.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	version "github.com/hashicorp/go-version"
	_ "github.com/mattn/go-sqlite3"

	"github.com/clinicdesk/localbase/internal/debug"
	"github.com/clinicdesk/localbase/schema"
)

// FormatVersion is the data-format generation this build reads and writes.
// Files stamped with a newer version refuse to open.
const FormatVersion = "1.2.0"

const (
	metaTableSQL  = `CREATE TABLE IF NOT EXISTS "localbase_meta" ("key" TEXT PRIMARY KEY, "value" TEXT NOT NULL)`
	metaFormatKey = "format_version"
)

// Options configures Open.
type Options struct {
	// Path is the database file location.
	Path string
}

// Store is the process-wide handle to the embedded database. It is created
// explicitly and passed to its consumers; there is no package-level
// instance.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (creating if needed) the database file, applies the schema,
// and patches older files forward. The returned handle serializes all
// access through a single connection.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("store: path is required")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", opts.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One shared connection: statements execute to completion in order and
	// session pragmas apply to every query.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &Store{db: db, path: opts.Path}

	if _, err := db.Exec(metaTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create meta table: %w", err)
	}
	if err := s.checkFormatVersion(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.patchColumns(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.stampFormatVersion(); err != nil {
		db.Close()
		return nil, err
	}

	debug.Debug("store opened", "path", opts.Path, "format", FormatVersion)
	return s, nil
}

// DB exposes the underlying handle for the query executor.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the handle. Closing an already-closed store is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	debug.Debug("store closed", "path", s.path)
	return s.db.Close()
}

func (s *Store) createTables() error {
	for _, tbl := range schema.Tables() {
		if _, err := s.db.Exec(tbl.CreateSQL()); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tbl.Name, err)
		}
	}
	return nil
}

// patchColumns adds declared columns missing from older files. Columns are
// only ever added, never altered or dropped.
func (s *Store) patchColumns() error {
	for _, tbl := range schema.Tables() {
		existing, err := s.Columns(tbl.Name)
		if err != nil {
			return err
		}
		present := make(map[string]bool, len(existing))
		for _, col := range existing {
			present[col.Name] = true
		}
		for _, col := range tbl.Columns {
			if present[col.Name] {
				continue
			}
			stmt := fmt.Sprintf(`ALTER TABLE "%s" ADD COLUMN %s`, tbl.Name, col.DDL())
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", tbl.Name, col.Name, err)
			}
			debug.Info("added missing column", "table", tbl.Name, "column", col.Name)
		}
	}
	return nil
}

func (s *Store) checkFormatVersion() error {
	var raw string
	err := s.db.QueryRow(`SELECT "value" FROM "localbase_meta" WHERE "key" = ?`, metaFormatKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh file, or one predating version stamps; both patch forward.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read format version: %w", err)
	}

	fileVer, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("corrupt format version %q: %w", raw, err)
	}
	supported := version.Must(version.NewVersion(FormatVersion))
	if fileVer.GreaterThan(supported) {
		return fmt.Errorf("database format %s is newer than this build supports (%s); update the application", raw, FormatVersion)
	}
	return nil
}

func (s *Store) stampFormatVersion() error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO "localbase_meta" ("key", "value") VALUES (?, ?)`, metaFormatKey, FormatVersion)
	if err != nil {
		return fmt.Errorf("failed to stamp format version: %w", err)
	}
	return nil
}

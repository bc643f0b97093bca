package store

import (
	"database/sql"
	"fmt"
)

// TableColumn describes one column as reported by the engine.
type TableColumn struct {
	Name       string
	Type       string
	NotNull    bool
	Default    string
	PrimaryKey bool
}

// TableInfo pairs a table with its live column layout.
type TableInfo struct {
	Name    string
	Columns []TableColumn
}

// TableNames lists user tables in the file, including the meta table,
// excluding the engine's internal ones.
func (s *Store) TableNames() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Columns reads the live column layout of a table via PRAGMA table_info.
// A missing table yields an empty slice, not an error.
func (s *Store) Columns(table string) ([]TableColumn, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []TableColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, TableColumn{
			Name:       name,
			Type:       ctype,
			NotNull:    notNull != 0,
			Default:    dflt.String,
			PrimaryKey: pk != 0,
		})
	}
	return cols, rows.Err()
}

// Introspect returns the live layout of every user table.
func (s *Store) Introspect() ([]TableInfo, error) {
	names, err := s.TableNames()
	if err != nil {
		return nil, err
	}
	infos := make([]TableInfo, 0, len(names))
	for _, name := range names {
		cols, err := s.Columns(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, TableInfo{Name: name, Columns: cols})
	}
	return infos, nil
}

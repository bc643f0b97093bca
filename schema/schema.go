// Package schema declares the clinic tables, their column metadata, and the
// foreign-key relationships between them. The query layer consults it for
// value conversion (boolean and JSON columns), primary keys, timestamp
// columns, and relation resolution; the store consults it for DDL.
package schema

import (
	"fmt"
	"strings"
)

// ColumnType is the storage type of a column.
type ColumnType int

const (
	// TypeText is a plain TEXT column.
	TypeText ColumnType = iota
	// TypeInteger is an INTEGER column.
	TypeInteger
	// TypeReal is a REAL column.
	TypeReal
	// TypeBool is stored as INTEGER 0/1 and converted to bool on read.
	TypeBool
	// TypeJSON is stored as TEXT and parsed into a structure on read.
	TypeJSON
)

// ddlType maps a ColumnType to its SQL storage type.
func (t ColumnType) ddlType() string {
	switch t {
	case TypeInteger, TypeBool:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Column describes one declared column.
type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Default    string // literal DDL default, empty when none
	RefTable   string // foreign-key target table, empty when none
	RefColumn  string // foreign-key target column
}

// DDL renders the column definition for CREATE TABLE / ADD COLUMN.
func (c Column) DDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", quote(c.Name), c.Type.ddlType())
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT " + c.Default)
	}
	if c.RefTable != "" {
		fmt.Fprintf(&b, " REFERENCES %s(%s)", quote(c.RefTable), quote(c.RefColumn))
	}
	return b.String()
}

// Table describes one declared table.
type Table struct {
	Name    string
	Columns []Column
}

// Column returns the declared column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table declares the column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// PrimaryKey returns the primary-key column name.
func (t *Table) PrimaryKey() string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return "id"
}

// IsBool reports whether the column is declared boolean.
func (t *Table) IsBool(name string) bool {
	c, ok := t.Column(name)
	return ok && c.Type == TypeBool
}

// IsJSON reports whether the column is declared JSON.
func (t *Table) IsJSON(name string) bool {
	c, ok := t.Column(name)
	return ok && c.Type == TypeJSON
}

// CreateSQL renders the idempotent CREATE TABLE statement.
func (t *Table) CreateSQL() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.DDL()
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(t.Name), strings.Join(defs, ", "))
}

func quote(name string) string {
	return fmt.Sprintf("%q", name)
}

var tables = []*Table{
	{
		Name: "patients",
		Columns: []Column{
			{Name: "id", Type: TypeText, PrimaryKey: true},
			{Name: "first_name", Type: TypeText, NotNull: true},
			{Name: "last_name", Type: TypeText, NotNull: true},
			{Name: "birth_date", Type: TypeText},
			{Name: "gender", Type: TypeText},
			{Name: "phone", Type: TypeText},
			{Name: "email", Type: TypeText},
			{Name: "address", Type: TypeText},
			{Name: "notes", Type: TypeText},
			{Name: "archived", Type: TypeBool, Default: "0"},
			{Name: "created_at", Type: TypeText},
			{Name: "updated_at", Type: TypeText},
		},
	},
	{
		Name: "consultations",
		Columns: []Column{
			{Name: "id", Type: TypeText, PrimaryKey: true},
			{Name: "patient_id", Type: TypeText, NotNull: true, RefTable: "patients", RefColumn: "id"},
			{Name: "date", Type: TypeText},
			{Name: "reason", Type: TypeText},
			{Name: "diagnosis", Type: TypeText},
			{Name: "notes", Type: TypeText},
			{Name: "attachments", Type: TypeJSON},
			{Name: "created_at", Type: TypeText},
			{Name: "updated_at", Type: TypeText},
		},
	},
	{
		Name: "invoices",
		Columns: []Column{
			{Name: "id", Type: TypeText, PrimaryKey: true},
			{Name: "consultation_id", Type: TypeText, RefTable: "consultations", RefColumn: "id"},
			{Name: "patient_id", Type: TypeText, NotNull: true, RefTable: "patients", RefColumn: "id"},
			{Name: "number", Type: TypeText},
			{Name: "date", Type: TypeText},
			{Name: "amount", Type: TypeReal},
			{Name: "status", Type: TypeText, Default: "'pending'"},
			{Name: "items", Type: TypeJSON},
			{Name: "created_at", Type: TypeText},
			{Name: "updated_at", Type: TypeText},
		},
	},
	{
		Name: "messages",
		Columns: []Column{
			{Name: "id", Type: TypeText, PrimaryKey: true},
			{Name: "patient_id", Type: TypeText, RefTable: "patients", RefColumn: "id"},
			{Name: "subject", Type: TypeText},
			{Name: "body", Type: TypeText},
			{Name: "direction", Type: TypeText},
			{Name: "read", Type: TypeBool, Default: "0"},
			{Name: "created_at", Type: TypeText},
		},
	},
	{
		Name: "appointments",
		Columns: []Column{
			{Name: "id", Type: TypeText, PrimaryKey: true},
			{Name: "patient_id", Type: TypeText, NotNull: true, RefTable: "patients", RefColumn: "id"},
			{Name: "starts_at", Type: TypeText},
			{Name: "ends_at", Type: TypeText},
			{Name: "reason", Type: TypeText},
			{Name: "reminder_sent", Type: TypeBool, Default: "0"},
			{Name: "created_at", Type: TypeText},
			{Name: "updated_at", Type: TypeText},
		},
	},
	{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: TypeText, PrimaryKey: true},
			{Name: "email", Type: TypeText, NotNull: true, Unique: true},
			{Name: "password_hash", Type: TypeText, NotNull: true},
			{Name: "display_name", Type: TypeText},
			{Name: "settings", Type: TypeJSON},
			{Name: "created_at", Type: TypeText},
			{Name: "updated_at", Type: TypeText},
		},
	},
}

var tableIndex = func() map[string]*Table {
	idx := make(map[string]*Table, len(tables))
	for _, t := range tables {
		idx[t.Name] = t
	}
	return idx
}()

// Tables returns all declared tables in creation order.
func Tables() []*Table {
	return tables
}

// Lookup returns the declared table with the given name. Unknown tables are
// legal at the query layer; callers fall back to no conversion and an "id"
// primary key.
func Lookup(name string) (*Table, bool) {
	t, ok := tableIndex[name]
	return t, ok
}

// PrimaryKeyOf returns the primary-key column for a table name, defaulting
// to "id" for tables outside the declared set.
func PrimaryKeyOf(table string) string {
	if t, ok := Lookup(table); ok {
		return t.PrimaryKey()
	}
	return "id"
}

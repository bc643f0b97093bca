package schema

import "strings"

// Direction says which side of a relationship holds the foreign key.
type Direction int

const (
	// DirectionParent means the current row holds the FK and points at one
	// related row (to-one).
	DirectionParent Direction = iota
	// DirectionChild means the related rows each hold a FK pointing back at
	// the current row (to-many).
	DirectionChild
)

// IsToMany reports whether the relationship attaches an array of rows.
func (d Direction) IsToMany() bool {
	return d == DirectionChild
}

// Relationship describes how to join from a current table to a related one.
// Column always lives on the current table and ReferencedColumn on the
// related table: for DirectionParent, Column is the FK and ReferencedColumn
// its target; for DirectionChild, Column is the local key (normally the
// primary key) and ReferencedColumn the FK the related rows carry.
type Relationship struct {
	Column           string
	ReferencedColumn string
	Direction        Direction
}

// declared holds the known foreign keys of the clinic schema, keyed by the
// table that carries the FK.
var declared = map[string]map[string]Relationship{
	"consultations": {
		"patients": {Column: "patient_id", ReferencedColumn: "id", Direction: DirectionParent},
	},
	"invoices": {
		"consultations": {Column: "consultation_id", ReferencedColumn: "id", Direction: DirectionParent},
		"patients":      {Column: "patient_id", ReferencedColumn: "id", Direction: DirectionParent},
	},
	"messages": {
		"patients": {Column: "patient_id", ReferencedColumn: "id", Direction: DirectionParent},
	},
	"appointments": {
		"patients": {Column: "patient_id", ReferencedColumn: "id", Direction: DirectionParent},
	},
}

// Resolve returns the relationship between the current table and a related
// one. Lookup order: the declared rule, then the declared inverse rule with
// columns swapped and direction flipped, then a naming-convention guess that
// assumes the related rows carry "<singular current>_id" referencing "id".
// The guess strips a single trailing "s" and can be wrong for irregular
// plurals; callers see that as a failed query, not a resolution error.
func Resolve(current, related string) Relationship {
	if rels, ok := declared[current]; ok {
		if rel, ok := rels[related]; ok {
			return rel
		}
	}
	if rels, ok := declared[related]; ok {
		if rel, ok := rels[current]; ok {
			return Relationship{
				Column:           rel.ReferencedColumn,
				ReferencedColumn: rel.Column,
				Direction:        invert(rel.Direction),
			}
		}
	}
	return Relationship{
		Column:           PrimaryKeyOf(current),
		ReferencedColumn: ConventionalForeignKey(current),
		Direction:        DirectionChild,
	}
}

// ConventionalForeignKey derives the FK column name a related table is
// assumed to carry for the given table: the table name with one trailing
// "s" stripped, plus "_id".
func ConventionalForeignKey(table string) string {
	return strings.TrimSuffix(table, "s") + "_id"
}

func invert(d Direction) Direction {
	if d == DirectionParent {
		return DirectionChild
	}
	return DirectionParent
}

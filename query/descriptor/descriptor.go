// Package descriptor defines the declarative description of one query:
// target table, operation, projection, filters, ordering, pagination, and
// write payload. A descriptor is built by the façade (or decoded from its
// wire form), compiled to SQL, executed, and discarded.
package descriptor

// Operation is the single action a descriptor performs.
type Operation int

const (
	// OpSelect reads rows.
	OpSelect Operation = iota
	// OpInsert writes new rows.
	OpInsert
	// OpUpdate modifies rows matching the conditions.
	OpUpdate
	// OpDelete removes rows matching the conditions.
	OpDelete
)

// String returns the wire name of the operation.
func (o Operation) String() string {
	switch o {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a filter operator. The set is closed: SQL generation switches over
// every member and rejects anything else, so an unhandled operator can never
// silently drop a clause.
type Op int

const (
	// Eq compares for equality.
	Eq Op = iota
	// Neq compares for inequality.
	Neq
	// Gt is strictly greater than.
	Gt
	// Gte is greater than or equal.
	Gte
	// Lt is strictly less than.
	Lt
	// Lte is less than or equal.
	Lte
	// Is matches NULL when the value is nil, otherwise compares with IS.
	Is
	// Like is a case-sensitive pattern match.
	Like
	// ILike is a case-insensitive pattern match.
	ILike
	// In is set membership; an empty set produces no clause at all.
	In
	// OrGroup nests simple conditions joined with OR inside one
	// parenthesized group.
	OrGroup
)

var opNames = map[Op]string{
	Eq:      "eq",
	Neq:     "neq",
	Gt:      "gt",
	Gte:     "gte",
	Lt:      "lt",
	Lte:     "lte",
	Is:      "is",
	Like:    "like",
	ILike:   "ilike",
	In:      "in",
	OrGroup: "or",
}

// String returns the wire name of the operator.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// Condition is one filter. Top-level conditions combine with AND; an OrGroup
// condition carries its members in Group and ignores Column/Value.
type Condition struct {
	Op     Op
	Column string
	Value  any
	Group  []Condition
}

// OrderClause is one ORDER BY entry. Clauses apply in insertion order.
type OrderClause struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// CountMode selects how a count is computed alongside a select.
type CountMode int

const (
	// CountNone requests no count.
	CountNone CountMode = iota
	// CountExact runs a separate SELECT COUNT(*) with the identical WHERE
	// clause.
	CountExact
)

// Payload is the body of a write. Rows holds one map per row; Singular
// records that the caller passed a single object rather than an array, which
// shapes the returned data.
type Payload struct {
	Rows     []map[string]any
	Singular bool
}

// RelationSpec is a parsed request to fetch rows from a related table and
// attach them to each parent row under Alias.
type RelationSpec struct {
	Alias   string
	Table   string
	Columns []string
	Nested  []RelationSpec
}

// Descriptor captures one query before compilation. Conditions apply to
// select, update, and delete; inserts ignore them.
type Descriptor struct {
	Table      string
	Operation  Operation
	Select     string
	Conditions []Condition
	Orders     []OrderClause
	Limit      *int
	Offset     *int
	Single     bool
	Count      CountMode
	Head       bool
	Returning  bool
	Payload    Payload
}

// WantsRows reports whether the caller asked for row data back.
func (d *Descriptor) WantsRows() bool {
	if d.Head {
		return false
	}
	switch d.Operation {
	case OpSelect:
		return true
	case OpInsert, OpUpdate:
		return d.Returning
	default:
		return false
	}
}

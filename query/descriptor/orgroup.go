package descriptor

import (
	"fmt"
	"strings"
)

// ParseOrGroup parses the comma-separated "column.operator.value"
// mini-language into the members of an OR group. Recognized operators are
// eq, like, ilike, and gt; anything else falls back to eq. Fragments too
// short to carry a column and value are dropped.
func ParseOrGroup(s string) []Condition {
	items := strings.Split(s, ",")
	conds := make([]Condition, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ".", 3)
		var column, opName, value string
		switch len(parts) {
		case 3:
			column, opName, value = parts[0], parts[1], parts[2]
		case 2:
			column, value = parts[0], parts[1]
		default:
			continue
		}
		op := Eq
		switch opName {
		case "like":
			op = Like
		case "ilike":
			op = ILike
		case "gt":
			op = Gt
		}
		conds = append(conds, Condition{Op: op, Column: column, Value: value})
	}
	return conds
}

// Or builds an OrGroup condition from the mini-language string.
func Or(group string) Condition {
	return Condition{Op: OrGroup, Group: ParseOrGroup(group)}
}

// renderOrGroup writes OR-group members back into the mini-language. Parsing
// normalizes unrecognized operators to eq, so a round trip is normalizing
// rather than lossless.
func renderOrGroup(conds []Condition) string {
	items := make([]string, 0, len(conds))
	for _, c := range conds {
		items = append(items, fmt.Sprintf("%s.%s.%v", c.Column, c.Op, c.Value))
	}
	return strings.Join(items, ",")
}

package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireCondition is the JSON form of a Condition. OR groups travel as the raw
// mini-language string under "group".
type wireCondition struct {
	Op     string `json:"op"`
	Column string `json:"column,omitempty"`
	Value  any    `json:"value,omitempty"`
	Group  string `json:"group,omitempty"`
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

// MarshalJSON renders the condition in its wire form.
func (c Condition) MarshalJSON() ([]byte, error) {
	w := wireCondition{Op: c.Op.String()}
	if c.Op == OrGroup {
		w.Group = renderOrGroup(c.Group)
	} else {
		w.Column = c.Column
		w.Value = c.Value
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form. Operators outside the closed set are
// rejected here rather than ignored later.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var w wireCondition
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	op, ok := opsByName[w.Op]
	if !ok {
		return fmt.Errorf("unknown operator %q", w.Op)
	}
	if op == OrGroup {
		*c = Or(w.Group)
		return nil
	}
	*c = Condition{Op: op, Column: w.Column, Value: w.Value}
	return nil
}

// Wire is the JSON form of a whole descriptor, as accepted by the HTTP
// surface and the query command.
type Wire struct {
	Table      string          `json:"table"`
	Op         string          `json:"op"`
	Select     string          `json:"select,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
	Orders     []OrderClause   `json:"orders,omitempty"`
	Limit      *int            `json:"limit,omitempty"`
	Offset     *int            `json:"offset,omitempty"`
	Single     bool            `json:"single,omitempty"`
	Count      string          `json:"count,omitempty"`
	Head       bool            `json:"head,omitempty"`
	Returning  bool            `json:"returning,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Decode converts the wire form into a Descriptor.
func (w *Wire) Decode() (*Descriptor, error) {
	if w.Table == "" {
		return nil, fmt.Errorf("descriptor missing table")
	}

	var op Operation
	switch w.Op {
	case "select", "":
		op = OpSelect
	case "insert":
		op = OpInsert
	case "update":
		op = OpUpdate
	case "delete":
		op = OpDelete
	default:
		return nil, fmt.Errorf("unknown operation %q", w.Op)
	}

	var count CountMode
	switch w.Count {
	case "":
		count = CountNone
	case "exact":
		count = CountExact
	default:
		return nil, fmt.Errorf("unknown count mode %q", w.Count)
	}

	payload, err := decodePayload(w.Payload)
	if err != nil {
		return nil, err
	}

	return &Descriptor{
		Table:      w.Table,
		Operation:  op,
		Select:     w.Select,
		Conditions: w.Conditions,
		Orders:     w.Orders,
		Limit:      w.Limit,
		Offset:     w.Offset,
		Single:     w.Single,
		Count:      count,
		Head:       w.Head,
		Returning:  w.Returning || (op != OpSelect && w.Select != ""),
		Payload:    payload,
	}, nil
}

// DecodeWire parses a raw JSON descriptor.
func DecodeWire(data []byte) (*Descriptor, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return w.Decode()
}

func decodePayload(raw json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Payload{}, nil
	}
	if trimmed[0] == '[' {
		var rows []map[string]any
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return Payload{}, fmt.Errorf("invalid payload: %w", err)
		}
		return Payload{Rows: rows}, nil
	}
	var row map[string]any
	if err := json.Unmarshal(trimmed, &row); err != nil {
		return Payload{}, fmt.Errorf("invalid payload: %w", err)
	}
	return Payload{Rows: []map[string]any{row}, Singular: true}, nil
}

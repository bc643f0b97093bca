package descriptor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrGroup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Condition
	}{
		{
			name:  "two equality items",
			input: "status.eq.pending,status.eq.overdue",
			want: []Condition{
				{Op: Eq, Column: "status", Value: "pending"},
				{Op: Eq, Column: "status", Value: "overdue"},
			},
		},
		{
			name:  "mixed operators",
			input: "last_name.ilike.%mar%,amount.gt.100,notes.like.%flu%",
			want: []Condition{
				{Op: ILike, Column: "last_name", Value: "%mar%"},
				{Op: Gt, Column: "amount", Value: "100"},
				{Op: Like, Column: "notes", Value: "%flu%"},
			},
		},
		{
			name:  "unrecognized operator falls back to eq",
			input: "status.matches.paid",
			want: []Condition{
				{Op: Eq, Column: "status", Value: "paid"},
			},
		},
		{
			name:  "value containing dots stays whole",
			input: "email.eq.ana@clinic.example.org",
			want: []Condition{
				{Op: Eq, Column: "email", Value: "ana@clinic.example.org"},
			},
		},
		{
			name:  "two-part fragment treated as eq",
			input: "status.paid",
			want: []Condition{
				{Op: Eq, Column: "status", Value: "paid"},
			},
		},
		{
			name:  "empty and bare fragments dropped",
			input: "status.eq.paid,,oops",
			want: []Condition{
				{Op: Eq, Column: "status", Value: "paid"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrGroup(tt.input))
		})
	}
}

func TestConditionJSONRoundTrip(t *testing.T) {
	cond := Condition{Op: Eq, Column: "status", Value: "pending"}
	raw, err := json.Marshal(cond)
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"eq","column":"status","value":"pending"}`, string(raw))

	var back Condition
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, cond, back)
}

func TestConditionJSONOrGroup(t *testing.T) {
	var cond Condition
	require.NoError(t, json.Unmarshal([]byte(`{"op":"or","group":"status.eq.a,amount.gt.2"}`), &cond))
	assert.Equal(t, OrGroup, cond.Op)
	require.Len(t, cond.Group, 2)
	assert.Equal(t, Gt, cond.Group[1].Op)

	raw, err := json.Marshal(cond)
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"or","group":"status.eq.a,amount.gt.2"}`, string(raw))
}

func TestConditionJSONUnknownOperator(t *testing.T) {
	var cond Condition
	err := json.Unmarshal([]byte(`{"op":"between","column":"a","value":1}`), &cond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operator")
}

func TestWireDecode(t *testing.T) {
	raw := []byte(`{
		"table": "invoices",
		"op": "select",
		"select": "*, patient:patients(*)",
		"conditions": [{"op":"eq","column":"status","value":"pending"}],
		"orders": [{"column":"date","ascending":false}],
		"limit": 10,
		"count": "exact"
	}`)

	d, err := DecodeWire(raw)
	require.NoError(t, err)
	assert.Equal(t, "invoices", d.Table)
	assert.Equal(t, OpSelect, d.Operation)
	assert.Equal(t, CountExact, d.Count)
	require.NotNil(t, d.Limit)
	assert.Equal(t, 10, *d.Limit)
	require.Len(t, d.Orders, 1)
	assert.False(t, d.Orders[0].Ascending)
	assert.True(t, d.WantsRows())
}

func TestWireDecodePayloadShapes(t *testing.T) {
	single, err := DecodeWire([]byte(`{"table":"patients","op":"insert","select":"*","payload":{"first_name":"Ana","last_name":"Blake"}}`))
	require.NoError(t, err)
	assert.True(t, single.Payload.Singular)
	require.Len(t, single.Payload.Rows, 1)
	assert.True(t, single.Returning)

	batch, err := DecodeWire([]byte(`{"table":"patients","op":"insert","payload":[{"first_name":"A","last_name":"B"},{"first_name":"C","last_name":"D"}]}`))
	require.NoError(t, err)
	assert.False(t, batch.Payload.Singular)
	assert.Len(t, batch.Payload.Rows, 2)
	assert.False(t, batch.WantsRows())
}

func TestWireDecodeRejectsUnknown(t *testing.T) {
	_, err := DecodeWire([]byte(`{"table":"patients","op":"upsert"}`))
	require.Error(t, err)

	_, err = DecodeWire([]byte(`{"op":"select"}`))
	require.Error(t, err)

	_, err = DecodeWire([]byte(`{"table":"patients","count":"planned"}`))
	require.Error(t, err)
}

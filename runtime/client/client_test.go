package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/localbase/runtime/types"
	"github.com/clinicdesk/localbase/store"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "clinic.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, opts...)
}

func seedPatient(t *testing.T, c *Client, id, first, last string) {
	t.Helper()
	res := c.From("patients").Insert(map[string]any{"id": id, "first_name": first, "last_name": last}).Execute(context.Background())
	require.Nil(t, res.Error)
}

func TestInsertSelectUpdateDeleteLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	res := c.From("patients").
		Insert(map[string]any{"first_name": "Ana", "last_name": "Silva"}).
		Select("*").
		Execute(ctx)
	require.Nil(t, res.Error)
	created, ok := res.Data.(types.Row)
	require.True(t, ok, "single-object insert returns an object")
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.NotEmpty(t, created["created_at"])

	res = c.From("patients").Select("*").Eq("id", id).Single().Execute(ctx)
	require.Nil(t, res.Error)
	row := res.Data.(types.Row)
	assert.Equal(t, "Ana", row["first_name"])

	res = c.From("patients").
		Update(map[string]any{"notes": "allergic to penicillin"}).
		Eq("id", id).
		Select("*").
		Execute(ctx)
	require.Nil(t, res.Error)
	updated, ok := res.Data.([]types.Row)
	require.True(t, ok, "update returns an array unless Single is set")
	require.Len(t, updated, 1)
	assert.Equal(t, "allergic to penicillin", updated[0]["notes"])

	res = c.From("patients").Delete().Eq("id", id).Execute(ctx)
	require.Nil(t, res.Error)
	assert.Nil(t, res.Data)

	res = c.From("patients").Select("*").Execute(ctx)
	require.Nil(t, res.Error)
	assert.Empty(t, res.Data.([]types.Row))
}

func TestZeroRowsIsEmptyArrayNotError(t *testing.T) {
	c := newTestClient(t)

	res := c.From("patients").Select("*").Eq("id", "ghost").Execute(context.Background())
	require.Nil(t, res.Error)
	rows, ok := res.Data.([]types.Row)
	require.True(t, ok)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSingleWithNoRows(t *testing.T) {
	c := newTestClient(t)

	res := c.From("patients").Select("*").Eq("id", "ghost").Single().Execute(context.Background())
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeNotFound, res.Error.Code)
	assert.Equal(t, "no rows returned", res.Error.Message)
	assert.Nil(t, res.Data)
}

func TestSingleTakesFirstOfMany(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	seedPatient(t, c, "p2", "Bruno", "Costa")

	res := c.From("patients").Select("*").Order("id").Single().Execute(ctx)
	require.Nil(t, res.Error)
	assert.Equal(t, "p1", res.Data.(types.Row)["id"])
}

func TestArrayInsertReturnsArray(t *testing.T) {
	c := newTestClient(t)

	res := c.From("patients").Insert([]map[string]any{
		{"first_name": "Ana", "last_name": "Silva"},
		{"first_name": "Bruno", "last_name": "Costa"},
	}).Select("*").Execute(context.Background())
	require.Nil(t, res.Error)
	rows, ok := res.Data.([]types.Row)
	require.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestStructPayload(t *testing.T) {
	c := newTestClient(t)

	type newPatient struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	res := c.From("patients").Insert(newPatient{FirstName: "Ana", LastName: "Silva"}).Select("*").Execute(context.Background())
	require.Nil(t, res.Error)
	row, ok := res.Data.(types.Row)
	require.True(t, ok)
	assert.Equal(t, "Ana", row["first_name"])
}

func TestDuplicateKeyMapsTo23505(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	res := c.From("patients").Insert(map[string]any{"id": "p1", "first_name": "Bruno", "last_name": "Costa"}).Execute(ctx)
	require.NotNil(t, res.Error)
	assert.Equal(t, "23505", res.Error.Code)
	assert.Nil(t, res.Data)
}

func TestBrokenReferenceMapsTo23503(t *testing.T) {
	c := newTestClient(t)

	res := c.From("consultations").Insert(map[string]any{"patient_id": "ghost", "reason": "checkup"}).Execute(context.Background())
	require.NotNil(t, res.Error)
	assert.Equal(t, "23503", res.Error.Code)
}

func TestMissingRequiredColumnMapsTo23502(t *testing.T) {
	c := newTestClient(t)

	res := c.From("patients").Insert(map[string]any{"last_name": "Silva"}).Execute(context.Background())
	require.NotNil(t, res.Error)
	assert.Equal(t, "23502", res.Error.Code)
}

func TestCountExact(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	seedPatient(t, c, "p2", "Bruno", "Costa")

	res := c.From("patients").Select("*", WithCount(Exact)).Execute(ctx)
	require.Nil(t, res.Error)
	require.NotNil(t, res.Count)
	assert.EqualValues(t, 2, *res.Count)
	assert.Len(t, res.Data.([]types.Row), 2)

	// Head drops the rows but keeps the count.
	res = c.From("patients").Select("*", WithCount(Exact), WithHead()).Execute(ctx)
	require.Nil(t, res.Error)
	require.NotNil(t, res.Count)
	assert.EqualValues(t, 2, *res.Count)
	assert.Nil(t, res.Data)
}

func TestCountHonorsFilters(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	seedPatient(t, c, "p2", "Bruno", "Costa")
	res := c.From("patients").Update(map[string]any{"archived": true}).Eq("id", "p2").Execute(ctx)
	require.Nil(t, res.Error)

	res = c.From("patients").Select("*", WithCount(Exact)).Eq("archived", false).Execute(ctx)
	require.Nil(t, res.Error)
	require.NotNil(t, res.Count)
	assert.EqualValues(t, 1, *res.Count)
}

func TestNestedRelationProjection(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	res := c.From("consultations").Insert(map[string]any{"id": "c1", "patient_id": "p1", "reason": "checkup"}).Execute(ctx)
	require.Nil(t, res.Error)
	res = c.From("invoices").Insert(map[string]any{"id": "i1", "consultation_id": "c1", "patient_id": "p1", "amount": 80.0}).Execute(ctx)
	require.Nil(t, res.Error)

	res = c.From("patients").
		Select("first_name, consultations(reason, invoices(amount))").
		Eq("id", "p1").
		Single().
		Execute(ctx)
	require.Nil(t, res.Error)

	row := res.Data.(types.Row)
	assert.Equal(t, "Ana", row["first_name"])

	consultations, ok := row["consultations"].([]types.Row)
	require.True(t, ok)
	require.Len(t, consultations, 1)
	assert.Equal(t, "checkup", consultations[0]["reason"])

	invoices, ok := consultations[0]["invoices"].([]types.Row)
	require.True(t, ok)
	require.Len(t, invoices, 1)
	assert.Equal(t, 80.0, invoices[0]["amount"])
}

func TestAliasedToOneRelation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	res := c.From("consultations").Insert(map[string]any{"id": "c1", "patient_id": "p1"}).Execute(ctx)
	require.Nil(t, res.Error)

	res = c.From("consultations").Select("*, patient:patients(first_name)").Single().Execute(ctx)
	require.Nil(t, res.Error)
	row := res.Data.(types.Row)

	parent, ok := row["patient"].(types.Row)
	require.True(t, ok)
	assert.Equal(t, "Ana", parent["first_name"])
}

func TestUnresolvedRelationSurfacesEngineError(t *testing.T) {
	c := newTestClient(t)
	seedPatient(t, c, "p1", "Ana", "Silva")

	res := c.From("patients").Select("*, widgets(*)").Execute(context.Background())
	require.NotNil(t, res.Error)
	assert.NotEmpty(t, res.Error.Message)
	assert.Nil(t, res.Data)
}

func TestOrGroupAndRange(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	seedPatient(t, c, "p2", "Bruno", "Costa")
	seedPatient(t, c, "p3", "Carla", "Reis")
	seedPatient(t, c, "p4", "Diego", "Melo")

	res := c.From("patients").Select("*").Or("first_name.eq.Ana,first_name.eq.Diego").Execute(ctx)
	require.Nil(t, res.Error)
	assert.Len(t, res.Data.([]types.Row), 2)

	res = c.From("patients").Select("*").Order("id").Range(1, 2).Execute(ctx)
	require.Nil(t, res.Error)
	rows := res.Data.([]types.Row)
	require.Len(t, rows, 2)
	assert.Equal(t, "p2", rows[0]["id"])
	assert.Equal(t, "p3", rows[1]["id"])
}

func TestJSONColumnRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	items := []any{map[string]any{"label": "consultation", "price": 50.0}}
	res := c.From("invoices").
		Insert(map[string]any{"patient_id": "p1", "amount": 50.0, "items": items}).
		Select("*").
		Execute(ctx)
	require.Nil(t, res.Error)
	assert.Equal(t, items, res.Data.(types.Row)["items"])
}

func TestBuilderExecutesOnce(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")

	b := c.From("patients").Select("*")
	first := b.Execute(ctx)
	require.Nil(t, first.Error)
	require.Len(t, first.Data.([]types.Row), 1)

	seedPatient(t, c, "p2", "Bruno", "Costa")

	second := b.Execute(ctx)
	assert.Same(t, first, second)
	assert.Len(t, second.Data.([]types.Row), 1)
}

func TestBadPayloadBecomesResultError(t *testing.T) {
	c := newTestClient(t)

	res := c.From("patients").Insert(make(chan int)).Execute(context.Background())
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, "unsupported payload")

	res = c.From("patients").Update([]map[string]any{{"notes": "x"}, {"notes": "y"}}).Execute(context.Background())
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, "single object")
}

func TestUnknownColumnBecomesResultError(t *testing.T) {
	c := newTestClient(t)
	seedPatient(t, c, "p1", "Ana", "Silva")

	res := c.From("patients").Select("*").Eq("no_such_column", 1).Execute(context.Background())
	require.NotNil(t, res.Error)
	assert.Nil(t, res.Data)
}

func TestMiddlewareSeesOperations(t *testing.T) {
	c := newTestClient(t)
	var seen []string
	c.Use(TimingMiddleware(func(table, operation string, d time.Duration) {
		seen = append(seen, table+"/"+operation)
	}))

	ctx := context.Background()
	seedPatient(t, c, "p1", "Ana", "Silva")
	res := c.From("patients").Select("*").Execute(ctx)
	require.Nil(t, res.Error)

	assert.Equal(t, []string{"patients/insert", "patients/select"}, seen)
}

func TestDecodeInto(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedPatient(t, c, "p1", "Ana", "Silva")
	seedPatient(t, c, "p2", "Bruno", "Costa")

	type patient struct {
		ID        string `db:"id"`
		FirstName string `db:"first_name"`
		LastName  string `db:"last_name"`
		Archived  bool   `db:"archived"`
	}

	var list []patient
	res := c.From("patients").Select("*").Order("id").Execute(ctx)
	require.Nil(t, res.Error)
	require.NoError(t, res.DecodeInto(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].FirstName)
	assert.False(t, list[0].Archived)

	var one patient
	res = c.From("patients").Select("*").Eq("id", "p2").Single().Execute(ctx)
	require.Nil(t, res.Error)
	require.NoError(t, res.DecodeInto(&one))
	assert.Equal(t, "Bruno", one.FirstName)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/localbase/auth"
	"github.com/clinicdesk/localbase/runtime/client"
	"github.com/clinicdesk/localbase/runtime/types"
	"github.com/clinicdesk/localbase/store"
)

func newTestServer(t *testing.T) (*Server, *client.Client) {
	t.Helper()

	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "clinic.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := client.New(s)
	return New(c, auth.New(c, "test-secret")), c
}

func seedPatients(t *testing.T, c *client.Client) {
	t.Helper()

	res := c.From("patients").Insert([]map[string]any{
		{"first_name": "Ana", "last_name": "Silva"},
		{"first_name": "Rui", "last_name": "Costa"},
	}).Execute(context.Background())
	require.Nil(t, res.Error)
}

func seedUser(t *testing.T, c *client.Client, email, password string) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	res := c.From("users").Insert(types.Row{
		"email":         email,
		"password_hash": hash,
		"display_name":  "Dr. Silva",
	}).Execute(context.Background())
	require.Nil(t, res.Error)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *client.Error   `json:"error"`
	Count *int64          `json:"count"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestQueryEndpointSelect(t *testing.T) {
	srv, c := newTestServer(t)
	seedPatients(t, c)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{
		"table": "patients",
		"op": "select",
		"select": "first_name, last_name",
		"orders": [{"column": "first_name", "ascending": true}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Ana", rows[0]["first_name"])
	assert.Equal(t, "Costa", rows[1]["last_name"])
}

func TestQueryEndpointInsertReturnsRow(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{
		"table": "patients",
		"op": "insert",
		"select": "*",
		"payload": {"first_name": "Ana", "last_name": "Silva"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)

	var row map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &row), "a singular payload should come back as an object")
	assert.Len(t, row["id"], 36)
	assert.Equal(t, "Ana", row["first_name"])
}

func TestQueryEndpointConditionsAndCount(t *testing.T) {
	srv, c := newTestServer(t)
	seedPatients(t, c)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{
		"table": "patients",
		"op": "select",
		"conditions": [{"op": "eq", "column": "archived", "value": false}],
		"count": "exact",
		"head": true
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	require.NotNil(t, env.Count)
	assert.EqualValues(t, 2, *env.Count)
	assert.Equal(t, "null", string(env.Data))
}

func TestQueryEndpointOrGroup(t *testing.T) {
	srv, c := newTestServer(t)
	seedPatients(t, c)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{
		"table": "patients",
		"op": "select",
		"conditions": [{"op": "or", "group": "first_name.eq.Ana,first_name.eq.Rui"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Len(t, rows, 2)
}

func TestQueryEndpointRejectsMissingTable(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{"op": "select"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "missing table")
}

func TestQueryEndpointRejectsUnknownOperator(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{
		"table": "patients",
		"op": "select",
		"conditions": [{"op": "maybe", "column": "id", "value": "x"}]
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "unknown operator")
}

func TestQueryEndpointSingleMissRidesEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{
		"table": "patients",
		"op": "select",
		"conditions": [{"op": "eq", "column": "id", "value": "nope"}],
		"single": true
	}`)
	require.Equal(t, http.StatusOK, rec.Code, "engine-level errors ride inside the envelope")

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, client.CodeNotFound, env.Error.Code)
}

func TestTokenEndpoint(t *testing.T) {
	srv, c := newTestServer(t)
	seedUser(t, c, "doctor@clinic.test", "correct horse")

	rec := doJSON(t, srv, http.MethodPost, "/auth/token", `{"email": "doctor@clinic.test", "password": "correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var session struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "doctor@clinic.test", session.User.Email)
}

func TestTokenEndpointRejectsBadCredentials(t *testing.T) {
	srv, c := newTestServer(t)
	seedUser(t, c, "doctor@clinic.test", "correct horse")

	rec := doJSON(t, srv, http.MethodPost, "/auth/token", `{"email": "doctor@clinic.test", "password": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/auth/token", `{"email": "doctor@clinic.test"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestMetricsCountQueries(t *testing.T) {
	srv, c := newTestServer(t)
	seedPatients(t, c)

	rec := doJSON(t, srv, http.MethodPost, "/rest/query", `{"table": "patients", "op": "select"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(mrec, req)

	require.Equal(t, http.StatusOK, mrec.Code)
	body := mrec.Body.String()
	assert.Contains(t, body, "localbase_queries_total")
	assert.Contains(t, body, `table="patients"`)
	assert.Contains(t, body, "localbase_query_duration_seconds")
}

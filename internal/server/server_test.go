package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/MacromNex/rfdiffusion2-mcp/internal/errors"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/jobs"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/procedure"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr := jobs.NewManager(jobs.Options{CancelGrace: 200 * time.Millisecond})
	t.Cleanup(mgr.Wait)

	srv := New("127.0.0.1", 0, Options{
		Manager:    mgr,
		Catalog:    procedure.Builtin(t.TempDir()),
		Checker:    &procedure.Checker{Python: filepath.Join(t.TempDir(), "no-python")},
		OutputRoot: t.TempDir(),
		LogTail:    200,
		Version:    "test",
	})
	return srv
}

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := jobs.NewManager(jobs.Options{})
			srv := New("127.0.0.1", tt.port, Options{Manager: mgr, Catalog: procedure.Builtin("")})
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_MetaRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = doJSON(t, srv, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", body["version"])

	rec, body = doJSON(t, srv, http.MethodGet, "/v1/procedures", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])

	rec, body = doJSON(t, srv, http.MethodGet, "/v1/ligands", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(11), body["count"])
	ligands, ok := body["ligands"].([]any)
	require.True(t, ok, "ligands payload: %T", body["ligands"])
	first, ok := ligands[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PH2", first["code"])
	assert.Equal(t, "Phthalic acid", first["name"])

	rec, body = doJSON(t, srv, http.MethodGet, "/v1/dependencies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["all_available"])
}

func TestSubmit_Validation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", `{}`, "either procedure or executable is required"},
		{"both set", `{"procedure":"binder_design","executable":"/bin/true"}`, "mutually exclusive"},
		{"unknown procedure", `{"procedure":"origami"}`, "unknown procedure"},
		{"nested args", `{"executable":"/bin/true","args":{"x":{"y":1}}}`, "nested values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, srv, http.MethodPost, "/v1/jobs", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
			assert.Contains(t, errObj["message"], tt.want)
		})
	}
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	stub := writeStub(t, `echo line1; echo 'RESULT:{"designs":2}'`)

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/jobs",
		`{"executable":"`+stub+`","name":"demo"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	// Poll until terminal
	deadline := time.Now().Add(5 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		rec, body = doJSON(t, srv, http.MethodGet, "/v1/jobs/"+jobID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		status, _ = body["status"].(string)
		if status == "completed" || status == "failed" || status == "cancelled" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, "completed", status)

	rec, body = doJSON(t, srv, http.MethodGet, "/v1/jobs/"+jobID+"/result", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ready"])
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(2), result["designs"])

	rec, body = doJSON(t, srv, http.MethodGet, "/v1/jobs/"+jobID+"/log?tail=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := body["lines"].([]any)
	require.Len(t, lines, 1)

	rec, body = doJSON(t, srv, http.MethodGet, "/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestCancelOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	stub := writeStub(t, "while :; do sleep 0.1; done")

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/jobs",
		`{"executable":"`+stub+`"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := body["job_id"].(string)

	rec, body = doJSON(t, srv, http.MethodDelete, "/v1/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", body["status"])

	// Cancel is idempotent
	rec, body = doJSON(t, srv, http.MethodDelete, "/v1/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", body["status"])
}

func TestUnknownJobOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/v1/jobs/nope",
		"/v1/jobs/nope/result",
		"/v1/jobs/nope/log",
	} {
		rec, body := doJSON(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		errObj := body["error"].(map[string]any)
		assert.Equal(t, "NOT_FOUND", errObj["code"], path)
	}

	rec, body := doJSON(t, srv, http.MethodDelete, "/v1/jobs/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/metrics"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store/memstore"
	"github.com/Makepad-fr/tada/internal/todo"
)

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := todo.New(memstore.New(), todo.WithLogger(logger), todo.WithMetrics(rec))
	srv := httptest.NewServer(New(svc, Options{Token: token, Logger: logger, Metrics: rec, Gatherer: reg}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestItemLifecycle(t *testing.T) {
	srv := newTestServer(t, "")
	base := srv.URL + Prefix

	resp, body := do(t, http.MethodPost, base, `{"description":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, Prefix+"/1", resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var v model.View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, int64(1), v.ID)
	assert.Equal(t, model.StatusNew, v.CurrentStatus)

	resp, body = do(t, http.MethodPut, base+"/1", `{"status":"STARTED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, model.StatusStarted, v.CurrentStatus)

	resp, body = do(t, http.MethodGet, base+"/1/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist []model.StatusEvent
	require.NoError(t, json.Unmarshal(body, &hist))
	assert.Len(t, hist, 2)

	resp, body = do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []model.View
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 1)

	resp, _ = do(t, http.MethodDelete, base+"/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, base+"/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, "not_found", er.Kind)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, "")
	base := srv.URL + Prefix

	resp, _ := do(t, http.MethodPost, base, `{"description":"x"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name, method, path, body string
		code                     int
		kind                     string
	}{
		{"empty description", http.MethodPost, "", `{"description":""}`, http.StatusBadRequest, "invalid_argument"},
		{"bad status on create", http.MethodPost, "", `{"description":"y","status":"bogus"}`, http.StatusBadRequest, "invalid_status"},
		{"bad status on update", http.MethodPut, "/1", `{"status":"New|Started"}`, http.StatusBadRequest, "invalid_status"},
		{"malformed json", http.MethodPut, "/1", `{`, http.StatusBadRequest, "invalid_argument"},
		{"unknown field", http.MethodPut, "/1", `{"id":5}`, http.StatusBadRequest, "invalid_argument"},
		{"bad id", http.MethodGet, "/abc", "", http.StatusBadRequest, "invalid_argument"},
		{"missing find", http.MethodGet, "/42", "", http.StatusNotFound, "not_found"},
		{"missing update", http.MethodPut, "/42", `{"status":"New"}`, http.StatusNotFound, "not_found"},
		{"missing delete", http.MethodDelete, "/42", "", http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, tc.method, base+tc.path, tc.body)
			assert.Equal(t, tc.code, resp.StatusCode, string(body))
			var er ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.Equal(t, tc.kind, er.Kind)
			assert.NotEmpty(t, er.Error)
		})
	}
}

func TestStatusesAndHealth(t *testing.T) {
	srv := newTestServer(t, "")

	resp, body := do(t, http.MethodGet, srv.URL+"/api/statuses", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var statuses []model.Status
	require.NoError(t, json.Unmarshal(body, &statuses))
	assert.Equal(t, model.Statuses, statuses)

	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	do(t, http.MethodPost, srv.URL+Prefix, `{"description":"x"}`)

	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.Contains(body, []byte("tada_operations_total")))
	assert.True(t, bytes.Contains(body, []byte(`tada_status_events_appended_total{status="New"} 1`)))
}

func TestTokenRequired(t *testing.T) {
	srv := newTestServer(t, "s3cret")

	resp, _ := do(t, http.MethodGet, srv.URL+Prefix, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+Prefix, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)

	// health stays open
	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoute(t *testing.T) {
	assert.Equal(t, Prefix, route(Prefix))
	assert.Equal(t, Prefix+"/{id}", route(Prefix+"/17"))
	assert.Equal(t, Prefix+"/{id}/history", route(Prefix+"/17/history"))
	assert.Equal(t, "other", route("/wp-login.php"))
}

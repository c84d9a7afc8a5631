package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fpang/profile-agent/internal/jobs"
	"github.com/fpang/profile-agent/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct{ processing bool }

func (f fakeStatus) IsProcessing(ctx context.Context) bool { return f.processing }
func (f fakeStatus) Uptime() time.Duration                 { return 42 * time.Second }

func newTestServer(t *testing.T, runs RunLookup) http.Handler {
	t.Helper()
	trigger := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	s := New(fakeStatus{processing: true}, trigger, runs)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s.Router()
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestStatus(t *testing.T) {
	rr := get(newTestServer(t, nil), "/status")

	require.Equal(t, http.StatusOK, rr.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.IsProcessing)
	assert.Equal(t, 42.0, body.Uptime)
	assert.Equal(t, "2025-06-01T12:00:00.000Z", body.Timestamp)
}

func TestHealth(t *testing.T) {
	rr := get(newTestServer(t, nil), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestWebhookRouted(t *testing.T) {
	h := newTestServer(t, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestGetRun(t *testing.T) {
	runs := store.NewMemoryStore(0)
	require.NoError(t, runs.Put(context.Background(), jobs.Report{RunID: "run-abc", Success: true, TotalProfiles: 2}))
	h := newTestServer(t, runs)

	rr := get(h, "/runs/abc")
	require.Equal(t, http.StatusOK, rr.Code)
	var got jobs.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 2, got.TotalProfiles)

	assert.Equal(t, http.StatusNotFound, get(h, "/runs/run-missing").Code)
}

func TestGetRunDisabled(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(newTestServer(t, nil), "/runs/run-abc").Code)
}

func TestMetricsExposed(t *testing.T) {
	rr := get(newTestServer(t, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "agent_processing")
}

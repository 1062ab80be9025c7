package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func newTestRouter(probes map[string]Probe) http.Handler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewRouter(RouterParams{
		Logger:     logger,
		Config:     &Config{AppEnv: "test"},
		Metrics:    observability.NewMetrics(),
		JobHandler: jobs.NewHandler(nil, logger),
		Probes:     probes,
	})
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:4000"
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthz(t *testing.T) {
	rr := serve(newTestRouter(nil), "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestRouterReadiness(t *testing.T) {
	router := newTestRouter(map[string]Probe{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	rr := serve(router, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var results []probeResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	assert.Equal(t, []probeResult{
		{Name: "postgres", OK: false, Error: "connection refused"},
		{Name: "redis", OK: true},
	}, results)

	healthy := newTestRouter(map[string]Probe{"redis": func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, serve(healthy, "/readyz").Code)
}

func TestRouterJobsHealthAndMetrics(t *testing.T) {
	router := newTestRouter(nil)

	rr := serve(router, "/jobs/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"queue":"critical","pending":0,"failed":0},{"queue":"default","pending":0,"failed":0}]`, rr.Body.String())

	rr = serve(router, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `odyssey_http_requests_total{code="200",route="/jobs/health"} 1`)
}

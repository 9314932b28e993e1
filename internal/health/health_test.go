package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/internal/logger"
)

func newTestServer() *Server {
	return NewServer(0, "test", logger.New(io.Discard, logger.LevelError, "test", nil))
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth_AllHealthy(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("rpc", func(ctx context.Context) (bool, string) { return true, "block 42" })

	rec := serve(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "test", report.Version)
	assert.True(t, report.Checks["rpc"].Healthy)
	assert.Equal(t, "block 42", report.Checks["rpc"].Message)
}

func TestHealth_Degraded(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("rpc", func(ctx context.Context) (bool, string) { return true, "" })
	s.RegisterCheck("quote", func(ctx context.Context) (bool, string) { return false, "circuit open" })
	s.RegisterCheck("wallet", func(ctx context.Context) (bool, string) { return false, "no key" })

	rec := serve(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = serve(t, s, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready: quote", rec.Body.String())
}

func TestHealth_CheckSeesDeadline(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("slow", func(ctx context.Context) (bool, string) {
		_, ok := ctx.Deadline()
		return ok, ""
	})

	report := s.Run(context.Background())
	assert.True(t, report.Checks["slow"].Healthy)
	assert.Equal(t, "ok", report.Status)
}

func TestHealth_ReadyWithoutChecks(t *testing.T) {
	rec := serve(t, newTestServer(), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestHealth_Live(t *testing.T) {
	rec := serve(t, newTestServer(), "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())
}

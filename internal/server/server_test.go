package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/memory"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/observability"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	OK   bool            `json:"ok"`
	Data watchdog.Result `json:"data"`
	Code string          `json:"code"`
}

func setup(t *testing.T) (*Server, *memory.Hub, *observability.Metrics) {
	t.Helper()
	hub := memory.NewHub()
	t.Cleanup(hub.Close)
	metrics := observability.NewMetrics()
	wd, err := watchdog.Configure(registry.Default(), hub.Context(), watchdog.Options{
		Enabled:   watchdog.Bool(false),
		Observers: []watchdog.Observer{metrics},
	})
	require.NoError(t, err)
	return New(wd, metrics.Handler(), nil), hub, metrics
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthz(t *testing.T) {
	s, _, _ := setup(t)
	w, env := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.OK)
}

func TestStatusBeforeFirstPass(t *testing.T) {
	s, _, _ := setup(t)
	w, _ := do(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCheckThenStatus(t *testing.T) {
	s, hub, _ := setup(t)
	require.NoError(t, hub.Context().Set(registry.KeyUsers, []byte(`{broken`)))

	w, env := do(t, s, http.MethodPost, "/check")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.OK)
	assert.Equal(t, watchdog.ScopeFull, env.Data.Scope)
	assert.Contains(t, env.Data.RepairedKeys, registry.KeyUsers)

	w, env = do(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Data.IsHealthy)
}

func TestStatusUnhealthy(t *testing.T) {
	s, hub, _ := setup(t)
	hub.FailWrites(errors.New("disk full"))

	w, env := do(t, s, http.MethodPost, "/check")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.OK)
	assert.NotEmpty(t, env.Data.Errors)

	w, _ = do(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCheckKey(t *testing.T) {
	s, _, _ := setup(t)

	w, env := do(t, s, http.MethodPost, "/check/"+registry.KeyVideos)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, watchdog.ScopeKey, env.Data.Scope)
	require.Len(t, env.Data.Records, 1)
	assert.Equal(t, registry.KeyVideos, env.Data.Records[0].Key)
}

func TestCheckUnknownKey(t *testing.T) {
	s, _, _ := setup(t)

	w, env := do(t, s, http.MethodPost, "/check/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.OK)
	assert.Equal(t, "not_found", env.Code)
}

func TestRepair(t *testing.T) {
	s, _, _ := setup(t)

	w, env := do(t, s, http.MethodPost, "/repair")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, watchdog.ScopeForce, env.Data.Scope)
	assert.Len(t, env.Data.RepairedKeys, registry.Default().Len())
}

func TestMetrics(t *testing.T) {
	s, _, _ := setup(t)
	do(t, s, http.MethodPost, "/check")

	w, _ := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storewatch_checks_total")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, _, _ := setup(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

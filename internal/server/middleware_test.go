package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/app"
	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/handlers"
	"github.com/ternarybob/fleetbench/internal/orchestrator"
	"github.com/ternarybob/fleetbench/internal/scaler"
	"github.com/ternarybob/fleetbench/internal/storage/badger"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Auth.Token = token
	logger := common.GetLogger()

	store, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := scaler.NewRegistry(cfg, logger)
	application := &app.App{
		Config:         cfg,
		Logger:         logger,
		StorageManager: store,
		APIHandler:     handlers.NewAPIHandler(),
		JobHandler:     handlers.NewJobHandler(orchestrator.NewService(store, logger)),
		ServiceHandler: handlers.NewServiceHandler(store, registry),
	}
	return New(application)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsMissingToken(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := serve(s, httptest.NewRequest("GET", "/api/jobs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = serve(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	s := newTestServer(t, "secret")

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProbeEndpointsStayOpen(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := serve(s, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest("GET", "/api/version", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	s := newTestServer(t, "")

	rec := serve(s, httptest.NewRequest("GET", "/api/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, "")

	rec := serve(s, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
	"github.com/ternarybob/fleetbench/internal/orchestrator"
	"github.com/ternarybob/fleetbench/internal/storage/badger"
)

func newJobHandler(t *testing.T) (*JobHandler, interfaces.StorageManager) {
	t.Helper()
	store, err := badger.NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewJobHandler(orchestrator.NewService(store, common.GetLogger())), store
}

// newFileServer answers HEAD requests with the given content length so job
// creation can probe the benchmark file.
func newFileServer(t *testing.T, contentLength int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createJobRequest(t *testing.T, handler *JobHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.JobsHandler(rec, req)
	return rec
}

func TestCreateJobEndpoint(t *testing.T) {
	handler, _ := newJobHandler(t)
	srv := newFileServer(t, 64*1024*1024)

	rec := createJobRequest(t, handler, `{"url":"`+srv.URL+`/file","routing_key":"us_east"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var job models.JobWithSubJobs
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Len(t, job.SubJobs, 4)
}

func TestCreateJobEndpointValidation(t *testing.T) {
	handler, _ := newJobHandler(t)

	rec := createJobRequest(t, handler, `{"routing_key":"us_east"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = createJobRequest(t, handler, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobEndpointNotFound(t *testing.T) {
	handler, _ := newJobHandler(t)

	req := httptest.NewRequest("GET", "/api/jobs/missing", nil)
	rec := httptest.NewRecorder()
	handler.JobRoutes(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJobEndpoint(t *testing.T) {
	handler, store := newJobHandler(t)
	srv := newFileServer(t, 64*1024*1024)

	rec := createJobRequest(t, handler, `{"url":"`+srv.URL+`/file","routing_key":"us_east"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.JobWithSubJobs
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	req := httptest.NewRequest("DELETE", "/api/jobs/"+job.ID, nil)
	rec = httptest.NewRecorder()
	handler.JobRoutes(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := store.Jobs().Get(req.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCanceled, stored.Status)

	// Second cancel hits a job already in a terminal state.
	rec = httptest.NewRecorder()
	handler.JobRoutes(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobsEndpoint(t *testing.T) {
	handler, _ := newJobHandler(t)
	srv := newFileServer(t, 64*1024*1024)

	require.Equal(t, http.StatusOK, createJobRequest(t, handler, `{"url":"`+srv.URL+`/a","routing_key":"us_east"}`).Code)
	require.Equal(t, http.StatusOK, createJobRequest(t, handler, `{"url":"`+srv.URL+`/b","routing_key":"us_east"}`).Code)

	req := httptest.NewRequest("GET", "/api/jobs?limit=1", nil)
	rec := httptest.NewRecorder()
	handler.JobsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []*models.JobWithSubJobs
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)
}

package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
	"github.com/ternarybob/fleetbench/internal/storage/badger"
)

func newTestService(t *testing.T) (*Service, interfaces.StorageManager) {
	t.Helper()
	store, err := badger.NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, common.GetLogger()), store
}

// newFileServer serves HEAD requests reporting the given content length.
func newFileServer(t *testing.T, contentLength int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestCreateJobBuildsPipeline(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	srv := newFileServer(t, 64*1024*1024)

	created, err := svc.CreateJob(ctx, &CreateJobInput{
		URL:        srv.URL + "/file",
		RoutingKey: "us_east",
		SizeMB:     int64Ptr(10),
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusPending, created.Status)
	assert.Equal(t, int64(10*1024*1024), created.Details.EndRange-created.Details.StartRange)
	assert.GreaterOrEqual(t, created.Details.StartRange, int64(0))
	assert.LessOrEqual(t, created.Details.EndRange, int64(64*1024*1024))
	assert.Equal(t, defaultWorkerCount, created.Details.TargetWorkerCount)
	assert.Equal(t, defaultLogIntervalMs, created.Details.LogIntervalMs)

	// Pipeline order: scaling first, then the partial runs, then the full run.
	require.Len(t, created.SubJobs, 4)
	assert.Equal(t, models.SubJobTypeScaling, created.SubJobs[0].Type)
	assert.Equal(t, "us_east", created.SubJobs[0].Details.Topic)
	assert.Equal(t, models.SubJobTypeCombinedDHP, created.SubJobs[1].Type)
	assert.Equal(t, 1, created.SubJobs[1].Details.Partial)
	assert.Equal(t, 80, created.SubJobs[2].Details.Partial)
	assert.Zero(t, created.SubJobs[3].Details.Partial)

	// The engine's work pick must see the scaling step first.
	first, err := store.SubJobs().FirstUnfinished(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SubJobTypeScaling, first.Type)
}

func TestCreateJobRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateJobInput
	}{
		{"missing url", CreateJobInput{RoutingKey: "us_east"}},
		{"bad scheme", CreateJobInput{URL: "ftp://example.com/file", RoutingKey: "us_east"}},
		{"missing routing key", CreateJobInput{URL: "http://example.com/file"}},
		{"worker count too high", CreateJobInput{URL: "http://example.com/file", RoutingKey: "us_east", WorkerCount: intPtr(41)}},
		{"size too small", CreateJobInput{URL: "http://example.com/file", RoutingKey: "us_east", SizeMB: int64Ptr(5)}},
		{"log interval too low", CreateJobInput{URL: "http://example.com/file", RoutingKey: "us_east", LogIntervalMs: intPtr(50)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(ctx, &tt.input)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateJobRejectsSmallFile(t *testing.T) {
	svc, _ := newTestService(t)
	srv := newFileServer(t, 5*1024*1024)

	_, err := svc.CreateJob(context.Background(), &CreateJobInput{
		URL:        srv.URL + "/file",
		RoutingKey: "us_east",
		SizeMB:     int64Ptr(10),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCancelJobCancelsUnfinishedSteps(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	srv := newFileServer(t, 64*1024*1024)

	created, err := svc.CreateJob(ctx, &CreateJobInput{
		URL:        srv.URL + "/file",
		RoutingKey: "us_east",
		SizeMB:     int64Ptr(10),
	})
	require.NoError(t, err)

	// One step already finished; cancellation must not rewrite it.
	require.NoError(t, store.SubJobs().UpdateStatus(ctx, created.SubJobs[1].ID, models.SubJobStatusCompleted))

	require.NoError(t, svc.CancelJob(ctx, created.ID))

	job, err := store.Jobs().Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCanceled, job.Status)

	subJobs, err := store.SubJobs().ListByJob(ctx, created.ID)
	require.NoError(t, err)
	statuses := map[models.SubJobStatus]int{}
	for _, subJob := range subJobs {
		statuses[subJob.Status]++
	}
	assert.Equal(t, 3, statuses[models.SubJobStatusCanceled])
	assert.Equal(t, 1, statuses[models.SubJobStatusCompleted])

	// Canceling a finished job is a validation error.
	require.ErrorIs(t, svc.CancelJob(ctx, created.ID), ErrValidation)
}

func TestGetJobIncludesWorkerData(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	srv := newFileServer(t, 64*1024*1024)

	created, err := svc.CreateJob(ctx, &CreateJobInput{
		URL:        srv.URL + "/file",
		RoutingKey: "us_east",
		SizeMB:     int64Ptr(10),
	})
	require.NoError(t, err)

	data := models.NewWorkerData(&models.WorkerResult{
		WorkerName: "w1",
		SubJobID:   created.SubJobs[1].ID,
		IsSuccess:  true,
	})
	require.NoError(t, store.WorkerData().Append(ctx, data))

	job, err := svc.GetJob(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, job.SubJobs, 4)
	assert.Len(t, job.SubJobs[1].WorkerData, 1)
	assert.Empty(t, job.SubJobs[0].WorkerData)
}

func TestListJobsNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	srv := newFileServer(t, 64*1024*1024)

	first, err := svc.CreateJob(ctx, &CreateJobInput{URL: srv.URL + "/a", RoutingKey: "us_east", SizeMB: int64Ptr(10)})
	require.NoError(t, err)
	second, err := svc.CreateJob(ctx, &CreateJobInput{URL: srv.URL + "/b", RoutingKey: "us_east", SizeMB: int64Ptr(10)})
	require.NoError(t, err)

	jobs, err := svc.ListJobs(ctx, interfaces.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
	assert.Len(t, jobs[0].SubJobs, 4)
}

func TestGetJobNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, interfaces.ErrNotFound)
}

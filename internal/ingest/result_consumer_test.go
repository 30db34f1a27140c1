package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/models"
)

func TestResultIsAppended(t *testing.T) {
	store := newTestStorage(t)
	consumer := NewResultConsumer(store, common.GetLogger())
	ctx := context.Background()

	msg := models.WorkerResultMessage{
		JobID: "job-1",
		Result: models.WorkerResult{
			WorkerName: "w1",
			SubJobID:   "sub-1",
			IsSuccess:  true,
			Download:   json.RawMessage(`{"bytes_per_sec": 1048576}`),
		},
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, consumer.Handle(ctx, body))

	rows, err := store.WorkerData().BySubJob(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "w1", rows[0].WorkerName)
	assert.True(t, rows[0].IsSuccess)
	assert.JSONEq(t, `{"bytes_per_sec": 1048576}`, string(rows[0].Download))
}

func TestDuplicateResultsCountOnce(t *testing.T) {
	store := newTestStorage(t)
	consumer := NewResultConsumer(store, common.GetLogger())
	ctx := context.Background()

	msg := models.WorkerResultMessage{
		JobID:  "job-1",
		Result: models.WorkerResult{WorkerName: "w1", SubJobID: "sub-1", IsSuccess: true},
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, consumer.Handle(ctx, body))
	require.NoError(t, consumer.Handle(ctx, body))

	count, err := store.WorkerData().CountDistinctWorkers(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResultWithoutSubJobIsDropped(t *testing.T) {
	store := newTestStorage(t)
	consumer := NewResultConsumer(store, common.GetLogger())
	ctx := context.Background()

	body, err := json.Marshal(models.WorkerResultMessage{JobID: "job-1"})
	require.NoError(t, err)
	require.NoError(t, consumer.Handle(ctx, body))

	count, err := store.WorkerData().CountDistinctWorkers(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

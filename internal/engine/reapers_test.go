package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/models"
)

func TestDescalerReapsOverdueServices(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	logger := common.GetLogger()

	overdue := f.seedService(t, "us_east")
	fresh := f.seedService(t, "europe")
	require.NoError(t, f.storage.Services().SetDescaleDeadlines(ctx, []string{overdue.ID}, time.Now().Add(-time.Minute)))
	require.NoError(t, f.storage.Services().SetDescaleDeadlines(ctx, []string{fresh.ID}, time.Now().Add(time.Hour)))

	descaler := NewDescaler(f.storage, &fakeRegistry{scaler: f.scaler}, logger)
	descaler.Reap(ctx)

	require.Len(t, f.scaler.downCalls, 1)
	assert.Equal(t, math.MaxInt32, f.scaler.downCalls[0])

	reaped, err := f.storage.Services().Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Nil(t, reaped.DescaleAt)

	kept, err := f.storage.Services().Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept.DescaleAt)
}

func TestDescalerKeepsDeadlineOnScalerError(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	service := f.seedService(t, "us_east")
	require.NoError(t, f.storage.Services().SetDescaleDeadlines(ctx, []string{service.ID}, time.Now().Add(-time.Minute)))
	f.scaler.err = assert.AnError

	descaler := NewDescaler(f.storage, &fakeRegistry{scaler: f.scaler}, common.GetLogger())
	descaler.Reap(ctx)

	// The deadline survives so the next pass retries.
	updated, err := f.storage.Services().Get(ctx, service.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.DescaleAt)
}

func TestLivenessReaperMarksStaleWorkersOffline(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-5 * time.Minute)
	require.NoError(t, f.storage.Workers().UpsertLifecycle(ctx, "w-stale", models.WorkerOnline, []string{"us_east"}, stale))
	require.NoError(t, f.storage.Workers().UpsertLifecycle(ctx, "w-live", models.WorkerOnline, []string{"us_east"}, time.Now().UTC()))

	reaper := NewLivenessReaper(f.storage, time.Minute, common.GetLogger())
	reaper.Reap(ctx)

	staleWorker, err := f.storage.Workers().Get(ctx, "w-stale")
	require.NoError(t, err)
	assert.Equal(t, models.WorkerOffline, staleWorker.Status)
	// Topic bindings survive the reaper; only an explicit offline lifecycle
	// message removes them.
	assert.Equal(t, []string{"us_east"}, staleWorker.Topics)

	liveWorker, err := f.storage.Workers().Get(ctx, "w-live")
	require.NoError(t, err)
	assert.Equal(t, models.WorkerOnline, liveWorker.Status)
}

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/models"
)

func TestEnabledByTopicFiltersDisabledAndUnbound(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	bound := models.NewService("svc-east", models.ProviderLocalContainer, models.ServiceDetails{}, []string{"us_east"})
	require.NoError(t, store.Services().Save(ctx, bound))

	disabled := models.NewService("svc-disabled", models.ProviderLocalContainer, models.ServiceDetails{}, []string{"us_east"})
	disabled.IsEnabled = false
	require.NoError(t, store.Services().Save(ctx, disabled))

	other := models.NewService("svc-europe", models.ProviderLocalContainer, models.ServiceDetails{}, []string{"europe"})
	require.NoError(t, store.Services().Save(ctx, other))

	services, err := store.Services().EnabledByTopic(ctx, "us_east")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, bound.ID, services[0].ID)
}

func TestSetDescaleDeadlinesOnlyExtends(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	service := models.NewService("svc", models.ProviderLocalContainer, models.ServiceDetails{}, []string{"us_east"})
	require.NoError(t, store.Services().Save(ctx, service))

	later := time.Now().UTC().Add(time.Hour)
	earlier := later.Add(-30 * time.Minute)

	require.NoError(t, store.Services().SetDescaleDeadlines(ctx, []string{service.ID}, later))
	require.NoError(t, store.Services().SetDescaleDeadlines(ctx, []string{service.ID}, earlier))

	got, err := store.Services().Get(ctx, service.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DescaleAt)
	assert.True(t, got.DescaleAt.Equal(later))

	// A newer deadline does move it forward.
	latest := later.Add(time.Hour)
	require.NoError(t, store.Services().SetDescaleDeadlines(ctx, []string{service.ID}, latest))
	got, err = store.Services().Get(ctx, service.ID)
	require.NoError(t, err)
	assert.True(t, got.DescaleAt.Equal(latest))
}

func TestDescaleDueSelectsOverdueOnly(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := models.NewService("svc-overdue", models.ProviderLocalContainer, models.ServiceDetails{}, []string{"us_east"})
	require.NoError(t, store.Services().Save(ctx, overdue))
	require.NoError(t, store.Services().SetDescaleDeadlines(ctx, []string{overdue.ID}, now.Add(-time.Minute)))

	pending := models.NewService("svc-pending", models.ProviderLocalContainer, models.ServiceDetails{}, []string{"us_east"})
	require.NoError(t, store.Services().Save(ctx, pending))
	require.NoError(t, store.Services().SetDescaleDeadlines(ctx, []string{pending.ID}, now.Add(time.Hour)))

	idle := models.NewService("svc-idle", models.ProviderLocalContainer, models.ServiceDetails{}, []string{"us_east"})
	require.NoError(t, store.Services().Save(ctx, idle))

	due, err := store.Services().DescaleDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, overdue.ID, due[0].ID)

	require.NoError(t, store.Services().ClearDescaleDeadline(ctx, overdue.ID))
	due, err = store.Services().DescaleDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

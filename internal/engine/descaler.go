package engine

import (
	"context"
	"math"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/interfaces"
)

// Descaler is the cooldown reaper. Services whose descale deadline has
// passed are scaled back to zero instances and their deadline cleared.
type Descaler struct {
	storage interfaces.StorageManager
	scalers interfaces.ScalerRegistry
	logger  arbor.ILogger

	now func() time.Time
}

// NewDescaler creates the service cooldown reaper.
func NewDescaler(storage interfaces.StorageManager, scalers interfaces.ScalerRegistry, logger arbor.ILogger) *Descaler {
	return &Descaler{
		storage: storage,
		scalers: scalers,
		logger:  logger,
		now:     time.Now,
	}
}

// Reap performs a single pass: every overdue service is scaled to zero. Per
// service failures are logged and retried on the next pass.
func (d *Descaler) Reap(ctx context.Context) {
	services, err := d.storage.Services().DescaleDue(ctx, d.now().UTC())
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list services due for descale")
		return
	}

	for _, svc := range services {
		scaler, ok := d.scalers.Get(svc.ProviderType)
		if !ok {
			d.logger.Warn().Str("service", svc.Name).Str("provider", string(svc.ProviderType)).Msg("No scaler registered for service")
			continue
		}
		if err := scaler.ScaleDown(ctx, svc, math.MaxInt32); err != nil {
			d.logger.Warn().Err(err).Str("service", svc.Name).Msg("Failed to descale service")
			continue
		}
		if err := d.storage.Services().ClearDescaleDeadline(ctx, svc.ID); err != nil {
			d.logger.Warn().Err(err).Str("service", svc.Name).Msg("Failed to clear descale deadline")
			continue
		}
		d.logger.Info().Str("service", svc.Name).Msg("Service descaled to zero")
	}
}

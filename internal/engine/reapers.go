package engine

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
)

// Reapers runs the periodic maintenance passes on a shared cron scheduler:
// the service cooldown reaper and the worker liveness reaper.
type Reapers struct {
	cron     *cron.Cron
	descaler *Descaler
	liveness *LivenessReaper
	interval string
	logger   arbor.ILogger
}

// NewReapers wires the reapers onto a cron scheduler using the configured
// interval.
func NewReapers(descaler *Descaler, liveness *LivenessReaper, config *common.Config, logger arbor.ILogger) *Reapers {
	return &Reapers{
		cron:     cron.New(),
		descaler: descaler,
		liveness: liveness,
		interval: fmt.Sprintf("@every %s", config.ReaperIntervalDuration()),
		logger:   logger,
	}
}

// Start registers and starts the reaper schedules.
func (r *Reapers) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.interval, func() {
		r.descaler.Reap(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule service descaler: %w", err)
	}
	if _, err := r.cron.AddFunc(r.interval, func() {
		r.liveness.Reap(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule liveness reaper: %w", err)
	}

	r.cron.Start()
	r.logger.Info().Str("interval", r.interval).Msg("Reapers started")
	return nil
}

// Stop halts the schedules and waits for running passes to finish.
func (r *Reapers) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
}

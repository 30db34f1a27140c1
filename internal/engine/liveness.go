package engine

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/interfaces"
)

// LivenessReaper marks workers offline when their heartbeats stop. Topic
// bindings are kept so a worker that reconnects resumes where it was.
type LivenessReaper struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
	grace   time.Duration

	now func() time.Time
}

// NewLivenessReaper creates the worker liveness reaper.
func NewLivenessReaper(storage interfaces.StorageManager, grace time.Duration, logger arbor.ILogger) *LivenessReaper {
	return &LivenessReaper{
		storage: storage,
		logger:  logger,
		grace:   grace,
		now:     time.Now,
	}
}

// Reap performs a single pass over online workers whose last heartbeat is
// older than the grace period.
func (r *LivenessReaper) Reap(ctx context.Context) {
	cutoff := r.now().UTC().Add(-r.grace)
	stale, err := r.storage.Workers().StaleOnline(ctx, cutoff)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list stale workers")
		return
	}

	for _, name := range stale {
		if err := r.storage.Workers().SetOffline(ctx, name); err != nil {
			r.logger.Warn().Err(err).Str("worker", name).Msg("Failed to mark worker offline")
			continue
		}
		r.logger.Info().Str("worker", name).Msg("Worker marked offline after missed heartbeats")
	}
}

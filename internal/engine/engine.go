package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

const (
	// MaxJobWorkers caps how many workers a single job scales up in total.
	MaxJobWorkers = 10

	// ServiceDescaleDeadline is how long a service stays warm after its last
	// scaling step.
	ServiceDescaleDeadline = 1800 * time.Second

	// ScalingSubJobDeadline expires a scaling step five minutes before the
	// service cooldown would tear the fleet back down.
	ScalingSubJobDeadline = 1500 * time.Second

	// SyncDelay is the lead time workers get to receive a dispatch before the
	// synchronized start instant.
	SyncDelay = 1 * time.Second

	// DownloadDelay separates the synchronized start from the download start.
	DownloadDelay = 10 * time.Second

	// MaxDownloadDuration bounds a single benchmark download.
	MaxDownloadDuration = 60 * time.Second
)

// Engine drives the oldest unfinished sub-job forward by one transition per
// tick. It is the only component that moves sub-jobs out of created, and it
// shares pending/processing transitions with the status ingestor.
type Engine struct {
	storage   interfaces.StorageManager
	publisher interfaces.Publisher
	scalers   interfaces.ScalerRegistry
	logger    arbor.ILogger
	tick      time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	// now is swappable for tests.
	now func() time.Time
}

// New creates the sub-job engine.
func New(storage interfaces.StorageManager, publisher interfaces.Publisher, scalers interfaces.ScalerRegistry, config *common.Config, logger arbor.ILogger) *Engine {
	return &Engine{
		storage:   storage,
		publisher: publisher,
		scalers:   scalers,
		logger:    logger,
		tick:      config.EngineTick(),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the tick loop in the background.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()

		e.logger.Info().Str("tick", e.tick.String()).Msg("Sub-job engine started")
		for {
			select {
			case <-ctx.Done():
				e.logger.Info().Msg("Sub-job engine stopped")
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

// Tick advances the oldest unfinished sub-job by one transition.
func (e *Engine) Tick(ctx context.Context) {
	subJob, err := e.storage.SubJobs().FirstUnfinished(ctx)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			e.logger.Warn().Err(err).Msg("Failed to fetch next sub-job")
		}
		return
	}

	job, err := e.storage.Jobs().Get(ctx, subJob.JobID)
	if err != nil {
		e.logger.Warn().Err(err).Str("job_id", subJob.JobID).Msg("Failed to load parent job")
		return
	}

	switch subJob.Type {
	case models.SubJobTypeScaling:
		err = e.processScaling(ctx, job, subJob)
	case models.SubJobTypeCombinedDHP:
		err = e.processCombinedDHP(ctx, job, subJob)
	default:
		err = Fail("Unknown sub-job type")
	}

	e.resolve(ctx, subJob, err)
}

// resolve applies the handler outcome: terminal errors fail the sub-job with
// the reason embedded, everything else is logged and retried next tick.
func (e *Engine) resolve(ctx context.Context, subJob *models.SubJob, err error) {
	if err == nil {
		return
	}

	var skip *SkipError
	if errors.As(err, &skip) {
		e.logger.Debug().Str("sub_job_id", subJob.ID).Str("reason", skip.Reason).Msg("Sub-job skipped")
		return
	}

	var terminal *TerminalError
	if errors.As(err, &terminal) {
		e.logger.Warn().Str("sub_job_id", subJob.ID).Str("reason", terminal.Reason).Msg("Sub-job failed")
		if failErr := e.storage.SubJobs().FailWithError(ctx, subJob.ID, terminal.Reason); failErr != nil {
			e.logger.Warn().Err(failErr).Str("sub_job_id", subJob.ID).Msg("Failed to persist sub-job failure")
		}
		return
	}

	e.logger.Warn().Err(err).Str("sub_job_id", subJob.ID).Msg("Sub-job handler error")
}

// checkDeadline fails the sub-job once its deadline has passed. A sub-job in
// a deadline-bearing state without a deadline is corrupt and fails too.
func (e *Engine) checkDeadline(subJob *models.SubJob) error {
	if subJob.DeadlineAt == nil {
		return Fail("No deadline")
	}
	if e.now().After(*subJob.DeadlineAt) {
		return Fail("Deadline passed")
	}
	return nil
}

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// StatusConsumer applies worker status messages to storage. A returned error
// leaves the delivery unacked so the bus redelivers it; every mutation is
// idempotent under redelivery.
type StatusConsumer struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewStatusConsumer creates the status message handler.
func NewStatusConsumer(storage interfaces.StorageManager, logger arbor.ILogger) *StatusConsumer {
	return &StatusConsumer{
		storage: storage,
		logger:  logger,
	}
}

// Handle processes one status message body.
func (c *StatusConsumer) Handle(ctx context.Context, body []byte) error {
	var msg models.WorkerStatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// A malformed message never becomes parseable, drop it.
		c.logger.Warn().Err(err).Msg("Dropping malformed status message")
		return nil
	}
	if msg.WorkerName == "" {
		c.logger.Warn().Msg("Dropping status message without worker name")
		return nil
	}

	switch msg.Kind {
	case models.StatusKindLifecycle:
		return c.handleLifecycle(ctx, &msg)
	case models.StatusKindJob:
		return c.handleJob(ctx, &msg)
	case models.StatusKindHeartbeat:
		return c.handleHeartbeat(ctx, &msg)
	default:
		c.logger.Warn().Str("kind", string(msg.Kind)).Msg("Dropping status message of unknown kind")
		return nil
	}
}

func (c *StatusConsumer) handleLifecycle(ctx context.Context, msg *models.WorkerStatusMessage) error {
	if msg.WorkerStatus != models.WorkerOnline && msg.WorkerStatus != models.WorkerOffline {
		c.logger.Warn().Str("worker", msg.WorkerName).Str("status", string(msg.WorkerStatus)).Msg("Dropping lifecycle message with invalid status")
		return nil
	}

	if err := c.storage.Workers().UpsertLifecycle(ctx, msg.WorkerName, msg.WorkerStatus, msg.WorkerTopics, msg.Timestamp); err != nil {
		return fmt.Errorf("failed to apply lifecycle for %s: %w", msg.WorkerName, err)
	}

	c.logger.Info().
		Str("worker", msg.WorkerName).
		Str("status", string(msg.WorkerStatus)).
		Msg("Worker lifecycle updated")
	return nil
}

func (c *StatusConsumer) handleJob(ctx context.Context, msg *models.WorkerStatusMessage) error {
	jobID := ""
	if msg.JobDetails != nil {
		jobID = msg.JobDetails.JobID
	}

	if err := c.storage.Workers().UpdateJob(ctx, msg.WorkerName, jobID, msg.Timestamp); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			// A binding for a worker we never saw online; the lifecycle
			// message will arrive eventually.
			c.logger.Warn().Str("worker", msg.WorkerName).Msg("Dropping job binding for unknown worker")
			return nil
		}
		return fmt.Errorf("failed to update worker job for %s: %w", msg.WorkerName, err)
	}

	if msg.JobDetails != nil && msg.JobDetails.SubJobID != "" {
		if err := c.markSubJobProcessing(ctx, msg.JobDetails.SubJobID); err != nil {
			return err
		}
	}
	return nil
}

// markSubJobProcessing moves a dispatched sub-job to processing. Only the
// pending state advances; late or duplicate bindings on a finished sub-job
// are no-ops.
func (c *StatusConsumer) markSubJobProcessing(ctx context.Context, subJobID string) error {
	subJob, err := c.storage.SubJobs().Get(ctx, subJobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			c.logger.Warn().Str("sub_job_id", subJobID).Msg("Dropping binding for unknown sub-job")
			return nil
		}
		return fmt.Errorf("failed to load sub-job %s: %w", subJobID, err)
	}
	if subJob.Status != models.SubJobStatusPending {
		return nil
	}

	if err := c.storage.SubJobs().UpdateStatus(ctx, subJobID, models.SubJobStatusProcessing); err != nil {
		return fmt.Errorf("failed to mark sub-job %s processing: %w", subJobID, err)
	}
	c.logger.Debug().Str("sub_job_id", subJobID).Msg("Sub-job picked up by worker")
	return nil
}

func (c *StatusConsumer) handleHeartbeat(ctx context.Context, msg *models.WorkerStatusMessage) error {
	if err := c.storage.Workers().Heartbeat(ctx, msg.WorkerName, msg.Timestamp); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			c.logger.Debug().Str("worker", msg.WorkerName).Msg("Dropping heartbeat for unknown worker")
			return nil
		}
		return fmt.Errorf("failed to apply heartbeat for %s: %w", msg.WorkerName, err)
	}
	return nil
}

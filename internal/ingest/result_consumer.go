package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// ResultConsumer appends worker benchmark results to storage. Acknowledgement
// follows persistence, so a crash mid-handle redelivers the result.
type ResultConsumer struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewResultConsumer creates the result message handler.
func NewResultConsumer(storage interfaces.StorageManager, logger arbor.ILogger) *ResultConsumer {
	return &ResultConsumer{
		storage: storage,
		logger:  logger,
	}
}

// Handle processes one result message body.
func (c *ResultConsumer) Handle(ctx context.Context, body []byte) error {
	var msg models.WorkerResultMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("Dropping malformed result message")
		return nil
	}
	if msg.Result.SubJobID == "" || msg.Result.WorkerName == "" {
		c.logger.Warn().Str("job_id", msg.JobID).Msg("Dropping result without sub-job or worker name")
		return nil
	}

	data := models.NewWorkerData(&msg.Result)
	if err := c.storage.WorkerData().Append(ctx, data); err != nil {
		return fmt.Errorf("failed to store result from %s: %w", msg.Result.WorkerName, err)
	}

	c.logger.Info().
		Str("worker", msg.Result.WorkerName).
		Str("sub_job_id", msg.Result.SubJobID).
		Bool("success", msg.Result.IsSuccess).
		Msg("Worker result stored")
	return nil
}

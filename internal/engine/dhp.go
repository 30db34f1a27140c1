package engine

import (
	"context"
	"sort"

	"github.com/ternarybob/fleetbench/internal/models"
)

func (e *Engine) processCombinedDHP(ctx context.Context, job *models.Job, subJob *models.SubJob) error {
	switch subJob.Status {
	case models.SubJobStatusCreated:
		return e.dhpCreated(ctx, job, subJob)
	case models.SubJobStatusPending:
		return e.checkDeadline(subJob)
	case models.SubJobStatusProcessing:
		return e.dhpProcessing(ctx, subJob)
	default:
		return nil
	}
}

func (e *Engine) dhpCreated(ctx context.Context, job *models.Job, subJob *models.SubJob) error {
	online, err := e.onlineWorkersForJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(online) == 0 {
		return Fail("No workers online")
	}

	excluded, workersCount := partition(online, subJob.Details.Partial)
	if workersCount == 0 {
		return Fail("No workers left after exclusion")
	}

	if err := e.storage.SubJobs().SetWorkersCount(ctx, subJob.ID, workersCount); err != nil {
		return Skip(err.Error())
	}

	startTime := e.now().Add(SyncDelay)
	downloadStartTime := startTime.Add(DownloadDelay)

	message := &models.WorkerJobMessage{
		JobID: job.ID,
		Payload: models.WorkerJobPayload{
			JobID:             job.ID,
			SubJobID:          subJob.ID,
			URL:               job.URL,
			StartTime:         startTime,
			DownloadStartTime: downloadStartTime,
			StartRange:        job.Details.StartRange,
			EndRange:          job.Details.EndRange,
			ExcludedWorkers:   excluded,
		},
	}
	if err := e.publisher.Publish(ctx, job.RoutingKey, message); err != nil {
		e.logger.Warn().Err(err).Str("sub_job_id", subJob.ID).Msg("Failed to publish job message")
		return Skip("Failed to publish job message")
	}

	deadline := downloadStartTime.Add(2 * MaxDownloadDuration)
	if err := e.storage.SubJobs().UpdateStatusDeadline(ctx, subJob.ID, models.SubJobStatusPending, deadline); err != nil {
		return Fail(err.Error())
	}
	return nil
}

func (e *Engine) dhpProcessing(ctx context.Context, subJob *models.SubJob) error {
	if err := e.checkDeadline(subJob); err != nil {
		return err
	}

	workersCount := subJob.Details.WorkersCount
	if workersCount <= 0 {
		return Fail("missing workers count")
	}

	reported, err := e.storage.WorkerData().CountDistinctWorkers(ctx, subJob.ID)
	if err != nil {
		return Skip(err.Error())
	}
	if reported < workersCount {
		return nil
	}

	if err := e.storage.SubJobs().UpdateStatus(ctx, subJob.ID, models.SubJobStatusCompleted); err != nil {
		return Skip(err.Error())
	}

	remaining, err := e.storage.SubJobs().CountUnfinished(ctx, subJob.JobID, models.SubJobTypeCombinedDHP)
	if err != nil {
		return Skip(err.Error())
	}
	if remaining == 0 {
		e.logger.Info().Str("job_id", subJob.JobID).Msg("All benchmark sub-jobs completed")
		if err := e.storage.Jobs().UpdateStatus(ctx, subJob.JobID, models.JobStatusCompleted); err != nil {
			return Skip(err.Error())
		}
	}
	return nil
}

// onlineWorkersForJob resolves the topic through the job's scaling sub-job
// and returns the online worker names sorted for deterministic selection.
func (e *Engine) onlineWorkersForJob(ctx context.Context, jobID string) ([]string, error) {
	scalingSub, err := e.storage.SubJobs().GetByJobAndType(ctx, jobID, models.SubJobTypeScaling)
	if err != nil {
		return nil, Skip(err.Error())
	}
	if scalingSub.Details.Topic == "" {
		return nil, Fail("missing service topic")
	}

	online, err := e.storage.Workers().OnlineByTopic(ctx, scalingSub.Details.Topic)
	if err != nil {
		return nil, Skip(err.Error())
	}
	sort.Strings(online)
	return online, nil
}

// partition applies the partial percentage: partial is the share of online
// workers that should run the sub-job. The first excludeCount names of the
// sorted list sit out, so the same subset is chosen across restarts.
func partition(online []string, partial int) (excluded []string, workersCount int) {
	if partial <= 0 || partial >= 100 {
		return nil, len(online)
	}

	excludeCount := len(online) * (100 - partial) / 100
	if excludeCount >= len(online) {
		return nil, len(online)
	}
	return online[:excludeCount], len(online) - excludeCount
}

package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/fleetbench/internal/models"
)

// scalingPlan is the shared computation of the created and processing
// transitions: which services carry the topic, who is online, and how many
// workers the job needs in total.
type scalingPlan struct {
	services      []*models.Service
	workersOnline []string
	workersCount  int
	scaleEachBy   int
}

func (e *Engine) processScaling(ctx context.Context, job *models.Job, subJob *models.SubJob) error {
	switch subJob.Status {
	case models.SubJobStatusCreated:
		return e.scalingCreated(ctx, job, subJob)
	case models.SubJobStatusPending:
		return Fail("Invalid pending state")
	case models.SubJobStatusProcessing:
		return e.scalingProcessing(ctx, subJob)
	default:
		return Fail("Invalid and unexpected status")
	}
}

func (e *Engine) scalingCreated(ctx context.Context, job *models.Job, subJob *models.SubJob) error {
	plan, err := e.buildScalingPlan(ctx, subJob)
	if err != nil {
		return err
	}

	if err := e.storage.Jobs().SetWorkersCount(ctx, job.ID, plan.workersCount); err != nil {
		return Skip(err.Error())
	}

	ids := make([]string, len(plan.services))
	for i, svc := range plan.services {
		ids[i] = svc.ID
	}
	descaleAt := e.now().Add(ServiceDescaleDeadline)
	if err := e.storage.Services().SetDescaleDeadlines(ctx, ids, descaleAt); err != nil {
		return Skip(err.Error())
	}

	// The fleet is already warm, no scaling needed for this job.
	if len(plan.workersOnline) >= plan.workersCount {
		if err := e.storage.SubJobs().UpdateStatus(ctx, subJob.ID, models.SubJobStatusCanceled); err != nil {
			return Skip(err.Error())
		}
		return nil
	}

	for _, svc := range plan.services {
		scaler, ok := e.scalers.Get(svc.ProviderType)
		if !ok {
			return Skip(fmt.Sprintf("no scaler registered for provider %s", svc.ProviderType))
		}
		if err := scaler.ScaleUp(ctx, svc, plan.scaleEachBy); err != nil {
			return Skip(err.Error())
		}
	}

	deadline := e.now().Add(ScalingSubJobDeadline)
	if err := e.storage.SubJobs().UpdateStatusDeadline(ctx, subJob.ID, models.SubJobStatusProcessing, deadline); err != nil {
		return Skip(err.Error())
	}
	return nil
}

func (e *Engine) scalingProcessing(ctx context.Context, subJob *models.SubJob) error {
	if err := e.checkDeadline(subJob); err != nil {
		return err
	}

	plan, err := e.buildScalingPlan(ctx, subJob)
	if err != nil {
		return err
	}

	if len(plan.workersOnline) >= plan.workersCount {
		if err := e.storage.SubJobs().UpdateStatus(ctx, subJob.ID, models.SubJobStatusCompleted); err != nil {
			return Skip(err.Error())
		}
	}
	return nil
}

func (e *Engine) buildScalingPlan(ctx context.Context, subJob *models.SubJob) (*scalingPlan, error) {
	topic := subJob.Details.Topic
	if topic == "" {
		return nil, Fail("missing service topic")
	}

	services, err := e.storage.Services().EnabledByTopic(ctx, topic)
	if err != nil {
		return nil, Fail(err.Error())
	}
	if len(services) == 0 {
		return nil, Fail("No services found")
	}

	online, err := e.storage.Workers().OnlineByTopic(ctx, topic)
	if err != nil {
		return nil, Skip(err.Error())
	}

	scaleEachBy := (MaxJobWorkers + len(services) - 1) / len(services)
	return &scalingPlan{
		services:      services,
		workersOnline: online,
		workersCount:  scaleEachBy * len(services),
		scaleEachBy:   scaleEachBy,
	}, nil
}

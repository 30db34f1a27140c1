package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// ErrValidation wraps request validation failures so the HTTP layer can map
// them to 400 responses.
var ErrValidation = errors.New("validation failed")

// CreateJobInput is the job submission payload. Absent numeric fields take
// their defaults and out-of-range values are clamped.
type CreateJobInput struct {
	URL           string `json:"url" validate:"required,url"`
	RoutingKey    string `json:"routing_key" validate:"required"`
	WorkerCount   *int   `json:"worker_count,omitempty" validate:"omitempty,min=1,max=40"`
	Entity        string `json:"entity,omitempty"`
	Note          string `json:"note,omitempty"`
	SizeMB        *int64 `json:"size_mb,omitempty" validate:"omitempty,min=10,max=1024"`
	LogIntervalMs *int   `json:"log_interval_ms,omitempty" validate:"omitempty,min=100,max=1000"`
}

const (
	defaultWorkerCount   = 10
	defaultSizeMB        = 100
	defaultLogIntervalMs = 1000
)

// Service creates and cancels jobs and assembles the read shapes for the
// HTTP layer.
type Service struct {
	storage  interfaces.StorageManager
	client   *http.Client
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates the job orchestrator.
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		client:   &http.Client{Timeout: 30 * time.Second},
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateJob validates the input, probes the target file and persists the job
// with its pipeline: one scaling step followed by three benchmark steps.
func (s *Service) CreateJob(ctx context.Context, input *CreateJobInput) (*models.JobWithSubJobs, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	parsed, err := url.Parse(input.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: URL scheme must be http or https", ErrValidation)
	}

	workerCount := defaultWorkerCount
	if input.WorkerCount != nil {
		workerCount = *input.WorkerCount
	}
	sizeMB := int64(defaultSizeMB)
	if input.SizeMB != nil {
		sizeMB = *input.SizeMB
	}
	logIntervalMs := defaultLogIntervalMs
	if input.LogIntervalMs != nil {
		logIntervalMs = *input.LogIntervalMs
	}

	startRange, endRange, err := s.pickFileRange(ctx, input.URL, sizeMB)
	if err != nil {
		return nil, err
	}

	job := models.NewJob(input.URL, input.RoutingKey, models.JobDetails{
		StartRange:        startRange,
		EndRange:          endRange,
		TargetWorkerCount: workerCount,
		Entity:            input.Entity,
		Note:              input.Note,
		LogIntervalMs:     logIntervalMs,
		SizeMB:            sizeMB,
	})
	if err := s.storage.Jobs().Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Creation order is pipeline order: the scaling step must carry the
	// earliest created_at of the job.
	pipeline := []*models.SubJob{
		models.NewSubJob(job.ID, models.SubJobTypeScaling, models.SubJobDetails{Topic: job.RoutingKey}),
		models.NewSubJob(job.ID, models.SubJobTypeCombinedDHP, models.SubJobDetails{Partial: 1}),
		models.NewSubJob(job.ID, models.SubJobTypeCombinedDHP, models.SubJobDetails{Partial: 80}),
		models.NewSubJob(job.ID, models.SubJobTypeCombinedDHP, models.SubJobDetails{}),
	}
	for _, subJob := range pipeline {
		if err := s.storage.SubJobs().Save(ctx, subJob); err != nil {
			return nil, fmt.Errorf("failed to create sub-job: %w", err)
		}
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("routing_key", job.RoutingKey).
		Int64("size_mb", sizeMB).
		Msg("Job created")

	return &models.JobWithSubJobs{Job: *job, SubJobs: pipeline}, nil
}

// pickFileRange issues a HEAD request against the target and chooses a random
// byte window of the requested size inside the file.
func (s *Service) pickFileRange(ctx context.Context, target string, sizeMB int64) (int64, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid URL: %s", ErrValidation, err.Error())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: failed to execute HEAD request: %s", ErrValidation, err.Error())
	}
	defer resp.Body.Close()

	header := resp.Header.Get("Content-Length")
	if header == "" {
		return 0, 0, fmt.Errorf("%w: Content-Length header is missing in the response", ErrValidation)
	}
	contentLength, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: failed to parse Content-Length header: %s", ErrValidation, err.Error())
	}

	size := sizeMB * 1024 * 1024
	if contentLength < size {
		return 0, 0, fmt.Errorf("%w: file size is less than %d MB", ErrValidation, sizeMB)
	}

	startRange := rand.Int63n(contentLength - size)
	endRange := startRange + size
	return startRange, endRange, nil
}

// CancelJob cancels a job and every sub-job of it that has not already
// finished.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.storage.Jobs().Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job is already %s", ErrValidation, job.Status)
	}

	if err := s.storage.Jobs().UpdateStatus(ctx, jobID, models.JobStatusCanceled); err != nil {
		return err
	}
	if err := s.storage.SubJobs().CancelByJob(ctx, jobID); err != nil {
		return err
	}

	s.logger.Info().Str("job_id", jobID).Msg("Job canceled")
	return nil
}

// GetJob returns a job with its sub-jobs and their per-worker benchmark rows.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.JobWithSubJobsAndData, error) {
	job, err := s.storage.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	subJobs, err := s.storage.SubJobs().ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	detailed := make([]*models.SubJobWithData, len(subJobs))
	for i, subJob := range subJobs {
		data, err := s.storage.WorkerData().BySubJob(ctx, subJob.ID)
		if err != nil {
			return nil, err
		}
		detailed[i] = &models.SubJobWithData{SubJob: *subJob, WorkerData: data}
	}
	return &models.JobWithSubJobsAndData{Job: *job, SubJobs: detailed}, nil
}

// ListJobs returns jobs newest first, each with its sub-jobs.
func (s *Service) ListJobs(ctx context.Context, opts interfaces.ListOptions) ([]*models.JobWithSubJobs, error) {
	jobs, err := s.storage.Jobs().List(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := make([]*models.JobWithSubJobs, len(jobs))
	for i, job := range jobs {
		subJobs, err := s.storage.SubJobs().ListByJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		result[i] = &models.JobWithSubJobs{Job: *job, SubJobs: subJobs}
	}
	return result, nil
}

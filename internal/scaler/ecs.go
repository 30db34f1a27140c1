package scaler

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// ECSScaler drives the desired count of an ECS service. Clients are cached
// per region and API calls are paced to stay clear of the ECS rate limits.
type ECSScaler struct {
	logger  arbor.ILogger
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[string]*ecs.Client
}

// NewECSScaler creates a scaler for cloud container services.
func NewECSScaler(logger arbor.ILogger) interfaces.ServiceScaler {
	return &ECSScaler{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		clients: make(map[string]*ecs.Client),
	}
}

func (e *ECSScaler) ScaleUp(ctx context.Context, service *models.Service, amount int) error {
	info, err := e.describe(ctx, service)
	if err != nil {
		return err
	}
	current := 0
	if info.DesiredCount != nil {
		current = *info.DesiredCount
	}
	target := current + amount
	if target == current {
		return nil
	}
	return e.updateDesired(ctx, service, target)
}

func (e *ECSScaler) ScaleDown(ctx context.Context, service *models.Service, amount int) error {
	info, err := e.describe(ctx, service)
	if err != nil {
		return err
	}
	current := 0
	if info.DesiredCount != nil {
		current = *info.DesiredCount
	}
	target := current - amount
	if target < 0 {
		target = 0
	}
	if target == current {
		return nil
	}
	return e.updateDesired(ctx, service, target)
}

func (e *ECSScaler) GetInfo(ctx context.Context, service *models.Service) (*interfaces.ServiceScalerInfo, error) {
	return e.describe(ctx, service)
}

func (e *ECSScaler) client(ctx context.Context, region string) (*ecs.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if client, ok := e.clients[region]; ok {
		return client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := ecs.NewFromConfig(cfg)
	e.clients[region] = client
	return client, nil
}

func (e *ECSScaler) describe(ctx context.Context, service *models.Service) (*interfaces.ServiceScalerInfo, error) {
	if service.Details.Region == "" || service.Details.Cluster == "" {
		return nil, fmt.Errorf("service %s is missing region or cluster", service.Name)
	}
	client, err := e.client(ctx, service.Details.Region)
	if err != nil {
		return nil, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(service.Details.Cluster),
		Services: []string{service.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeServices failed for %s: %w", service.Name, err)
	}
	if len(out.Services) == 0 {
		return nil, fmt.Errorf("ECS service %s not found in cluster %s", service.Name, service.Details.Cluster)
	}

	svc := out.Services[0]
	desired := int(svc.DesiredCount)
	running := int(svc.RunningCount)
	pending := int(svc.PendingCount)
	return &interfaces.ServiceScalerInfo{
		Name:         service.Name,
		Instances:    running,
		DesiredCount: &desired,
		RunningCount: &running,
		PendingCount: &pending,
		ProviderType: models.ProviderCloudContainer,
	}, nil
}

func (e *ECSScaler) updateDesired(ctx context.Context, service *models.Service, desired int) error {
	client, err := e.client(ctx, service.Details.Region)
	if err != nil {
		return err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	e.logger.Info().
		Str("service", service.Name).
		Str("cluster", service.Details.Cluster).
		Int("desired", desired).
		Msg("Updating ECS desired count")

	_, err = client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(service.Details.Cluster),
		Service:      aws.String(service.Name),
		DesiredCount: aws.Int32(int32(desired)),
	})
	if err != nil {
		return fmt.Errorf("UpdateService failed for %s: %w", service.Name, err)
	}
	return nil
}

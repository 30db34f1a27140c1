package scaler

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// DockerScaler scales compose services by shelling out to the docker CLI.
// Instance counts come from counting containers carrying the compose service
// label.
type DockerScaler struct {
	logger arbor.ILogger
}

// NewDockerScaler creates a scaler for local compose services.
func NewDockerScaler(logger arbor.ILogger) interfaces.ServiceScaler {
	return &DockerScaler{logger: logger}
}

func (d *DockerScaler) ScaleUp(ctx context.Context, service *models.Service, amount int) error {
	current, err := d.instanceCount(ctx, service.Name)
	if err != nil {
		return err
	}
	target := current + amount
	if target == current {
		return nil
	}
	return d.scaleService(ctx, service.Name, target)
}

func (d *DockerScaler) ScaleDown(ctx context.Context, service *models.Service, amount int) error {
	current, err := d.instanceCount(ctx, service.Name)
	if err != nil {
		return err
	}
	target := current - amount
	if target < 0 {
		target = 0
	}
	if target == current {
		return nil
	}
	return d.scaleService(ctx, service.Name, target)
}

func (d *DockerScaler) GetInfo(ctx context.Context, service *models.Service) (*interfaces.ServiceScalerInfo, error) {
	count, err := d.instanceCount(ctx, service.Name)
	if err != nil {
		return nil, err
	}
	return &interfaces.ServiceScalerInfo{
		Name:         service.Name,
		Instances:    count,
		ProviderType: models.ProviderLocalContainer,
	}, nil
}

func (d *DockerScaler) instanceCount(ctx context.Context, serviceName string) (int, error) {
	cmd := exec.CommandContext(ctx, "docker", "ps",
		"--filter", fmt.Sprintf("label=com.docker.compose.service=%s", serviceName),
		"--format", "{{.ID}}")
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return 0, fmt.Errorf("docker ps failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("docker ps failed: %w", err)
	}

	count := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}

func (d *DockerScaler) scaleService(ctx context.Context, serviceName string, count int) error {
	d.logger.Info().Str("service", serviceName).Int("count", count).Msg("Scaling compose service")

	cmd := exec.CommandContext(ctx, "docker", "compose", "up", "-d",
		"--scale", fmt.Sprintf("%s=%d", serviceName, count), serviceName)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker compose scale failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

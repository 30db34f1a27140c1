package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
	"github.com/ternarybob/fleetbench/internal/storage/badger"
)

// fakePublisher records published messages.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

type publishedMessage struct {
	routingKey string
	message    any
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{routingKey: routingKey, message: message})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// fakeScaler records scale calls.
type fakeScaler struct {
	mu        sync.Mutex
	upCalls   []int
	downCalls []int
	err       error
}

func (s *fakeScaler) ScaleUp(ctx context.Context, service *models.Service, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.upCalls = append(s.upCalls, amount)
	return nil
}

func (s *fakeScaler) ScaleDown(ctx context.Context, service *models.Service, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.downCalls = append(s.downCalls, amount)
	return nil
}

func (s *fakeScaler) GetInfo(ctx context.Context, service *models.Service) (*interfaces.ServiceScalerInfo, error) {
	return &interfaces.ServiceScalerInfo{Name: service.Name, ProviderType: service.ProviderType}, nil
}

// fakeRegistry resolves every provider to the same fake scaler.
type fakeRegistry struct {
	scaler *fakeScaler
}

func (r *fakeRegistry) Get(provider models.ProviderType) (interfaces.ServiceScaler, bool) {
	if r.scaler == nil {
		return nil, false
	}
	return r.scaler, true
}

type engineFixture struct {
	engine    *Engine
	storage   interfaces.StorageManager
	publisher *fakePublisher
	scaler    *fakeScaler
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	logger := common.GetLogger()
	store, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	publisher := &fakePublisher{}
	scaler := &fakeScaler{}
	cfg := common.NewDefaultConfig()

	return &engineFixture{
		engine:    New(store, publisher, &fakeRegistry{scaler: scaler}, cfg, logger),
		storage:   store,
		publisher: publisher,
		scaler:    scaler,
	}
}

func (f *engineFixture) seedJob(t *testing.T, routingKey string) *models.Job {
	t.Helper()
	job := models.NewJob("http://example.com/file", routingKey, models.JobDetails{
		StartRange: 0,
		EndRange:   10 * 1024 * 1024,
		SizeMB:     10,
	})
	require.NoError(t, f.storage.Jobs().Save(context.Background(), job))
	return job
}

func (f *engineFixture) seedService(t *testing.T, topic string) *models.Service {
	t.Helper()
	service := models.NewService("workers-"+topic, models.ProviderLocalContainer, models.ServiceDetails{}, []string{topic})
	require.NoError(t, f.storage.Services().Save(context.Background(), service))
	return service
}

func (f *engineFixture) seedOnlineWorkers(t *testing.T, topic string, names ...string) {
	t.Helper()
	for i, name := range names {
		ts := time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, f.storage.Workers().UpsertLifecycle(context.Background(), name, models.WorkerOnline, []string{topic}, ts))
	}
}

func TestTickIsNoOpWithoutWork(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Tick(context.Background())
	require.Empty(t, f.publisher.messages)
	require.Empty(t, f.scaler.upCalls)
}

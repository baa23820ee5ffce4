package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// --- Mock AmbulanceRepository ---

type mockAmbulanceRepo struct {
	upsertFn           func(ctx context.Context, a *domain.Ambulance) (bool, error)
	getByIDFn          func(ctx context.Context, id string) (*domain.Ambulance, error)
	findWithinRadiusFn func(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Ambulance, error)
	listFn             func(ctx context.Context) ([]domain.Ambulance, error)
	updateLocationFn   func(ctx context.Context, id string, loc domain.GeoPoint) error
	deactivateFn       func(ctx context.Context, id string) error
}

func (m *mockAmbulanceRepo) Upsert(ctx context.Context, a *domain.Ambulance) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, a)
	}
	return true, nil
}

func (m *mockAmbulanceRepo) GetByID(ctx context.Context, id string) (*domain.Ambulance, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockAmbulanceRepo) FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Ambulance, error) {
	if m.findWithinRadiusFn != nil {
		return m.findWithinRadiusFn(ctx, center, radiusKm)
	}
	return nil, nil
}

func (m *mockAmbulanceRepo) List(ctx context.Context) ([]domain.Ambulance, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockAmbulanceRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	if m.updateLocationFn != nil {
		return m.updateLocationFn(ctx, id, loc)
	}
	return nil
}

func (m *mockAmbulanceRepo) Deactivate(ctx context.Context, id string) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// --- Mock NotificationGateway ---

type mockGateway struct {
	mu       sync.Mutex
	calls    []domain.Notification
	notifyFn func(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error)
}

func (m *mockGateway) Notify(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error) {
	m.mu.Lock()
	m.calls = append(m.calls, n)
	m.mu.Unlock()
	if m.notifyFn != nil {
		return m.notifyFn(ctx, n)
	}
	return domain.NotificationReceipt{Status: "queued", ProviderID: "CA-" + n.AmbulanceID}, nil
}

func (m *mockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	outcomes  []domain.CandidateOutcome
	completed []*domain.DispatchResult
	locations []*domain.LocationUpdate
}

func (m *mockPublisher) PublishCandidateOutcome(ctx context.Context, dispatchID string, outcome domain.CandidateOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func (m *mockPublisher) PublishDispatchCompleted(ctx context.Context, result *domain.DispatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, result)
	return nil
}

func (m *mockPublisher) PublishLocationUpdate(ctx context.Context, update *domain.LocationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, update)
	return nil
}

// --- Mock DispatchRepository ---

type mockDispatchRepo struct {
	mu    sync.Mutex
	saved map[string]*domain.DispatchResult
}

func (m *mockDispatchRepo) Save(ctx context.Context, result *domain.DispatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]*domain.DispatchResult)
	}
	m.saved[result.ID] = result
	return nil
}

func (m *mockDispatchRepo) GetByID(ctx context.Context, id string) (*domain.DispatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.saved[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func ptr(f float64) *float64 { return &f }

package ports

import (
	"context"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishCandidateOutcome(ctx context.Context, dispatchID string, outcome domain.CandidateOutcome) error
	PublishDispatchCompleted(ctx context.Context, result *domain.DispatchResult) error
	PublishLocationUpdate(ctx context.Context, update *domain.LocationUpdate) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeLocationUpdates(ctx context.Context, handler func(ctx context.Context, update *domain.LocationUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationGateway places calls, SMS or pushes to ambulance drivers.
// Retries, if any, are the gateway's own concern.
type NotificationGateway interface {
	Notify(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error)
}

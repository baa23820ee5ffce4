package ports

import (
	"context"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// AmbulanceRepository persists ambulances behind a geospatial index.
type AmbulanceRepository interface {
	// Upsert inserts a new ambulance or, when the vehicle number is already
	// registered, updates it in place and re-activates it. ID and timestamps
	// are filled in on return; created reports whether a row was inserted.
	Upsert(ctx context.Context, a *domain.Ambulance) (created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Ambulance, error)
	// FindWithinRadius returns active ambulances within radiusKm of center.
	// The result may include records slightly outside the radius; callers
	// needing exact distances must recompute them.
	FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Ambulance, error)
	List(ctx context.Context) ([]domain.Ambulance, error)
	UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error
	Deactivate(ctx context.Context, id string) error
}

// DispatchRepository keeps an audit trail of dispatch results.
type DispatchRepository interface {
	Save(ctx context.Context, result *domain.DispatchResult) error
	GetByID(ctx context.Context, id string) (*domain.DispatchResult, error)
}

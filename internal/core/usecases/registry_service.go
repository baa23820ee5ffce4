package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/core/ports"
	"github.com/samirrijal/rescuelink/internal/pkg/geospatial"
	"github.com/samirrijal/rescuelink/internal/pkg/metrics"
	"github.com/samirrijal/rescuelink/internal/pkg/validator"
)

const (
	cacheKeyAllAmbulances = "ambulances:all"
	cacheKeyAmbulancePfx  = "ambulances:id:"
)

// RegistryService owns ambulance registration and lookup.
type RegistryService struct {
	ambulances   ports.AmbulanceRepository
	cache        ports.CacheService
	publisher    ports.EventPublisher
	queryTimeout time.Duration
}

// NewRegistryService creates a new RegistryService. cache and publisher may be nil.
func NewRegistryService(ambulances ports.AmbulanceRepository, cache ports.CacheService, publisher ports.EventPublisher, queryTimeout time.Duration) *RegistryService {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &RegistryService{ambulances: ambulances, cache: cache, publisher: publisher, queryTimeout: queryTimeout}
}

// Register validates and stores an ambulance. A vehicle number that is already
// registered is updated in place; created is false in that case.
func (s *RegistryService) Register(ctx context.Context, req domain.RegisterAmbulanceRequest) (*domain.Ambulance, bool, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.VehicleNumber = strings.ToUpper(strings.TrimSpace(req.VehicleNumber))
	req.DriverName = strings.TrimSpace(req.DriverName)
	req.DriverContact = strings.TrimSpace(req.DriverContact)
	req.VehicleType = strings.ToLower(strings.TrimSpace(req.VehicleType))

	if err := validator.ValidateStruct(req); err != nil {
		return nil, false, err
	}

	amb := &domain.Ambulance{
		Name:          req.Name,
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
		DriverContact: req.DriverContact,
		VehicleType:   req.VehicleType,
		Location:      domain.GeoPoint{Lat: *req.Latitude, Lon: *req.Longitude},
		Active:        true,
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	created, err := s.ambulances.Upsert(ctx, amb)
	if err != nil {
		return nil, false, &domain.DatastoreError{Op: "register ambulance", Err: err}
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	metrics.AmbulanceRegistrations.WithLabelValues(outcome).Inc()

	s.invalidate(ctx, amb.ID)
	return amb, created, nil
}

// FindWithinRadius returns active ambulances within radiusKm of center.
func (s *RegistryService) FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Ambulance, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		return nil, domain.NewValidationError("radiusKm", "must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	ambulances, err := s.ambulances.FindWithinRadius(ctx, center, radiusKm)
	if err != nil {
		return nil, &domain.DatastoreError{Op: "find within radius", Err: err}
	}

	// The index may return a slightly larger circle than the 6371 km sphere.
	within := ambulances[:0]
	for _, a := range ambulances {
		if geospatial.HaversineKm(center.Lat, center.Lon, a.Location.Lat, a.Location.Lon) <= radiusKm {
			within = append(within, a)
		}
	}
	return within, nil
}

// ListAll returns every registered ambulance, including deactivated ones.
func (s *RegistryService) ListAll(ctx context.Context) ([]domain.Ambulance, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKeyAllAmbulances); err == nil {
			var ambulances []domain.Ambulance
			if err := json.Unmarshal(data, &ambulances); err == nil {
				metrics.CacheHits.WithLabelValues("ambulances_list").Inc()
				return ambulances, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("ambulances_list").Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	ambulances, err := s.ambulances.List(ctx)
	if err != nil {
		return nil, &domain.DatastoreError{Op: "list ambulances", Err: err}
	}

	// Locations move; keep the dashboard list short-lived.
	if s.cache != nil {
		if data, err := json.Marshal(ambulances); err == nil {
			_ = s.cache.Set(ctx, cacheKeyAllAmbulances, data, 30)
		}
	}

	return ambulances, nil
}

// Get returns a single ambulance or domain.ErrNotFound.
func (s *RegistryService) Get(ctx context.Context, id string) (*domain.Ambulance, error) {
	cacheKey := cacheKeyAmbulancePfx + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var amb domain.Ambulance
			if err := json.Unmarshal(data, &amb); err == nil {
				metrics.CacheHits.WithLabelValues("ambulance_get").Inc()
				return &amb, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("ambulance_get").Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	amb, err := s.ambulances.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, &domain.DatastoreError{Op: "get ambulance", Err: err}
	}

	if s.cache != nil {
		if data, err := json.Marshal(amb); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 30)
		}
	}

	return amb, nil
}

// UpdateLocation records a fresh position report for an ambulance.
func (s *RegistryService) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	if id == "" {
		return domain.NewValidationError("id", "is required")
	}
	if err := loc.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.ambulances.UpdateLocation(ctx, id, loc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.DatastoreError{Op: "update location", Err: err}
	}
	metrics.LocationUpdates.Inc()

	s.invalidate(ctx, id)
	return nil
}

// ReportLocation applies an update and fans it out to live dashboards.
func (s *RegistryService) ReportLocation(ctx context.Context, update *domain.LocationUpdate) error {
	if err := s.UpdateLocation(ctx, update.AmbulanceID, update.Location); err != nil {
		return err
	}
	if update.ReportedAt.IsZero() {
		update.ReportedAt = time.Now().UTC()
	}
	if s.publisher != nil {
		_ = s.publisher.PublishLocationUpdate(ctx, update)
	}
	return nil
}

// Deactivate hides an ambulance from the locator without deleting it.
func (s *RegistryService) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.ambulances.Deactivate(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.DatastoreError{Op: "deactivate ambulance", Err: err}
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *RegistryService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, cacheKeyAllAmbulances)
	if id != "" {
		_ = s.cache.Delete(ctx, cacheKeyAmbulancePfx+id)
	}
}

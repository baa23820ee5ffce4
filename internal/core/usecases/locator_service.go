package usecases

import (
	"context"
	"sort"

	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/pkg/geospatial"
)

// AmbulanceFinder is the registry read used by the locator.
type AmbulanceFinder interface {
	FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Ambulance, error)
}

// LocatorService turns a requester position into an ordered candidate list.
type LocatorService struct {
	registry AmbulanceFinder
}

// NewLocatorService creates a new LocatorService.
func NewLocatorService(registry AmbulanceFinder) *LocatorService {
	return &LocatorService{registry: registry}
}

// Locate returns active ambulances within radiusKm of center, nearest first.
// Distances are recomputed with haversine regardless of how the registry
// filtered, and equal distances are ordered by ambulance id. An empty result
// is not an error.
func (s *LocatorService) Locate(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Candidate, error) {
	ambulances, err := s.registry.FindWithinRadius(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(ambulances))
	for _, a := range ambulances {
		if !a.Active || !a.Location.Valid() {
			continue
		}
		d := geospatial.HaversineKm(center.Lat, center.Lon, a.Location.Lat, a.Location.Lon)
		if d > radiusKm {
			continue
		}
		candidates = append(candidates, domain.Candidate{Ambulance: a, DistanceKm: d})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].Ambulance.ID < candidates[j].Ambulance.ID
	})

	return candidates, nil
}

// Package memory provides in-process repositories for local development and
// tests. Ambulances are indexed in a uniform latitude/longitude grid so radius
// queries only visit the cells overlapping the search box.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/pkg/geospatial"
)

// DefaultCellDeg is the grid cell size in degrees (~5.5 km of latitude).
const DefaultCellDeg = 0.05

type cellKey struct {
	lat, lon int
}

// AmbulanceStore is a concurrency-safe AmbulanceRepository backed by a grid index.
type AmbulanceStore struct {
	mu        sync.RWMutex
	cellDeg   float64
	lonCells  int
	latCells  int
	byID      map[string]*domain.Ambulance
	byVehicle map[string]string
	cells     map[cellKey]map[string]struct{}
	now       func() time.Time
}

// NewAmbulanceStore creates an empty store. cellDeg <= 0 selects DefaultCellDeg.
func NewAmbulanceStore(cellDeg float64) *AmbulanceStore {
	if cellDeg <= 0 {
		cellDeg = DefaultCellDeg
	}
	return &AmbulanceStore{
		cellDeg:   cellDeg,
		lonCells:  int(math.Ceil(360 / cellDeg)),
		latCells:  int(math.Ceil(180 / cellDeg)),
		byID:      make(map[string]*domain.Ambulance),
		byVehicle: make(map[string]string),
		cells:     make(map[cellKey]map[string]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *AmbulanceStore) latIndex(lat float64) int {
	i := int(math.Floor((lat + 90) / s.cellDeg))
	if i < 0 {
		return 0
	}
	if i >= s.latCells {
		return s.latCells - 1
	}
	return i
}

func (s *AmbulanceStore) lonIndex(lon float64) int {
	i := int(math.Floor((lon + 180) / s.cellDeg))
	return ((i % s.lonCells) + s.lonCells) % s.lonCells
}

func (s *AmbulanceStore) keyFor(p domain.GeoPoint) cellKey {
	return cellKey{lat: s.latIndex(p.Lat), lon: s.lonIndex(p.Lon)}
}

func (s *AmbulanceStore) index(a *domain.Ambulance) {
	k := s.keyFor(a.Location)
	cell, ok := s.cells[k]
	if !ok {
		cell = make(map[string]struct{})
		s.cells[k] = cell
	}
	cell[a.ID] = struct{}{}
}

func (s *AmbulanceStore) unindex(a *domain.Ambulance) {
	k := s.keyFor(a.Location)
	if cell, ok := s.cells[k]; ok {
		delete(cell, a.ID)
		if len(cell) == 0 {
			delete(s.cells, k)
		}
	}
}

// Upsert inserts a new ambulance or replaces the one with the same vehicle number.
func (s *AmbulanceStore) Upsert(ctx context.Context, a *domain.Ambulance) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id, ok := s.byVehicle[a.VehicleNumber]; ok {
		existing := s.byID[id]
		s.unindex(existing)

		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = now
		a.Active = true

		stored := *a
		s.byID[id] = &stored
		s.index(&stored)
		return false, nil
	}

	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Active = true

	stored := *a
	s.byID[a.ID] = &stored
	s.byVehicle[a.VehicleNumber] = a.ID
	s.index(&stored)
	return true, nil
}

// GetByID returns a copy of the ambulance or domain.ErrNotFound.
func (s *AmbulanceStore) GetByID(ctx context.Context, id string) (*domain.Ambulance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *a
	return &out, nil
}

// FindWithinRadius scans only the grid cells covered by the radius bounding box.
func (s *AmbulanceStore) FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Ambulance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box := geospatial.BoundingBox(center.Lat, center.Lon, radiusKm)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Ambulance
	visit := func(k cellKey) {
		for id := range s.cells[k] {
			a := s.byID[id]
			if !a.Active {
				continue
			}
			if geospatial.HaversineKm(center.Lat, center.Lon, a.Location.Lat, a.Location.Lon) <= radiusKm {
				out = append(out, *a)
			}
		}
	}

	latLo, latHi := s.latIndex(box.MinLat), s.latIndex(box.MaxLat)
	spans := s.lonSpans(box)

	covered := 0
	for _, span := range spans {
		covered += (latHi - latLo + 1) * (span[1] - span[0] + 1)
	}

	if covered > len(s.cells) {
		// Sparse grid: walking occupied cells is cheaper than the box.
		for k := range s.cells {
			if k.lat >= latLo && k.lat <= latHi && inSpans(k.lon, spans) {
				visit(k)
			}
		}
	} else {
		for _, span := range spans {
			for li := latLo; li <= latHi; li++ {
				for lj := span[0]; lj <= span[1]; lj++ {
					visit(cellKey{lat: li, lon: lj})
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// lonSpans returns the inclusive longitude cell ranges a box covers; two
// ranges when it crosses the antimeridian.
func (s *AmbulanceStore) lonSpans(b geospatial.Box) [][2]int {
	if b.MinLon <= -180 && b.MaxLon >= 180 {
		return [][2]int{{0, s.lonCells - 1}}
	}
	if b.WrapsLon {
		return [][2]int{
			{s.lonIndex(b.MinLon), s.lonCells - 1},
			{0, s.lonIndex(b.MaxLon)},
		}
	}
	lo, hi := s.lonIndex(b.MinLon), s.lonIndex(b.MaxLon)
	if b.MaxLon >= 180 {
		// Longitude 180 shares cell 0 with -180.
		return [][2]int{{lo, s.lonCells - 1}, {0, 0}}
	}
	return [][2]int{{lo, hi}}
}

func inSpans(lon int, spans [][2]int) bool {
	for _, sp := range spans {
		if lon >= sp[0] && lon <= sp[1] {
			return true
		}
	}
	return false
}

// List returns every ambulance, active or not, ordered by name.
func (s *AmbulanceStore) List(ctx context.Context) ([]domain.Ambulance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Ambulance, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateLocation moves an ambulance to a new grid cell.
func (s *AmbulanceStore) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.unindex(a)
	a.Location = loc
	a.UpdatedAt = s.now()
	s.index(a)
	return nil
}

// Deactivate hides an ambulance from radius queries.
func (s *AmbulanceStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Active = false
	a.UpdatedAt = s.now()
	return nil
}

// Len reports how many ambulances are stored.
func (s *AmbulanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

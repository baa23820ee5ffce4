//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/rescuelink/internal/adapters/postgres"
	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/core/usecases"
	"github.com/samirrijal/rescuelink/internal/pkg/config"
	"github.com/samirrijal/rescuelink/internal/pkg/geospatial"
)

// setupTestDB connects to the database named by RESCUELINK_DATABASE_* and
// empties the tables the tests touch. Migrations must already be applied.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("rescuelink-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Pool.Exec(ctx, `TRUNCATE ambulances, dispatches`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func TestAmbulanceRepo_UpsertAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewAmbulanceRepo(db)
	ctx := context.Background()

	a := &domain.Ambulance{
		Name: "Bir Hospital 1", VehicleNumber: "BA-2-KHA-1111", DriverContact: "+9779800000001",
		Location: domain.GeoPoint{Lat: 27.7045, Lon: 85.3131},
	}
	created, err := repo.Upsert(ctx, a)
	if err != nil || !created {
		t.Fatalf("expected insert, got created=%v err=%v", created, err)
	}

	again := &domain.Ambulance{
		Name: "Bir Hospital 1", VehicleNumber: "BA-2-KHA-1111", DriverContact: "+9779800000002",
		Location: domain.GeoPoint{Lat: 27.7100, Lon: 85.3200},
	}
	created, err = repo.Upsert(ctx, again)
	if err != nil || created {
		t.Fatalf("expected update, got created=%v err=%v", created, err)
	}
	if again.ID != a.ID {
		t.Errorf("expected id to be kept: %s != %s", again.ID, a.ID)
	}

	got, err := repo.FindWithinRadius(ctx, domain.GeoPoint{Lat: 27.7100, Lon: 85.3200}, 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].DriverContact != "+9779800000002" {
		t.Fatalf("expected updated record, got %+v", got)
	}

	if err := repo.Deactivate(ctx, a.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, _ = repo.FindWithinRadius(ctx, domain.GeoPoint{Lat: 27.7100, Lon: 85.3200}, 1)
	if len(got) != 0 {
		t.Errorf("expected deactivated ambulance to be hidden")
	}
}

func TestAmbulanceRepo_FindWithinRadius_BoundaryIncluded(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewAmbulanceRepo(db)
	ctx := context.Background()

	center := domain.GeoPoint{Lat: 27.7172, Lon: 85.3240}
	kmPerDegLat := geospatial.EarthRadiusKm * math.Pi / 180
	edge := domain.GeoPoint{Lat: center.Lat + 5/kmPerDegLat, Lon: center.Lon}
	outside := domain.GeoPoint{Lat: center.Lat + 5.05/kmPerDegLat, Lon: center.Lon}

	for i, loc := range []domain.GeoPoint{edge, outside} {
		a := &domain.Ambulance{
			Name: "Edge", VehicleNumber: fmt.Sprintf("EDGE-%d", i), DriverContact: "+9779800000001",
			Location: loc,
		}
		if _, err := repo.Upsert(ctx, a); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	radius := geospatial.HaversineKm(center.Lat, center.Lon, edge.Lat, edge.Lon)
	got, err := repo.FindWithinRadius(ctx, center, radius)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].VehicleNumber != "EDGE-0" {
		t.Fatalf("expected only the ambulance on the circle, got %+v", got)
	}

	registry := usecases.NewRegistryService(repo, nil, nil, 0)
	trimmed, err := registry.FindWithinRadius(ctx, center, radius)
	if err != nil {
		t.Fatalf("registry find: %v", err)
	}
	if len(trimmed) != 1 {
		t.Errorf("expected boundary ambulance after exact trim, got %d", len(trimmed))
	}
}

func TestAmbulanceRepo_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewAmbulanceRepo(db)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed id, got %v", err)
	}
	if err := repo.UpdateLocation(ctx, uuid.NewString(), domain.GeoPoint{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatchRepo_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewDispatchRepo(db)
	ctx := context.Background()

	res := &domain.DispatchResult{
		ID:                uuid.NewString(),
		State:             domain.StateCompleted,
		RequesterLocation: domain.GeoPoint{Lat: 27.7, Lon: 85.3},
		RadiusKm:          5,
		Candidates: []domain.CandidateOutcome{
			{AmbulanceID: "a", DistanceKm: 1.2, NotificationStatus: domain.StatusNotified, ProviderID: "CA1"},
		},
		Summary:   domain.DispatchSummary{Notified: 1},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := repo.Save(ctx, res); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != domain.StateCompleted || got.Summary.Notified != 1 || len(got.Candidates) != 1 {
		t.Errorf("unexpected dispatch %+v", got)
	}
	if got.Candidates[0].ProviderID != "CA1" {
		t.Errorf("expected provider id to round-trip, got %+v", got.Candidates[0])
	}
}

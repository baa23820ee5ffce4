//go:build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/rescuelink/internal/adapters/http"
	"github.com/samirrijal/rescuelink/internal/adapters/postgres"
	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/core/usecases"
	"github.com/samirrijal/rescuelink/internal/pkg/config"
)

// setupPostgresApp wires the API against a migrated PostGIS database.
func setupPostgresApp(t *testing.T) (*fiber.App, *mockGateway) {
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

	gw := &mockGateway{}
	registry := usecases.NewRegistryService(postgres.NewAmbulanceRepo(db), nil, nil, 0)
	locator := usecases.NewLocatorService(registry)
	dispatcher := usecases.NewDispatchService(locator, gw, postgres.NewDispatchRepo(db), nil, usecases.DispatchOptions{})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, &handler.Dependencies{
		Registry:   registry,
		Locator:    locator,
		Dispatcher: dispatcher,
		DB:         db,
	})
	return app, gw
}

func TestEmergencyCall_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	app, gw := setupPostgresApp(t)

	// Kathmandu Durbar Square, then 3 km and 7 km due north.
	for i, lat := range []float64{27.7045, 27.7045 + 3/kmPerDegLat, 27.7045 + 7/kmPerDegLat} {
		body, _ := json.Marshal(map[string]interface{}{
			"name":          "Unit",
			"vehicleNumber": []string{"INT-A", "INT-B", "INT-C"}[i],
			"driverContact": "+9779800000001",
			"latitude":      lat,
			"longitude":     85.3071,
		})
		req := httptest.NewRequest("POST", "/emergency/ambulances/register", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("register: expected 201, got %d", resp.StatusCode)
		}
	}

	req := httptest.NewRequest("POST", "/emergency/call",
		strings.NewReader(`{"latitude":27.7045,"longitude":85.3071,"callbackPhone":"+9779811111111","radiusKm":5}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res domain.DispatchResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Candidates) != 2 || res.Candidates[0].VehicleNumber != "INT-A" || res.Candidates[1].VehicleNumber != "INT-B" {
		t.Fatalf("expected INT-A, INT-B; got %+v", res.Candidates)
	}
	if gw.count() != 2 {
		t.Errorf("expected 2 notifications, got %d", gw.count())
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/emergency/dispatches/"+res.ID, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected stored dispatch, got %d", resp.StatusCode)
	}
}

func TestReady_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	app, _ := setupPostgresApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected ready with database, got %d", resp.StatusCode)
	}
}

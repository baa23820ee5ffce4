// Command ingestor bulk-registers a fleet of ambulances from a CSV roster.
//
//	ingestor fleet.csv
//
// The header row names the columns; name, vehicle_number, driver_contact,
// latitude and longitude are required, driver_name and vehicle_type are
// optional. Re-running the same roster updates the existing records.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/rescuelink/internal/adapters/postgres"
	"github.com/samirrijal/rescuelink/internal/adapters/valkey"
	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/core/ports"
	"github.com/samirrijal/rescuelink/internal/core/usecases"
	"github.com/samirrijal/rescuelink/internal/pkg/config"
	"github.com/samirrijal/rescuelink/internal/pkg/logging"
)

var requiredColumns = []string{"name", "vehicle_number", "driver_contact", "latitude", "longitude"}

// rosterRow is one parsed CSV line with its 1-based line number.
type rosterRow struct {
	Line int
	Req  domain.RegisterAmbulanceRequest
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ingestor <fleet.csv>")
	}

	cfg, err := config.Load("rescuelink-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("rescuelink-ingestor", cfg.Log.Level, cfg.Log.Format)

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("open roster: %v", err)
	}
	defer f.Close()

	rows, err := parseRoster(f)
	if err != nil {
		log.Fatalf("parse roster: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, API caches expire on their own", "error", err)
	} else {
		defer c.Close()
		cache = c
	}

	registry := usecases.NewRegistryService(postgres.NewAmbulanceRepo(db), cache, nil, cfg.Dispatch.QueryTimeout)

	created, updated, failed := ingest(ctx, registry, rows, 4)
	slog.Info("ingestion complete", "rows", len(rows), "created", created, "updated", updated, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// registrar is the part of the registry the ingestor drives.
type registrar interface {
	Register(ctx context.Context, req domain.RegisterAmbulanceRequest) (*domain.Ambulance, bool, error)
}

// ingest registers every row, at most limit at a time. A failed row is
// logged and counted; it does not stop the others.
func ingest(ctx context.Context, r registrar, rows []rosterRow, limit int) (created, updated, failed int64) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, row := range rows {
		row := row
		g.Go(func() error {
			amb, isNew, err := r.Register(gctx, row.Req)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				slog.Error("register failed", "line", row.Line, "vehicle_number", row.Req.VehicleNumber, "error", err)
			case isNew:
				atomic.AddInt64(&created, 1)
				slog.Debug("registered", "line", row.Line, "ambulance_id", amb.ID)
			default:
				atomic.AddInt64(&updated, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return created, updated, failed
}

// parseRoster reads a CSV roster. Column order is taken from the header row.
func parseRoster(r io.Reader) ([]rosterRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty roster")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := col[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	cr.FieldsPerRecord = len(header)

	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var rows []rosterRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lat, err := strconv.ParseFloat(get(rec, "latitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(get(rec, "longitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}

		rows = append(rows, rosterRow{
			Line: line,
			Req: domain.RegisterAmbulanceRequest{
				Name:          get(rec, "name"),
				VehicleNumber: get(rec, "vehicle_number"),
				DriverName:    get(rec, "driver_name"),
				DriverContact: get(rec, "driver_contact"),
				VehicleType:   get(rec, "vehicle_type"),
				Latitude:      &lat,
				Longitude:     &lon,
			},
		})
	}
	return rows, nil
}

// Command tracker applies ambulance position reports published on NATS to the
// registry and rebroadcasts them for live dashboards.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/rescuelink/internal/adapters/nats"
	"github.com/samirrijal/rescuelink/internal/adapters/postgres"
	"github.com/samirrijal/rescuelink/internal/adapters/valkey"
	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/core/ports"
	"github.com/samirrijal/rescuelink/internal/core/usecases"
	"github.com/samirrijal/rescuelink/internal/pkg/config"
	"github.com/samirrijal/rescuelink/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("rescuelink-tracker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("rescuelink-tracker", cfg.Log.Level, cfg.Log.Format)

	if cfg.Registry.Driver == "memory" {
		log.Fatal("tracker needs a shared registry; set registry.driver=postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// The API caches registry reads; a moved ambulance must drop them.
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, API caches expire on their own", "error", err)
	} else {
		defer c.Close()
		cache = c
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	registry := usecases.NewRegistryService(postgres.NewAmbulanceRepo(db), cache, pub, cfg.Dispatch.QueryTimeout)

	err = sub.SubscribeLocationUpdates(ctx, func(ctx context.Context, update *domain.LocationUpdate) error {
		if err := registry.ReportLocation(ctx, update); err != nil {
			return err
		}
		slog.Debug("location applied",
			"ambulance_id", update.AmbulanceID,
			"lat", update.Location.Lat,
			"lon", update.Location.Lon,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	slog.Info("tracker consuming location reports", "subject", natsadapter.SubjectLocationReportAll)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down tracker", "signal", sig.String())
}

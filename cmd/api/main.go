package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/samirrijal/rescuelink/internal/adapters/http"
	"github.com/samirrijal/rescuelink/internal/adapters/memory"
	natsadapter "github.com/samirrijal/rescuelink/internal/adapters/nats"
	"github.com/samirrijal/rescuelink/internal/adapters/notify"
	"github.com/samirrijal/rescuelink/internal/adapters/postgres"
	temporaladapter "github.com/samirrijal/rescuelink/internal/adapters/temporal"
	"github.com/samirrijal/rescuelink/internal/adapters/valkey"
	"github.com/samirrijal/rescuelink/internal/core/ports"
	"github.com/samirrijal/rescuelink/internal/core/usecases"
	"github.com/samirrijal/rescuelink/internal/pkg/config"
	"github.com/samirrijal/rescuelink/internal/pkg/logging"
	"github.com/samirrijal/rescuelink/internal/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("rescuelink-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("rescuelink-api", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{Version: version}

	// Registry datastore
	var (
		ambulances ports.AmbulanceRepository
		dispatches ports.DispatchRepository
	)
	switch cfg.Registry.Driver {
	case "memory":
		slog.Warn("using in-memory registry, data is lost on restart")
		ambulances = memory.NewAmbulanceStore(memory.DefaultCellDeg)
		dispatches = memory.NewDispatchStore()
	default:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)

		ambulances = postgres.NewAmbulanceRepo(db)
		dispatches = postgres.NewDispatchRepo(db)
		deps.DB = db
	}

	// Cache (optional)
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, registry reads are uncached", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	// NATS (optional): dispatch progress and the WebSocket relay
	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, dispatch events are not published", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer nc.Close()
		deps.NATS = nc
	}

	// Notification gateway
	var gateway ports.NotificationGateway
	switch cfg.Notify.Driver {
	case "twilio":
		gateway = notify.NewTwilio(notify.TwilioConfig{
			BaseURL:    cfg.Notify.Twilio.BaseURL,
			AccountSID: cfg.Notify.Twilio.AccountSID,
			AuthToken:  cfg.Notify.Twilio.AuthToken,
			FromNumber: cfg.Notify.Twilio.FromNumber,
			Timeout:    cfg.Dispatch.NotifyTimeout,
		})
	case "temporal":
		tc, err := temporaladapter.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace, logger)
		if err != nil {
			log.Fatalf("temporal: %v", err)
		}
		defer tc.Close()
		gateway = temporaladapter.NewGateway(tc, cfg.Temporal.TaskQueue)
	default:
		gateway = notify.NewLogger(logger)
	}
	slog.Info("notification gateway ready", "driver", cfg.Notify.Driver, "registry", cfg.Registry.Driver)

	// Use cases
	deps.Registry = usecases.NewRegistryService(ambulances, cache, publisher, cfg.Dispatch.QueryTimeout)
	deps.Locator = usecases.NewLocatorService(deps.Registry)
	deps.Dispatcher = usecases.NewDispatchService(deps.Locator, gateway, dispatches, publisher, usecases.DispatchOptions{
		DefaultRadiusKm: cfg.Dispatch.DefaultRadiusKm,
		MaxRadiusKm:     cfg.Dispatch.MaxRadiusKm,
		MaxConcurrent:   cfg.Dispatch.MaxConcurrent,
		NotifyTimeout:   cfg.Dispatch.NotifyTimeout,
	})

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "RescueLink API",
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// In-flight dispatches may still be waiting on the gateway.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Dispatch.NotifyTimeout+10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

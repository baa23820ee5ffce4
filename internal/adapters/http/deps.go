package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/rescuelink/internal/adapters/postgres"
	"github.com/samirrijal/rescuelink/internal/adapters/valkey"
	"github.com/samirrijal/rescuelink/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// NATS, DB and Cache are optional; DB is nil when the registry runs in memory.
type Dependencies struct {
	Registry   *usecases.RegistryService
	Locator    *usecases.LocatorService
	Dispatcher *usecases.DispatchService
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
	Version    string
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/rescuelink/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|reindex>")
	}

	cfg, err := config.Load("rescuelink-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, pool)
	case "reindex":
		rebuildSpatialIndex(ctx, pool)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// runMigrations applies every migrations/*.sql file in name order. Each file
// is idempotent, so re-running is safe.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no migrations found in %s", migrationsDir)
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}

// rebuildSpatialIndex drops and recreates the ambulance GIST index without
// blocking writes. Rows are untouched.
func rebuildSpatialIndex(ctx context.Context, pool *pgxpool.Pool) {
	// CONCURRENTLY cannot run inside a transaction block, so one statement per Exec.
	stmts := []string{
		`DROP INDEX CONCURRENTLY IF EXISTS idx_ambulances_location`,
		`CREATE INDEX CONCURRENTLY idx_ambulances_location ON ambulances USING GIST (location)`,
		`ANALYZE ambulances`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			log.Fatalf("reindex: %s: %v", s, err)
		}
		fmt.Printf("OK  %s\n", s)
	}

	log.Println("spatial index rebuilt")
}

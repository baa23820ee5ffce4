package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// DispatchRepo stores dispatch results as an append-only audit log.
// Candidate outcomes are kept as JSONB; summary counts get their own columns
// so reporting queries don't need to unpack them.
type DispatchRepo struct {
	db *DB
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db *DB) *DispatchRepo {
	return &DispatchRepo{db: db}
}

// Save records a dispatch result. Saving the same id twice is a no-op.
func (r *DispatchRepo) Save(ctx context.Context, res *domain.DispatchResult) error {
	candidates, err := json.Marshal(res.Candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO dispatches (id, state, dry_run, requester_location, radius_km,
		                        candidates, notified, failed, skipped, created_at)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6,
		        $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, res.ID, string(res.State), res.DryRun, res.RequesterLocation.Lon, res.RequesterLocation.Lat,
		res.RadiusKm, candidates, res.Summary.Notified, res.Summary.Failed, res.Summary.Skipped,
		res.CreatedAt)
	return err
}

// GetByID returns a recorded dispatch.
func (r *DispatchRepo) GetByID(ctx context.Context, id string) (*domain.DispatchResult, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}

	var (
		res        domain.DispatchResult
		state      string
		candidates []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, state, dry_run,
		       ST_Y(requester_location::geometry), ST_X(requester_location::geometry),
		       radius_km, candidates, notified, failed, skipped, created_at
		FROM dispatches WHERE id = $1
	`, id).Scan(
		&res.ID, &state, &res.DryRun,
		&res.RequesterLocation.Lat, &res.RequesterLocation.Lon,
		&res.RadiusKm, &candidates,
		&res.Summary.Notified, &res.Summary.Failed, &res.Summary.Skipped,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	res.State = domain.DispatchState(state)
	if err := json.Unmarshal(candidates, &res.Candidates); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	if res.Candidates == nil {
		res.Candidates = []domain.CandidateOutcome{}
	}
	return &res, nil
}

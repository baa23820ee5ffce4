package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

const ambulanceColumns = `
	id, name, vehicle_number, COALESCE(driver_name, ''), driver_contact,
	COALESCE(vehicle_type, ''),
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	active, created_at, updated_at`

// AmbulanceRepo implements ports.AmbulanceRepository on PostGIS.
type AmbulanceRepo struct {
	db *DB
}

// NewAmbulanceRepo creates a new AmbulanceRepo.
func NewAmbulanceRepo(db *DB) *AmbulanceRepo {
	return &AmbulanceRepo{db: db}
}

func scanAmbulance(row pgx.Row) (*domain.Ambulance, error) {
	var a domain.Ambulance
	err := row.Scan(
		&a.ID, &a.Name, &a.VehicleNumber, &a.DriverName, &a.DriverContact,
		&a.VehicleType,
		&a.Location.Lat, &a.Location.Lon,
		&a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAmbulances(rows pgx.Rows) ([]domain.Ambulance, error) {
	defer rows.Close()

	var out []domain.Ambulance
	for rows.Next() {
		a, err := scanAmbulance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Upsert inserts an ambulance or updates the row holding the same vehicle
// number. xmax is zero only for freshly inserted tuples.
func (r *AmbulanceRepo) Upsert(ctx context.Context, a *domain.Ambulance) (bool, error) {
	var inserted bool
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO ambulances (name, vehicle_number, driver_name, driver_contact, vehicle_type, location, active)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''),
		        ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, TRUE)
		ON CONFLICT (vehicle_number) DO UPDATE
		SET name = EXCLUDED.name,
		    driver_name = EXCLUDED.driver_name,
		    driver_contact = EXCLUDED.driver_contact,
		    vehicle_type = EXCLUDED.vehicle_type,
		    location = EXCLUDED.location,
		    active = TRUE,
		    updated_at = now()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`, a.Name, a.VehicleNumber, a.DriverName, a.DriverContact, a.VehicleType,
		a.Location.Lon, a.Location.Lat,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &inserted)
	if err != nil {
		return false, err
	}
	a.Active = true
	return inserted, nil
}

// GetByID returns an ambulance by UUID.
func (r *AmbulanceRepo) GetByID(ctx context.Context, id string) (*domain.Ambulance, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	a, err := scanAmbulance(r.db.Pool.QueryRow(ctx,
		`SELECT `+ambulanceColumns+` FROM ambulances WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// radiusSlack widens the SQL radius. PostGIS measures on a sphere of about
// 6371.0088 km, so a point exactly on the 6371 km haversine circle reads
// slightly farther away; callers trim the result to the exact circle.
const radiusSlack = 1e-5

// FindWithinRadius uses the GIST index on location via ST_DWithin. The result
// is a superset of the haversine circle of radiusKm.
func (r *AmbulanceRepo) FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Ambulance, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+ambulanceColumns+`
		FROM ambulances
		WHERE active
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, false), id
	`, center.Lon, center.Lat, radiusKm*1000*(1+radiusSlack))
	if err != nil {
		return nil, err
	}
	return collectAmbulances(rows)
}

// List returns every ambulance ordered by name.
func (r *AmbulanceRepo) List(ctx context.Context) ([]domain.Ambulance, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+ambulanceColumns+` FROM ambulances ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return collectAmbulances(rows)
}

// UpdateLocation stores a fresh position report.
func (r *AmbulanceRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE ambulances
		SET location = ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
		    updated_at = now()
		WHERE id = $1
	`, id, loc.Lon, loc.Lat)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes an ambulance.
func (r *AmbulanceRepo) Deactivate(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE ambulances SET active = FALSE, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// validID rejects ids that would make Postgres fail the uuid cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

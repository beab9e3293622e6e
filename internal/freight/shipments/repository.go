package shipments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

const shipmentColumns = `id, reference, origin, destination, carrier, status, weight_kg, notes, created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns shipments matching the filters plus the total count.
func (r *PGRepository) List(ctx context.Context, f ListFilters) ([]Shipment, int, error) {
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM shipments
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = '' OR carrier = $2)
		   AND ($3 = '' OR reference ILIKE '%' || $3 || '%' OR origin ILIKE '%' || $3 || '%' OR destination ILIKE '%' || $3 || '%')`,
		string(f.Status), f.Carrier, f.Search).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+shipmentColumns+` FROM shipments
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = '' OR carrier = $2)
		   AND ($3 = '' OR reference ILIKE '%' || $3 || '%' OR origin ILIKE '%' || $3 || '%' OR destination ILIKE '%' || $3 || '%')
		 ORDER BY id DESC
		 OFFSET $4 LIMIT $5`,
		string(f.Status), f.Carrier, f.Search, offset, perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var shipments []Shipment
	for rows.Next() {
		shipment, err := scanShipment(rows)
		if err != nil {
			return nil, 0, err
		}
		shipments = append(shipments, shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return shipments, total, nil
}

// Get fetches a shipment by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Shipment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	shipment, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, fmt.Errorf("%w: shipment %d", shared.ErrNotFound, id)
		}
		return Shipment{}, err
	}
	return shipment, nil
}

// Create inserts a shipment and returns it with its assigned id.
func (r *PGRepository) Create(ctx context.Context, shipment Shipment) (Shipment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO shipments (reference, origin, destination, carrier, status, weight_kg, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 RETURNING `+shipmentColumns,
		shipment.Reference, shipment.Origin, shipment.Destination, shipment.Carrier,
		string(shipment.Status), shipment.WeightKg, shipment.Notes)
	created, err := scanShipment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Shipment{}, fmt.Errorf("%w: reference %q", shared.ErrDuplicate, shipment.Reference)
		}
		return Shipment{}, err
	}
	return created, nil
}

// Update replaces the stored shipment fields.
func (r *PGRepository) Update(ctx context.Context, shipment Shipment) (Shipment, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE shipments SET origin = $2, destination = $3, carrier = $4, status = $5,
			weight_kg = $6, notes = $7, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+shipmentColumns,
		shipment.ID, shipment.Origin, shipment.Destination, shipment.Carrier,
		string(shipment.Status), shipment.WeightKg, shipment.Notes)
	updated, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, fmt.Errorf("%w: shipment %d", shared.ErrNotFound, shipment.ID)
		}
		return Shipment{}, err
	}
	return updated, nil
}

// Delete removes a shipment.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shipments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: shipment %d", shared.ErrNotFound, id)
	}
	return nil
}

func scanShipment(row pgx.Row) (Shipment, error) {
	var shipment Shipment
	var status string
	if err := row.Scan(&shipment.ID, &shipment.Reference, &shipment.Origin, &shipment.Destination,
		&shipment.Carrier, &status, &shipment.WeightKg, &shipment.Notes,
		&shipment.CreatedAt, &shipment.UpdatedAt); err != nil {
		return Shipment{}, err
	}
	shipment.Status = ShipmentStatus(status)
	return shipment, nil
}

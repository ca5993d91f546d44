package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
)

// RouteRepo implements ports.RouteRepository. Track geometry, POIs and
// stats are stored as JSONB; the bounding box is flattened into columns
// so listings can skip the geometry payload.
type RouteRepo struct {
	db *DB
}

func NewRouteRepo(db *DB) *RouteRepo { return &RouteRepo{db: db} }

func (r *RouteRepo) Create(ctx context.Context, route *domain.Route) error {
	segments, err := json.Marshal(route.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	pois, err := json.Marshal(route.POIs)
	if err != nil {
		return fmt.Errorf("marshal pois: %w", err)
	}
	stats, err := json.Marshal(route.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO routes (name, description, segments, pois, stats,
		                    bbox_min_lat, bbox_max_lat, bbox_min_lon, bbox_max_lon)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, route.Name, route.Description, segments, pois, stats,
		route.BBox.MinLat, route.BBox.MaxLat, route.BBox.MinLon, route.BBox.MaxLon,
	).Scan(&route.ID, &route.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	return nil
}

func (r *RouteRepo) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	var (
		rt       domain.Route
		segments []byte
		pois     []byte
		stats    []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, description, segments, pois, stats,
		       bbox_min_lat, bbox_max_lat, bbox_min_lon, bbox_max_lon, created_at
		FROM routes WHERE id = $1
	`, id).Scan(&rt.ID, &rt.Name, &rt.Description, &segments, &pois, &stats,
		&rt.BBox.MinLat, &rt.BBox.MaxLat, &rt.BBox.MinLon, &rt.BBox.MaxLon, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(segments, &rt.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	if err := json.Unmarshal(pois, &rt.POIs); err != nil {
		return nil, fmt.Errorf("unmarshal pois: %w", err)
	}
	if err := json.Unmarshal(stats, &rt.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &rt, nil
}

// List returns catalog entries without geometry. Segments stay empty;
// callers needing points fetch the route by ID.
func (r *RouteRepo) List(ctx context.Context) ([]domain.Route, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, description, stats,
		       bbox_min_lat, bbox_max_lat, bbox_min_lon, bbox_max_lon, created_at
		FROM routes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []domain.Route
	for rows.Next() {
		var (
			rt    domain.Route
			stats []byte
		)
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.Description, &stats,
			&rt.BBox.MinLat, &rt.BBox.MaxLat, &rt.BBox.MinLon, &rt.BBox.MaxLon, &rt.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stats, &rt.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func (r *RouteRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

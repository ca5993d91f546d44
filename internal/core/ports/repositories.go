package ports

import (
	"context"
	"errors"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
)

// ErrNotFound is returned by repositories and the tile store when the
// requested entry does not exist. Callers distinguish it from storage
// failures, which are anything else.
var ErrNotFound = errors.New("not found")

// RouteRepository persists parsed routes.
type RouteRepository interface {
	Create(ctx context.Context, route *domain.Route) error
	GetByID(ctx context.Context, id string) (*domain.Route, error)
	List(ctx context.Context) ([]domain.Route, error)
	Delete(ctx context.Context, id string) error
}

// TileStore is the durable local key-value cache of tile images, keyed by
// the canonical "{z}/{x}/{y}" string. A failing store must be treated as
// "not cached" on reads and best-effort on writes, never as fatal.
type TileStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error

	// Associate records that a tile belongs to a route's offline set, so
	// the route's tiles can be deleted selectively later.
	Associate(ctx context.Context, routeID, key string) error
	DeleteRoute(ctx context.Context, routeID string) (int, error)
}

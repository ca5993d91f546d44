package ports

import (
	"context"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
)

// TileFetcher retrieves one tile image from an upstream tile server.
type TileFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// EventPublisher broadcasts live events to interested clients.
type EventPublisher interface {
	PublishProgress(ctx context.Context, jobID string, p domain.DownloadProgress) error
	PublishPosition(ctx context.Context, routeID string, np *domain.NearestPoint) error
}

// CacheService provides read-through caching of serialized values.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ResourceCache is the external caching collaborator that owns static
// app resources. Both calls resolve to a negative default after a bounded
// wait when the collaborator never answers.
type ResourceCache interface {
	CheckCached(ctx context.Context, url string) bool
	CacheNow(ctx context.Context, url string) error
}

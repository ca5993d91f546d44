package natsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Request subjects answered by companion cache workers that hold assets
// outside the tile store (map fonts, styles, app shell).
const (
	subjectCacheCheck = "velotrek.cache.check"
	subjectCacheStore = "velotrek.cache.store"
)

// CacheStatus implements ports.ResourceCache over NATS request/reply.
// A missing or slow worker degrades to "not cached" rather than an error
// on the check path.
type CacheStatus struct {
	conn *nats.Conn
}

func NewCacheStatus(conn *nats.Conn) *CacheStatus {
	return &CacheStatus{conn: conn}
}

// CheckCached asks whether a URL is already held by a cache worker.
func (c *CacheStatus) CheckCached(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, subjectCacheCheck, []byte(url))
	if err != nil {
		return false
	}
	return string(msg.Data) == "true"
}

// CacheNow asks a cache worker to fetch and hold a URL.
func (c *CacheStatus) CacheNow(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, subjectCacheStore, []byte(url))
	if err != nil {
		return fmt.Errorf("cache store request: %w", err)
	}
	if string(msg.Data) != "ok" {
		return fmt.Errorf("cache store rejected: %s", msg.Data)
	}
	return nil
}

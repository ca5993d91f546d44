package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
)

type mockRouteRepo struct {
	createFn  func(ctx context.Context, route *domain.Route) error
	getByIDFn func(ctx context.Context, id string) (*domain.Route, error)
	listFn    func(ctx context.Context) ([]domain.Route, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockRouteRepo) Create(ctx context.Context, route *domain.Route) error {
	if m.createFn != nil {
		return m.createFn(ctx, route)
	}
	return nil
}
func (m *mockRouteRepo) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ports.ErrNotFound
}
func (m *mockRouteRepo) List(ctx context.Context) ([]domain.Route, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockRouteRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.items[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func TestGetByID_CacheAside(t *testing.T) {
	repoCalls := 0
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Route, error) {
			repoCalls++
			return &domain.Route{ID: id, Name: "Coastal loop"}, nil
		},
	}
	cache := newMockCache()
	svc := NewTrackService(repo, cache, nil)

	for i := 0; i < 3; i++ {
		route, err := svc.GetByID(context.Background(), "r1")
		if err != nil {
			t.Fatal(err)
		}
		if route.Name != "Coastal loop" {
			t.Errorf("unexpected route: %+v", route)
		}
	}

	if repoCalls != 1 {
		t.Errorf("repo must be hit once, got %d", repoCalls)
	}
}

func TestGetByID_CorruptCacheEntryFallsThrough(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Route, error) {
			return &domain.Route{ID: id, Name: "Fresh"}, nil
		},
	}
	cache := newMockCache()
	_ = cache.Set(context.Background(), "routes:id:r1", []byte("{corrupt"), 60)
	svc := NewTrackService(repo, cache, nil)

	route, err := svc.GetByID(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if route.Name != "Fresh" {
		t.Errorf("corrupt cache must fall through to repo: %+v", route)
	}
}

func TestGetByID_WorksWithoutCache(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Route, error) {
			return &domain.Route{ID: id}, nil
		},
	}
	svc := NewTrackService(repo, nil, nil)

	if _, err := svc.GetByID(context.Background(), "r1"); err != nil {
		t.Errorf("nil cache must not fail reads: %v", err)
	}
}

func TestDelete_EvictsCacheAndTiles(t *testing.T) {
	repo := &mockRouteRepo{}
	cache := newMockCache()
	store := newMockTileStore()
	_ = store.Associate(context.Background(), "r1", "14/8058/6003")

	payload, _ := json.Marshal(domain.Route{ID: "r1"})
	_ = cache.Set(context.Background(), "routes:id:r1", payload, 60)

	svc := NewTrackService(repo, cache, store)
	if err := svc.Delete(context.Background(), "r1"); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.Get(context.Background(), "routes:id:r1"); err == nil {
		t.Error("cached route must be evicted on delete")
	}
	if len(store.assoc["r1"]) != 0 {
		t.Error("route tiles must be released on delete")
	}
}

func TestDelete_NotFoundPropagates(t *testing.T) {
	repo := &mockRouteRepo{
		deleteFn: func(ctx context.Context, id string) error { return ports.ErrNotFound },
	}
	svc := NewTrackService(repo, nil, nil)

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

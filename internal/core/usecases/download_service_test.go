package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
)

// ---- Mocks ----

type mockTileStore struct {
	mu    sync.Mutex
	tiles map[string][]byte
	assoc map[string][]string

	getFn func(ctx context.Context, key string) ([]byte, error)
	putFn func(ctx context.Context, key string, blob []byte) error
}

func newMockTileStore() *mockTileStore {
	return &mockTileStore{
		tiles: make(map[string][]byte),
		assoc: make(map[string][]string),
	}
}

func (m *mockTileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if blob, ok := m.tiles[key]; ok {
		return blob, nil
	}
	return nil, ports.ErrNotFound
}

func (m *mockTileStore) Put(ctx context.Context, key string, blob []byte) error {
	if m.putFn != nil {
		return m.putFn(ctx, key, blob)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles[key] = blob
	return nil
}

func (m *mockTileStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tiles), nil
}

func (m *mockTileStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles = make(map[string][]byte)
	m.assoc = make(map[string][]string)
	return nil
}

func (m *mockTileStore) Associate(ctx context.Context, routeID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assoc[routeID] = append(m.assoc[routeID], key)
	return nil
}

func (m *mockTileStore) DeleteRoute(ctx context.Context, routeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.assoc[routeID])
	delete(m.assoc, routeID)
	return n, nil
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, url string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return []byte("tile"), nil
}

// ---- Tests ----

const testTemplate = "https://tiles.example.org/{z}/{x}/{y}.png"

func TestDownloadTiles_DownloadsAllAndAssociates(t *testing.T) {
	store := newMockTileStore()
	fetcher := &mockFetcher{}
	svc := NewDownloadService(store, fetcher, NewTileService())

	route := singlePointRoute(43.2630, -2.9350)
	route.ID = "r1"

	result, err := svc.DownloadTiles(context.Background(), route, testTemplate, DownloadOptions{
		ZoomMin: 14, ZoomMax: 14,
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Total != 9 {
		t.Errorf("total: got %d", result.Total)
	}
	if result.Completed != 9 || result.Failed != 0 || result.Cached != 0 {
		t.Errorf("unexpected counters: %+v", result)
	}
	if result.Cancelled {
		t.Error("must not be cancelled")
	}

	n, _ := store.Count(context.Background())
	if n != 9 {
		t.Errorf("store must hold 9 tiles, got %d", n)
	}
	if len(store.assoc["r1"]) != 9 {
		t.Errorf("all tiles must be associated with the route, got %d", len(store.assoc["r1"]))
	}
}

func TestDownloadTiles_SecondRunIsAllCached(t *testing.T) {
	store := newMockTileStore()
	svc := NewDownloadService(store, &mockFetcher{}, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	if _, err := svc.DownloadTiles(context.Background(), route, testTemplate, DownloadOptions{ZoomMin: 14, ZoomMax: 14}); err != nil {
		t.Fatal(err)
	}

	result, err := svc.DownloadTiles(context.Background(), route, testTemplate, DownloadOptions{ZoomMin: 14, ZoomMax: 14})
	if err != nil {
		t.Fatal(err)
	}
	if result.Cached != result.Total {
		t.Errorf("second run must be fully cached: %+v", result)
	}
	if result.Completed != 0 {
		t.Errorf("nothing should be downloaded on second run: %+v", result)
	}
}

func TestDownloadTiles_CountsFailures(t *testing.T) {
	store := newMockTileStore()
	var mu sync.Mutex
	calls := 0
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls%3 == 0 {
				return nil, errors.New("upstream 503")
			}
			return []byte("tile"), nil
		},
	}
	svc := NewDownloadService(store, fetcher, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	result, err := svc.DownloadTiles(context.Background(), route, testTemplate, DownloadOptions{
		ZoomMin: 14, ZoomMax: 14, Concurrency: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Failed != 3 || result.Completed != 6 {
		t.Errorf("expected 6 completed / 3 failed, got %+v", result)
	}
	if result.Completed+result.Failed+result.Cached != result.Total {
		t.Errorf("counters must sum to total: %+v", result)
	}
}

func TestDownloadTiles_CancelledBeforeStart(t *testing.T) {
	store := newMockTileStore()
	fetched := false
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			fetched = true
			return []byte("tile"), nil
		},
	}
	svc := NewDownloadService(store, fetcher, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.DownloadTiles(ctx, route, testTemplate, DownloadOptions{ZoomMin: 14, ZoomMax: 14})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Cancelled {
		t.Error("result must be marked cancelled")
	}
	if result.Completed != 0 {
		t.Errorf("nothing must complete after pre-cancellation: %+v", result)
	}
	if fetched {
		t.Error("no fetch may happen after pre-cancellation")
	}
}

func TestDownloadTiles_CancelDuringDownload(t *testing.T) {
	store := newMockTileStore()
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			cancel() // cancel as soon as the first fetch starts
			return []byte("tile"), nil
		},
	}
	svc := NewDownloadService(store, fetcher, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	result, err := svc.DownloadTiles(ctx, route, testTemplate, DownloadOptions{
		ZoomMin: 14, ZoomMax: 14, Concurrency: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Cancelled {
		t.Error("result must be marked cancelled")
	}
	// The in-flight tile still lands; later tiles are never dequeued
	if result.Completed > 1 {
		t.Errorf("at most the in-flight tile may complete, got %d", result.Completed)
	}
}

func TestDownloadTiles_ProgressPhases(t *testing.T) {
	store := newMockTileStore()
	svc := NewDownloadService(store, &mockFetcher{}, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	var mu sync.Mutex
	var phases []domain.DownloadPhase
	opts := DownloadOptions{
		ZoomMin: 14, ZoomMax: 14, Concurrency: 2,
		OnProgress: func(p domain.DownloadProgress) {
			mu.Lock()
			phases = append(phases, p.Phase)
			mu.Unlock()
		},
	}

	if _, err := svc.DownloadTiles(context.Background(), route, testTemplate, opts); err != nil {
		t.Fatal(err)
	}

	if len(phases) == 0 {
		t.Fatal("no progress emitted")
	}
	if phases[0] != domain.PhaseChecking {
		t.Errorf("first phase must be checking, got %s", phases[0])
	}
	if phases[len(phases)-1] != domain.PhaseDone {
		t.Errorf("last phase must be done, got %s", phases[len(phases)-1])
	}
	var sawDownloading bool
	for _, p := range phases {
		if p == domain.PhaseDownloading {
			sawDownloading = true
		}
	}
	if !sawDownloading {
		t.Error("downloading phase never reported")
	}
}

func TestDownloadTiles_StoreWriteFailureStillCompletes(t *testing.T) {
	store := newMockTileStore()
	store.putFn = func(ctx context.Context, key string, blob []byte) error {
		return errors.New("disk full")
	}
	svc := NewDownloadService(store, &mockFetcher{}, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	result, err := svc.DownloadTiles(context.Background(), route, testTemplate, DownloadOptions{ZoomMin: 14, ZoomMax: 14})
	if err != nil {
		t.Fatal(err)
	}
	if result.Completed != result.Total {
		t.Errorf("store failures must not fail the download: %+v", result)
	}
}

func TestDownloadTiles_FetchesSubstitutedURLs(t *testing.T) {
	store := newMockTileStore()
	var mu sync.Mutex
	var urls []string
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			mu.Lock()
			urls = append(urls, url)
			mu.Unlock()
			return []byte("tile"), nil
		},
	}
	svc := NewDownloadService(store, fetcher, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	if _, err := svc.DownloadTiles(context.Background(), route, testTemplate, DownloadOptions{ZoomMin: 14, ZoomMax: 14}); err != nil {
		t.Fatal(err)
	}

	for _, u := range urls {
		if strings.Contains(u, "{") {
			t.Errorf("unsubstituted placeholder in %q", u)
		}
		if !strings.HasPrefix(u, "https://tiles.example.org/14/") {
			t.Errorf("unexpected url %q", u)
		}
	}
}

func TestDownloadTiles_DelayRespectsContext(t *testing.T) {
	store := newMockTileStore()
	svc := NewDownloadService(store, &mockFetcher{}, NewTileService())
	route := singlePointRoute(43.2630, -2.9350)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := svc.DownloadTiles(ctx, route, testTemplate, DownloadOptions{
		ZoomMin: 14, ZoomMax: 14, Concurrency: 1, Delay: 10 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation must interrupt the inter-fetch delay")
	}
}

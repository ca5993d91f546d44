package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
	"github.com/amchercashin/VeloTrek/internal/pkg/metrics"
)

// DownloadOptions tunes one DownloadTiles invocation.
type DownloadOptions struct {
	ZoomMin     int
	ZoomMax     int
	Concurrency int
	Delay       time.Duration // per-worker pause between fetches
	OnProgress  func(domain.DownloadProgress)
}

// DownloadService populates the tile store for a route: it computes the
// required tile set, skips what is already cached, and downloads the rest
// with bounded concurrency and cooperative cancellation.
type DownloadService struct {
	store   ports.TileStore
	fetcher ports.TileFetcher
	tiles   *TileService
}

// NewDownloadService creates a new DownloadService.
func NewDownloadService(store ports.TileStore, fetcher ports.TileFetcher, tiles *TileService) *DownloadService {
	return &DownloadService{store: store, fetcher: fetcher, tiles: tiles}
}

// downloadJob holds the mutable state of one invocation. It lives only
// for the duration of DownloadTiles.
type downloadJob struct {
	mu    sync.Mutex
	queue []domain.TileKey

	total     int
	completed atomic.Int64
	failed    atomic.Int64
	cached    atomic.Int64
	cancelled atomic.Bool

	onProgress func(domain.DownloadProgress)
}

func (j *downloadJob) dequeue() (domain.TileKey, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.queue) == 0 {
		return domain.TileKey{}, false
	}
	key := j.queue[0]
	j.queue = j.queue[1:]
	return key, true
}

func (j *downloadJob) queueLen() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

func (j *downloadJob) snapshot(phase domain.DownloadPhase) domain.DownloadProgress {
	return domain.DownloadProgress{
		Phase:     phase,
		Total:     j.total,
		Completed: int(j.completed.Load()),
		Failed:    int(j.failed.Load()),
		Cached:    int(j.cached.Load()),
		Cancelled: j.cancelled.Load(),
	}
}

// emit invokes the progress callback. Callbacks are advisory; the
// counters remain the source of truth whatever the callback does.
func (j *downloadJob) emit(phase domain.DownloadPhase) {
	if j.onProgress != nil {
		j.onProgress(j.snapshot(phase))
	}
}

func (j *downloadJob) result() *domain.DownloadResult {
	return &domain.DownloadResult{
		Total:     j.total,
		Completed: int(j.completed.Load()),
		Failed:    int(j.failed.Load()),
		Cached:    int(j.cached.Load()),
		Cancelled: j.cancelled.Load(),
	}
}

// DownloadTiles runs the checking/downloading/done protocol for the
// route. Cancel through ctx: the checking loop aborts immediately, and
// each worker stops taking new work at its next dequeue. In-flight
// fetches are not aborted; their results are simply the last writes.
func (s *DownloadService) DownloadTiles(ctx context.Context, route *domain.Route, urlTemplate string, opts DownloadOptions) (*domain.DownloadResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	required := s.tiles.TilesForRoute(route, opts.ZoomMin, opts.ZoomMax)

	job := &downloadJob{
		total:      len(required),
		onProgress: opts.OnProgress,
	}

	started := time.Now()

	// Phase "checking": probe the store sequentially; hits never enter
	// the queue. A failing store means "not cached", not an error.
	job.emit(domain.PhaseChecking)
	i := 0
	for key := range required {
		if ctx.Err() != nil {
			job.cancelled.Store(true)
			job.emit(domain.PhaseDone)
			return job.result(), nil
		}
		if _, err := s.store.Get(ctx, key.String()); err == nil {
			job.cached.Add(1)
		} else {
			if !errors.Is(err, ports.ErrNotFound) {
				slog.Debug("tile store probe failed, treating as uncached", "key", key.String(), "error", err)
			}
			job.mu.Lock()
			job.queue = append(job.queue, key)
			job.mu.Unlock()
		}
		if i++; i%100 == 0 {
			job.emit(domain.PhaseChecking)
		}
	}

	// Phase "downloading".
	if job.queueLen() == 0 {
		job.emit(domain.PhaseDone)
		return job.result(), nil
	}

	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, route, urlTemplate, opts.Delay, job)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		job.cancelled.Store(true)
	}

	// Phase "done".
	job.emit(domain.PhaseDone)
	metrics.TileDownloadDuration.Observe(time.Since(started).Seconds())
	return job.result(), nil
}

// worker drains the shared queue until it is empty or the context is
// cancelled. Every attempt, success or failure, emits one snapshot.
func (s *DownloadService) worker(ctx context.Context, route *domain.Route, urlTemplate string, delay time.Duration, job *downloadJob) {
	for {
		if ctx.Err() != nil {
			job.cancelled.Store(true)
			return
		}

		key, ok := job.dequeue()
		if !ok {
			return
		}

		url := SubstituteTileURL(urlTemplate, key)
		blob, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			// Terminal for this tile in this invocation; no retries.
			job.failed.Add(1)
			metrics.TilesFailed.Inc()
			slog.Warn("tile download failed", "key", key.String(), "error", err)
		} else {
			if err := s.store.Put(ctx, key.String(), blob); err != nil {
				slog.Warn("tile store write failed", "key", key.String(), "error", err)
			}
			if route.ID != "" {
				if err := s.store.Associate(ctx, route.ID, key.String()); err != nil {
					slog.Debug("tile association write failed", "key", key.String(), "error", err)
				}
			}
			job.completed.Add(1)
			metrics.TilesDownloaded.Inc()
		}

		job.emit(domain.PhaseDownloading)

		if delay > 0 && job.queueLen() > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}
}

// SubstituteTileURL fills the {z}/{x}/{y} placeholders of a tile URL
// template.
func SubstituteTileURL(template string, key domain.TileKey) string {
	url := strings.ReplaceAll(template, "{z}", strconv.Itoa(key.Zoom))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(key.X))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(key.Y))
	return url
}

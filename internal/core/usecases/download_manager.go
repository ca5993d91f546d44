package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
)

// Finished jobs stay queryable until the registry exceeds this many of
// them; then the oldest are evicted. Running jobs are never evicted.
const maxFinishedJobs = 100

// DownloadManager owns background download jobs. At most one job per
// route is in flight: starting a new download supersedes and cancels the
// previous one instead of racing it.
type DownloadManager struct {
	svc *DownloadService
	pub ports.EventPublisher

	mu      sync.Mutex
	jobs    map[string]*managedJob // job ID -> state
	byRoute map[string]*managedJob // route ID -> in-flight job
}

type managedJob struct {
	job    domain.DownloadJob
	cancel context.CancelFunc
}

// NewDownloadManager creates a new DownloadManager.
func NewDownloadManager(svc *DownloadService, pub ports.EventPublisher) *DownloadManager {
	return &DownloadManager{
		svc:     svc,
		pub:     pub,
		jobs:    make(map[string]*managedJob),
		byRoute: make(map[string]*managedJob),
	}
}

// Start launches a detached download for the route and returns the job
// snapshot. A job already running for the same route is cancelled first.
func (m *DownloadManager) Start(route *domain.Route, urlTemplate string, opts DownloadOptions) domain.DownloadJob {
	m.mu.Lock()
	if prev, ok := m.byRoute[route.ID]; ok && prev.job.FinishedAt == nil {
		slog.Info("superseding in-flight download", "route_id", route.ID, "job_id", prev.job.ID)
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &managedJob{
		job: domain.DownloadJob{
			ID:        fmt.Sprintf("dl_%d", time.Now().UnixNano()),
			RouteID:   route.ID,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}
	m.jobs[state.job.ID] = state
	m.byRoute[route.ID] = state
	m.pruneLocked()
	snapshot := state.job
	m.mu.Unlock()

	userProgress := opts.OnProgress
	opts.OnProgress = func(p domain.DownloadProgress) {
		m.mu.Lock()
		state.job.Progress = p
		m.mu.Unlock()
		if m.pub != nil {
			_ = m.pub.PublishProgress(context.Background(), state.job.ID, p)
		}
		if userProgress != nil {
			userProgress(p)
		}
	}

	go func() {
		result, err := m.svc.DownloadTiles(ctx, route, urlTemplate, opts)

		m.mu.Lock()
		now := time.Now()
		state.job.FinishedAt = &now
		state.job.Result = result
		if err != nil {
			state.job.Error = err.Error()
		}
		m.mu.Unlock()

		if err != nil {
			slog.Error("download job failed", "job_id", state.job.ID, "error", err)
		} else {
			slog.Info("download job finished",
				"job_id", state.job.ID,
				"completed", result.Completed,
				"failed", result.Failed,
				"cached", result.Cached,
				"cancelled", result.Cancelled)
		}
	}()

	return snapshot
}

// pruneLocked evicts the oldest finished jobs once their number exceeds
// maxFinishedJobs. Callers must hold m.mu.
func (m *DownloadManager) pruneLocked() {
	var finished []*managedJob
	for _, state := range m.jobs {
		if state.job.FinishedAt != nil {
			finished = append(finished, state)
		}
	}
	if len(finished) <= maxFinishedJobs {
		return
	}

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].job.FinishedAt.Before(*finished[j].job.FinishedAt)
	})
	for _, state := range finished[:len(finished)-maxFinishedJobs] {
		delete(m.jobs, state.job.ID)
		if cur, ok := m.byRoute[state.job.RouteID]; ok && cur == state {
			delete(m.byRoute, state.job.RouteID)
		}
	}
}

// Get returns a copy of the job state.
func (m *DownloadManager) Get(jobID string) (domain.DownloadJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.jobs[jobID]
	if !ok {
		return domain.DownloadJob{}, false
	}
	return state.job, true
}

// Cancel requests cooperative cancellation of a running job.
func (m *DownloadManager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.jobs[jobID]
	if !ok || state.job.FinishedAt != nil {
		return false
	}
	state.cancel()
	return true
}

package domain

import (
	"fmt"
	"time"
)

// TileKey addresses one slippy-map raster tile.
type TileKey struct {
	Zoom int `json:"zoom"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// String renders the canonical "{zoom}/{x}/{y}" form used as the tile
// store lookup key.
func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Zoom, k.X, k.Y)
}

// TileSet is the deduplicated set of tiles a route needs.
type TileSet map[TileKey]struct{}

// DownloadPhase names the stage a download job is in.
type DownloadPhase string

const (
	PhaseChecking    DownloadPhase = "checking"
	PhaseDownloading DownloadPhase = "downloading"
	PhaseDone        DownloadPhase = "done"
)

// DownloadProgress is an advisory snapshot emitted while a download job
// runs. The final aggregate counters on DownloadResult are authoritative.
type DownloadProgress struct {
	Phase     DownloadPhase `json:"phase"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Cached    int           `json:"cached"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// DownloadResult is the terminal outcome of one downloadTiles invocation.
// Total counts the full required tile set, including tiles that were
// already cached and never queued.
type DownloadResult struct {
	Total     int  `json:"total"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Cached    int  `json:"cached"`
	Cancelled bool `json:"cancelled"`
}

// DownloadJob is the externally visible state of a background download.
type DownloadJob struct {
	ID         string           `json:"id"`
	RouteID    string           `json:"route_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Progress   DownloadProgress `json:"progress"`
	Result     *DownloadResult  `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

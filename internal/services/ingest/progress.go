// Package ingest keeps the local mirror in step with the upstream catalog.
//
// Go Pattern: One orchestrating goroutine fans out one Paginator per
// channel, bounded by an errgroup limit. Channel workers share a single
// Progress object: counters are atomics so workers never contend on a lock,
// and the run lifecycle (start, cancel, finish) is a small mutex-guarded
// state machine. Cancellation is cooperative: workers check the flag before
// each page fetch, and backoff sleeps wake early when it is raised.
package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

var (
	// ErrSyncInProgress is returned when a run is started while one is active.
	ErrSyncInProgress = errors.New("a sync is already in progress")

	// ErrNotRunning is returned when cancelling with no active run.
	ErrNotRunning = errors.New("no sync is running")
)

// Progress is the process-wide state of the current or most recent run.
type Progress struct {
	mu              sync.Mutex
	running         bool
	cancelRequested bool
	cancelCh        chan struct{} // closed on cancel; replaced per run
	runID           string
	fullSync        bool
	currentChannel  string
	startedAt       *time.Time
	lastCompletedAt *time.Time

	totalChannels  atomic.Int64
	syncedChannels atomic.Int64
	fetched        atomic.Int64
	inserted       atomic.Int64
}

// NewProgress returns an idle Progress.
func NewProgress() *Progress {
	return &Progress{cancelCh: make(chan struct{})}
}

// TryStart atomically moves an idle Progress into a fresh running state.
// It returns false, changing nothing, when a run is already active.
func (p *Progress) TryStart(runID string, totalChannels int, fullSync bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}

	now := time.Now().UTC()
	p.running = true
	p.cancelRequested = false
	p.cancelCh = make(chan struct{})
	p.runID = runID
	p.fullSync = fullSync
	p.currentChannel = ""
	p.startedAt = &now

	p.totalChannels.Store(int64(totalChannels))
	p.syncedChannels.Store(0)
	p.fetched.Store(0)
	p.inserted.Store(0)
	return true
}

// RequestCancel raises the cancel flag of the active run.
func (p *Progress) RequestCancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrNotRunning
	}
	if !p.cancelRequested {
		p.cancelRequested = true
		close(p.cancelCh)
	}
	return nil
}

// CancelRequested reports whether the active run was asked to stop.
func (p *Progress) CancelRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelRequested
}

// Cancelled returns a channel closed when the active run is cancelled.
func (p *Progress) Cancelled() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelCh
}

// Running reports whether a run is active.
func (p *Progress) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetCurrentChannel records the channel a worker is paging. Last writer wins.
func (p *Progress) SetCurrentChannel(name string) {
	p.mu.Lock()
	p.currentChannel = name
	p.mu.Unlock()
}

// AddFetched adds to the run's fetched-videos counter.
func (p *Progress) AddFetched(n int) { p.fetched.Add(int64(n)) }

// AddInserted adds to the run's newly-inserted counter.
func (p *Progress) AddInserted(n int) { p.inserted.Add(int64(n)) }

// ChannelDone counts one finished channel, whatever its outcome.
func (p *Progress) ChannelDone() { p.syncedChannels.Add(1) }

// Finish ends the active run and stamps its completion time. Counters are
// left in place so the last run's totals stay visible.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	p.running = false
	p.cancelRequested = false
	p.currentChannel = ""
	p.lastCompletedAt = &now
}

// Snapshot returns a consistent copy for status reporting.
func (p *Progress) Snapshot() models.SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.SyncStatus{
		RunID:              p.runID,
		Running:            p.running,
		FullSync:           p.fullSync,
		TotalChannels:      int(p.totalChannels.Load()),
		SyncedChannels:     int(p.syncedChannels.Load()),
		CurrentChannelName: p.currentChannel,
		TotalVideosFetched: p.fetched.Load(),
		TotalVideosNew:     p.inserted.Load(),
		CancelRequested:    p.cancelRequested,
		StartedAt:          p.startedAt,
		LastCompletedAt:    p.lastCompletedAt,
	}
}

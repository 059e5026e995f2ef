package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// ErrNoChannels is returned when neither the request nor the roster names
// any channel.
var ErrNoChannels = errors.New("no channels to sync")

// StartRequest describes a sync run. Empty Channels means the full roster.
type StartRequest struct {
	APIKey   string
	FullSync bool
	Channels []models.ChannelRef
}

// RunSummary is the outcome of a finished run.
type RunSummary struct {
	RunID         string          `json:"run_id"`
	FullSync      bool            `json:"full_sync"`
	Cancelled     bool            `json:"cancelled"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	TotalFetched  int             `json:"total_fetched"`
	TotalInserted int             `json:"total_inserted"`
	Channels      []ChannelResult `json:"channels"`
}

// Notifier is told about every finished run. Implementations must not
// block for long; the run's Done channel closes only after they return.
type Notifier interface {
	NotifySyncComplete(ctx context.Context, summary RunSummary)
}

// Run is a handle on a started sync.
type Run struct {
	ID   string
	done chan struct{}

	mu      sync.Mutex
	summary RunSummary
}

// Done is closed once every channel worker has finished and progress
// has been cleared.
func (r *Run) Done() <-chan struct{} { return r.done }

// Summary returns the run outcome. It is complete only after Done closes.
func (r *Run) Summary() RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Orchestrator fans paginators out across channels, one run at a time.
type Orchestrator struct {
	paginator      *Paginator
	progress       *Progress
	roster         []models.ChannelRef
	maxConcurrency int
	notifier       Notifier

	// Runs outlive the HTTP request that starts them, so they derive from
	// this context rather than the request's.
	baseCtx context.Context
	wg      sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMaxConcurrency bounds concurrently paginated channels; n <= 0 means
// one worker per channel.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrency = n }
}

// WithNotifier registers a run-completion notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// NewOrchestrator creates an Orchestrator. Cancelling baseCtx stops every
// in-flight run at its next safe point.
func NewOrchestrator(baseCtx context.Context, p *Paginator, progress *Progress, roster []models.ChannelRef, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		paginator: p,
		progress:  progress,
		roster:    roster,
		baseCtx:   baseCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Progress exposes the shared progress object.
func (o *Orchestrator) Progress() *Progress { return o.progress }

// Status returns a snapshot of the current or last run.
func (o *Orchestrator) Status() models.SyncStatus { return o.progress.Snapshot() }

// Cancel asks the active run to stop. Workers stop at their next page
// boundary; the call does not wait for them.
func (o *Orchestrator) Cancel() error {
	if err := o.progress.RequestCancel(); err != nil {
		return err
	}
	log.Println("⏹️  Sync cancel requested")
	return nil
}

// Wait blocks until every started run has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Start launches a run in the background. It returns ErrSyncInProgress if
// another run is active.
func (o *Orchestrator) Start(req StartRequest) (*Run, error) {
	jobs := o.resolve(req)
	if len(jobs) == 0 {
		return nil, ErrNoChannels
	}

	run := &Run{ID: uuid.New().String(), done: make(chan struct{})}
	if !o.progress.TryStart(run.ID, len(jobs), req.FullSync) {
		return nil, ErrSyncInProgress
	}

	mode := "incremental"
	if req.FullSync {
		mode = "full"
	}
	log.Printf("🔄 Sync %s started: %d channels (%s)", run.ID, len(jobs), mode)

	o.wg.Add(1)
	go o.execute(run, jobs, req.FullSync)
	return run, nil
}

// resolve turns a request into channel jobs. Names given in the request
// win over roster names; duplicate ids collapse into one job.
func (o *Orchestrator) resolve(req StartRequest) []ChannelJob {
	rosterNames := make(map[string]string, len(o.roster))
	for _, c := range o.roster {
		rosterNames[c.ID] = c.Name
	}

	refs := req.Channels
	if len(refs) == 0 {
		refs = o.roster
	}

	seen := map[string]bool{}
	jobs := make([]ChannelJob, 0, len(refs))
	for _, c := range refs {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		name := c.Name
		if name == "" {
			name = rosterNames[c.ID]
		}
		jobs = append(jobs, ChannelJob{
			ChannelID:   c.ID,
			ChannelName: name,
			APIKey:      req.APIKey,
			FullSync:    req.FullSync,
		})
	}
	return jobs
}

func (o *Orchestrator) execute(run *Run, jobs []ChannelJob, fullSync bool) {
	defer o.wg.Done()
	started := time.Now().UTC()
	results := make([]ChannelResult, len(jobs))

	// Whatever happens below, progress must not stay "running".
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Sync %s aborted: %v", run.ID, r)
		}
		cancelled := o.progress.CancelRequested()
		o.progress.Finish()

		summary := summarize(run.ID, fullSync, cancelled, started, results)
		run.mu.Lock()
		run.summary = summary
		run.mu.Unlock()

		log.Printf("🏁 Sync %s finished: %d fetched, %d new, cancelled=%v",
			run.ID, summary.TotalFetched, summary.TotalInserted, cancelled)
		if o.notifier != nil {
			o.notifier.NotifySyncComplete(o.baseCtx, summary)
		}
		close(run.done)
	}()

	g, ctx := errgroup.WithContext(o.baseCtx)
	if o.maxConcurrency > 0 {
		g.SetLimit(o.maxConcurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			defer o.progress.ChannelDone()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ Channel worker for %s panicked: %v", job.ChannelID, r)
					results[i] = ChannelResult{ChannelID: job.ChannelID, ChannelName: job.ChannelName}.
						finish(StateFailed, fmt.Errorf("worker panic: %v", r))
				}
			}()

			res := o.paginator.Run(ctx, job, o.progress)
			results[i] = res
			switch res.State {
			case StateDone:
				log.Printf("✅ %s: %d fetched, %d new", displayName(job), res.Fetched, res.Inserted)
			case StateFailed:
				log.Printf("❌ %s failed: %v", displayName(job), res.Err)
			}
			// Per-channel failures stay isolated; returning nil keeps the
			// group context alive for the other channels.
			return nil
		})
	}
	_ = g.Wait()
}

func summarize(runID string, fullSync, cancelled bool, started time.Time, results []ChannelResult) RunSummary {
	s := RunSummary{
		RunID:      runID,
		FullSync:   fullSync,
		Cancelled:  cancelled,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Channels:   results,
	}
	for _, r := range results {
		s.TotalFetched += r.Fetched
		s.TotalInserted += r.Inserted
	}
	return s
}

func displayName(j ChannelJob) string {
	if j.ChannelName != "" {
		return j.ChannelName
	}
	return j.ChannelID
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/memstore"
	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/holodex"
)

// fakeFetcher serves scripted responses per channel and records every
// requested offset. Once a script runs out it serves an empty page.
type fakeFetcher struct {
	mu      sync.Mutex
	scripts map[string][]step
	calls   map[string][]int
	// pageFn, when set, replaces scripts entirely.
	pageFn func(ctx context.Context, channelID string, limit, offset int) ([]models.Video, error)
}

type step struct {
	videos  []models.Video
	skipped int
	err     error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{scripts: map[string][]step{}, calls: map[string][]int{}}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, apiKey, channelID string, limit, offset int) (holodex.Page, error) {
	f.mu.Lock()
	f.calls[channelID] = append(f.calls[channelID], offset)
	fn := f.pageFn
	var s step
	if script := f.scripts[channelID]; len(script) > 0 {
		s = script[0]
		f.scripts[channelID] = script[1:]
	}
	f.mu.Unlock()

	if fn != nil {
		videos, err := fn(ctx, channelID, limit, offset)
		return holodex.Page{Videos: videos}, err
	}
	return holodex.Page{Videos: s.videos, Skipped: s.skipped}, s.err
}

func (f *fakeFetcher) offsets(channelID string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls[channelID]...)
}

func page(channel string, from, n int) []models.Video {
	out := make([]models.Video, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		idx := from + i
		out[i] = models.Video{
			ID:          fmt.Sprintf("%s-%03d", channel, idx),
			ChannelID:   channel,
			AvailableAt: base.Add(-time.Duration(idx) * time.Hour),
		}
	}
	return out
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) bool {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return true
}

func testConfig() PaginatorConfig {
	return PaginatorConfig{
		PageSize:    3,
		MaxRetries:  5,
		BackoffBase: 3 * time.Second,
		BackoffMax:  30 * time.Second,
		PageDelay:   50 * time.Millisecond,
	}
}

func runningProgress(t *testing.T) *Progress {
	t.Helper()
	p := NewProgress()
	if !p.TryStart("test", 1, false) {
		t.Fatal("TryStart failed on idle progress")
	}
	return p
}

func TestIncrementalStopsAtFirstKnownPage(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)
	// pages 2 and 3 are already mirrored
	_, _ = store.InsertBatchIfAbsent(ctx, page("ch", 3, 6))

	f := newFakeFetcher()
	f.scripts["ch"] = []step{{videos: page("ch", 0, 3)}, {videos: page("ch", 3, 3)}, {videos: page("ch", 6, 3)}}

	p := NewPaginator(f, store, testConfig())
	rec := &sleepRecorder{}
	p.sleep = rec.sleep

	res := p.Run(ctx, ChannelJob{ChannelID: "ch"}, runningProgress(t))
	if res.State != StateDone {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	if got := f.offsets("ch"); len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Errorf("offsets = %v, want [0 3]", got)
	}
	if res.Fetched != 6 || res.Inserted != 3 || res.Pages != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestFullSyncWalksUntilShortPage(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)
	_, _ = store.InsertBatchIfAbsent(ctx, page("ch", 0, 6))

	f := newFakeFetcher()
	f.scripts["ch"] = []step{{videos: page("ch", 0, 3)}, {videos: page("ch", 3, 3)}, {videos: page("ch", 6, 2)}, {videos: page("ch", 8, 3)}}

	p := NewPaginator(f, store, testConfig())
	p.sleep = (&sleepRecorder{}).sleep

	res := p.Run(ctx, ChannelJob{ChannelID: "ch", FullSync: true}, runningProgress(t))
	if res.State != StateDone {
		t.Fatalf("state = %s", res.State)
	}
	if got := f.offsets("ch"); len(got) != 3 || got[2] != 6 {
		t.Errorf("offsets = %v, want [0 3 6]", got)
	}
	if res.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", res.Inserted)
	}
}

func TestSkippedRecordsCountTowardPageSize(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)

	f := newFakeFetcher()
	// the first page had one undecodable record; it is still a full page
	f.scripts["ch"] = []step{
		{videos: page("ch", 0, 2), skipped: 1},
		{videos: page("ch", 3, 3)},
		{videos: page("ch", 6, 1)},
	}

	p := NewPaginator(f, store, testConfig())
	p.sleep = (&sleepRecorder{}).sleep

	res := p.Run(ctx, ChannelJob{ChannelID: "ch", FullSync: true}, runningProgress(t))
	if res.State != StateDone {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	if got := f.offsets("ch"); len(got) != 3 || got[1] != 3 || got[2] != 6 {
		t.Errorf("offsets = %v, want [0 3 6]", got)
	}
	if res.Fetched != 6 || res.Inserted != 6 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
	if n, _ := store.Count(ctx, query.All()); n != 6 {
		t.Errorf("stored = %d, want 6", n)
	}
}

func TestEmptyPageEndsChannel(t *testing.T) {
	f := newFakeFetcher()
	f.scripts["ch"] = []step{{videos: []models.Video{}}}
	p := NewPaginator(f, memstore.New(0), testConfig())
	p.sleep = (&sleepRecorder{}).sleep

	res := p.Run(context.Background(), ChannelJob{ChannelID: "ch"}, runningProgress(t))
	if res.State != StateDone || res.Pages != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestThrottlingBacksOffWithoutAdvancing(t *testing.T) {
	f := newFakeFetcher()
	f.scripts["ch"] = []step{
		{err: holodex.ErrThrottled},
		{err: holodex.ErrThrottled},
		{err: holodex.ErrThrottled},
		{err: holodex.ErrThrottled},
		{err: holodex.ErrThrottled},
		{videos: page("ch", 0, 1)},
	}

	p := NewPaginator(f, memstore.New(0), testConfig())
	rec := &sleepRecorder{}
	p.sleep = rec.sleep

	res := p.Run(context.Background(), ChannelJob{ChannelID: "ch"}, runningProgress(t))
	if res.State != StateDone {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	for i, off := range f.offsets("ch") {
		if off != 0 {
			t.Errorf("call %d used offset %d; throttled pages must be retried in place", i, off)
		}
	}

	want := []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second, 30 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay %d = %s, want %s", i, rec.delays[i], want[i])
		}
		if i > 0 && rec.delays[i] < rec.delays[i-1] {
			t.Errorf("delays decreased: %v", rec.delays)
		}
	}
}

func TestThrottlingGivesUpAfterMaxRetries(t *testing.T) {
	f := newFakeFetcher()
	f.pageFn = func(context.Context, string, int, int) ([]models.Video, error) {
		return nil, holodex.ErrThrottled
	}
	cfg := testConfig()
	cfg.MaxRetries = 2

	p := NewPaginator(f, memstore.New(0), cfg)
	rec := &sleepRecorder{}
	p.sleep = rec.sleep

	res := p.Run(context.Background(), ChannelJob{ChannelID: "ch"}, runningProgress(t))
	if res.State != StateFailed || !errors.Is(res.Err, holodex.ErrThrottled) {
		t.Fatalf("result = %+v", res)
	}
	if calls := len(f.offsets("ch")); calls != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls)
	}
	if len(rec.delays) != 2 {
		t.Errorf("delays = %v, want 2 waits", rec.delays)
	}
}

func TestHardErrorFailsChannel(t *testing.T) {
	f := newFakeFetcher()
	f.scripts["ch"] = []step{{err: &holodex.StatusError{StatusCode: 500}}, {videos: page("ch", 0, 3)}}

	p := NewPaginator(f, memstore.New(0), testConfig())
	p.sleep = (&sleepRecorder{}).sleep

	res := p.Run(context.Background(), ChannelJob{ChannelID: "ch"}, runningProgress(t))
	if res.State != StateFailed || !errors.Is(res.Err, holodex.ErrUpstream) {
		t.Fatalf("result = %+v", res)
	}
	if calls := len(f.offsets("ch")); calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

type failingWriter struct{}

func (failingWriter) InsertBatchIfAbsent(context.Context, []models.Video) (int, error) {
	return 0, errors.New("disk full")
}

func TestStoreErrorFailsChannel(t *testing.T) {
	f := newFakeFetcher()
	f.scripts["ch"] = []step{{videos: page("ch", 0, 3)}}
	p := NewPaginator(f, failingWriter{}, testConfig())
	p.sleep = (&sleepRecorder{}).sleep

	res := p.Run(context.Background(), ChannelJob{ChannelID: "ch"}, runningProgress(t))
	if res.State != StateFailed || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestCancelledBeforeFetch(t *testing.T) {
	f := newFakeFetcher()
	progress := runningProgress(t)
	if err := progress.RequestCancel(); err != nil {
		t.Fatal(err)
	}

	p := NewPaginator(f, memstore.New(0), testConfig())
	res := p.Run(context.Background(), ChannelJob{ChannelID: "ch"}, progress)
	if res.State != StateCancelled || res.Err != nil {
		t.Errorf("result = %+v", res)
	}
	if calls := len(f.offsets("ch")); calls != 0 {
		t.Errorf("calls = %d, want none after cancel", calls)
	}
}

func TestChannelNameFilledFromJob(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)
	f := newFakeFetcher()
	v := models.Video{ID: "x", AvailableAt: time.Now().UTC()}
	f.scripts["ch"] = []step{{videos: []models.Video{v}}}

	p := NewPaginator(f, store, testConfig())
	p.sleep = (&sleepRecorder{}).sleep
	p.Run(ctx, ChannelJob{ChannelID: "ch", ChannelName: "Channel"}, runningProgress(t))

	got, ok := store.Get("x")
	if !ok || got.ChannelID != "ch" || got.ChannelName != "Channel" {
		t.Errorf("stored = %+v", got)
	}
}

func TestBackoffCurve(t *testing.T) {
	cfg := DefaultPaginatorConfig()
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := cfg.Backoff(attempt)
		if d < prev || d > cfg.BackoffMax {
			t.Errorf("Backoff(%d) = %s (prev %s)", attempt, d, prev)
		}
		prev = d
	}
	if cfg.Backoff(1) != 3*time.Second || cfg.Backoff(10) != 30*time.Second {
		t.Errorf("curve endpoints = %s .. %s", cfg.Backoff(1), cfg.Backoff(10))
	}
}

// --- Progress ---

func TestProgressLifecycle(t *testing.T) {
	p := NewProgress()
	if err := p.RequestCancel(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("cancel while idle = %v, want ErrNotRunning", err)
	}
	if !p.TryStart("r1", 2, true) {
		t.Fatal("first TryStart should succeed")
	}
	if p.TryStart("r2", 5, false) {
		t.Fatal("second TryStart must be rejected while running")
	}

	p.AddFetched(10)
	p.AddInserted(4)
	p.ChannelDone()
	p.SetCurrentChannel("Aqua")
	_ = p.RequestCancel()
	_ = p.RequestCancel() // second cancel must not close the channel twice

	snap := p.Snapshot()
	if snap.RunID != "r1" || !snap.Running || !snap.FullSync || snap.TotalChannels != 2 ||
		snap.SyncedChannels != 1 || snap.TotalVideosFetched != 10 || snap.TotalVideosNew != 4 ||
		snap.CurrentChannelName != "Aqua" || !snap.CancelRequested {
		t.Errorf("snapshot = %+v", snap)
	}
	select {
	case <-p.Cancelled():
	default:
		t.Error("Cancelled() channel should be closed")
	}

	p.Finish()
	snap = p.Snapshot()
	if snap.Running || snap.CancelRequested || snap.LastCompletedAt == nil {
		t.Errorf("after Finish = %+v", snap)
	}
	if snap.TotalVideosFetched != 10 {
		t.Error("Finish should keep the last run's totals")
	}

	if !p.TryStart("r2", 1, false) {
		t.Fatal("TryStart after Finish should succeed")
	}
	if snap := p.Snapshot(); snap.TotalVideosFetched != 0 || snap.CancelRequested {
		t.Errorf("new run not reset: %+v", snap)
	}
}

// --- Orchestrator ---

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []RunSummary
}

func (n *recordingNotifier) NotifySyncComplete(_ context.Context, s RunSummary) {
	n.mu.Lock()
	n.summaries = append(n.summaries, s)
	n.mu.Unlock()
}

func waitRun(t *testing.T, run *Run) RunSummary {
	t.Helper()
	select {
	case <-run.Done():
		return run.Summary()
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	return RunSummary{}
}

func TestOrchestratorIsolatesChannelFailures(t *testing.T) {
	f := newFakeFetcher()
	f.scripts["good"] = []step{{videos: page("good", 0, 2)}}
	f.scripts["bad"] = []step{{err: &holodex.StatusError{StatusCode: 503}}}

	cfg := testConfig()
	cfg.PageDelay = time.Millisecond
	store := memstore.New(0)
	notifier := &recordingNotifier{}
	roster := []models.ChannelRef{{ID: "good", Name: "Good Ch."}, {ID: "bad", Name: "Bad Ch."}}

	o := NewOrchestrator(context.Background(), NewPaginator(f, store, cfg), NewProgress(), roster,
		WithMaxConcurrency(1), WithNotifier(notifier))

	run, err := o.Start(StartRequest{})
	if err != nil {
		t.Fatal(err)
	}
	summary := waitRun(t, run)

	states := map[string]ChannelState{}
	for _, r := range summary.Channels {
		states[r.ChannelID] = r.State
	}
	if states["good"] != StateDone || states["bad"] != StateFailed {
		t.Errorf("states = %v", states)
	}
	if store.Len() != 2 || summary.TotalInserted != 2 {
		t.Errorf("stored %d, summary inserted %d", store.Len(), summary.TotalInserted)
	}

	status := o.Status()
	if status.Running || status.SyncedChannels != 2 || status.LastCompletedAt == nil {
		t.Errorf("status = %+v", status)
	}
	if len(notifier.summaries) != 1 || notifier.summaries[0].RunID != run.ID {
		t.Errorf("notifier got %+v", notifier.summaries)
	}
}

func TestOrchestratorRejectsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	f := newFakeFetcher()
	f.pageFn = func(ctx context.Context, channelID string, limit, offset int) ([]models.Video, error) {
		<-release
		return nil, nil
	}

	o := NewOrchestrator(context.Background(), NewPaginator(f, memstore.New(0), testConfig()), NewProgress(),
		[]models.ChannelRef{{ID: "a"}})

	run, err := o.Start(StartRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Start(StartRequest{FullSync: true}); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second Start = %v, want ErrSyncInProgress", err)
	}

	close(release)
	waitRun(t, run)

	run2, err := o.Start(StartRequest{})
	if err != nil {
		t.Fatalf("Start after finish = %v", err)
	}
	waitRun(t, run2)
}

func TestOrchestratorCancelStopsEveryChannel(t *testing.T) {
	f := newFakeFetcher()
	var fetches sync.WaitGroup
	fetches.Add(3)
	var once [3]sync.Once
	f.pageFn = func(ctx context.Context, channelID string, limit, offset int) ([]models.Video, error) {
		switch channelID {
		case "a":
			once[0].Do(fetches.Done)
		case "b":
			once[1].Do(fetches.Done)
		case "c":
			once[2].Do(fetches.Done)
		}
		// endless full pages of brand-new videos
		return page(channelID, offset, limit), nil
	}

	cfg := testConfig()
	cfg.PageDelay = 2 * time.Millisecond
	o := NewOrchestrator(context.Background(), NewPaginator(f, memstore.New(0), cfg), NewProgress(),
		[]models.ChannelRef{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	run, err := o.Start(StartRequest{FullSync: true})
	if err != nil {
		t.Fatal(err)
	}
	fetches.Wait() // every channel is mid-walk

	if err := o.Cancel(); err != nil {
		t.Fatalf("Cancel() = %v", err)
	}
	summary := waitRun(t, run)

	if !summary.Cancelled {
		t.Error("summary should record the cancel")
	}
	for _, r := range summary.Channels {
		if r.State != StateCancelled {
			t.Errorf("%s state = %s, want cancelled", r.ChannelID, r.State)
		}
	}
	if st := o.Status(); st.Running || st.CancelRequested {
		t.Errorf("status after cancel = %+v", st)
	}
	if err := o.Cancel(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Cancel() when idle = %v, want ErrNotRunning", err)
	}
}

func TestOrchestratorResolvesChannels(t *testing.T) {
	o := NewOrchestrator(context.Background(), nil, NewProgress(),
		[]models.ChannelRef{{ID: "a", Name: "Roster A"}, {ID: "b", Name: "Roster B"}})

	jobs := o.resolve(StartRequest{APIKey: "k", Channels: []models.ChannelRef{
		{ID: "a", Name: "Request A"}, {ID: "b"}, {ID: "a"}, {ID: ""}, {ID: "z"},
	}})
	if len(jobs) != 3 {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].ChannelName != "Request A" || jobs[1].ChannelName != "Roster B" || jobs[2].ChannelName != "" {
		t.Errorf("names = %q %q %q", jobs[0].ChannelName, jobs[1].ChannelName, jobs[2].ChannelName)
	}
	if jobs[0].APIKey != "k" {
		t.Error("api key not propagated")
	}

	if len(o.resolve(StartRequest{})) != 2 {
		t.Error("empty request should use the roster")
	}

	empty := NewOrchestrator(context.Background(), nil, NewProgress(), nil)
	if _, err := empty.Start(StartRequest{}); !errors.Is(err, ErrNoChannels) {
		t.Errorf("Start with no channels = %v", err)
	}
}

func TestSchedulerRunsOnStartAndSkipsBusyTicks(t *testing.T) {
	f := newFakeFetcher()
	o := NewOrchestrator(context.Background(), NewPaginator(f, memstore.New(0), testConfig()), NewProgress(),
		[]models.ChannelRef{{ID: "a"}})

	// interval 0: trigger once, then return
	NewScheduler(o, 0, "key", true).Run(context.Background())
	o.Wait()
	if calls := len(f.offsets("a")); calls != 1 {
		t.Errorf("fetch calls = %d, want 1 from the start-up sync", calls)
	}

	// a tick while a run is active must not fail or start a second run
	block := make(chan struct{})
	f.pageFn = func(context.Context, string, int, int) ([]models.Video, error) {
		<-block
		return nil, nil
	}
	run, err := o.Start(StartRequest{})
	if err != nil {
		t.Fatal(err)
	}
	NewScheduler(o, 0, "key", true).trigger()
	close(block)
	waitRun(t, run)
}

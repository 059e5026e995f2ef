package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/holodex"
)

// Fetcher lists one page of a channel's videos, newest first.
// *holodex.Client satisfies it.
type Fetcher interface {
	FetchPage(ctx context.Context, apiKey, channelID string, limit, offset int) (holodex.Page, error)
}

// BatchWriter is the slice of the Record Store the paginator writes through.
type BatchWriter interface {
	InsertBatchIfAbsent(ctx context.Context, vs []models.Video) (int, error)
}

// ChannelState is the terminal state of one channel's pagination.
type ChannelState string

const (
	StateDone      ChannelState = "done"
	StateCancelled ChannelState = "cancelled"
	StateFailed    ChannelState = "failed"
)

// ChannelJob describes one channel to sync.
type ChannelJob struct {
	ChannelID   string
	ChannelName string
	APIKey      string
	FullSync    bool
}

// ChannelResult summarizes one channel's pagination.
type ChannelResult struct {
	ChannelID   string       `json:"channel_id"`
	ChannelName string       `json:"channel_name"`
	State       ChannelState `json:"state"`
	Pages       int          `json:"pages"`
	Fetched     int          `json:"fetched"`
	Inserted    int          `json:"inserted"`
	Skipped     int          `json:"skipped,omitempty"`
	Err         error        `json:"-"`
	Error       string       `json:"error,omitempty"`
}

// PaginatorConfig holds the paging and backoff parameters.
type PaginatorConfig struct {
	PageSize    int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	PageDelay   time.Duration
}

// DefaultPaginatorConfig mirrors the upstream's informal courtesy limits.
func DefaultPaginatorConfig() PaginatorConfig {
	return PaginatorConfig{
		PageSize:    100,
		MaxRetries:  5,
		BackoffBase: 3 * time.Second,
		BackoffMax:  30 * time.Second,
		PageDelay:   50 * time.Millisecond,
	}
}

// Backoff returns the wait before retry number attempt (1-based):
// base doubled per attempt, capped at max.
func (c PaginatorConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := c.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.BackoffMax || d <= 0 {
			return c.BackoffMax
		}
	}
	if d > c.BackoffMax {
		return c.BackoffMax
	}
	return d
}

// sleepFunc waits for d. It returns early, with false, when ctx ends or
// wake is closed.
type sleepFunc func(ctx context.Context, d time.Duration, wake <-chan struct{}) bool

func sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-wake:
		return false
	}
}

// Paginator walks one channel's upstream history page by page.
type Paginator struct {
	fetcher Fetcher
	store   BatchWriter
	cfg     PaginatorConfig
	sleep   sleepFunc
}

// NewPaginator creates a Paginator. Zero config fields use defaults.
func NewPaginator(f Fetcher, s BatchWriter, cfg PaginatorConfig) *Paginator {
	def := DefaultPaginatorConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	return &Paginator{fetcher: f, store: s, cfg: cfg, sleep: sleep}
}

// Run pages through one channel until the history is exhausted, the
// incremental stop rule fires, the run is cancelled, or the channel fails.
// It never returns an error: the outcome is in ChannelResult.
//
// Pages are fetched strictly in offset order. A throttled fetch retries
// the same offset after an exponential backoff.
func (p *Paginator) Run(ctx context.Context, job ChannelJob, progress *Progress) ChannelResult {
	res := ChannelResult{ChannelID: job.ChannelID, ChannelName: job.ChannelName}
	name := job.ChannelName
	if name == "" {
		name = job.ChannelID
	}
	wake := progress.Cancelled()

	offset := 0
	retries := 0
	for {
		if progress.CancelRequested() || ctx.Err() != nil {
			log.Printf("⏹️  Sync cancelled for %s", name)
			return res.finish(StateCancelled, nil)
		}
		progress.SetCurrentChannel(name)

		page, err := p.fetcher.FetchPage(ctx, job.APIKey, job.ChannelID, p.cfg.PageSize, offset)
		if errors.Is(err, holodex.ErrThrottled) {
			retries++
			if retries > p.cfg.MaxRetries {
				log.Printf("❌ Max retries exceeded for %s", name)
				return res.finish(StateFailed, fmt.Errorf("throttled %d times at offset %d: %w", retries, offset, err))
			}
			wait := p.cfg.Backoff(retries)
			log.Printf("⚠️  Rate limited (429) for %s. Retry %d/%d, waiting %s", name, retries, p.cfg.MaxRetries, wait)
			p.sleep(ctx, wait, wake)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("⏹️  Sync cancelled for %s", name)
				return res.finish(StateCancelled, nil)
			}
			log.Printf("❌ Fetch failed for %s at offset %d: %v", name, offset, err)
			return res.finish(StateFailed, err)
		}
		retries = 0

		if page.Len() == 0 {
			return res.finish(StateDone, nil)
		}
		videos := page.Videos
		for i := range videos {
			if videos[i].ChannelID == "" {
				videos[i].ChannelID = job.ChannelID
			}
			if videos[i].ChannelName == "" {
				videos[i].ChannelName = job.ChannelName
			}
		}

		inserted := 0
		if len(videos) > 0 {
			inserted, err = p.store.InsertBatchIfAbsent(ctx, videos)
			if err != nil {
				log.Printf("❌ Storing page for %s at offset %d failed: %v", name, offset, err)
				return res.finish(StateFailed, fmt.Errorf("store page at offset %d: %w", offset, err))
			}
		}

		res.Pages++
		res.Fetched += len(videos)
		res.Inserted += inserted
		res.Skipped += page.Skipped
		progress.AddFetched(len(videos))
		progress.AddInserted(inserted)
		log.Printf("📥 %s: offset %d, fetched %d, new %d", name, offset, len(videos), inserted)

		// Skipped records still count toward the page size: a full page
		// with one bad record is not the end of the history.
		if page.Len() < p.cfg.PageSize {
			return res.finish(StateDone, nil)
		}
		if !job.FullSync && inserted == 0 {
			// everything older than a fully known page is known as well
			return res.finish(StateDone, nil)
		}

		offset += p.cfg.PageSize
		p.sleep(ctx, p.cfg.PageDelay, wake)
	}
}

func (r ChannelResult) finish(state ChannelState, err error) ChannelResult {
	r.State = state
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

package ingest

import (
	"context"
	"errors"
	"log"
	"time"
)

// Scheduler triggers an incremental sync of the full roster on a fixed
// interval. A tick that finds a run in progress is skipped.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	apiKey   string
	onStart  bool
}

// NewScheduler creates a Scheduler. With runOnStart the first sync starts
// immediately instead of after one interval.
func NewScheduler(orch *Orchestrator, interval time.Duration, apiKey string, runOnStart bool) *Scheduler {
	return &Scheduler{orch: orch, interval: interval, apiKey: apiKey, onStart: runOnStart}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.onStart {
		s.trigger()
	}
	if s.interval <= 0 {
		return
	}

	log.Printf("⏰ Scheduled sync every %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger()
		}
	}
}

func (s *Scheduler) trigger() {
	_, err := s.orch.Start(StartRequest{APIKey: s.apiKey})
	switch {
	case errors.Is(err, ErrSyncInProgress):
		log.Println("⏭️  Scheduled sync skipped: a run is already in progress")
	case err != nil:
		log.Printf("⚠️  Scheduled sync not started: %v", err)
	}
}

package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
	"github.com/Shimizu-Technology/holo-search-api/internal/store"
)

// Compile-time check that Store satisfies the shared interface.
var _ store.Store = (*Store)(nil)

func vid(id, channel, title string, at time.Time) models.Video {
	return models.Video{ID: id, ChannelID: channel, Title: title, AvailableAt: at, Status: models.StatusPast}
}

func TestInsertIsFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	at := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	first := vid("a", "ch", "original title", at)
	inserted, err := s.InsertIfAbsent(ctx, &first)
	if err != nil || !inserted {
		t.Fatalf("first insert = %v, %v", inserted, err)
	}

	second := vid("a", "ch", "rewritten title", at.Add(time.Hour))
	inserted, err = s.InsertIfAbsent(ctx, &second)
	if err != nil || inserted {
		t.Fatalf("second insert = %v, %v; want false, nil", inserted, err)
	}

	got, _ := s.Get("a")
	if got.Title != "original title" || !got.AvailableAt.Equal(at) {
		t.Errorf("stored record changed: %+v", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestInsertBatchCountsOnlyNewRows(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	at := time.Now().UTC()

	n, err := s.InsertBatchIfAbsent(ctx, []models.Video{vid("a", "c", "", at), vid("b", "c", "", at)})
	if err != nil || n != 2 {
		t.Fatalf("first batch = %d, %v", n, err)
	}
	n, err = s.InsertBatchIfAbsent(ctx, []models.Video{vid("b", "c", "", at), vid("c", "c", "", at), vid("c", "c", "", at)})
	if err != nil || n != 1 {
		t.Fatalf("second batch = %d, %v; want 1 (duplicates within a batch count once)", n, err)
	}
}

func TestConcurrentInsertsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	at := time.Now().UTC()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.InsertBatchIfAbsent(ctx, []models.Video{vid("same", "c", "", at)})
			if err != nil {
				t.Error(err)
			}
			wins.Add(int32(n))
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", wins.Load())
	}
}

func TestQueryOrderingAndPagination(t *testing.T) {
	ctx := context.Background()
	s := New(3)
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	var batch []models.Video
	for i := 0; i < 5; i++ {
		batch = append(batch, vid(fmt.Sprintf("v%d", i), "ch", "t", base.Add(time.Duration(i)*time.Hour)))
	}
	if _, err := s.InsertBatchIfAbsent(ctx, batch); err != nil {
		t.Fatal(err)
	}

	page, err := s.Query(ctx, query.All(), 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "v4" || page[1].ID != "v3" {
		t.Errorf("first page = %v, want v4,v3", ids(page))
	}

	page, _ = s.Query(ctx, query.All(), 2, 4)
	if len(page) != 1 || page[0].ID != "v0" {
		t.Errorf("last page = %v, want v0", ids(page))
	}

	page, _ = s.Query(ctx, query.All(), 50, 0)
	if len(page) != 3 {
		t.Errorf("limit should clamp to max 3, got %d", len(page))
	}

	page, _ = s.Query(ctx, query.All(), 10, 99)
	if page == nil || len(page) != 0 {
		t.Errorf("past-the-end page = %v, want empty non-nil", page)
	}

	total, _ := s.Count(ctx, query.All())
	if total != 5 {
		t.Errorf("Count() = %d, want 5", total)
	}
}

func TestLatestAvailableAt(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	old := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, _ = s.InsertBatchIfAbsent(ctx, []models.Video{vid("a", "ch", "", old), vid("b", "ch", "", recent), vid("c", "other", "", recent.Add(time.Hour))})

	got, err := s.LatestAvailableAt(ctx, "ch")
	if err != nil || got == nil || !got.Equal(recent) {
		t.Errorf("LatestAvailableAt(ch) = %v, %v", got, err)
	}
	got, _ = s.LatestAvailableAt(ctx, "empty")
	if got != nil {
		t.Errorf("LatestAvailableAt(empty) = %v, want nil", got)
	}
}

func TestScanIsAscendingAndStoppable(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _ = s.InsertBatchIfAbsent(ctx, []models.Video{
		vid("late", "ch", "", base.Add(2*time.Hour)),
		vid("early", "ch", "", base),
		vid("mid", "ch", "", base.Add(time.Hour)),
	})

	var seen []string
	stop := fmt.Errorf("stop")
	err := s.Scan(ctx, query.All(), func(v *models.Video) error {
		seen = append(seen, v.ID)
		if len(seen) == 2 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Errorf("Scan() error = %v, want stop", err)
	}
	if len(seen) != 2 || seen[0] != "early" || seen[1] != "mid" {
		t.Errorf("seen = %v", seen)
	}
}

func ids(vs []models.Video) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}

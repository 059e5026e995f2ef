// Package memstore is an in-memory Record Store.
//
// It evaluates the same predicate trees as the Postgres backend, which
// makes it the storage fixture for tests and a zero-setup backend for
// local development (STORE=memory). Data does not survive a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
)

// DefaultMaxLimit bounds Query when no explicit maximum is configured.
const DefaultMaxLimit = 100

// Store keeps videos in a map guarded by a RWMutex. The write lock is held
// for a whole batch, so readers never observe half a page.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*models.Video
	maxLimit int
}

// New creates an empty store. maxLimit <= 0 uses DefaultMaxLimit.
func New(maxLimit int) *Store {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Store{byID: make(map[string]*models.Video), maxLimit: maxLimit}
}

// Len returns the number of stored videos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Get returns a copy of a stored video.
func (s *Store) Get(id string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	if !ok {
		return models.Video{}, false
	}
	return *v, true
}

func (s *Store) insertLocked(v *models.Video) bool {
	if _, exists := s.byID[v.ID]; exists {
		return false
	}
	cp := *v
	s.byID[v.ID] = &cp
	return true
}

// InsertIfAbsent stores v unless its id already exists.
func (s *Store) InsertIfAbsent(ctx context.Context, v *models.Video) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(v), nil
}

// InsertBatchIfAbsent inserts a page of videos under a single lock.
func (s *Store) InsertBatchIfAbsent(ctx context.Context, vs []models.Video) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for i := range vs {
		if s.insertLocked(&vs[i]) {
			inserted++
		}
	}
	return inserted, nil
}

// matching collects matches sorted by available_at; desc selects newest first.
// Ties on available_at break on id so pagination is stable.
func (s *Store) matching(p query.Predicate, desc bool) []models.Video {
	s.mu.RLock()
	out := make([]models.Video, 0)
	for _, v := range s.byID {
		if query.Match(p, v) {
			out = append(out, *v)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.AvailableAt.Equal(b.AvailableAt) {
			if desc {
				return a.AvailableAt.After(b.AvailableAt)
			}
			return a.AvailableAt.Before(b.AvailableAt)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return out
}

// Query returns a page of matching videos, newest first.
func (s *Store) Query(ctx context.Context, p query.Predicate, limit, offset int) ([]models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	all := s.matching(p, true)
	if offset >= len(all) {
		return []models.Video{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Count returns the number of matching videos.
func (s *Store) Count(ctx context.Context, p query.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.byID {
		if query.Match(p, v) {
			n++
		}
	}
	return n, nil
}

// LatestAvailableAt returns the newest available_at for a channel.
func (s *Store) LatestAvailableAt(ctx context.Context, channelID string) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, v := range s.byID {
		if v.ChannelID != channelID {
			continue
		}
		if latest == nil || v.AvailableAt.After(*latest) {
			t := v.AvailableAt
			latest = &t
		}
	}
	return latest, nil
}

// Scan calls fn for each matching video, oldest first. fn runs on a
// snapshot, so it may call back into the store.
func (s *Store) Scan(ctx context.Context, p query.Predicate, fn func(*models.Video) error) error {
	for _, v := range s.matching(p, false) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&v); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

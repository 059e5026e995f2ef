package worker

import (
	"context"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
	"github.com/Shimizu-Technology/holo-search-api/internal/store"
)

// PooledStore routes every store operation through a Pool, bounding how
// many run at once. Reads may queue behind in-flight writes.
//
// Results are only read after the job reports success; a job abandoned by
// its caller may still be writing them.
type PooledStore struct {
	pool  *Pool
	inner store.Store
}

var _ store.Store = (*PooledStore)(nil)

// NewPooledStore wraps inner so its operations run on pool.
func NewPooledStore(pool *Pool, inner store.Store) *PooledStore {
	return &PooledStore{pool: pool, inner: inner}
}

func (s *PooledStore) InsertIfAbsent(ctx context.Context, v *models.Video) (bool, error) {
	var inserted bool
	err := s.pool.Do(ctx, JobStoreWrite, func(ctx context.Context) error {
		var err error
		inserted, err = s.inner.InsertIfAbsent(ctx, v)
		return err
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *PooledStore) InsertBatchIfAbsent(ctx context.Context, vs []models.Video) (int, error) {
	var n int
	err := s.pool.Do(ctx, JobStoreWrite, func(ctx context.Context) error {
		var err error
		n, err = s.inner.InsertBatchIfAbsent(ctx, vs)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PooledStore) Query(ctx context.Context, p query.Predicate, limit, offset int) ([]models.Video, error) {
	var out []models.Video
	err := s.pool.Do(ctx, JobStoreRead, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Query(ctx, p, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PooledStore) Count(ctx context.Context, p query.Predicate) (int, error) {
	var n int
	err := s.pool.Do(ctx, JobStoreRead, func(ctx context.Context) error {
		var err error
		n, err = s.inner.Count(ctx, p)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PooledStore) LatestAvailableAt(ctx context.Context, channelID string) (*time.Time, error) {
	var latest *time.Time
	err := s.pool.Do(ctx, JobStoreRead, func(ctx context.Context) error {
		var err error
		latest, err = s.inner.LatestAvailableAt(ctx, channelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// Scan holds one worker for the whole scan.
func (s *PooledStore) Scan(ctx context.Context, p query.Predicate, fn func(*models.Video) error) error {
	return s.pool.Do(ctx, JobStoreRead, func(ctx context.Context) error {
		return s.inner.Scan(ctx, p, fn)
	})
}

// HealthCheck bypasses the pool so a saturated queue does not read as an outage.
func (s *PooledStore) HealthCheck(ctx context.Context) error {
	return s.inner.HealthCheck(ctx)
}

// Package store defines the Record Store contract shared by the Postgres
// backend (internal/database) and the in-memory backend (internal/memstore).
//
// Go Pattern: "Accept interfaces, return structs". Services depend on this
// small interface rather than on a concrete database, which lets tests run
// the whole sync and search pipeline against memory.
package store

import (
	"context"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
)

// Store is durable keyed storage of video records.
//
// Records are first-write-wins: inserting an id that already exists is a
// no-op and never changes the stored row.
type Store interface {
	// InsertIfAbsent stores v unless its id is present and reports
	// whether a row was written.
	InsertIfAbsent(ctx context.Context, v *models.Video) (bool, error)

	// InsertBatchIfAbsent applies InsertIfAbsent to every video as one
	// atomic unit and returns the number of rows written. On error no
	// row of the batch is visible.
	InsertBatchIfAbsent(ctx context.Context, vs []models.Video) (int, error)

	// Query returns matching videos newest first (available_at desc).
	Query(ctx context.Context, p query.Predicate, limit, offset int) ([]models.Video, error)

	// Count returns the number of matching videos.
	Count(ctx context.Context, p query.Predicate) (int, error)

	// LatestAvailableAt returns the newest available_at of a channel, or
	// nil when the channel has no stored videos.
	LatestAvailableAt(ctx context.Context, channelID string) (*time.Time, error)

	// Scan calls fn for every matching video in ascending available_at
	// order. Returning an error from fn stops the scan.
	Scan(ctx context.Context, p query.Predicate, fn func(*models.Video) error) error

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) error
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
	"github.com/Shimizu-Technology/holo-search-api/internal/store"
)

var _ store.Store = (*DB)(nil)

const videoColumns = `id, title, channel_id, channel_name, published_at, available_at,
	duration, status, type, topic_id, raw`

// ON CONFLICT DO NOTHING makes the insert first-write-wins; when two workers
// race on one id, Postgres lets exactly one of them affect a row.
const insertVideoSQL = `
	INSERT INTO videos (id, title, channel_id, channel_name, published_at, available_at,
		duration, status, type, topic_id, raw)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::json)
	ON CONFLICT (id) DO NOTHING`

// execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertVideo(ctx context.Context, ex execer, v *models.Video) (bool, error) {
	raw := string(v.Raw)
	if raw == "" {
		raw = "{}"
	}
	res, err := ex.ExecContext(ctx, insertVideoSQL,
		v.ID, v.Title, v.ChannelID, v.ChannelName, v.PublishedAt, v.AvailableAt.UTC(),
		v.Duration, v.Status, v.Type, v.TopicID, raw,
	)
	if err != nil {
		return false, fmt.Errorf("insert video %s: %w", v.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertIfAbsent stores a single video unless its id already exists.
func (db *DB) InsertIfAbsent(ctx context.Context, v *models.Video) (bool, error) {
	return insertVideo(ctx, db.DB, v)
}

// InsertBatchIfAbsent inserts a page of videos inside one transaction.
// Readers see either the whole page or none of it.
func (db *DB) InsertBatchIfAbsent(ctx context.Context, vs []models.Video) (int, error) {
	if len(vs) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch insert: %w", err)
	}
	// Rollback after Commit is a no-op, so deferring it covers every error path.
	defer tx.Rollback()

	inserted := 0
	for i := range vs {
		ok, err := insertVideo(ctx, tx, &vs[i])
		if err != nil {
			return 0, err
		}
		if ok {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch insert: %w", err)
	}
	return inserted, nil
}

// Query returns a page of matching videos, newest first.
func (db *DB) Query(ctx context.Context, p query.Predicate, limit, offset int) ([]models.Video, error) {
	where, args, err := compileWhere(p)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > db.maxLimit {
		limit = db.maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	q := fmt.Sprintf(`SELECT %s FROM videos WHERE %s
		ORDER BY available_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, videoColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	videos := []models.Video{}
	if err := db.SelectContext(ctx, &videos, q, args...); err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	return videos, nil
}

// Count returns the number of videos matching p.
func (db *DB) Count(ctx context.Context, p query.Predicate) (int, error) {
	where, args, err := compileWhere(p)
	if err != nil {
		return 0, err
	}
	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM videos WHERE "+where, args...); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return total, nil
}

// LatestAvailableAt returns the newest available_at for a channel.
func (db *DB) LatestAvailableAt(ctx context.Context, channelID string) (*time.Time, error) {
	var latest sql.NullTime
	err := db.GetContext(ctx, &latest,
		`SELECT MAX(available_at) FROM videos WHERE channel_id = $1`, channelID)
	if err != nil {
		return nil, fmt.Errorf("latest available_at for %s: %w", channelID, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}

// Scan streams matching videos oldest first without loading the whole
// result set into memory.
func (db *DB) Scan(ctx context.Context, p query.Predicate, fn func(*models.Video) error) error {
	where, args, err := compileWhere(p)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`SELECT %s FROM videos WHERE %s ORDER BY available_at ASC, id ASC`, videoColumns, where)

	rows, err := db.QueryxContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("scan videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.Video
		if err := rows.StructScan(&v); err != nil {
			return fmt.Errorf("scan video row: %w", err)
		}
		if err := fn(&v); err != nil {
			return err
		}
	}
	return rows.Err()
}

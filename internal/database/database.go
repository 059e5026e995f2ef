// Package database is the PostgreSQL Record Store.
//
// Go Pattern: We use the `sqlx` package which extends Go's standard
// `database/sql` with convenient features like scanning rows into structs.
// Unlike an ORM, you write raw SQL, which gives full control over the
// indexes each query hits.
//
// Go's database/sql has built-in connection pooling: one *sqlx.DB is created
// at startup and shared by every goroutine.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver, the underscore import runs its init()
)

// DefaultMaxLimit bounds Query when no explicit maximum is configured.
const DefaultMaxLimit = 100

// DB wraps the sqlx database connection with the video store methods.
// Embedding (*sqlx.DB) gives us all of sqlx's methods automatically.
type DB struct {
	*sqlx.DB
	maxLimit int
}

// New connects to Postgres with connection pooling configured.
// maxLimit caps the page size of Query; values <= 0 use DefaultMaxLimit.
func New(databaseURL string, maxLimit int) (*DB, error) {
	// sqlx.Connect both opens the connection and pings the database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Channel workers write concurrently during a sync while search and
	// stats read, so keep a few more connections than a request-only API.
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &DB{DB: db, maxLimit: maxLimit}, nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

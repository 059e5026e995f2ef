package database

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"testing"

	"github.com/Shimizu-Technology/holo-search-api/internal/memstore"
	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
)

const migrationsDir = "../../migrations"

// The payload has loose spacing and \u escapes that a JSONB column would
// rewrite.
const verbatimPayload = `{"title":"Collab",  "id":"itest-1","topic_id":"Original_Song",` +
	`"available_at":"2024-01-01T00:00:00Z","channel":{"id":"itest-ch","name":"One"},` +
	`"mentions":[{"id":"UC9","name":"\u30da\u30b3\u30e9"}]}`

// Go Pattern: Tests that need a live database skip unless one is
// configured, so `go test ./...` stays self-contained.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := New(url, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.RunMigrations(migrationsDir); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	clean := func() { db.MustExec(`DELETE FROM videos WHERE id LIKE 'itest-%'`) }
	clean()
	t.Cleanup(func() {
		clean()
		db.Close()
	})
	return db
}

func TestRawColumnPreservesPayloadText(t *testing.T) {
	src, err := os.ReadFile(migrationsDir + "/000001_create_videos.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`(?m)^\s*raw\s+JSON\s`).Match(src) {
		t.Error("videos.raw must be a JSON (text-preserving) column, not JSONB")
	}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, err := models.DecodeVideo(json.RawMessage(verbatimPayload))
	if err != nil {
		t.Fatal(err)
	}
	dup := *first
	dupTopic := "Music_Cover"
	dup.TopicID = &dupTopic
	dup.Raw = json.RawMessage(`{"id":"itest-1"}`)

	n, err := db.InsertBatchIfAbsent(ctx, []models.Video{*first, dup})
	if err != nil || n != 1 {
		t.Fatalf("InsertBatchIfAbsent() = %d, %v; want 1 new row", n, err)
	}
	if ok, err := db.InsertIfAbsent(ctx, &dup); err != nil || ok {
		t.Fatalf("InsertIfAbsent(existing) = %t, %v; want false", ok, err)
	}

	got, err := db.Query(ctx, query.Eq(query.FieldChannelID, "itest-ch"), 10, 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("Query() = %v, %v", got, err)
	}
	if string(got[0].Raw) != verbatimPayload {
		t.Errorf("raw = %s\nwant %s", got[0].Raw, verbatimPayload)
	}
	if got[0].Topic() != "Original_Song" {
		t.Errorf("topic = %q, want the first write", got[0].Topic())
	}

	// the collaborator filter sees the same bytes in both backends
	mem := memstore.New(0)
	if _, err := mem.InsertBatchIfAbsent(ctx, []models.Video{*first}); err != nil {
		t.Fatal(err)
	}
	for _, needle := range []string{`\u30da\u30b3`, `"title":"Collab",  "id"`} {
		p := query.Contains(query.FieldRaw, needle)
		pgCount, err := db.Count(ctx, query.And(query.Eq(query.FieldChannelID, "itest-ch"), p))
		if err != nil {
			t.Fatal(err)
		}
		memCount, _ := mem.Count(ctx, p)
		if pgCount != 1 || memCount != 1 {
			t.Errorf("Contains(%q): postgres %d, memory %d; want 1 and 1", needle, pgCount, memCount)
		}
	}
}

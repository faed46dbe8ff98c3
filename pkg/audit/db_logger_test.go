package audit

import (
	"context"
	"database/sql"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor_id INTEGER,
			action TEXT NOT NULL,
			resource TEXT NOT NULL,
			resource_id TEXT,
			detail TEXT,
			created_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	return db
}

func int64Ptr(v int64) *int64 { return &v }

func TestDBLogger_RecordAndList(t *testing.T) {
	db := setupTestDB(t)
	logger := NewDBLogger(db, observability.NewLogger(observability.ErrorLevel, io.Discard))
	ctx := context.Background()

	entry := &Entry{
		ActorID:    int64Ptr(1),
		Action:     ActionGrant,
		Resource:   ResourceGrant,
		ResourceID: "10:scripts.can_publish",
		Detail:     map[string]interface{}{"expires": false},
	}
	if err := logger.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected entry ID to be set")
	}

	// a system action has no actor and no detail
	if err := logger.Record(ctx, &Entry{Action: ActionUnban, Resource: ResourceBan, ResourceID: "42"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := logger.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != ActionUnban || entries[0].ActorID != nil {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	if entries[1].Detail["expires"] != false {
		t.Fatalf("detail round-trip failed: %+v", entries[1].Detail)
	}
}

func TestFromContextDefaultsToNop(t *testing.T) {
	logger := FromContext(context.Background())
	if err := logger.Record(context.Background(), &Entry{Action: ActionCreate, Resource: ResourceRole}); err != nil {
		t.Fatalf("nop logger should never fail: %v", err)
	}

	ctx := WithLogger(context.Background(), NopLogger{})
	if _, ok := FromContext(ctx).(NopLogger); !ok {
		t.Fatal("expected attached logger to be returned")
	}
}

package bans

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

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
		CREATE TABLE accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			role_id INTEGER,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE bans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			ban_code TEXT NOT NULL UNIQUE,
			reason TEXT,
			type TEXT NOT NULL,
			ban_date TIMESTAMP NOT NULL,
			unban_date TIMESTAMP,
			duration_hours INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	return db
}

func insertAccount(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO accounts (username, email) VALUES ($1, $2)`,
		username, username+"@example.com")
	if err != nil {
		t.Fatalf("failed to insert account: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read account id: %v", err)
	}
	return id
}

func accountStatus(t *testing.T, db *sql.DB, accountID int64) string {
	t.Helper()
	var status string
	if err := db.QueryRow(`SELECT status FROM accounts WHERE id = $1`, accountID).Scan(&status); err != nil {
		t.Fatalf("failed to read account status: %v", err)
	}
	return status
}

func intPtr(v int) *int { return &v }

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

type recordingNotifier struct {
	banned   chan *Ban
	unbanned chan int64
	err      error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{banned: make(chan *Ban, 8), unbanned: make(chan int64, 8)}
}

func (n *recordingNotifier) NotifyBanned(ctx context.Context, ban *Ban) error {
	n.banned <- ban
	return n.err
}

func (n *recordingNotifier) NotifyUnbanned(ctx context.Context, accountID int64) error {
	n.unbanned <- accountID
	return n.err
}

func TestStore_CreateBanMarksAccount(t *testing.T) {
	db := setupTestDB(t)
	accountID := insertAccount(t, db, "miscreant")
	var invalidated []int64
	store := NewStore(db, nil, func(id int64) { invalidated = append(invalidated, id) }, testLogger())
	ctx := context.Background()

	ban := &Ban{UserID: accountID, Reason: "spam", Type: TypeTemporary, DurationHours: intPtr(24)}
	if err := store.CreateBan(ctx, ban); err != nil {
		t.Fatalf("CreateBan failed: %v", err)
	}
	if ban.ID == 0 || ban.BanCode == "" {
		t.Fatalf("expected ban ID and code to be set: %+v", ban)
	}
	if ban.UnbanDate == nil {
		t.Fatal("temporary ban should have a computed unban date")
	}
	if got := accountStatus(t, db, accountID); got != "banned" {
		t.Fatalf("expected account status banned, got %s", got)
	}
	if len(invalidated) != 1 || invalidated[0] != accountID {
		t.Fatalf("expected invalidation for account %d, got %v", accountID, invalidated)
	}

	active, err := store.GetActiveForAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("GetActiveForAccount failed: %v", err)
	}
	if active.ID != ban.ID || !active.IsActive {
		t.Fatalf("unexpected active ban: %+v", active)
	}
}

func TestStore_CreateBanValidation(t *testing.T) {
	store := NewStore(setupTestDB(t), nil, nil, testLogger())
	ctx := context.Background()

	if err := store.CreateBan(ctx, &Ban{UserID: 1, Type: TypeTemporary}); err == nil {
		t.Fatal("temporary ban without duration should fail")
	}
	if err := store.CreateBan(ctx, &Ban{UserID: 1, Type: TypePermanent, DurationHours: intPtr(5)}); err == nil {
		t.Fatal("permanent ban with duration should fail")
	}
	if err := store.CreateBan(ctx, &Ban{UserID: 1, Type: "shadow"}); err == nil {
		t.Fatal("unknown ban type should fail")
	}
}

func TestStore_LiftBanRestoresAccount(t *testing.T) {
	db := setupTestDB(t)
	accountID := insertAccount(t, db, "miscreant")
	store := NewStore(db, nil, nil, testLogger())
	ctx := context.Background()

	ban := &Ban{UserID: accountID, Type: TypePermanent}
	if err := store.CreateBan(ctx, ban); err != nil {
		t.Fatalf("CreateBan failed: %v", err)
	}

	if err := store.LiftBan(ctx, ban.ID); err != nil {
		t.Fatalf("LiftBan failed: %v", err)
	}
	if got := accountStatus(t, db, accountID); got != "active" {
		t.Fatalf("expected account restored to active, got %s", got)
	}
	if err := store.LiftBan(ctx, ban.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double lift, got %v", err)
	}
}

func TestStore_LiftBanKeepsStatusWhileOtherBanActive(t *testing.T) {
	db := setupTestDB(t)
	accountID := insertAccount(t, db, "repeat-offender")
	store := NewStore(db, nil, nil, testLogger())
	ctx := context.Background()

	first := &Ban{UserID: accountID, Type: TypePermanent}
	second := &Ban{UserID: accountID, Type: TypeTemporary, DurationHours: intPtr(24)}
	for _, ban := range []*Ban{first, second} {
		if err := store.CreateBan(ctx, ban); err != nil {
			t.Fatalf("CreateBan failed: %v", err)
		}
	}

	if err := store.LiftBan(ctx, second.ID); err != nil {
		t.Fatalf("LiftBan failed: %v", err)
	}
	if got := accountStatus(t, db, accountID); got != "banned" {
		t.Fatalf("account with a remaining active ban should stay banned, got %s", got)
	}
}

func TestStore_NotifierFailureDoesNotAffectBan(t *testing.T) {
	db := setupTestDB(t)
	accountID := insertAccount(t, db, "miscreant")
	notifier := newRecordingNotifier()
	notifier.err = errors.New("smtp down")
	store := NewStore(db, notifier, nil, testLogger())

	ban := &Ban{UserID: accountID, Type: TypePermanent}
	if err := store.CreateBan(context.Background(), ban); err != nil {
		t.Fatalf("CreateBan failed despite notifier error: %v", err)
	}

	select {
	case got := <-notifier.banned:
		if got.UserID != accountID {
			t.Fatalf("notified wrong account: %d", got.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected ban notification to fire")
	}

	if got := accountStatus(t, db, accountID); got != "banned" {
		t.Fatalf("ban state must not roll back on notifier failure, got %s", got)
	}
}

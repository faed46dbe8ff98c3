package subscriptions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			start_date TIMESTAMP NOT NULL,
			end_date TIMESTAMP,
			auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	return db
}

func timePtr(t time.Time) *time.Time { return &t }

func TestStore_SubscriptionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	var invalidated []int64
	store := NewStore(db, func(accountID int64) { invalidated = append(invalidated, accountID) })
	ctx := context.Background()

	sub := &Subscription{
		UserID:    10,
		RoleID:    2,
		Status:    StatusActive,
		EndDate:   timePtr(time.Now().UTC().Add(30 * 24 * time.Hour)),
		AutoRenew: true,
	}
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sub.ID == 0 {
		t.Fatal("expected subscription ID to be set")
	}
	if len(invalidated) != 1 || invalidated[0] != 10 {
		t.Fatalf("expected invalidation for account 10, got %v", invalidated)
	}

	active, err := store.GetActiveForAccount(ctx, 10)
	if err != nil {
		t.Fatalf("GetActiveForAccount failed: %v", err)
	}
	if active.ID != sub.ID || active.Status != StatusActive || !active.AutoRenew {
		t.Fatalf("unexpected active subscription: %+v", active)
	}

	if err := store.Cancel(ctx, sub.ID, time.Now().UTC()); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := store.GetActiveForAccount(ctx, 10); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after cancel, got %v", err)
	}

	// cancelling a terminal subscription is not found
	if err := store.Cancel(ctx, sub.ID, time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double cancel, got %v", err)
	}

	all, err := store.ListForAccount(ctx, 10)
	if err != nil {
		t.Fatalf("ListForAccount failed: %v", err)
	}
	if len(all) != 1 || all[0].Status != StatusCancelled || all[0].AutoRenew {
		t.Fatalf("unexpected subscription history: %+v", all[0])
	}
}

func TestStore_CreateValidatesStatus(t *testing.T) {
	store := NewStore(setupTestDB(t), nil)

	err := store.Create(context.Background(), &Subscription{UserID: 1, RoleID: 2, Status: "bogus"})
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestStore_MostRecentActiveWins(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	older := &Subscription{UserID: 10, RoleID: 2, Status: StatusActive, StartDate: now.Add(-48 * time.Hour)}
	newer := &Subscription{UserID: 10, RoleID: 3, Status: StatusActive, StartDate: now.Add(-time.Hour)}
	for _, sub := range []*Subscription{older, newer} {
		if err := store.Create(ctx, sub); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	active, err := store.GetActiveForAccount(ctx, 10)
	if err != nil {
		t.Fatalf("GetActiveForAccount failed: %v", err)
	}
	if active.ID != newer.ID {
		t.Fatalf("expected most recent active row %d, got %d", newer.ID, active.ID)
	}
}

func TestStore_ExpireDue(t *testing.T) {
	db := setupTestDB(t)
	var invalidated []int64
	store := NewStore(db, func(accountID int64) { invalidated = append(invalidated, accountID) })
	ctx := context.Background()
	now := time.Now().UTC()

	past := &Subscription{UserID: 1, RoleID: 2, Status: StatusActive, EndDate: timePtr(now.Add(-time.Hour))}
	trial := &Subscription{UserID: 2, RoleID: 2, Status: StatusTrial, EndDate: timePtr(now.Add(-time.Minute))}
	future := &Subscription{UserID: 3, RoleID: 2, Status: StatusActive, EndDate: timePtr(now.Add(time.Hour))}
	lifetime := &Subscription{UserID: 4, RoleID: 2, Status: StatusActive}
	for _, sub := range []*Subscription{past, trial, future, lifetime} {
		if err := store.Create(ctx, sub); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	invalidated = invalidated[:0]

	count, err := store.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 expired, got %d", count)
	}
	if len(invalidated) != 2 {
		t.Fatalf("expected 2 invalidations, got %v", invalidated)
	}

	// running again is a no-op
	count, err = store.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("second ExpireDue failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 expired on rerun, got %d", count)
	}

	if _, err := store.GetActiveForAccount(ctx, 3); err != nil {
		t.Fatalf("future subscription should still count: %v", err)
	}
	if _, err := store.GetActiveForAccount(ctx, 4); err != nil {
		t.Fatalf("lifetime subscription should still count: %v", err)
	}
}

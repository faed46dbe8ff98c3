//go:build integration

package grants

import (
	"context"
	"testing"
	"time"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/storage/postgres"
)

func TestStore_UpsertAgainstPostgres(t *testing.T) {
	db, cleanup := postgres.SetupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC()

	var accountID int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, email) VALUES ('grantee', 'grantee@example.com')
		RETURNING id`).Scan(&accountID)
	if err != nil {
		t.Fatalf("failed to insert account: %v", err)
	}

	store := NewStore(db, nil)

	grant := &Grant{UserID: accountID, PermissionKey: "scripts.can_publish"}
	if err := store.Grant(ctx, grant); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	// the primary key conflict path takes the update branch
	grant.Value = "false"
	grant.ExpiresAt = timePtr(now.Add(time.Hour))
	if err := store.Grant(ctx, grant); err != nil {
		t.Fatalf("Grant upsert failed: %v", err)
	}

	active, err := store.ListActive(ctx, accountID, now)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 grant after upsert, got %d", len(active))
	}
	if active[0].Value != "false" || active[0].ExpiresAt == nil {
		t.Fatalf("upsert did not replace grant fields: %+v", active[0])
	}

	has, err := store.HasGrant(ctx, accountID, "scripts.can_publish", now)
	if err != nil {
		t.Fatalf("HasGrant failed: %v", err)
	}
	if has {
		t.Fatal("false-valued grant should not allow")
	}
}

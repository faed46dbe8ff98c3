package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
)

// DBLogger writes audit entries to the audit_log table
type DBLogger struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB, logger *observability.Logger) *DBLogger {
	return &DBLogger{db: db, logger: logger}
}

// Record inserts one audit entry. The write failure is reported to the
// caller but entries are advisory; callers log and move on.
func (l *DBLogger) Record(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
	}

	err := l.db.QueryRowContext(ctx, `
		INSERT INTO audit_log (actor_id, action, resource, resource_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.ActorID, entry.Action, entry.Resource, entry.ResourceID, detail, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		if l.logger != nil {
			l.logger.WithError(err).WithFields(map[string]interface{}{
				"action":   entry.Action,
				"resource": entry.Resource,
			}).Error("failed to write audit entry")
		}
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

// ListRecent returns the newest audit entries up to limit
func (l *DBLogger) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, actor_id, action, resource, resource_id, detail, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var resourceID sql.NullString
		var detail []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Resource, &resourceID, &detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.ResourceID = resourceID.String
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode audit detail: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

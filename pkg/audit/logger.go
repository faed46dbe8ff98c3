// Package audit records administrative mutations (role edits, grants,
// bans) to a durable trail. Audit writes are best-effort: a failed write
// is logged and never blocks the mutating request.
package audit

import (
	"context"
	"time"
)

// Resource names used in audit entries
const (
	ResourceRole         = "role"
	ResourceGrant        = "grant"
	ResourceBan          = "ban"
	ResourceAccount      = "account"
	ResourceSubscription = "subscription"
)

// Actions recorded against resources
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionGrant  = "grant"
	ActionRevoke = "revoke"
	ActionBan    = "ban"
	ActionUnban  = "unban"
)

// Entry is one audit trail record. ActorID is nil for system-initiated
// changes such as sweep transitions.
type Entry struct {
	ID         int64                  `json:"id"`
	ActorID    *int64                 `json:"actor_id,omitempty"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Logger records audit entries
type Logger interface {
	Record(ctx context.Context, entry *Entry) error
}

// NopLogger discards all entries, used when auditing is disabled and in
// tests.
type NopLogger struct{}

func (NopLogger) Record(ctx context.Context, entry *Entry) error { return nil }

type contextKey string

const loggerKey contextKey = "audit_logger"

// WithLogger attaches an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the context's audit logger, or a no-op logger when
// none is attached
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// Record writes an audit entry for an actor's action on a resource using
// the context's logger
func Record(ctx context.Context, actorID *int64, action, resource, resourceID string, detail map[string]interface{}) error {
	return FromContext(ctx).Record(ctx, &Entry{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     detail,
	})
}

package bans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/async"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
)

// Notifier is told about ban state changes after they are committed. A
// notifier failure never rolls back the ban.
type Notifier interface {
	NotifyBanned(ctx context.Context, ban *Ban) error
	NotifyUnbanned(ctx context.Context, accountID int64) error
}

const banColumns = `id, user_id, ban_code, reason, type, ban_date, unban_date, duration_hours, is_active, created_at`

const notifyTimeout = 10 * time.Second

// Store persists ban records. Creating or lifting a ban flips the ban row
// and the account's status in one transaction; an active ban always
// implies a banned account.
type Store struct {
	db         *sql.DB
	notifier   Notifier
	invalidate func(accountID int64)
	logger     *observability.Logger
}

// NewStore creates a new ban store. notifier and invalidate may be nil.
func NewStore(db *sql.DB, notifier Notifier, invalidate func(accountID int64), logger *observability.Logger) *Store {
	return &Store{db: db, notifier: notifier, invalidate: invalidate, logger: logger}
}

func (s *Store) notifyChange(accountID int64) {
	if s.invalidate != nil {
		s.invalidate(accountID)
	}
}

// CreateBan inserts an active ban and marks the account banned in the
// same transaction. Temporary bans must carry a duration; the unban date
// is computed from it. The notification is fired after commit and its
// outcome does not affect the ban.
func (s *Store) CreateBan(ctx context.Context, ban *Ban) error {
	switch ban.Type {
	case TypePermanent:
		if ban.DurationHours != nil || ban.UnbanDate != nil {
			return fmt.Errorf("permanent ban cannot have a duration")
		}
	case TypeTemporary:
		if ban.DurationHours == nil || *ban.DurationHours <= 0 {
			return fmt.Errorf("temporary ban requires a positive duration")
		}
	default:
		return fmt.Errorf("invalid ban type: %s", ban.Type)
	}

	now := time.Now().UTC()
	ban.BanDate = now
	ban.IsActive = true
	if ban.BanCode == "" {
		ban.BanCode = uuid.NewString()
	}
	if ban.Type == TypeTemporary {
		unban := now.Add(time.Duration(*ban.DurationHours) * time.Hour)
		ban.UnbanDate = &unban
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO bans (user_id, ban_code, reason, type, ban_date, unban_date, duration_hours, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		ban.UserID, ban.BanCode, ban.Reason, ban.Type, ban.BanDate,
		ban.UnbanDate, ban.DurationHours, true, now,
	).Scan(&ban.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ban: %w", err)
	}
	ban.CreatedAt = now

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET status = 'banned' WHERE id = $1`, ban.UserID); err != nil {
		return fmt.Errorf("failed to mark account banned: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ban: %w", err)
	}

	s.notifyChange(ban.UserID)
	if s.logger != nil {
		s.logger.WithFields(map[string]interface{}{
			"account_id": ban.UserID,
			"ban_code":   ban.BanCode,
			"type":       string(ban.Type),
		}).Info("account banned")
	}
	if s.notifier != nil {
		banned := *ban
		async.SafeGo(context.Background(), notifyTimeout, "ban notification", func(ctx context.Context) error {
			return s.notifier.NotifyBanned(ctx, &banned)
		})
	}

	return nil
}

// LiftBan deactivates an active ban and restores the account's status
// when no other active ban remains.
func (s *Store) LiftBan(ctx context.Context, banID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var accountID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE bans SET is_active = FALSE
		WHERE id = $1 AND is_active = TRUE
		RETURNING user_id`, banID,
	).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lift ban: %w", err)
	}

	var remaining int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bans WHERE user_id = $1 AND is_active = TRUE`, accountID,
	).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("failed to count active bans: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET status = 'active' WHERE id = $1 AND status = 'banned'`,
			accountID); err != nil {
			return fmt.Errorf("failed to restore account status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unban: %w", err)
	}

	s.notifyChange(accountID)
	if s.logger != nil {
		s.logger.WithField("account_id", accountID).Info("ban lifted")
	}
	if s.notifier != nil && remaining == 0 {
		async.SafeGo(context.Background(), notifyTimeout, "unban notification", func(ctx context.Context) error {
			return s.notifier.NotifyUnbanned(ctx, accountID)
		})
	}

	return nil
}

// GetActiveForAccount returns the account's active ban, or ErrNotFound
func (s *Store) GetActiveForAccount(ctx context.Context, accountID int64) (*Ban, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+banColumns+`
		FROM bans
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY ban_date DESC
		LIMIT 1`, accountID)
	return scanBan(row)
}

// ListForAccount returns the account's ban history, newest first
func (s *Store) ListForAccount(ctx context.Context, accountID int64) ([]*Ban, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+banColumns+`
		FROM bans
		WHERE user_id = $1
		ORDER BY ban_date DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	var result []*Ban
	for rows.Next() {
		ban, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ban)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBan(row scanner) (*Ban, error) {
	var ban Ban
	err := row.Scan(
		&ban.ID, &ban.UserID, &ban.BanCode, &ban.Reason, &ban.Type,
		&ban.BanDate, &ban.UnbanDate, &ban.DurationHours,
		&ban.IsActive, &ban.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ban: %w", err)
	}
	return &ban, nil
}

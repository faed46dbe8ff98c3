package bans

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/async"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
)

// Sweep expires temporary bans whose unban date has passed. It is the
// sole writer that flips a ban row and the account's status together, so
// request handlers never observe an inactive ban on a still-banned
// account. Runs are idempotent: a ban flips exactly once no matter how
// often the sweep fires.
type Sweep struct {
	db         *sql.DB
	notifier   Notifier
	invalidate func(accountID int64)
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewSweep creates a ban sweep. notifier, invalidate and metrics may be
// nil.
func NewSweep(db *sql.DB, notifier Notifier, invalidate func(accountID int64), logger *observability.Logger, metrics *observability.Metrics) *Sweep {
	return &Sweep{db: db, notifier: notifier, invalidate: invalidate, logger: logger, metrics: metrics}
}

// Run lifts every due temporary ban and restores the affected accounts.
// Returns how many bans were lifted.
func (s *Sweep) Run(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	lifted, err := s.run(ctx, now)

	if s.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		s.metrics.SweepRunsTotal.WithLabelValues("ban_expiry", result).Inc()
		s.metrics.SweepRowsProcessed.WithLabelValues("ban_expiry").Add(float64(len(lifted)))
		s.metrics.SweepDuration.WithLabelValues("ban_expiry").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 0, err
	}

	for _, accountID := range lifted {
		if s.invalidate != nil {
			s.invalidate(accountID)
		}
		if s.notifier != nil {
			id := accountID
			async.SafeGo(context.Background(), notifyTimeout, "unban notification", func(ctx context.Context) error {
				return s.notifier.NotifyUnbanned(ctx, id)
			})
		}
	}

	if s.logger != nil && len(lifted) > 0 {
		s.logger.WithField("lifted", len(lifted)).Info("ban sweep expired temporary bans")
	}

	return len(lifted), nil
}

// banRetention is how long lifted ban rows stay queryable before the
// daily cleanup removes them
const banRetention = 90 * 24 * time.Hour

// RunCleanup deletes inactive ban rows whose ban date fell out of the
// retention window. Returns how many rows were removed.
func (s *Sweep) RunCleanup(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	cutoff := now.Add(-banRetention)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM bans
		WHERE is_active = FALSE
		  AND ban_date <= $1`, cutoff)

	var removed int64
	if err == nil {
		removed, err = result.RowsAffected()
	}

	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.SweepRunsTotal.WithLabelValues("ban_cleanup", outcome).Inc()
		s.metrics.SweepRowsProcessed.WithLabelValues("ban_cleanup").Add(float64(removed))
		s.metrics.SweepDuration.WithLabelValues("ban_cleanup").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clean up ban rows: %w", err)
	}

	if s.logger != nil && removed > 0 {
		s.logger.WithField("removed", removed).Info("ban cleanup purged old rows")
	}
	return removed, nil
}

// run performs the two-table flip in one transaction and returns the
// affected account IDs
func (s *Sweep) run(ctx context.Context, now time.Time) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start sweep transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE bans
		SET is_active = FALSE
		WHERE is_active = TRUE
		  AND type = 'temporary'
		  AND unban_date IS NOT NULL
		  AND unban_date <= $1
		RETURNING user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire due bans: %w", err)
	}

	var lifted []int64
	for rows.Next() {
		var accountID int64
		if err := rows.Scan(&accountID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expired ban: %w", err)
		}
		lifted = append(lifted, accountID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// restore status only for accounts with no other active ban
	for _, accountID := range lifted {
		_, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET status = 'active'
			WHERE id = $1
			  AND status = 'banned'
			  AND NOT EXISTS (
				SELECT 1 FROM bans WHERE user_id = $1 AND is_active = TRUE
			  )`, accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to restore account %d: %w", accountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sweep: %w", err)
	}

	return lifted, nil
}

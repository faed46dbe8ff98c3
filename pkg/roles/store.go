package roles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a role does not exist
var ErrNotFound = errors.New("role not found")

// Store handles role registry persistence. Role rows are edited only by
// administrators; every mutation reports through the onChange hook so the
// entitlement cache can be cleared globally (the cache is keyed by account,
// and no index from role to affected accounts exists).
type Store struct {
	db       *sql.DB
	onChange func()
}

// NewStore creates a new role store. onChange may be nil.
func NewStore(db *sql.DB, onChange func()) *Store {
	return &Store{db: db, onChange: onChange}
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

const roleColumns = `id, name, display_name, rank, features, limits, price_monthly, price_yearly, is_active, display_order, created_at, updated_at`

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	featuresJSON, err := json.Marshal(role.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}
	limitsJSON, err := json.Marshal(role.Limits)
	if err != nil {
		return fmt.Errorf("failed to marshal limits: %w", err)
	}

	query := `
		INSERT INTO roles (name, display_name, rank, features, limits, price_monthly, price_yearly, is_active, display_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		role.Name,
		role.DisplayName,
		role.Rank,
		string(featuresJSON),
		string(limitsJSON),
		role.PriceMonthly,
		role.PriceYearly,
		role.IsActive,
		role.DisplayOrder,
		now,
		now,
	).Scan(&role.ID)

	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	s.notifyChange()
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	return s.scanRole(s.db.QueryRowContext(ctx, query, roleID))
}

// GetRoleByName retrieves a role by its unique name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`
	return s.scanRole(s.db.QueryRowContext(ctx, query, name))
}

// ListRoles returns all roles ordered for display. When activeOnly is set,
// inactive roles are excluded.
func (s *Store) ListRoles(ctx context.Context, activeOnly bool) ([]*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY display_order, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var result []*Role
	for rows.Next() {
		role, err := s.scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

// UpdateRole updates a role's mutable fields. The name is immutable and is
// used only to locate the row.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	featuresJSON, err := json.Marshal(role.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}
	limitsJSON, err := json.Marshal(role.Limits)
	if err != nil {
		return fmt.Errorf("failed to marshal limits: %w", err)
	}

	query := `
		UPDATE roles
		SET display_name = $1, rank = $2, features = $3, limits = $4,
		    price_monthly = $5, price_yearly = $6, is_active = $7,
		    display_order = $8, updated_at = $9
		WHERE id = $10
	`

	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		role.DisplayName,
		role.Rank,
		string(featuresJSON),
		string(limitsJSON),
		role.PriceMonthly,
		role.PriceYearly,
		role.IsActive,
		role.DisplayOrder,
		now,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	role.UpdatedAt = now
	s.notifyChange()
	return nil
}

// SetActive toggles a role's availability without editing its definition
func (s *Store) SetActive(ctx context.Context, roleID int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE roles SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to set role active: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.notifyChange()
	return nil
}

// scanRole scans a role from a database row
func (s *Store) scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var featuresJSON, limitsJSON string

	err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Rank,
		&featuresJSON,
		&limitsJSON,
		&role.PriceMonthly,
		&role.PriceYearly,
		&role.IsActive,
		&role.DisplayOrder,
		&role.CreatedAt,
		&role.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}

	if featuresJSON != "" {
		if err := json.Unmarshal([]byte(featuresJSON), &role.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features: %w", err)
		}
	}
	if limitsJSON != "" {
		if err := json.Unmarshal([]byte(limitsJSON), &role.Limits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal limits: %w", err)
		}
	}

	return &role, nil
}

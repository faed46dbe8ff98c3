package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when an account does not exist
var ErrNotFound = errors.New("account not found")

// Store handles account persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new account store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateAccount creates a new account
func (s *Store) CreateAccount(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (username, email, status, role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	status := account.Status
	if status == "" {
		status = StatusActive
	}

	err := s.db.QueryRowContext(ctx, query,
		account.Username,
		account.Email,
		status,
		account.RoleID,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	account.Status = status
	return nil
}

// GetAccount retrieves an account by ID
func (s *Store) GetAccount(ctx context.Context, accountID int64) (*Account, error) {
	query := `
		SELECT id, username, email, status, role_id, created_at
		FROM accounts
		WHERE id = $1
	`

	var account Account
	var roleID sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.Status,
		&roleID,
		&account.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if roleID.Valid {
		id := roleID.Int64
		account.RoleID = &id
	}

	return &account, nil
}

// GetRolePointer returns the account's role pointer, or nil when the account
// has no explicit role assignment. A missing account is ErrNotFound.
func (s *Store) GetRolePointer(ctx context.Context, accountID int64) (*int64, error) {
	var roleID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT role_id FROM accounts WHERE id = $1`, accountID,
	).Scan(&roleID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role pointer: %w", err)
	}

	if !roleID.Valid {
		return nil, nil
	}
	id := roleID.Int64
	return &id, nil
}

// SetRole updates the account's role pointer
func (s *Store) SetRole(ctx context.Context, accountID int64, roleID *int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET role_id = $1 WHERE id = $2`, roleID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return requireAffected(result)
}

// SetStatus updates the account's status
func (s *Store) SetStatus(ctx context.Context, accountID int64, status Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = $1 WHERE id = $2`, status, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create accounts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS accounts (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL UNIQUE,
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					role_id BIGINT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_accounts_status ON accounts(status);
				CREATE INDEX idx_accounts_role_id ON accounts(role_id);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					rank INT NOT NULL DEFAULT 0,
					features JSONB NOT NULL DEFAULT '{}',
					limits JSONB NOT NULL DEFAULT '{}',
					price_monthly NUMERIC(10,2) NOT NULL DEFAULT 0,
					price_yearly NUMERIC(10,2) NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					display_order INT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_roles_name ON roles(name);
				CREATE INDEX idx_roles_is_active ON roles(is_active);
			`,
		},
		{
			Version:     3,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id),
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					start_date TIMESTAMP NOT NULL DEFAULT NOW(),
					end_date TIMESTAMP,
					auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_subscriptions_user_id ON subscriptions(user_id);
				CREATE INDEX idx_subscriptions_status ON subscriptions(status);
				CREATE INDEX idx_subscriptions_end_date ON subscriptions(end_date);
			`,
		},
		{
			Version:     4,
			Description: "Create custom_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS custom_grants (
					user_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					permission_key VARCHAR(255) NOT NULL,
					permission_value TEXT NOT NULL DEFAULT 'true',
					granted_by BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP,
					PRIMARY KEY (user_id, permission_key)
				);

				CREATE INDEX idx_custom_grants_expires_at ON custom_grants(expires_at);
			`,
		},
		{
			Version:     5,
			Description: "Create bans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS bans (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					ban_code VARCHAR(64) NOT NULL UNIQUE,
					reason TEXT,
					type VARCHAR(20) NOT NULL,
					ban_date TIMESTAMP NOT NULL DEFAULT NOW(),
					unban_date TIMESTAMP,
					duration_hours INT,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_bans_user_id ON bans(user_id);
				CREATE INDEX idx_bans_active_unban ON bans(is_active, type, unban_date);
			`,
		},
		{
			Version:     6,
			Description: "Create audit_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_log (
					id BIGSERIAL PRIMARY KEY,
					actor_id BIGINT,
					action VARCHAR(100) NOT NULL,
					resource VARCHAR(100) NOT NULL,
					resource_id VARCHAR(255),
					detail JSONB,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_log_actor_id ON audit_log(actor_id);
				CREATE INDEX idx_audit_log_resource ON audit_log(resource, resource_id);
				CREATE INDEX idx_audit_log_created_at ON audit_log(created_at);
			`,
		},
	}
}

// RunMigrations applies all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	// Ensure migrations tracking table exists
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

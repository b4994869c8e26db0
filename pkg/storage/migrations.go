package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Migration is one versioned schema change, written once per dialect
type Migration struct {
	Version     int
	Description string
	Postgres    string
	SQLite      string
}

func (m Migration) statement(d Dialect) string {
	if d == DialectSQLite {
		return m.SQLite
	}
	return m.Postgres
}

// Migrations returns the schema for memberships and permission grants in version order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create profiles and organizations tables",
			Postgres: `
				CREATE TABLE IF NOT EXISTS profiles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL
				);

				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					type VARCHAR(50) NOT NULL,
					main_admin_profile_id BIGINT NOT NULL REFERENCES profiles(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_main_admin ON organizations(main_admin_profile_id);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS profiles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL
				);

				CREATE TABLE IF NOT EXISTS organizations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					main_admin_profile_id INTEGER NOT NULL REFERENCES profiles(id),
					created_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_main_admin ON organizations(main_admin_profile_id);
			`,
		},
		{
			Version:     2,
			Description: "Create organization_memberships table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS organization_memberships (
					id BIGSERIAL PRIMARY KEY,
					profile_id BIGINT NOT NULL REFERENCES profiles(id),
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role VARCHAR(50) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (profile_id, organization_id)
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_single_main_admin
					ON organization_memberships(organization_id) WHERE role = 'MAIN_ADMIN';
				CREATE INDEX IF NOT EXISTS idx_memberships_role ON organization_memberships(role);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS organization_memberships (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					profile_id INTEGER NOT NULL REFERENCES profiles(id),
					organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					UNIQUE (profile_id, organization_id)
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_single_main_admin
					ON organization_memberships(organization_id) WHERE role = 'MAIN_ADMIN';
				CREATE INDEX IF NOT EXISTS idx_memberships_role ON organization_memberships(role);
			`,
		},
		{
			Version:     3,
			Description: "Create organization_permissions table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS organization_permissions (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					profile_id BIGINT NOT NULL REFERENCES profiles(id),
					permission VARCHAR(100) NOT NULL,
					granted_by_profile_id BIGINT NOT NULL REFERENCES profiles(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ,
					UNIQUE (organization_id, profile_id, permission)
				);

				CREATE INDEX IF NOT EXISTS idx_permissions_permission ON organization_permissions(permission);
				CREATE INDEX IF NOT EXISTS idx_permissions_expires_at ON organization_permissions(expires_at);
				CREATE INDEX IF NOT EXISTS idx_permissions_profile ON organization_permissions(profile_id);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS organization_permissions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					profile_id INTEGER NOT NULL REFERENCES profiles(id),
					permission TEXT NOT NULL,
					granted_by_profile_id INTEGER NOT NULL REFERENCES profiles(id),
					created_at DATETIME NOT NULL,
					expires_at DATETIME,
					UNIQUE (organization_id, profile_id, permission)
				);

				CREATE INDEX IF NOT EXISTS idx_permissions_permission ON organization_permissions(permission);
				CREATE INDEX IF NOT EXISTS idx_permissions_expires_at ON organization_permissions(expires_at);
				CREATE INDEX IF NOT EXISTS idx_permissions_profile ON organization_permissions(profile_id);
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	tableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL
		)
	`
	if dialect == DialectSQLite {
		tableSQL = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				description TEXT NOT NULL,
				applied_at DATETIME NOT NULL
			)
		`
	}
	if _, err := db.ExecContext(ctx, tableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		log.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Running migration")

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.statement(dialect)); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
				migration.Version, migration.Description, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Unique constraint names referenced by the services
const (
	ConstraintUsersEmail       = "uq_users_email"
	ConstraintClubsName        = "uq_clubs_name"
	ConstraintClubUserPair     = "uq_club_user_user_club"
	ConstraintRegistrationPair = "uq_event_registrations_event_user"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					password VARCHAR(255) NOT NULL,
					role VARCHAR(20) NOT NULL DEFAULT 'student'
						CHECK (role IN ('admin', 'student', 'member', 'admin-member')),
					department VARCHAR(255),
					image VARCHAR(255) NOT NULL DEFAULT 'users/default.png',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_users_email UNIQUE (email)
				);

				CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			`,
		},
		{
			Version:     2,
			Description: "Create clubs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS clubs (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					image VARCHAR(255) NOT NULL DEFAULT 'clubs/default.png',
					category VARCHAR(100) NOT NULL DEFAULT '',
					max_members INT NOT NULL DEFAULT 0 CHECK (max_members >= 0),
					created_by UUID REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_clubs_name UNIQUE (name)
				);

				CREATE INDEX IF NOT EXISTS idx_clubs_category ON clubs(category);
			`,
		},
		{
			Version:     3,
			Description: "Create club_user membership table",
			SQL: `
				CREATE TABLE IF NOT EXISTS club_user (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					club_id UUID NOT NULL REFERENCES clubs(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL DEFAULT 'student'
						CHECK (role IN ('student', 'member', 'admin-member')),
					status VARCHAR(20) NOT NULL DEFAULT 'pending'
						CHECK (status IN ('pending', 'approved', 'rejected')),
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_club_user_user_club UNIQUE (user_id, club_id)
				);

				CREATE INDEX IF NOT EXISTS idx_club_user_club_id ON club_user(club_id);
				CREATE INDEX IF NOT EXISTS idx_club_user_status ON club_user(status);
			`,
		},
		{
			Version:     4,
			Description: "Create events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS events (
					id UUID PRIMARY KEY,
					club_id UUID NOT NULL REFERENCES clubs(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					date TIMESTAMPTZ NOT NULL,
					location VARCHAR(255) NOT NULL DEFAULT '',
					image VARCHAR(255) NOT NULL DEFAULT 'events/default.png',
					max_participants INT NOT NULL CHECK (max_participants >= 0),
					created_by UUID REFERENCES users(id) ON DELETE SET NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending'
						CHECK (status IN ('pending', 'approved', 'rejected')),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_events_club_id ON events(club_id);
				CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
				CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
			`,
		},
		{
			Version:     5,
			Description: "Create event_registrations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS event_registrations (
					id UUID PRIMARY KEY,
					event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					status VARCHAR(20) NOT NULL DEFAULT 'pending'
						CHECK (status IN ('pending', 'approved', 'rejected')),
					registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_event_registrations_event_user UNIQUE (event_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_event_registrations_event_id ON event_registrations(event_id);
				CREATE INDEX IF NOT EXISTS idx_event_registrations_user_id ON event_registrations(user_id);
				CREATE INDEX IF NOT EXISTS idx_event_registrations_status ON event_registrations(status);
			`,
		},
		{
			Version:     6,
			Description: "Create announcements table",
			SQL: `
				CREATE TABLE IF NOT EXISTS announcements (
					id UUID PRIMARY KEY,
					club_id UUID NOT NULL REFERENCES clubs(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					content TEXT NOT NULL,
					created_by UUID REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_announcements_club_id ON announcements(club_id);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					user_id UUID,
					email VARCHAR(255),
					club_id UUID,
					resource_type VARCHAR(50),
					resource_id VARCHAR(255),
					ip_address VARCHAR(45),
					user_agent TEXT,
					request_id VARCHAR(100),
					method VARCHAR(10),
					path TEXT,
					status_code INT,
					message TEXT,
					metadata JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_club_id ON audit_logs(club_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
			`,
		},
	}
}

// Migrate applies pending migrations, each in its own transaction, and
// returns the versions it applied
func Migrate(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) ([]int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	var applied []int
	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		entry := logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
		entry.Info("Running migration")

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version, migration.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}

		applied = append(applied, migration.Version)
	}

	return applied, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// DB wraps the PostgreSQL connection
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens a PostgreSQL connection, creates missing tables and runs migrations
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, logger: logger}

	if err := db.createTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.migrateSchema(ctx)

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables
func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS voice_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			duration_seconds BIGINT NOT NULL CHECK (duration_seconds >= 0),
			kst_date TEXT NOT NULL,
			kst_year INT NOT NULL,
			kst_month INT NOT NULL,
			kst_week_of_month INT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS voice_sessions_kst_date_idx ON voice_sessions (kst_date)`,
		`CREATE INDEX IF NOT EXISTS voice_sessions_kst_week_idx ON voice_sessions (kst_year, kst_month, kst_week_of_month)`,
		`CREATE TABLE IF NOT EXISTS user_logs (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			server_nickname TEXT NOT NULL DEFAULT '',
			joined_at_server TIMESTAMPTZ,
			granted_role TEXT[] NOT NULL DEFAULT '{}',
			granted_time TIMESTAMPTZ,
			join_time TIMESTAMPTZ,
			leave_time TIMESTAMPTZ,
			last_active TIMESTAMPTZ,
			channel TEXT NOT NULL DEFAULT '',
			total_seconds BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS quit_logs (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			server_nickname TEXT NOT NULL DEFAULT '',
			joined_at_server TIMESTAMPTZ,
			granted_role TEXT[] NOT NULL DEFAULT '{}',
			granted_time TIMESTAMPTZ,
			join_time TIMESTAMPTZ,
			leave_time TIMESTAMPTZ,
			last_active TIMESTAMPTZ,
			channel TEXT NOT NULL DEFAULT '',
			total_seconds BIGINT NOT NULL DEFAULT 0,
			quit_time TIMESTAMPTZ NOT NULL,
			times INT NOT NULL DEFAULT 0
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// migrateSchema carries data over from older layouts. Each step may fail
// harmlessly when the old layout was never present.
func (db *DB) migrateSchema(ctx context.Context) {
	migrations := []string{
		// Columns added after the first release of user_logs
		`ALTER TABLE user_logs ADD COLUMN IF NOT EXISTS granted_time TIMESTAMPTZ`,
		`ALTER TABLE user_logs ADD COLUMN IF NOT EXISTS channel TEXT NOT NULL DEFAULT ''`,

		// Seed running totals from the per-guild voice_hours table
		`INSERT INTO user_logs (user_id, total_seconds)
		SELECT user_id, SUM(total_seconds)
		FROM voice_hours
		GROUP BY user_id
		ON CONFLICT (user_id) DO NOTHING`,
	}

	for _, migration := range migrations {
		if _, err := db.conn.ExecContext(ctx, migration); err != nil {
			db.logger.Warn("migration failed (this might be expected)", "err", err)
		}
	}
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

// DSN renders the lib/pq connection string for the configured database.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

const timetableSchema = `
CREATE TABLE IF NOT EXISTS timetables (
	id               UUID PRIMARY KEY,
	department_id    TEXT NOT NULL,
	semester         INTEGER NOT NULL,
	section          TEXT NOT NULL,
	academic_year    TEXT NOT NULL DEFAULT '',
	version          INTEGER NOT NULL,
	status           TEXT NOT NULL,
	is_current       BOOLEAN NOT NULL DEFAULT FALSE,
	algorithm        TEXT NOT NULL DEFAULT '',
	schedule         JSONB NOT NULL DEFAULT '{}',
	conflicts        JSONB NOT NULL DEFAULT '[]',
	stats            JSONB NOT NULL DEFAULT '{}',
	generated_by     TEXT NOT NULL DEFAULT '',
	approved_by      TEXT,
	approved_at      TIMESTAMPTZ,
	published_at     TIMESTAMPTZ,
	rejection_reason TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (department_id, semester, section, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS timetables_current_scope
	ON timetables (department_id, semester, section) WHERE is_current;
`

// Migrate creates the timetable tables when missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, timetableSchema); err != nil {
		return fmt.Errorf("apply timetable schema: %w", err)
	}
	return nil
}

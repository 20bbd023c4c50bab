package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSQLiteSchema creates the owner and participant tables if missing.
// Both stores share the schema so one file can serve either role.
func InitSQLiteSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id INTEGER PRIMARY KEY,
			state_json TEXT NOT NULL,
			last_active_unix_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_last_active ON rooms(last_active_unix_ms);`,
		`CREATE TABLE IF NOT EXISTS participant_starts (
			start_key TEXT PRIMARY KEY,
			started_at_unix_ms INTEGER NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-room/internal/config"
)

type SQLiteStartRepository struct {
	db *sql.DB
}

func NewSQLiteStartRepository(db *sql.DB) *SQLiteStartRepository {
	return &SQLiteStartRepository{db: db}
}

func (r *SQLiteStartRepository) LoadStart(ctx context.Context, roomID int) (time.Time, bool, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx,
		`SELECT started_at_unix_ms FROM participant_starts WHERE start_key = ?`,
		config.CacheKey.ParticipantStartKey(roomID)).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load start for room %d: %w", roomID, err)
	}
	return fromMillis(ms), true, nil
}

// SaveStart records the start instant. An existing instant is kept: the
// first start of a room is the one the deadline counts from.
func (r *SQLiteStartRepository) SaveStart(ctx context.Context, roomID int, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO participant_starts (start_key, started_at_unix_ms) VALUES (?, ?)
		 ON CONFLICT (start_key) DO NOTHING`,
		config.CacheKey.ParticipantStartKey(roomID), toMillis(startedAt))
	if err != nil {
		return fmt.Errorf("save start for room %d: %w", roomID, err)
	}
	return nil
}

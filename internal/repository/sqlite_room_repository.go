package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-room/internal/model"
)

type SQLiteRoomRepository struct {
	db *sql.DB
}

func NewSQLiteRoomRepository(db *sql.DB) *SQLiteRoomRepository {
	return &SQLiteRoomRepository{db: db}
}

func (r *SQLiteRoomRepository) LoadLatest(ctx context.Context) (RoomRecord, error) {
	var (
		rec    RoomRecord
		raw    string
		active int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT room_id, state_json, last_active_unix_ms FROM rooms
		 ORDER BY last_active_unix_ms DESC LIMIT 1`).
		Scan(&rec.RoomID, &raw, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNoRoom
	}
	if err != nil {
		return rec, fmt.Errorf("load room: %w", err)
	}

	var state model.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return rec, fmt.Errorf("decode room %d: %w", rec.RoomID, err)
	}
	rec.State = state
	rec.LastActive = fromMillis(active)
	return rec, nil
}

func (r *SQLiteRoomRepository) Save(ctx context.Context, rec RoomRecord) error {
	raw, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("encode room %d: %w", rec.RoomID, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO rooms (room_id, state_json, last_active_unix_ms) VALUES (?, ?, ?)
		 ON CONFLICT (room_id) DO UPDATE SET state_json = excluded.state_json,
		 last_active_unix_ms = excluded.last_active_unix_ms`,
		rec.RoomID, string(raw), toMillis(rec.LastActive))
	if err != nil {
		return fmt.Errorf("save room %d: %w", rec.RoomID, err)
	}
	return nil
}

func (r *SQLiteRoomRepository) Delete(ctx context.Context, roomID int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete room %d: %w", roomID, err)
	}
	return nil
}

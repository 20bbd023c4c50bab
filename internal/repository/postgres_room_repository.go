package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-room/internal/model"
)

type PostgresRoomRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRoomRepository(pool *pgxpool.Pool) *PostgresRoomRepository {
	return &PostgresRoomRepository{pool: pool}
}

func (r *PostgresRoomRepository) LoadLatest(ctx context.Context) (RoomRecord, error) {
	var (
		rec RoomRecord
		raw []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT room_id, state, last_active FROM exam_rooms ORDER BY last_active DESC LIMIT 1`).
		Scan(&rec.RoomID, &raw, &rec.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ErrNoRoom
	}
	if err != nil {
		return rec, fmt.Errorf("load room: %w", err)
	}

	var state model.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return rec, fmt.Errorf("decode room %d: %w", rec.RoomID, err)
	}
	rec.State = state
	return rec, nil
}

func (r *PostgresRoomRepository) Save(ctx context.Context, rec RoomRecord) error {
	raw, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("encode room %d: %w", rec.RoomID, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_rooms (room_id, state, last_active) VALUES ($1, $2, $3)
		 ON CONFLICT (room_id) DO UPDATE SET state = EXCLUDED.state, last_active = EXCLUDED.last_active`,
		rec.RoomID, raw, rec.LastActive)
	if err != nil {
		return fmt.Errorf("save room %d: %w", rec.RoomID, err)
	}
	return nil
}

func (r *PostgresRoomRepository) Delete(ctx context.Context, roomID int) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM exam_rooms WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("delete room %d: %w", roomID, err)
	}
	return nil
}

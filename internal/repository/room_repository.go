package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/exstem-room/internal/model"
)

// ErrNoRoom is returned when the owner store holds no room.
var ErrNoRoom = errors.New("no stored room")

// RoomRecord is the owner's durable record: one row per room identifier,
// overwritten in full after every mutation.
type RoomRecord struct {
	RoomID     int
	State      model.SessionState
	LastActive time.Time
}

// RoomRepository persists the examiner's room.
type RoomRepository interface {
	// LoadLatest returns the most recently active room.
	LoadLatest(ctx context.Context) (RoomRecord, error)
	Save(ctx context.Context, rec RoomRecord) error
	Delete(ctx context.Context, roomID int) error
}

// StartRepository remembers, on the participant device, when the exam was
// started in each room.
type StartRepository interface {
	LoadStart(ctx context.Context, roomID int) (time.Time, bool, error)
	SaveStart(ctx context.Context, roomID int, startedAt time.Time) error
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

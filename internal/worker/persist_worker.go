package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/repository"
)

type opKind int

const (
	opSave opKind = iota
	opDelete
)

type persistOp struct {
	kind   opKind
	record repository.RoomRecord
}

func (o persistOp) roomID() int { return o.record.RoomID }

// PersistWorker writes room records to the owner store off the dispatcher
// goroutine. Enqueueing never blocks; queued writes for the same room
// collapse to the newest one, since each save is a full overwrite.
type PersistWorker struct {
	repo       repository.RoomRepository
	log        zerolog.Logger
	retryDelay time.Duration

	mu      sync.Mutex
	pending []persistOp
	notify  chan struct{}
}

// NewPersistWorker creates a new PersistWorker.
func NewPersistWorker(repo repository.RoomRepository, log zerolog.Logger) *PersistWorker {
	return &PersistWorker{
		repo:       repo,
		log:        log.With().Str("component", "persist_worker").Logger(),
		retryDelay: 5 * time.Second,
		notify:     make(chan struct{}, 1),
	}
}

// Save queues a full overwrite of rec.
func (w *PersistWorker) Save(rec repository.RoomRecord) {
	w.enqueue(persistOp{kind: opSave, record: rec})
}

// Delete queues removal of a room.
func (w *PersistWorker) Delete(roomID int) {
	w.enqueue(persistOp{kind: opDelete, record: repository.RoomRecord{RoomID: roomID}})
}

// Pending returns the number of queued operations.
func (w *PersistWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *PersistWorker) enqueue(op persistOp) {
	w.mu.Lock()
	w.pending = append(w.pending, op)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *PersistWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		case <-w.notify:
			if !w.processBatch(ctx) {
				select {
				case <-ctx.Done():
				case <-time.After(w.retryDelay):
				}
				w.wake()
			}
		}
	}
}

func (w *PersistWorker) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *PersistWorker) take() []persistOp {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := coalesce(w.pending)
	w.pending = nil
	return batch
}

// requeue puts unwritten ops back in front of anything queued meanwhile.
func (w *PersistWorker) requeue(ops []persistOp) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(append([]persistOp(nil), ops...), w.pending...)
}

// processBatch writes everything queued. It reports false if a write
// failed and the remainder was requeued.
func (w *PersistWorker) processBatch(ctx context.Context) bool {
	batch := w.take()
	for i, op := range batch {
		if err := w.apply(ctx, op); err != nil {
			w.log.Error().Err(err).
				Int("room_id", op.roomID()).
				Msg("Persist error, retrying")
			w.requeue(batch[i:])
			return false
		}
	}
	return true
}

func (w *PersistWorker) apply(ctx context.Context, op persistOp) error {
	if op.kind == opDelete {
		return w.repo.Delete(ctx, op.roomID())
	}
	return w.repo.Save(ctx, op.record)
}

// drain writes remaining ops before shutdown, giving up at the first error.
func (w *PersistWorker) drain(ctx context.Context) {
	batch := w.take()
	drained := 0
	for _, op := range batch {
		if err := w.apply(ctx, op); err != nil {
			w.log.Error().Err(err).Int("room_id", op.roomID()).Msg("Drain persist error")
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

// coalesce keeps only the newest op per room, ordered by when that newest
// op was queued.
func coalesce(ops []persistOp) []persistOp {
	last := make(map[int]int, len(ops))
	for i, op := range ops {
		last[op.roomID()] = i
	}
	out := make([]persistOp, 0, len(last))
	for i, op := range ops {
		if last[op.roomID()] == i {
			out = append(out, op)
		}
	}
	return out
}

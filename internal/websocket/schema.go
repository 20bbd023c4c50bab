package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/stemsi/exstem-room/internal/model"
)

// ─── Message Types ──────────────────────────────────────────────────

// MessageType discriminates the envelope payload.
type MessageType string

const (
	// TypeSyncState flows examiner → participant and carries a projected SessionState.
	TypeSyncState MessageType = "SYNC_STATE"
	// TypeSubmitAnswers flows participant → examiner and carries a SubmitPayload.
	TypeSubmitAnswers MessageType = "SUBMIT_ANSWERS"
)

// Envelope is the only frame shape on the wire. Payload is decoded lazily
// once Type is known.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ─── Constructors ───────────────────────────────────────────────────

// SyncState wraps a state for broadcast. Callers pass a projection; the
// submissions list is cleared again here so no path can leak it.
func SyncState(state model.SessionState) (Envelope, error) {
	return encode(TypeSyncState, state.Projection())
}

// SubmitAnswers wraps a participant's hand-in.
func SubmitAnswers(p model.SubmitPayload) (Envelope, error) {
	return encode(TypeSubmitAnswers, p)
}

func encode(t MessageType, v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// ─── Decoders ───────────────────────────────────────────────────────

// DecodeState reads a SYNC_STATE payload.
func (e Envelope) DecodeState() (model.SessionState, error) {
	var s model.SessionState
	if e.Type != TypeSyncState {
		return s, fmt.Errorf("expected %s, got %q", TypeSyncState, e.Type)
	}
	if err := json.Unmarshal(e.Payload, &s); err != nil {
		return s, fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return s, nil
}

// DecodeSubmit reads a SUBMIT_ANSWERS payload.
func (e Envelope) DecodeSubmit() (model.SubmitPayload, error) {
	var p model.SubmitPayload
	if e.Type != TypeSubmitAnswers {
		return p, fmt.Errorf("expected %s, got %q", TypeSubmitAnswers, e.Type)
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return p, nil
}

package model

import "fmt"

// SessionStatus enumerates the room states controlled by the examiner.
type SessionStatus string

const (
	SessionStatusWaiting  SessionStatus = "WAITING"
	SessionStatusActive   SessionStatus = "ACTIVE"
	SessionStatusFinished SessionStatus = "FINISHED"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusWaiting, SessionStatusActive, SessionStatusFinished:
		return true
	}
	return false
}

// Open reports whether participants may start the exam.
func (s SessionStatus) Open() bool {
	return s == SessionStatusWaiting || s == SessionStatusActive
}

// ParseSessionStatus converts a wire string into a SessionStatus.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	s := SessionStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown session status %q", raw)
	}
	return s, nil
}

// MinDurationMinutes is the smallest accepted exam duration.
const MinDurationMinutes = 1

// SessionState is the canonical room state owned by the examiner node.
// Participants only ever hold a Projection of it.
type SessionState struct {
	Status            SessionStatus `json:"status"`
	Submissions       []Submission  `json:"submissions"`
	AnswerKey         AnswerKey     `json:"answerKey"`
	IsReviewOpen      bool          `json:"isReviewOpen"`
	Duration          int           `json:"duration"`
	EnforceFullscreen bool          `json:"enforceFullscreen"`
}

// NewSessionState returns the state of a freshly created room.
func NewSessionState(durationMinutes int) SessionState {
	if durationMinutes < MinDurationMinutes {
		durationMinutes = MinDurationMinutes
	}
	return SessionState{
		Status:            SessionStatusActive,
		Submissions:       []Submission{},
		AnswerKey:         DefaultAnswerKey(),
		Duration:          durationMinutes,
		EnforceFullscreen: true,
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s SessionState) Clone() SessionState {
	out := s
	out.AnswerKey = s.AnswerKey.Clone()
	out.Submissions = make([]Submission, len(s.Submissions))
	for i, sub := range s.Submissions {
		out.Submissions[i] = sub.Clone()
	}
	return out
}

// Projection strips every submission so the state can be broadcast to
// participants without leaking other examinees' answers, names or scores.
func (s SessionState) Projection() SessionState {
	out := s
	out.AnswerKey = s.AnswerKey.Clone()
	out.Submissions = []Submission{}
	return out
}

// FindSubmission returns the index of the submission stored for name, or -1.
func (s SessionState) FindSubmission(name string) int {
	for i := range s.Submissions {
		if s.Submissions[i].Name == name {
			return i
		}
	}
	return -1
}

// Normalize fills in fields that older persisted records may lack.
func (s *SessionState) Normalize(defaultDuration int) {
	if !s.Status.Valid() {
		s.Status = SessionStatusActive
	}
	if s.Submissions == nil {
		s.Submissions = []Submission{}
	}
	if s.AnswerKey.IsZero() {
		s.AnswerKey = DefaultAnswerKey()
	}
	s.AnswerKey.ensureMaps()
	if s.Duration < MinDurationMinutes {
		s.Duration = defaultDuration
	}
}

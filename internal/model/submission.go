package model

import "time"

// Submission is the stored record of one participant's hand-in. Name is the
// identity key: the room keeps exactly one submission per name.
type Submission struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Answers        AnswerSet `json:"answers"`
	Score          float64   `json:"score"`
	SubmittedAt    time.Time `json:"submittedAt"`
	ViolationCount int       `json:"violationCount"`
}

// Clone returns a deep copy.
func (s Submission) Clone() Submission {
	out := s
	out.Answers = s.Answers.Clone()
	return out
}

// SubmitPayload is the SUBMIT_ANSWERS body sent by a participant. ID is
// optional; the examiner assigns one when it is missing.
type SubmitPayload struct {
	ID             string    `json:"id,omitempty" binding:"omitempty,max=64"`
	Name           string    `json:"name" binding:"required,notblank,max=100"`
	Answers        AnswerSet `json:"answers"`
	Score          float64   `json:"score" binding:"gte=0"`
	SubmittedAt    time.Time `json:"submittedAt" binding:"required"`
	ViolationCount int       `json:"violationCount" binding:"gte=0"`
}

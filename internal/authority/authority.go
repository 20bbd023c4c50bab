// Package authority owns the canonical room state on the examiner node.
// Every mutation is broadcast to connected participants as a projection and
// persisted as a full overwrite.
package authority

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/model"
	"github.com/stemsi/exstem-room/internal/repository"
)

var (
	ErrSessionFinished    = errors.New("session is finished")
	ErrInvalidKeyUpdate   = errors.New("invalid answer key update")
	ErrSubmissionNotFound = errors.New("submission not found")
)

// Broadcaster delivers a state to every connected participant.
type Broadcaster interface {
	Broadcast(state model.SessionState) int
}

// Persister stores room records asynchronously.
type Persister interface {
	Save(rec repository.RoomRecord)
	Delete(roomID int)
}

// Options tunes grading and defaults.
type Options struct {
	Rules           grading.Rules
	DefaultDuration int
	// RegradeOnKeyChange re-scores stored submissions after a key edit.
	// Off by default: a stored score reflects the key at submission time.
	RegradeOnKeyChange bool
	Now                func() time.Time
}

// Authority holds the room. It is not safe for concurrent use; the examiner
// node's dispatcher is its only caller.
type Authority struct {
	roomID int
	state  model.SessionState
	opts   Options
	links  Broadcaster
	store  Persister
	log    zerolog.Logger
}

// New creates an Authority for roomID starting from state. The state is
// normalized and persisted immediately so LastActive reflects this start.
func New(roomID int, state model.SessionState, links Broadcaster, store Persister, opts Options, log zerolog.Logger) *Authority {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultDuration < model.MinDurationMinutes {
		opts.DefaultDuration = 45
	}
	state.Normalize(opts.DefaultDuration)

	a := &Authority{
		roomID: roomID,
		state:  state,
		opts:   opts,
		links:  links,
		store:  store,
		log:    log.With().Str("component", "authority").Logger(),
	}
	a.persist()
	return a
}

// RoomID returns the current room number.
func (a *Authority) RoomID() int { return a.roomID }

// Snapshot returns a deep copy of the full state, submissions included.
func (a *Authority) Snapshot() model.SessionState { return a.state.Clone() }

// Rules returns the grading rules in effect.
func (a *Authority) Rules() grading.Rules { return a.opts.Rules }

func (a *Authority) SetStatus(status model.SessionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	a.state.Status = status
	a.log.Info().Int("room_id", a.roomID).Str("status", string(status)).Msg("Status changed")
	a.commit()
	return nil
}

// SetDuration changes the exam length. Values below one minute become one.
// Running participant deadlines follow the new value.
func (a *Authority) SetDuration(minutes int) (int, error) {
	if a.state.Status == model.SessionStatusFinished {
		return a.state.Duration, ErrSessionFinished
	}
	if minutes < model.MinDurationMinutes {
		minutes = model.MinDurationMinutes
	}
	a.state.Duration = minutes
	a.log.Info().Int("room_id", a.roomID).Int("duration", minutes).Msg("Duration changed")
	a.commit()
	return minutes, nil
}

func (a *Authority) SetEnforceFullscreen(on bool) {
	a.state.EnforceFullscreen = on
	a.commit()
}

func (a *Authority) SetReviewOpen(open bool) {
	a.state.IsReviewOpen = open
	a.commit()
}

// KeyUpdate changes one entry of the answer key. Which value field is read
// depends on Part: Letter for 1, Sub and Value for 2, Text for 3.
type KeyUpdate struct {
	Part     int
	Question int
	Letter   string
	Sub      model.SubQuestion
	Value    bool
	// Text is split on ';' into alternative accepted forms.
	Text string
}

// UpdateAnswerKey applies one key edit.
func (a *Authority) UpdateAnswerKey(u KeyUpdate) error {
	if err := a.checkKeyUpdate(u); err != nil {
		return err
	}

	key := &a.state.AnswerKey
	switch u.Part {
	case 1:
		key.Part1[u.Question] = strings.ToUpper(strings.TrimSpace(u.Letter))
	case 2:
		key.Part2[u.Question] = key.Part2[u.Question].With(u.Sub, u.Value)
	case 3:
		key.Part3[u.Question] = model.ParseTextKey(u.Text)
	}

	a.log.Info().Int("room_id", a.roomID).Int("part", u.Part).Int("question", u.Question).Msg("Answer key updated")
	if a.opts.RegradeOnKeyChange {
		a.regrade()
	}
	a.commit()
	return nil
}

func (a *Authority) checkKeyUpdate(u KeyUpdate) error {
	var count int
	switch u.Part {
	case 1:
		count = a.opts.Rules.Part1Count
		switch strings.ToUpper(strings.TrimSpace(u.Letter)) {
		case "A", "B", "C", "D":
		default:
			return fmt.Errorf("%w: part 1 answer must be A-D", ErrInvalidKeyUpdate)
		}
	case 2:
		count = a.opts.Rules.Part2Count
		if _, err := model.ParseSubQuestion(string(u.Sub)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKeyUpdate, err)
		}
	case 3:
		count = a.opts.Rules.Part3Count
		if strings.TrimSpace(u.Text) == "" {
			return fmt.Errorf("%w: part 3 answer must not be empty", ErrInvalidKeyUpdate)
		}
	default:
		return fmt.Errorf("%w: unknown part %d", ErrInvalidKeyUpdate, u.Part)
	}
	if u.Question < 1 || u.Question > count {
		return fmt.Errorf("%w: question %d out of range 1-%d", ErrInvalidKeyUpdate, u.Question, count)
	}
	return nil
}

func (a *Authority) regrade() {
	for i := range a.state.Submissions {
		sub := &a.state.Submissions[i]
		sub.Score = grading.Score(sub.Answers, a.state.AnswerKey, a.opts.Rules)
	}
	a.log.Info().Int("room_id", a.roomID).Int("count", len(a.state.Submissions)).Msg("Submissions re-graded")
}

// IngestSubmission stores a participant's hand-in, replacing any earlier
// one under the same name in its original position. The score is recomputed against the current key;
// the participant's own estimate is only compared for the log.
func (a *Authority) IngestSubmission(p model.SubmitPayload) model.Submission {
	sub := model.Submission{
		ID:             p.ID,
		Name:           strings.TrimSpace(p.Name),
		Answers:        p.Answers.Clone(),
		SubmittedAt:    p.SubmittedAt,
		ViolationCount: p.ViolationCount,
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = a.opts.Now()
	}
	sub.Score = grading.Score(sub.Answers, a.state.AnswerKey, a.opts.Rules)

	i := a.state.FindSubmission(sub.Name)
	replaced := i >= 0
	if replaced {
		a.state.Submissions[i] = sub
	} else {
		a.state.Submissions = append(a.state.Submissions, sub)
	}

	ev := a.log.Info()
	if sub.Score != p.Score {
		ev = a.log.Warn().Float64("claimed_score", p.Score)
	}
	ev.Int("room_id", a.roomID).
		Str("name", sub.Name).
		Float64("score", sub.Score).
		Int("violations", sub.ViolationCount).
		Bool("replaced", replaced).
		Msg("Submission received")

	a.commit()
	return sub.Clone()
}

// Review grades a stored submission question by question against the
// current key.
func (a *Authority) Review(name string) (model.Submission, grading.Review, error) {
	i := a.state.FindSubmission(strings.TrimSpace(name))
	if i < 0 {
		return model.Submission{}, grading.Review{}, ErrSubmissionNotFound
	}
	sub := a.state.Submissions[i].Clone()
	return sub, grading.Detail(sub.Answers, a.state.AnswerKey, a.opts.Rules), nil
}

// Reset discards the room and starts a fresh one under newRoomID. The old
// record is deleted. Links opened under the old identifier are stale and
// must be closed by the caller; nothing is broadcast to them.
func (a *Authority) Reset(newRoomID int) {
	old := a.roomID
	a.roomID = newRoomID
	a.state = model.NewSessionState(a.opts.DefaultDuration)

	a.store.Delete(old)
	a.persist()
	a.log.Info().Int("old_room_id", old).Int("room_id", newRoomID).Msg("Room reset")
}

func (a *Authority) commit() {
	a.links.Broadcast(a.state.Projection())
	a.persist()
}

func (a *Authority) persist() {
	a.store.Save(repository.RoomRecord{
		RoomID:     a.roomID,
		State:      a.state.Clone(),
		LastActive: a.opts.Now(),
	})
}

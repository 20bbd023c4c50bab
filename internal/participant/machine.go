// Package participant implements the examinee's side of the room: joining,
// starting, answering under a reconstructed deadline with cheat monitoring,
// and handing in.
package participant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/cheat"
	"github.com/stemsi/exstem-room/internal/deadline"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/model"
	ws "github.com/stemsi/exstem-room/internal/websocket"
)

// State is the participant's lifecycle position. It only moves forward,
// except that losing the link before starting returns to NotJoined.
type State int

const (
	NotJoined State = iota
	JoinedWaiting
	StartedActive
	SubmittedPendingResults
	SubmittedFinishedReview
)

func (s State) String() string {
	switch s {
	case NotJoined:
		return "NOT_JOINED"
	case JoinedWaiting:
		return "JOINED_WAITING"
	case StartedActive:
		return "STARTED_ACTIVE"
	case SubmittedPendingResults:
		return "SUBMITTED_PENDING_RESULTS"
	case SubmittedFinishedReview:
		return "SUBMITTED_FINISHED_REVIEW"
	}
	return "UNKNOWN"
}

// Submitted reports whether the hand-in was delivered.
func (s State) Submitted() bool { return s >= SubmittedPendingResults }

var (
	ErrNotJoined            = errors.New("not joined")
	ErrAlreadyStarted       = errors.New("exam already started")
	ErrNotStarted           = errors.New("exam not started")
	ErrAlreadySubmitted     = errors.New("answers already submitted")
	ErrSessionClosed        = errors.New("session is finished")
	ErrNotSynced            = errors.New("waiting for the examiner's room state")
	ErrFullscreenDenied     = errors.New("fullscreen is required to start")
	ErrNotConnected         = errors.New("no open link to the examiner")
	ErrConfirmationRequired = errors.New("submission needs confirmation")
	ErrAnswersLocked        = errors.New("answers cannot be changed now")
	ErrInvalidAnswer        = errors.New("invalid answer")
	ErrReviewClosed         = errors.New("review is not open")
)

// Platform is the device the exam runs on.
type Platform interface {
	RequestFullscreen() error
	ExitFullscreen()
	IsFullscreen() bool
	AcquireWakeLock() error
	ReleaseWakeLock()
}

// Sender is the participant's single link to the examiner.
type Sender interface {
	Send(env ws.Envelope) error
	Open() bool
}

// StartStore persists start instants on the device, keyed by room.
type StartStore interface {
	LoadStart(ctx context.Context, roomID int) (time.Time, bool, error)
	SaveStart(ctx context.Context, roomID int, startedAt time.Time) error
}

// Config identifies the participant and the room.
type Config struct {
	Name   string
	RoomID int
	Rules  grading.Rules
	// DefaultDuration seeds the mirror until the first sync arrives.
	DefaultDuration int
	Now             func() time.Time
}

// Machine is the participant state machine. It is driven by one goroutine.
type Machine struct {
	cfg      Config
	platform Platform
	store    StartStore
	sender   Sender
	log      zerolog.Logger

	state     State
	mirror    model.SessionState
	answers   model.AnswerSet
	countdown deadline.Countdown
	remaining time.Duration
	monitor   *cheat.Monitor
	estimate  float64

	// synced is set by the first examiner broadcast. Until then the mirror
	// holds defaults and nothing time-based may act on it.
	synced bool
}

// NewMachine creates a participant that has not joined yet. Until the
// examiner's first sync the mirror holds the defaults of a new room.
func NewMachine(cfg Config, platform Platform, store StartStore, log zerolog.Logger) *Machine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultDuration < model.MinDurationMinutes {
		cfg.DefaultDuration = 45
	}
	cfg.Name = strings.TrimSpace(cfg.Name)
	return &Machine{
		cfg:      cfg,
		platform: platform,
		store:    store,
		log:      log.With().Str("component", "participant").Str("name", cfg.Name).Int("room_id", cfg.RoomID).Logger(),
		state:    NotJoined,
		mirror:   model.NewSessionState(cfg.DefaultDuration),
		answers:  model.NewAnswerSet(),
		monitor:  cheat.NewMonitor(),
	}
}

// State returns the lifecycle position.
func (m *Machine) State() State { return m.state }

// Synced reports whether the examiner's room state has arrived.
func (m *Machine) Synced() bool { return m.synced }

// LinkOpened records the open link. A participant who already started this
// room on this device resumes straight into the running exam.
func (m *Machine) LinkOpened(ctx context.Context, s Sender) error {
	m.sender = s
	if m.state != NotJoined {
		return nil
	}
	m.state = JoinedWaiting
	m.log.Info().Msg("Joined room")

	start, ok, err := m.store.LoadStart(ctx, m.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("loading start instant: %w", err)
	}
	if ok {
		m.log.Info().Time("started_at", start).Msg("Resuming started exam")
		m.activate(start)
	}
	return nil
}

// LinkClosed forgets the link. Only a participant who has not started
// falls back to NotJoined; everyone else keeps their place.
func (m *Machine) LinkClosed() {
	m.sender = nil
	if m.state == JoinedWaiting {
		m.state = NotJoined
	}
	m.log.Warn().Str("state", m.state.String()).Msg("Lost link to examiner")
}

// ApplyState merges an examiner broadcast into the mirror.
func (m *Machine) ApplyState(s model.SessionState) {
	s.Normalize(m.cfg.DefaultDuration)
	s.Submissions = nil
	m.mirror = s
	m.monitor.SetEnforce(s.EnforceFullscreen)
	first := !m.synced
	m.synced = true

	finished := s.Status == model.SessionStatusFinished
	switch m.state {
	case StartedActive:
		m.remaining = deadline.Remaining(m.countdown.Start(), s.Duration, m.cfg.Now())
		switch {
		case finished && m.monitor.Active():
			m.monitor.Deactivate()
			m.platform.ReleaseWakeLock()
			m.log.Info().Msg("Session finished, countdown suspended")
		case !finished && !m.monitor.Active():
			m.monitor.Activate(s.EnforceFullscreen, m.platform.IsFullscreen())
			m.acquireWakeLock()
			if first {
				m.log.Info().Dur("remaining", m.remaining).Msg("Room state received, countdown running")
			} else {
				m.log.Info().Msg("Session reopened, countdown resumed")
			}
		}
	case SubmittedPendingResults:
		if finished {
			m.state = SubmittedFinishedReview
			m.log.Info().Msg("Results released")
		}
	}

	if m.state.Submitted() {
		m.estimate = grading.Score(m.answers, m.mirror.AnswerKey, m.cfg.Rules)
	}
}

// Start begins the exam. When fullscreen is enforced and the platform
// refuses it, the participant stays waiting.
func (m *Machine) Start(ctx context.Context) error {
	switch {
	case m.state == NotJoined:
		return ErrNotJoined
	case m.state != JoinedWaiting:
		return ErrAlreadyStarted
	case !m.synced:
		return ErrNotSynced
	case m.mirror.Status == model.SessionStatusFinished:
		return ErrSessionClosed
	}

	if m.mirror.EnforceFullscreen {
		if err := m.platform.RequestFullscreen(); err != nil {
			m.log.Warn().Err(err).Msg("Fullscreen refused")
			return fmt.Errorf("%w: %v", ErrFullscreenDenied, err)
		}
	}

	now := m.cfg.Now()
	if err := m.store.SaveStart(ctx, m.cfg.RoomID, now); err != nil {
		m.log.Error().Err(err).Msg("Persisting start instant failed")
	}
	m.log.Info().Time("started_at", now).Msg("Exam started")
	m.activate(now)
	return nil
}

// activate enters the running exam. A resume that happens before the first
// sync only anchors the countdown; ApplyState brings the rest up.
func (m *Machine) activate(start time.Time) {
	m.state = StartedActive
	m.countdown = deadline.NewCountdown(start)
	if !m.running() {
		return
	}
	m.remaining = deadline.Remaining(start, m.mirror.Duration, m.cfg.Now())
	m.monitor.Activate(m.mirror.EnforceFullscreen, m.platform.IsFullscreen())
	m.acquireWakeLock()
}

func (m *Machine) acquireWakeLock() {
	if err := m.platform.AcquireWakeLock(); err != nil {
		m.log.Warn().Err(err).Msg("Keep-awake unavailable")
	}
}

// running reports whether the countdown and monitor are live.
func (m *Machine) running() bool {
	return m.synced && m.state == StartedActive && m.mirror.Status != model.SessionStatusFinished
}

// Tick samples the countdown. When it first reaches zero the answers are
// handed in automatically; submitted reports whether that happened.
func (m *Machine) Tick(now time.Time) (submitted bool, err error) {
	if !m.running() {
		return false, nil
	}
	var r deadline.Reading
	m.countdown, r = m.countdown.Sample(m.mirror.Duration, now)
	m.remaining = r.Remaining
	if !r.Expired {
		return false, nil
	}

	m.log.Info().Msg("Time is up, submitting automatically")
	if err := m.submit(now); err != nil {
		return false, err
	}
	return true, nil
}

// Submit hands in the answers after the participant confirmed.
func (m *Machine) Submit(confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	return m.submit(m.cfg.Now())
}

func (m *Machine) submit(now time.Time) error {
	switch {
	case m.state.Submitted():
		return ErrAlreadySubmitted
	case m.state != StartedActive:
		return ErrNotStarted
	case !m.synced:
		return ErrNotSynced
	case m.mirror.Status == model.SessionStatusFinished:
		return ErrSessionClosed
	case m.sender == nil || !m.sender.Open():
		m.log.Error().Msg("Cannot submit: no link to examiner")
		return ErrNotConnected
	}

	score := grading.Score(m.answers, m.mirror.AnswerKey, m.cfg.Rules)
	env, err := ws.SubmitAnswers(model.SubmitPayload{
		ID:             uuid.NewString(),
		Name:           m.cfg.Name,
		Answers:        m.answers.Clone(),
		Score:          score,
		SubmittedAt:    now,
		ViolationCount: m.monitor.Violations(),
	})
	if err != nil {
		return err
	}
	if err := m.sender.Send(env); err != nil {
		m.log.Error().Err(err).Msg("Cannot submit: send failed")
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	m.monitor.Deactivate()
	m.platform.ExitFullscreen()
	m.monitor.FullscreenChanged(false)
	m.platform.ReleaseWakeLock()
	m.estimate = score
	m.state = SubmittedPendingResults
	m.log.Info().Float64("score", score).Int("violations", m.monitor.Violations()).Msg("Answers submitted")
	return nil
}

// VisibilityChanged reports the page being hidden or shown again. Coming
// back also re-acquires keep-awake, which platforms drop on hide.
func (m *Machine) VisibilityChanged(hidden bool, now time.Time) {
	if m.monitor.VisibilityChanged(hidden, now) == cheat.SignalViolation {
		m.log.Warn().Int("violations", m.monitor.Violations()).Msg("Left the exam page")
	}
	if !hidden && m.running() {
		m.acquireWakeLock()
	}
}

// FullscreenChanged reports the platform entering or leaving fullscreen.
func (m *Machine) FullscreenChanged(on bool) {
	if m.monitor.FullscreenChanged(on) == cheat.SignalViolation {
		m.log.Warn().Int("violations", m.monitor.Violations()).Msg("Left fullscreen")
	}
}

// ReEnterFullscreen asks the platform for fullscreen again to lift a block.
func (m *Machine) ReEnterFullscreen() error {
	if err := m.platform.RequestFullscreen(); err != nil {
		return fmt.Errorf("%w: %v", ErrFullscreenDenied, err)
	}
	m.monitor.FullscreenChanged(true)
	return nil
}

func (m *Machine) editable() error {
	if !m.running() || m.monitor.Blocked() {
		return ErrAnswersLocked
	}
	return nil
}

func checkQuestion(q, count int) error {
	if q < 1 || q > count {
		return fmt.Errorf("%w: question %d out of range 1-%d", ErrInvalidAnswer, q, count)
	}
	return nil
}

// SetChoice answers a part I question with a letter A-D.
func (m *Machine) SetChoice(q int, letter string) error {
	if err := m.editable(); err != nil {
		return err
	}
	if err := checkQuestion(q, m.cfg.Rules.Part1Count); err != nil {
		return err
	}
	letter = strings.ToUpper(strings.TrimSpace(letter))
	switch letter {
	case "A", "B", "C", "D":
	default:
		return fmt.Errorf("%w: choice must be A-D", ErrInvalidAnswer)
	}
	m.answers.Part1[q] = letter
	return nil
}

// SetTrueFalse answers one statement of a part II block.
func (m *Machine) SetTrueFalse(q int, sub model.SubQuestion, value bool) error {
	if err := m.editable(); err != nil {
		return err
	}
	if err := checkQuestion(q, m.cfg.Rules.Part2Count); err != nil {
		return err
	}
	sub, err := model.ParseSubQuestion(string(sub))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	m.answers.Part2[q] = m.answers.Part2[q].With(sub, model.ChoiceOf(value))
	return nil
}

// SetText answers a part III question. Empty text clears the answer.
func (m *Machine) SetText(q int, text string) error {
	if err := m.editable(); err != nil {
		return err
	}
	if err := checkQuestion(q, m.cfg.Rules.Part3Count); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		delete(m.answers.Part3, q)
		return nil
	}
	m.answers.Part3[q] = text
	return nil
}

// Review returns per-question correctness once the examiner has finished
// the session and opened review.
func (m *Machine) Review() (grading.Review, error) {
	if m.state < StartedActive || m.mirror.Status != model.SessionStatusFinished || !m.mirror.IsReviewOpen {
		return grading.Review{}, ErrReviewClosed
	}
	return grading.Detail(m.answers, m.mirror.AnswerKey, m.cfg.Rules), nil
}

// View is what the participant's screen shows.
type View struct {
	State      State
	Status     model.SessionStatus
	Remaining  time.Duration
	Violations int
	Blocked    bool
	Warning    bool
	Answered   int
	ReviewOpen bool
	// Score is the local estimate, shown once results are released.
	Score    float64
	HasScore bool
}

// View renders the current state at now.
func (m *Machine) View(now time.Time) View {
	v := View{
		State:      m.state,
		Status:     m.mirror.Status,
		Remaining:  m.remaining,
		Violations: m.monitor.Violations(),
		Blocked:    m.monitor.Blocked(),
		Warning:    m.monitor.Warning(now),
		Answered:   m.answers.Answered(),
		ReviewOpen: m.mirror.IsReviewOpen,
	}
	if m.state.Submitted() && m.mirror.Status == model.SessionStatusFinished {
		v.Score = m.estimate
		v.HasScore = true
	}
	return v
}

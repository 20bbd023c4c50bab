package authority

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/model"
	"github.com/stemsi/exstem-room/internal/report"
	"github.com/stemsi/exstem-room/internal/repository"
)

type fakeBroadcaster struct {
	sent []model.SessionState
}

func (f *fakeBroadcaster) Broadcast(state model.SessionState) int {
	f.sent = append(f.sent, state)
	return 1
}

func (f *fakeBroadcaster) last() model.SessionState { return f.sent[len(f.sent)-1] }

type fakePersister struct {
	saved   []repository.RoomRecord
	deleted []int
}

func (f *fakePersister) Save(rec repository.RoomRecord) { f.saved = append(f.saved, rec) }
func (f *fakePersister) Delete(roomID int)              { f.deleted = append(f.deleted, roomID) }

func (f *fakePersister) last() repository.RoomRecord { return f.saved[len(f.saved)-1] }

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestAuthority(regrade bool) (*Authority, *fakeBroadcaster, *fakePersister) {
	b := &fakeBroadcaster{}
	p := &fakePersister{}
	a := New(4821, model.NewSessionState(45), b, p, Options{
		Rules:              grading.DefaultRules,
		DefaultDuration:    45,
		RegradeOnKeyChange: regrade,
		Now:                func() time.Time { return t0 },
	}, zerolog.Nop())
	return a, b, p
}

func answersWithPart1(letter string) model.AnswerSet {
	a := model.NewAnswerSet()
	a.Part1[1] = letter
	return a
}

func TestNewPersistsImmediately(t *testing.T) {
	_, b, p := newTestAuthority(false)
	if len(p.saved) != 1 || p.saved[0].RoomID != 4821 {
		t.Fatalf("expected initial save, got %+v", p.saved)
	}
	if len(b.sent) != 0 {
		t.Fatal("nothing should be broadcast before a mutation")
	}
}

func TestIngestSubmissionUpsertsByName(t *testing.T) {
	a, b, p := newTestAuthority(false)

	first := a.IngestSubmission(model.SubmitPayload{Name: "An", Answers: answersWithPart1("B"), SubmittedAt: t0})
	a.IngestSubmission(model.SubmitPayload{Name: "Bình", Answers: answersWithPart1("A"), SubmittedAt: t0})
	second := a.IngestSubmission(model.SubmitPayload{ID: "client-id", Name: " An ", Answers: answersWithPart1("A"), SubmittedAt: t0.Add(time.Minute), ViolationCount: 2})

	s := a.Snapshot()
	if len(s.Submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(s.Submissions))
	}
	got := s.Submissions[s.FindSubmission("An")]
	if got.ID != "client-id" || got.Score != 0.25 || got.ViolationCount != 2 {
		t.Fatalf("latest submission should win, got %+v", got)
	}
	if first.ID == "" || first.Score != 0 {
		t.Fatalf("first submission should get an id and score 0, got %+v", first)
	}
	if second.Name != "An" {
		t.Fatalf("name should be trimmed, got %q", second.Name)
	}

	// Every ingest broadcasts a projection and persists the full state.
	if len(b.sent) != 3 || len(b.last().Submissions) != 0 {
		t.Fatalf("expected 3 stripped broadcasts, got %d", len(b.sent))
	}
	if len(p.last().State.Submissions) != 2 {
		t.Fatal("persisted state must include submissions")
	}
}

func TestResubmissionKeepsPosition(t *testing.T) {
	a, _, _ := newTestAuthority(false)

	a.IngestSubmission(model.SubmitPayload{Name: "An", Answers: answersWithPart1("A"), SubmittedAt: t0})
	a.IngestSubmission(model.SubmitPayload{Name: "Bình", Answers: answersWithPart1("A"), SubmittedAt: t0})
	a.IngestSubmission(model.SubmitPayload{Name: "An", Answers: answersWithPart1("A"), SubmittedAt: t0.Add(time.Minute)})

	subs := a.Snapshot().Submissions
	if len(subs) != 2 || subs[0].Name != "An" || subs[1].Name != "Bình" {
		t.Fatalf("expected An to stay first, got %+v", subs)
	}
	if !subs[0].SubmittedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected the newer hand-in in place, got %v", subs[0].SubmittedAt)
	}

	// Equal scores rank in stored order.
	ranked := report.Ranked(subs)
	if ranked[0].Name != "An" || ranked[1].Name != "Bình" {
		t.Fatalf("unexpected ranking %s, %s", ranked[0].Name, ranked[1].Name)
	}
}

func TestIngestSubmissionGradesWithAuthorityKey(t *testing.T) {
	a, _, _ := newTestAuthority(false)

	sub := a.IngestSubmission(model.SubmitPayload{Name: "An", Answers: answersWithPart1("A"), Score: 10, SubmittedAt: t0})
	if sub.Score != 0.25 {
		t.Fatalf("claimed score must be ignored, got %v", sub.Score)
	}
}

func TestIngestSubmissionFillsSubmittedAt(t *testing.T) {
	a, _, _ := newTestAuthority(false)
	sub := a.IngestSubmission(model.SubmitPayload{Name: "An"})
	if !sub.SubmittedAt.Equal(t0) {
		t.Fatalf("expected arrival time, got %v", sub.SubmittedAt)
	}
}

func TestSetDuration(t *testing.T) {
	a, b, _ := newTestAuthority(false)

	tests := []struct {
		in   int
		want int
	}{
		{60, 60},
		{0, 1},
		{-5, 1},
	}
	for _, tt := range tests {
		got, err := a.SetDuration(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("SetDuration(%d) = %d, %v", tt.in, got, err)
		}
	}
	if b.last().Duration != 1 {
		t.Fatalf("broadcast should carry the coerced duration")
	}

	a.SetStatus(model.SessionStatusFinished)
	if _, err := a.SetDuration(90); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
	if a.Snapshot().Duration != 1 {
		t.Fatal("rejected duration must not change state")
	}
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	a, b, _ := newTestAuthority(false)
	if err := a.SetStatus("PAUSED"); err == nil {
		t.Fatal("expected error")
	}
	if len(b.sent) != 0 {
		t.Fatal("rejected command must not broadcast")
	}
}

func TestSettingsToggles(t *testing.T) {
	a, b, _ := newTestAuthority(false)
	a.SetEnforceFullscreen(false)
	a.SetReviewOpen(true)

	s := b.last()
	if s.EnforceFullscreen || !s.IsReviewOpen {
		t.Fatalf("unexpected broadcast %+v", s)
	}
}

func TestUpdateAnswerKey(t *testing.T) {
	a, b, _ := newTestAuthority(false)

	updates := []KeyUpdate{
		{Part: 1, Question: 1, Letter: "d"},
		{Part: 2, Question: 1, Sub: model.SubB, Value: true},
		{Part: 3, Question: 2, Text: "4; 4.0"},
	}
	for _, u := range updates {
		if err := a.UpdateAnswerKey(u); err != nil {
			t.Fatalf("update %+v: %v", u, err)
		}
	}

	key := b.last().AnswerKey
	if key.Part1[1] != "D" || !key.Part2[1].B || !key.Part2[1].A {
		t.Fatalf("unexpected key %+v", key)
	}
	if len(key.Part3[2]) != 2 || key.Part3[2][1] != "4.0" {
		t.Fatalf("part3 should split on ';', got %q", key.Part3[2])
	}

	bad := []KeyUpdate{
		{Part: 1, Question: 19, Letter: "A"},
		{Part: 1, Question: 1, Letter: "E"},
		{Part: 2, Question: 5, Sub: model.SubA},
		{Part: 2, Question: 1, Sub: "e"},
		{Part: 3, Question: 0, Text: "1"},
		{Part: 3, Question: 1, Text: "  "},
		{Part: 4, Question: 1},
	}
	for _, u := range bad {
		if err := a.UpdateAnswerKey(u); !errors.Is(err, ErrInvalidKeyUpdate) {
			t.Errorf("update %+v: expected ErrInvalidKeyUpdate, got %v", u, err)
		}
	}
}

func TestKeyChangeDoesNotRegradeByDefault(t *testing.T) {
	a, _, _ := newTestAuthority(false)
	a.IngestSubmission(model.SubmitPayload{Name: "An", Answers: answersWithPart1("A"), SubmittedAt: t0})

	a.UpdateAnswerKey(KeyUpdate{Part: 1, Question: 1, Letter: "B"})
	if got := a.Snapshot().Submissions[0].Score; got != 0.25 {
		t.Fatalf("stored score must not change, got %v", got)
	}
}

func TestKeyChangeRegradesWhenEnabled(t *testing.T) {
	a, _, _ := newTestAuthority(true)
	a.IngestSubmission(model.SubmitPayload{Name: "An", Answers: answersWithPart1("A"), SubmittedAt: t0})

	a.UpdateAnswerKey(KeyUpdate{Part: 1, Question: 1, Letter: "B"})
	if got := a.Snapshot().Submissions[0].Score; got != 0 {
		t.Fatalf("expected re-graded score 0, got %v", got)
	}
}

func TestReview(t *testing.T) {
	a, _, _ := newTestAuthority(false)
	a.IngestSubmission(model.SubmitPayload{Name: "An", Answers: answersWithPart1("A"), SubmittedAt: t0})

	sub, rv, err := a.Review("An")
	if err != nil || sub.Name != "An" || !rv.Part1[1] {
		t.Fatalf("unexpected review %+v %+v %v", sub, rv, err)
	}
	if _, _, err := a.Review("Nobody"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestReset(t *testing.T) {
	a, b, p := newTestAuthority(false)
	a.IngestSubmission(model.SubmitPayload{Name: "An", SubmittedAt: t0})
	a.SetStatus(model.SessionStatusFinished)
	sent := len(b.sent)

	a.Reset(5555)

	if a.RoomID() != 5555 {
		t.Fatalf("expected new room id, got %d", a.RoomID())
	}
	s := a.Snapshot()
	if len(s.Submissions) != 0 || s.Status != model.SessionStatusActive || s.Duration != 45 || !s.EnforceFullscreen {
		t.Fatalf("expected defaults after reset, got %+v", s)
	}
	if len(p.deleted) != 1 || p.deleted[0] != 4821 {
		t.Fatalf("old room should be deleted, got %v", p.deleted)
	}
	if p.last().RoomID != 5555 {
		t.Fatalf("new room should be persisted, got %d", p.last().RoomID)
	}
	if len(b.sent) != sent {
		t.Fatal("reset must not broadcast to stale links")
	}
}

func TestNewNormalizesRestoredState(t *testing.T) {
	restored := model.SessionState{Status: model.SessionStatusFinished}
	a := New(4821, restored, &fakeBroadcaster{}, &fakePersister{}, Options{Rules: grading.DefaultRules, DefaultDuration: 30}, zerolog.Nop())

	s := a.Snapshot()
	if s.Status != model.SessionStatusFinished || s.Duration != 30 || s.AnswerKey.Part1[1] != "A" {
		t.Fatalf("unexpected normalized state %+v", s)
	}
}

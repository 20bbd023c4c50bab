package participant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/authority"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/link"
	"github.com/stemsi/exstem-room/internal/model"
	"github.com/stemsi/exstem-room/internal/registry"
	"github.com/stemsi/exstem-room/internal/validator"
)

// startExaminer runs a real examiner node for room 4821 behind httptest.
func startExaminer(t *testing.T, ctx context.Context) (*authority.Node, *httptest.Server) {
	t.Helper()
	validator.Setup()

	links := link.NewManager(zerolog.Nop())
	auth := authority.New(4821, model.NewSessionState(45), links, discardPersister{}, authority.Options{Rules: grading.DefaultRules}, zerolog.Nop())
	node := authority.NewNode(authority.NodeConfig{Namespace: "chem-exam-2025", ClaimTTL: time.Minute}, auth, links, registry.NewMemoryRegistry(), zerolog.Nop())
	if err := node.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	go node.Run(ctx)

	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peerID := node.PeerID()
		if r.URL.Path != link.PeerPath+peerID {
			http.NotFound(w, r)
			return
		}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		link.NewConn(c, zerolog.Nop()).ForPeer(peerID).Serve(ctx, node.Events())
	}))
	t.Cleanup(srv.Close)
	return node, srv
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestParticipantNodeEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	examiner, srv := startExaminer(t, ctx)

	m := NewMachine(Config{Name: "Nguyen A", RoomID: 4821, Rules: grading.DefaultRules}, NewHeadlessPlatform(false), memStarts{}, zerolog.Nop())
	node := NewNode(NodeConfig{AuthorityURL: srv.URL, Namespace: "chem-exam-2025"}, m, zerolog.Nop())
	go node.Run(ctx)

	if err := node.Join(ctx); err != nil {
		t.Fatalf("join: %v", err)
	}
	state := func() State {
		var s State
		node.Do(ctx, func(m *Machine) error { s = m.State(); return nil })
		return s
	}
	synced := func() bool {
		var ok bool
		node.Do(ctx, func(m *Machine) error { ok = m.Synced(); return nil })
		return ok
	}
	eventually(t, "join", func() bool { return state() == JoinedWaiting && synced() })
	if err := node.Join(ctx); err != ErrAlreadyJoined {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}

	err := node.Do(ctx, func(m *Machine) error {
		if err := m.Start(ctx); err != nil {
			return err
		}
		if err := m.SetChoice(1, "A"); err != nil {
			return err
		}
		return m.Submit(true)
	})
	if err != nil {
		t.Fatalf("start and submit: %v", err)
	}

	var subs []model.Submission
	eventually(t, "ingest", func() bool {
		examiner.Exec(ctx, func(a *authority.Authority) error {
			subs = a.Snapshot().Submissions
			return nil
		})
		return len(subs) == 1
	})
	if subs[0].Name != "Nguyen A" || subs[0].Score != 0.25 {
		t.Fatalf("unexpected submission %+v", subs[0])
	}

	examiner.Exec(ctx, func(a *authority.Authority) error {
		return a.SetStatus(model.SessionStatusFinished)
	})
	eventually(t, "results", func() bool { return state() == SubmittedFinishedReview })
}

func TestJoinUnknownRoomFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, srv := startExaminer(t, ctx)

	m := NewMachine(Config{Name: "An", RoomID: 1111, Rules: grading.DefaultRules}, NewHeadlessPlatform(false), memStarts{}, zerolog.Nop())
	node := NewNode(NodeConfig{AuthorityURL: srv.URL, Namespace: "chem-exam-2025"}, m, zerolog.Nop())
	go node.Run(ctx)

	if err := node.Join(ctx); err == nil {
		t.Fatal("expected dial error for unknown room")
	}
}

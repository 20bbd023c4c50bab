package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/authority"
	"github.com/stemsi/exstem-room/internal/config"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/handler"
	"github.com/stemsi/exstem-room/internal/link"
	"github.com/stemsi/exstem-room/internal/middleware"
	"github.com/stemsi/exstem-room/internal/model"
	"github.com/stemsi/exstem-room/internal/registry"
	"github.com/stemsi/exstem-room/internal/repository"
	"github.com/stemsi/exstem-room/internal/service"
	"github.com/stemsi/exstem-room/internal/validator"
	ws "github.com/stemsi/exstem-room/internal/websocket"
)

type discardStore struct{}

func (discardStore) Save(repository.RoomRecord) {}
func (discardStore) Delete(int)                 {}

type apiResult struct {
	Data  map[string]interface{} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	node   *authority.Node
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hash, err := service.HashPassword("giamthi", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := &config.Config{
		GinMode:           gin.TestMode,
		PeerNamespace:     "chem-exam-2025",
		JWTSecret:         "test-secret",
		JWTExpiry:         time.Hour,
		AdminPasswordHash: hash,
	}

	links := link.NewManager(zerolog.Nop())
	auth := authority.New(4821, model.NewSessionState(45), links, discardStore{},
		authority.Options{Rules: grading.DefaultRules, DefaultDuration: 45}, zerolog.Nop())
	node := authority.NewNode(authority.NodeConfig{Namespace: cfg.PeerNamespace, ClaimTTL: time.Minute},
		auth, links, registry.NewMemoryRegistry(), zerolog.Nop())
	if err := node.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	go node.Run(ctx)

	authService := service.NewAuthService(cfg)
	engine := SetupRouter(authService, middleware.NewRateLimiter(100, time.Minute), &Handlers{
		Auth: handler.NewAuthHandler(authService),
		Room: handler.NewRoomHandler(node, time.FixedZone("ICT", 7*60*60), zerolog.Nop()),
		Peer: handler.NewPeerHandler(ctx, node, nil, zerolog.Nop()),
	}, cfg)

	ts := &testServer{t: t, engine: engine, node: node}
	code, res := ts.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "giamthi"})
	if code != http.StatusOK {
		t.Fatalf("login failed with %d: %+v", code, res.Error)
	}
	ts.token = res.Data["token"].(string)
	return ts
}

func (ts *testServer) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) do(method, path string, body interface{}) (int, apiResult) {
	ts.t.Helper()
	w := ts.request(method, path, body)
	var res apiResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		ts.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, res
}

func (ts *testServer) ingest(name string, answers model.AnswerSet) {
	ts.t.Helper()
	err := ts.node.Exec(context.Background(), func(a *authority.Authority) error {
		a.IngestSubmission(model.SubmitPayload{Name: name, Answers: answers, SubmittedAt: time.Now()})
		return nil
	})
	if err != nil {
		ts.t.Fatalf("ingest: %v", err)
	}
}

func errCode(res apiResult) string {
	if res.Error == nil {
		return ""
	}
	return res.Error.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	if code, _ := ts.do(http.MethodGet, "/health", nil); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestLoginAndAuthGuard(t *testing.T) {
	ts := newTestServer(t)

	code, res := ts.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "nope"})
	if code != http.StatusUnauthorized || errCode(res) != "INVALID_CREDENTIALS" {
		t.Fatalf("expected 401 INVALID_CREDENTIALS, got %d %s", code, errCode(res))
	}

	code, res = ts.do(http.MethodPost, "/api/v1/auth/login", map[string]string{})
	if code != http.StatusBadRequest || errCode(res) != "VALIDATION_ERROR" {
		t.Fatalf("expected 400 VALIDATION_ERROR, got %d %s", code, errCode(res))
	}

	ts.token = ""
	code, res = ts.do(http.MethodGet, "/api/v1/admin/room", nil)
	if code != http.StatusUnauthorized || errCode(res) != "TOKEN_REQUIRED" {
		t.Fatalf("expected 401 TOKEN_REQUIRED, got %d %s", code, errCode(res))
	}
}

func TestGetRoom(t *testing.T) {
	ts := newTestServer(t)

	code, res := ts.do(http.MethodGet, "/api/v1/admin/room", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if res.Data["room_id"] != float64(4821) || res.Data["peer_id"] != "chem-exam-2025-4821" {
		t.Fatalf("unexpected room identity: %v", res.Data)
	}
	if res.Data["max_score"] != float64(10) {
		t.Fatalf("expected max score 10, got %v", res.Data["max_score"])
	}
	state := res.Data["state"].(map[string]interface{})
	if state["status"] != "ACTIVE" || state["duration"] != float64(45) {
		t.Fatalf("unexpected state: %v", state)
	}
}

func TestRoomSettings(t *testing.T) {
	ts := newTestServer(t)

	code, res := ts.do(http.MethodPut, "/api/v1/admin/room/duration", map[string]int{"minutes": 0})
	if code != http.StatusOK || res.Data["duration"] != float64(1) {
		t.Fatalf("expected duration clamped to 1, got %d %v", code, res.Data)
	}

	code, _ = ts.do(http.MethodPut, "/api/v1/admin/room/fullscreen", map[string]bool{"enabled": true})
	if code != http.StatusOK {
		t.Fatalf("fullscreen: expected 200, got %d", code)
	}
	code, _ = ts.do(http.MethodPut, "/api/v1/admin/room/review", map[string]bool{"enabled": true})
	if code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", code)
	}
	code, res = ts.do(http.MethodPut, "/api/v1/admin/room/review", map[string]string{})
	if code != http.StatusBadRequest || errCode(res) != "VALIDATION_ERROR" {
		t.Fatalf("review without value: expected 400, got %d %s", code, errCode(res))
	}

	code, res = ts.do(http.MethodPut, "/api/v1/admin/room/status", map[string]string{"status": "PAUSED"})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected 400, got %d", code)
	}
	code, _ = ts.do(http.MethodPut, "/api/v1/admin/room/status", map[string]string{"status": "FINISHED"})
	if code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", code)
	}

	code, res = ts.do(http.MethodPut, "/api/v1/admin/room/duration", map[string]int{"minutes": 60})
	if code != http.StatusConflict || errCode(res) != "SESSION_FINISHED" {
		t.Fatalf("duration after finish: expected 409 SESSION_FINISHED, got %d %s", code, errCode(res))
	}

	_, res = ts.do(http.MethodGet, "/api/v1/admin/room", nil)
	state := res.Data["state"].(map[string]interface{})
	if state["enforceFullscreen"] != true || state["isReviewOpen"] != true || state["status"] != "FINISHED" {
		t.Fatalf("settings not applied: %v", state)
	}
}

func TestAnswerKeyEdits(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body interface{}
		code int
		err  string
	}{
		{"part1 lower case", "/api/v1/admin/room/key/part1/1", map[string]string{"answer": "c"}, http.StatusOK, ""},
		{"part1 bad letter", "/api/v1/admin/room/key/part1/1", map[string]string{"answer": "E"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"part1 out of range", "/api/v1/admin/room/key/part1/19", map[string]string{"answer": "A"}, http.StatusBadRequest, "INVALID_KEY_UPDATE"},
		{"part1 bad id", "/api/v1/admin/room/key/part1/x", map[string]string{"answer": "A"}, http.StatusBadRequest, "INVALID_ID"},
		{"part2", "/api/v1/admin/room/key/part2/2", map[string]interface{}{"sub": "b", "value": true}, http.StatusOK, ""},
		{"part2 missing value", "/api/v1/admin/room/key/part2/2", map[string]interface{}{"sub": "b"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"part3 alternatives", "/api/v1/admin/room/key/part3/1", map[string]string{"answer": "12.5; 12,5"}, http.StatusOK, ""},
		{"part3 blank", "/api/v1/admin/room/key/part3/1", map[string]string{"answer": "  "}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		code, res := ts.do(http.MethodPut, tt.path, tt.body)
		if code != tt.code || errCode(res) != tt.err {
			t.Errorf("%s: expected %d %q, got %d %q", tt.name, tt.code, tt.err, code, errCode(res))
		}
	}

	err := ts.node.Exec(context.Background(), func(a *authority.Authority) error {
		key := a.Snapshot().AnswerKey
		if key.Part1[1] != "C" {
			t.Errorf("expected part1[1]=C, got %q", key.Part1[1])
		}
		if !key.Part2[2].B {
			t.Errorf("expected part2[2].b=true")
		}
		if len(key.Part3[1]) != 2 || key.Part3[1][0] != "12.5" || key.Part3[1][1] != "12,5" {
			t.Errorf("unexpected part3[1]: %v", key.Part3[1])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
}

func TestResultsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(http.MethodGet, "/api/v1/admin/room/report.csv", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("empty report: expected 404, got %d", w.Code)
	}

	answers := model.NewAnswerSet()
	answers.Part1[1] = "A"
	ts.ingest("Nguyễn An", answers)
	ts.ingest("Trần Bình", model.NewAnswerSet())

	w = ts.request(http.MethodGet, "/api/v1/admin/room/report.csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "ket_qua_thi_phong_4821.csv") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	if !strings.Contains(w.Body.String(), "1,Nguyễn An,") {
		t.Fatalf("expected the best score first, got %q", w.Body.String())
	}

	code, res := ts.do(http.MethodGet, "/api/v1/admin/room/stats", nil)
	if code != http.StatusOK || res.Data["count"] != float64(2) || res.Data["average"] != 0.13 {
		t.Fatalf("unexpected stats: %d %v", code, res.Data)
	}

	code, res = ts.do(http.MethodGet, "/api/v1/admin/room/submissions/"+url.PathEscape("Nguyễn An")+"/review", nil)
	if code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", code)
	}
	review := res.Data["review"].(map[string]interface{})
	if review["score"] != 0.25 {
		t.Fatalf("unexpected review: %v", review)
	}

	code, res = ts.do(http.MethodGet, "/api/v1/admin/room/submissions/nobody/review", nil)
	if code != http.StatusNotFound || errCode(res) != "NOT_FOUND" {
		t.Fatalf("unknown submission: expected 404, got %d %s", code, errCode(res))
	}
}

func TestResetAndPeerLinks(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := link.Dial(ctx, srv.URL, "chem-exam-2025-9999", zerolog.Nop()); err == nil {
		t.Fatal("expected dialing an unknown room to fail")
	}

	conn, err := link.Dial(ctx, srv.URL, ts.node.PeerID(), zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	events := make(chan link.Event, 8)
	go conn.Serve(ctx, events)

	var synced bool
	for !synced {
		select {
		case ev := <-events:
			if ev.Kind == link.EventMessage && ev.Envelope.Type == ws.TypeSyncState {
				synced = true
			}
		case <-ctx.Done():
			t.Fatal("no SYNC_STATE received")
		}
	}

	oldPeer := ts.node.PeerID()
	code, res := ts.do(http.MethodPost, "/api/v1/admin/room/reset", nil)
	if code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", code)
	}
	if res.Data["peer_id"] == oldPeer || res.Data["peer_id"] != ts.node.PeerID() {
		t.Fatalf("expected a new peer id, got %v (old %s)", res.Data["peer_id"], oldPeer)
	}
	room, _ := res.Data["room_id"].(float64)
	if link.PeerID("chem-exam-2025", int(room)) != ts.node.PeerID() {
		t.Fatalf("room_id %v does not match peer id %s", res.Data["room_id"], ts.node.PeerID())
	}

	for {
		select {
		case ev := <-events:
			if ev.Kind == link.EventClosed {
				return
			}
		case <-ctx.Done():
			t.Fatal("expected the old link to be closed by reset")
		}
	}
}

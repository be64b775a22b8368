package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andyyulianto77/kuis3/internal/app"
	"github.com/andyyulianto77/kuis3/internal/domain"
	"github.com/andyyulianto77/kuis3/internal/infra/memory"
	"github.com/gorilla/websocket"
)

type rawMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService) {
	t.Helper()
	sets := memory.NewSetRepository(memory.NewStaticSetLoader(map[string]domain.QuestionSet{
		"aljabar": {
			ID: "aljabar",
			Questions: []domain.Question{
				{Question: "Berapakah 2 + 2?", Answer: "4"},
			},
		},
	}), time.Minute)
	svc := app.NewQuizService(memory.NewSessionStore(), memory.NewSnapshotStore(), sets, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(svc).ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of the wanted type arrives, failing the
// test if the connection drains first.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) rawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg rawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading for %q: %v", wantType, err)
		}
		if msg.Type == wantType {
			return msg
		}
	}
}

// collect reads until one message of every wanted type has arrived. Bus
// events and direct replies interleave in no particular order.
func collect(t *testing.T, conn *websocket.Conn, wantTypes ...string) map[string]rawMessage {
	t.Helper()
	want := make(map[string]bool, len(wantTypes))
	for _, w := range wantTypes {
		want[w] = true
	}
	got := make(map[string]rawMessage, len(wantTypes))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(got) < len(want) {
		var msg rawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading for %v (have %d): %v", wantTypes, len(got), err)
		}
		if want[msg.Type] {
			got[msg.Type] = msg
		}
	}
	return got
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(rawMessage{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %q: %v", msgType, err)
	}
}

func TestServeWSRequiresPage(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServeWSFullQuizFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "page=/kuis/aljabar")

	msg := readUntil(t, conn, "state")
	var view app.View
	if err := json.Unmarshal(msg.Payload, &view); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if view.Phase != domain.PhaseIntroForm || view.Total != 1 {
		t.Fatalf("unexpected initial state: %+v", view)
	}

	send(t, conn, "intro", map[string]string{"name": "Ana", "phone": "0812"})
	msg = readUntil(t, conn, "state")
	if err := json.Unmarshal(msg.Payload, &view); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if view.Phase != domain.PhaseAnswering {
		t.Fatalf("expected answering phase, got %+v", view)
	}

	send(t, conn, "check", map[string]string{"answer": "4"})
	got := collect(t, conn, "checkResult", "confetti", "quiz-result", "state")
	var result checkResult
	if err := json.Unmarshal(got["checkResult"].Payload, &result); err != nil {
		t.Fatalf("unmarshal checkResult: %v", err)
	}
	if !result.Correct || result.Score != 1 || result.Percentage != 100 {
		t.Fatalf("unexpected check result: %+v", result)
	}

	send(t, conn, "next", struct{}{})
	got = collect(t, conn, "quiz-finished", "state")
	var finished domain.ResultEvent
	if err := json.Unmarshal(got["quiz-finished"].Payload, &finished); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if !finished.Result.Finished || finished.User == nil || finished.User.Name != "Ana" {
		t.Fatalf("unexpected finished event: %+v", finished)
	}
	if err := json.Unmarshal(got["state"].Payload, &view); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if view.Phase != domain.PhaseSummary {
		t.Fatalf("expected summary, got %+v", view)
	}
}

func TestServeWSRejectsEmptyName(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "page=/kuis/aljabar")
	readUntil(t, conn, "state")

	send(t, conn, "intro", map[string]string{"name": "   "})
	msg := readUntil(t, conn, "error")
	var payload errorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if payload.Message == "" {
		t.Fatalf("expected error message")
	}
}

func TestServeWSInlineQuestionsOverrideSet(t *testing.T) {
	srv, _ := newTestServer(t)
	questions := `[{"question":"Ibu kota Indonesia?","answer":"Jakarta"}]`
	conn := dial(t, srv, "page=/kuis/aljabar&questions="+strings.ReplaceAll(questions, " ", "%20"))

	msg := readUntil(t, conn, "state")
	var view app.View
	if err := json.Unmarshal(msg.Payload, &view); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if view.Question != "Ibu kota Indonesia?" {
		t.Fatalf("expected inline question to win, got %+v", view)
	}
}

func TestServeWSEventsFilteredBySlug(t *testing.T) {
	srv, svc := newTestServer(t)
	conn := dial(t, srv, "page=/kuis/aljabar")
	readUntil(t, conn, "state")

	// Drive a second page directly through the service; its events must not
	// leak onto this connection.
	ctx := context.Background()
	if _, err := svc.Attach(ctx, "/kuis/other", app.AttachOptions{
		RawQuestions: `[{"question":"Warna langit?","answer":"biru"}]`,
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := svc.SubmitIntro(ctx, "/kuis/other", domain.Identity{Name: "Budi"}); err != nil {
		t.Fatalf("intro: %v", err)
	}
	if _, err := svc.CheckAnswer(ctx, "/kuis/other", "biru"); err != nil {
		t.Fatalf("check: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg rawMessage
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			break // timeout, nothing leaked
		}
		if msg.Type == "quiz-result" {
			t.Fatalf("event for another slug leaked: %+v", msg)
		}
	}
}

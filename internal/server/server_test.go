package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
	"github.com/GriffinCanCode/study-scanner/internal/notes"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/capture"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/history"
)

// mockBackend for testing.
type mockBackend struct {
	mu       sync.Mutex
	calls    []string
	session  capture.Session
	captures []history.Entry
	notes    []notes.Note
	saveErr  error
	events   chan orchestrator.Event
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		session: capture.Session{Status: capture.Idle, Extracted: "Test extracted text"},
		events:  make(chan orchestrator.Event, 10),
	}
}

func (m *mockBackend) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	if name == "start" {
		m.session.Running = true
		m.session.Status = capture.Scanning
	}
}

func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBackend) StartAutomation() { m.record("start") }
func (m *mockBackend) StopAutomation()  { m.record("stop") }
func (m *mockBackend) Pause()           { m.record("pause") }
func (m *mockBackend) Resume()          { m.record("resume") }
func (m *mockBackend) Retry()           { m.record("retry") }

func (m *mockBackend) Snapshot() capture.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *mockBackend) ExtractedText() string { return m.Snapshot().Extracted }

func (m *mockBackend) Captures(n int) []history.Entry {
	if n > 0 && n < len(m.captures) {
		return m.captures[:n]
	}
	return m.captures
}

func (m *mockBackend) SaveNote(_ context.Context, title string) (notes.Note, error) {
	if m.saveErr != nil {
		return notes.Note{}, m.saveErr
	}
	if title == "" {
		title = "Note default"
	}
	n := notes.Note{ID: "01HZX", Title: title, Text: m.ExtractedText()}
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *mockBackend) DeleteNote(_ context.Context, id string) error {
	if id == "missing-sink" {
		return apperrors.Wrap(errors.New("db down"), apperrors.CodeSinkFailure, "failed to delete note")
	}
	m.record("delete:" + id)
	return nil
}

func (m *mockBackend) ListNotes(context.Context) ([]notes.Note, error) { return m.notes, nil }

func (m *mockBackend) SwitchCamera(_ context.Context, device string) error {
	if device == "/dev/missing" {
		return apperrors.New(apperrors.CodeInvalidArgument, "frame source has no selectable device")
	}
	m.record("camera:" + device)
	return nil
}

func (m *mockBackend) Events() <-chan orchestrator.Event { return m.events }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := do(t, handler, http.MethodOptions, "/test", "")
	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, DELETE, OPTIONS" {
		t.Errorf("CORS methods = %q", v)
	}
}

func TestHealth(t *testing.T) {
	h := New(newMockBackend()).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("x-trace-id") == "" {
		t.Error("trace middleware should set x-trace-id")
	}
}

func TestStatusAndText(t *testing.T) {
	h := New(newMockBackend()).Handler()

	rec := do(t, h, http.MethodGet, "/api/status", "")
	var st StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "idle" || st.Running || !st.HasText {
		t.Errorf("status = %+v", st)
	}

	rec = do(t, h, http.MethodGet, "/api/text", "")
	var txt TextResponse
	if err := json.NewDecoder(rec.Body).Decode(&txt); err != nil {
		t.Fatal(err)
	}
	if txt.Text != "Test extracted text" {
		t.Errorf("text = %q", txt.Text)
	}
}

func TestAutomation(t *testing.T) {
	b := newMockBackend()
	h := New(b).Handler()

	for _, action := range []string{"start", "pause", "resume", "stop", "retry"} {
		rec := do(t, h, http.MethodPost, "/api/automation/"+action, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", action, rec.Code)
		}
	}
	if got := strings.Join(b.Calls(), ","); got != "start,pause,resume,stop,retry" {
		t.Errorf("calls = %s", got)
	}

	rec := do(t, h, http.MethodPost, "/api/automation/dance", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", rec.Code)
	}
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != apperrors.CodeNotFound {
		t.Errorf("error code = %q", body.Error.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/automation/start", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on automation = %d, want 405", rec.Code)
	}
}

func TestCamera(t *testing.T) {
	b := newMockBackend()
	h := New(b).Handler()

	rec := do(t, h, http.MethodPost, "/api/camera", `{"device":"/dev/video2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := b.Calls(); len(got) != 1 || got[0] != "camera:/dev/video2" {
		t.Errorf("calls = %v", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/camera", `{"device":"/dev/missing"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unswitchable source status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/camera", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestCaptures(t *testing.T) {
	b := newMockBackend()
	b.captures = []history.Entry{{Text: "b"}, {Text: "a"}}
	h := New(b).Handler()

	rec := do(t, h, http.MethodGet, "/api/captures?limit=1", "")
	var got []history.Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "b" {
		t.Errorf("captures = %+v", got)
	}

	if rec := do(t, h, http.MethodGet, "/api/captures?limit=lots", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestNotes(t *testing.T) {
	b := newMockBackend()
	h := New(b).Handler()

	rec := do(t, h, http.MethodPost, "/api/notes", `{"title":"Biology"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var n notes.Note
	if err := json.NewDecoder(rec.Body).Decode(&n); err != nil {
		t.Fatal(err)
	}
	if n.Title != "Biology" || n.Text != "Test extracted text" {
		t.Errorf("note = %+v", n)
	}

	// Empty body saves with the default title.
	if rec := do(t, h, http.MethodPost, "/api/notes", ""); rec.Code != http.StatusCreated {
		t.Errorf("empty body status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/notes", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/notes", "")
	var list []notes.Note
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("notes = %d, want 2", len(list))
	}

	if rec := do(t, h, http.MethodDelete, "/api/notes/01HZX", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/notes/missing-sink", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("sink failure status = %d, want 502", rec.Code)
	}
}

func TestSaveNoteErrors(t *testing.T) {
	b := newMockBackend()
	b.saveErr = apperrors.New(apperrors.CodeInvalidArgument, "no extracted text to save")
	h := New(b).Handler()

	rec := do(t, h, http.MethodPost, "/api/notes", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Message != "no extracted text to save" {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{}
	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("message %d rejected", i)
		}
	}
	if rl.allow() {
		t.Error("message over the limit allowed")
	}
}

func TestWebSocket(t *testing.T) {
	b := newMockBackend()
	srv := httptest.NewServer(New(b).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var hello orchestrator.Event
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatal(err)
	}
	if hello.Type != "status" || hello.Status != "idle" {
		t.Errorf("hello = %+v", hello)
	}

	if err := wsjson.Write(ctx, conn, Message{Type: "save", Title: "From socket"}); err != nil {
		t.Fatal(err)
	}
	var saved SavedMessage
	if err := wsjson.Read(ctx, conn, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.Type != "saved" || saved.Note.Title != "From socket" {
		t.Errorf("saved = %+v", saved)
	}

	if err := wsjson.Write(ctx, conn, Message{Type: "start"}); err != nil {
		t.Fatal(err)
	}
	b.events <- orchestrator.Event{Type: "text", Text: "fresh page", At: time.Now()}

	var ev orchestrator.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "text" || ev.Text != "fresh page" {
		t.Errorf("event = %+v", ev)
	}

	if err := wsjson.Write(ctx, conn, Message{Type: "dance"}); err != nil {
		t.Fatal(err)
	}
	var em ErrorMessage
	if err := wsjson.Read(ctx, conn, &em); err != nil {
		t.Fatal(err)
	}
	// Commands are handled in order, so start has run by now.
	if calls := b.Calls(); len(calls) == 0 || calls[0] != "start" {
		t.Errorf("calls = %v, want start", calls)
	}
	if em.Type != "error" || em.Code != apperrors.CodeInvalidArgument {
		t.Errorf("error message = %+v", em)
	}
}

func TestWebSocketEventOrder(t *testing.T) {
	b := newMockBackend()
	srv := httptest.NewServer(New(b).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var hello orchestrator.Event
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatal(err)
	}

	const cycles = 100
	go func() {
		for i := range cycles {
			n := strconv.Itoa(i)
			b.events <- orchestrator.Event{Type: "status", Status: "processing", Message: n}
			b.events <- orchestrator.Event{Type: "status", Status: "error", Message: n}
		}
	}()

	for i := range cycles {
		n := strconv.Itoa(i)
		for _, want := range []string{"processing", "error"} {
			var ev orchestrator.Event
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				t.Fatalf("cycle %d: %v", i, err)
			}
			if ev.Status != want || ev.Message != n {
				t.Fatalf("cycle %d: got %s/%s, want %s/%s", i, ev.Status, ev.Message, want, n)
			}
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
	"github.com/GriffinCanCode/study-scanner/internal/notes"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/capture"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/history"
	"github.com/GriffinCanCode/study-scanner/internal/trace"
)

// Backend is the scanner surface the server exposes.
type Backend interface {
	StartAutomation()
	StopAutomation()
	Pause()
	Resume()
	Retry()
	Snapshot() capture.Session
	ExtractedText() string
	Captures(n int) []history.Entry
	SaveNote(ctx context.Context, title string) (notes.Note, error)
	DeleteNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context) ([]notes.Note, error)
	SwitchCamera(ctx context.Context, device string) error
	Events() <-chan orchestrator.Event
}

// Message is an inbound WebSocket command.
type Message struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// StatusResponse describes the capture session.
type StatusResponse struct {
	Status   string `json:"status"`
	Running  bool   `json:"running"`
	InFlight bool   `json:"in_flight"`
	Error    string `json:"error,omitempty"`
	HasText  bool   `json:"has_text"`
}

// TextResponse carries the last extracted text.
type TextResponse struct {
	Text string `json:"extracted_text"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// SavedMessage answers a WebSocket save command.
type SavedMessage struct {
	Type string     `json:"type"`
	Note notes.Note `json:"note"`
}

// ErrorMessage reports a failed WebSocket command.
type ErrorMessage struct {
	Type    string              `json:"type"`
	Code    apperrors.ErrorCode `json:"code,omitempty"`
	Message string              `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one WebSocket peer. Broadcast events are queued on send and
// written by a single goroutine, so a peer sees them in emission order.
type client struct {
	conn *websocket.Conn
	send chan orchestrator.Event
}

// writeLoop drains the queue until ctx ends or a write fails.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, BroadcastWriteTimeout)
			err := wsjson.Write(wctx, c.conn, e)
			cancel()
			if err != nil {
				trace.Logger(ctx).Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	backend Backend
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a server and starts broadcasting backend events.
func New(backend Backend) *Server {
	s := &Server{
		backend: backend,
		clients: make(map[*client]struct{}),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/text", s.handleText).Methods(http.MethodGet)
	api.HandleFunc("/captures", s.handleCaptures).Methods(http.MethodGet)
	api.HandleFunc("/automation/{action}", s.handleAutomation).Methods(http.MethodPost)
	api.HandleFunc("/camera", s.handleCamera).Methods(http.MethodPost)
	api.HandleFunc("/notes", s.handleListNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes", s.handleCreateNote).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id}", s.handleDeleteNote).Methods(http.MethodDelete)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(r))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	detail := ErrorDetail{Code: apperrors.CodeInternal, Message: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		detail = ErrorDetail{Code: appErr.Code, Message: appErr.Message}
	}
	writeJSON(w, apperrors.HTTPStatus(err), ErrorBody{Error: detail})
}

func (s *Server) statusResponse() StatusResponse {
	sess := s.backend.Snapshot()
	return StatusResponse{
		Status:   sess.Status.String(),
		Running:  sess.Running,
		InFlight: sess.InFlight,
		Error:    sess.Err,
		HasText:  sess.Extracted != "",
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Server) handleText(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TextResponse{Text: s.backend.ExtractedText()})
}

func (s *Server) handleCaptures(w http.ResponseWriter, r *http.Request) {
	limit := DefaultCaptureLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid limit %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.backend.Captures(limit))
}

func (s *Server) handleAutomation(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	if !s.command(action) {
		writeError(w, apperrors.Newf(apperrors.CodeNotFound, "unknown action %q", action))
		return
	}
	trace.Logger(r.Context()).Info("automation command", "action", action)
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Device string `json:"device"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid request body"))
		return
	}
	if err := s.backend.SwitchCamera(r.Context(), body.Device); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse())
}

// command runs an automation action by name.
func (s *Server) command(action string) bool {
	switch action {
	case "start":
		s.backend.StartAutomation()
	case "stop":
		s.backend.StopAutomation()
	case "pause":
		s.backend.Pause()
	case "resume":
		s.backend.Resume()
	case "retry":
		s.backend.Retry()
	default:
		return false
	}
	return true
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	list, err := s.backend.ListNotes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid request body"))
		return
	}
	note, err := s.backend.SaveNote(r.Context(), body.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteNote(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	baseCtx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	c := &client{conn: conn, send: make(chan orchestrator.Event, ClientSendBuffer)}
	st := s.statusResponse()

	// The hello is queued under the lock so no broadcast can overtake it.
	s.mu.Lock()
	c.send <- orchestrator.Event{Type: orchestrator.EventStatus, Status: st.Status, Message: st.Error, At: time.Now()}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()

	go c.writeLoop(baseCtx)

	rl := &rateLimiter{}
	for {
		var msg Message
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		ctx := baseCtx
		if msg.TraceID != "" {
			ctx = trace.WithContext(ctx, trace.Continue(msg.TraceID, ""))
		}

		if msg.Type == "save" {
			s.handleSave(ctx, conn, msg.Title)
			continue
		}
		if !s.command(msg.Type) {
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Code: apperrors.CodeInvalidArgument, Message: "unknown command " + strconv.Quote(msg.Type)})
		}
	}
}

func (s *Server) handleSave(ctx context.Context, conn *websocket.Conn, title string) {
	note, err := s.backend.SaveNote(ctx, title)
	if err != nil {
		msg := ErrorMessage{Type: "error", Code: apperrors.CodeOf(err), Message: err.Error()}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			msg.Message = appErr.Message
		}
		_ = wsjson.Write(ctx, conn, msg)
		return
	}
	_ = wsjson.Write(ctx, conn, SavedMessage{Type: "saved", Note: note})
}

func (s *Server) broadcastEvents() {
	for evt := range s.backend.Events() {
		s.mu.RLock()
		for c := range s.clients {
			select {
			case c.send <- evt:
			default:
				slog.Warn("websocket client too slow, dropping event", "type", evt.Type)
			}
		}
		s.mu.RUnlock()
	}
}

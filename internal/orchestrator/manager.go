package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
	"github.com/GriffinCanCode/study-scanner/internal/notes"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/capture"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/history"
	"github.com/GriffinCanCode/study-scanner/internal/trace"
)

// Controller is the capture side the manager drives.
type Controller interface {
	Start()
	Stop()
	Pause()
	Resume()
	Retry()
	SwitchDevice(name string) error
	Snapshot() capture.Session
	Updates() <-chan capture.Update
	Close()
}

// Event is pushed to live subscribers.
type Event struct {
	Type        string              `json:"type"`
	Status      string              `json:"status,omitempty"`
	Text        string              `json:"text,omitempty"`
	Code        apperrors.ErrorCode `json:"code,omitempty"`
	Message     string              `json:"message,omitempty"`
	Fingerprint string              `json:"fingerprint,omitempty"`
	At          time.Time           `json:"at"`
}

// Manager coordinates capture, history and notes
type Manager struct {
	ctrl    Controller
	notes   notes.Sink
	history *history.Store
	events  chan Event

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new manager
func New(ctrl Controller, sink notes.Sink, hist *history.Store) *Manager {
	if hist == nil {
		hist = history.NewStore(HistoryMaxEntries)
	}
	return &Manager{
		ctrl:    ctrl,
		notes:   sink,
		history: hist,
		events:  make(chan Event, EventBuffer),
		stopCh:  make(chan struct{}),
	}
}

// Start begins relaying controller updates.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.relay(ctx)
}

func (m *Manager) relay(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case u := <-m.ctrl.Updates():
			m.handleUpdate(u)
		}
	}
}

func (m *Manager) handleUpdate(u capture.Update) {
	ev := Event{
		Type:        EventStatus,
		Status:      u.Status.String(),
		Code:        u.Code,
		Message:     u.Error,
		Fingerprint: u.Fingerprint,
		At:          u.At,
	}
	if u.Kind == capture.KindText {
		ev.Type = EventText
		ev.Text = u.Text
		m.history.Add(u.Text, u.Fingerprint)
	}
	m.emit(ev)
}

// emit sends an event (non-blocking).
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}

// Events returns the channel of live events.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Stop halts the relay and tears down the controller.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.ctrl.Close()
	})
	m.wg.Wait()
}

// StartAutomation activates the capture timer.
func (m *Manager) StartAutomation() { m.ctrl.Start() }

// StopAutomation cancels the capture timer.
func (m *Manager) StopAutomation() { m.ctrl.Stop() }

// Pause suspends capture, e.g. while the camera is covered.
func (m *Manager) Pause() { m.ctrl.Pause() }

// Resume restarts a paused session.
func (m *Manager) Resume() { m.ctrl.Resume() }

// Retry recovers from an extraction failure.
func (m *Manager) Retry() { m.ctrl.Retry() }

// SwitchCamera selects another capture device. An empty name picks the
// platform default.
func (m *Manager) SwitchCamera(ctx context.Context, device string) error {
	log := trace.Logger(ctx)
	if err := m.ctrl.SwitchDevice(strings.TrimSpace(device)); err != nil {
		log.Warn("camera switch failed", "device", device, "error", err)
		return err
	}
	log.Info("camera switched", "device", device)
	return nil
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() capture.Session { return m.ctrl.Snapshot() }

// ExtractedText returns the last published text.
func (m *Manager) ExtractedText() string { return m.ctrl.Snapshot().Extracted }

// Captures returns up to n recent accepted captures, newest first.
func (m *Manager) Captures(n int) []history.Entry { return m.history.Recent(n) }

// SaveNote stores the last extracted text. An empty title gets a
// timestamped default.
func (m *Manager) SaveNote(ctx context.Context, title string) (notes.Note, error) {
	ctx, span := trace.StartSpan(ctx, "save_note")
	defer span.End()

	text := m.ExtractedText()
	if text == "" {
		return notes.Note{}, apperrors.New(apperrors.CodeInvalidArgument, "no extracted text to save")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = notes.DefaultTitle(time.Now())
	}

	note, err := m.notes.Create(ctx, title, text)
	if err != nil {
		return notes.Note{}, m.sinkFailure(ctx, err, "failed to save note")
	}
	span.SetAttr("note_id", note.ID)
	trace.Logger(ctx).Info("note saved", "id", note.ID, "title", note.Title)
	return note, nil
}

// DeleteNote removes a note by id.
func (m *Manager) DeleteNote(ctx context.Context, id string) error {
	ctx, span := trace.StartSpan(ctx, "delete_note")
	defer span.End()
	span.SetAttr("note_id", id)

	if strings.TrimSpace(id) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "note id is required")
	}
	if err := m.notes.Delete(ctx, id); err != nil {
		return m.sinkFailure(ctx, err, "failed to delete note")
	}
	return nil
}

// ListNotes returns the owner's notes, newest first.
func (m *Manager) ListNotes(ctx context.Context) ([]notes.Note, error) {
	list, err := m.notes.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSinkFailure, "failed to list notes")
	}
	return list, nil
}

// sinkFailure wraps err and publishes a one-shot notice. Capture state
// is left alone.
func (m *Manager) sinkFailure(ctx context.Context, err error, msg string) error {
	appErr := apperrors.Wrap(err, apperrors.CodeSinkFailure, msg)
	trace.Logger(ctx).Error(msg, "error", err)
	m.emit(Event{Type: EventNotice, Code: appErr.Code, Message: msg, At: time.Now()})
	return appErr
}

package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
	"github.com/GriffinCanCode/study-scanner/internal/frame"
	"github.com/GriffinCanCode/study-scanner/internal/syncx"
	"github.com/GriffinCanCode/study-scanner/internal/trace"
)

// Sampler yields cropped, encoded frames.
type Sampler interface {
	Sample() (*frame.Frame, bool)
}

// Extractor performs OCR on an encoded image.
type Extractor interface {
	ExtractText(ctx context.Context, imageData []byte, format string) (string, error)
}

// Options tune a Controller. Zero values take the package defaults.
type Options struct {
	Interval            time.Duration
	MinTextLength       int
	SimilarityThreshold float64
	OCRTimeout          time.Duration // 0 means no timeout
	UpdateBuffer        int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MinTextLength <= 0 {
		o.MinTextLength = DefaultMinTextLength
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.UpdateBuffer <= 0 {
		o.UpdateBuffer = DefaultUpdateBuffer
	}
	return o
}

// UpdateKind distinguishes published updates.
type UpdateKind string

const (
	KindStatus UpdateKind = "status"
	KindText   UpdateKind = "text"
)

// Update is published for every status change and accepted text.
type Update struct {
	Kind        UpdateKind          `json:"kind"`
	Status      Status              `json:"status"`
	Text        string              `json:"text,omitempty"`
	Code        apperrors.ErrorCode `json:"code,omitempty"`
	Error       string              `json:"error,omitempty"`
	Fingerprint string              `json:"fingerprint,omitempty"`
	At          time.Time           `json:"at"`
}

// Controller owns one capture session and its timer.
type Controller struct {
	sampler    Sampler
	ocr        Extractor
	gate       Gate
	interval   time.Duration
	ocrTimeout time.Duration

	state   *syncx.RWGuard[Session]
	updates chan Update

	ctx    context.Context
	cancel context.CancelFunc

	loopMu   sync.Mutex
	stopLoop context.CancelFunc

	closed atomic.Bool
}

// New creates an idle controller.
func New(sampler Sampler, ocr Extractor, opts Options) *Controller {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		sampler:    sampler,
		ocr:        ocr,
		gate:       Gate{MinLength: opts.MinTextLength, Threshold: opts.SimilarityThreshold},
		interval:   opts.Interval,
		ocrTimeout: opts.OCRTimeout,
		state:      syncx.NewGuard(Session{Status: Idle}),
		updates:    make(chan Update, opts.UpdateBuffer),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start activates automation with an immediate first cycle.
func (c *Controller) Start() { c.dispatch(c.ctx, Event{Input: InputStart}) }

// Stop cancels the timer. The dedup baseline and last text survive.
func (c *Controller) Stop() { c.dispatch(c.ctx, Event{Input: InputStop}) }

// Pause cancels the timer and marks the session paused.
func (c *Controller) Pause() { c.dispatch(c.ctx, Event{Input: InputPause}) }

// Resume restarts a paused session.
func (c *Controller) Resume() { c.dispatch(c.ctx, Event{Input: InputResume}) }

// Retry re-acquires the frame source when possible and restarts
// automation after an error.
func (c *Controller) Retry() {
	if c.Snapshot().Running {
		return
	}
	if r, ok := c.sampler.(frame.Resetter); ok {
		if err := r.Reset(); err != nil {
			slog.Warn("frame source reset failed", "error", err)
		}
	}
	c.dispatch(c.ctx, Event{Input: InputRetry})
}

// SwitchDevice points the frame source at another device. The session
// is untouched; the next cycle samples the new device.
func (c *Controller) SwitchDevice(name string) error {
	sw, ok := c.sampler.(frame.Switcher)
	if !ok {
		return apperrors.New(apperrors.CodeInvalidArgument, "frame source has no selectable device")
	}
	return sw.SetDevice(name)
}

// Snapshot returns a copy of the session.
func (c *Controller) Snapshot() Session { return c.state.Get() }

// Updates returns the channel of published updates.
func (c *Controller) Updates() <-chan Update { return c.updates }

// Close stops the timer and discards any result still in flight.
func (c *Controller) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.cancelLoop()
	c.cancel()
}

// Tick runs one capture cycle synchronously. It reports whether a cycle
// ran; ticks while idle or while another cycle is in flight are dropped.
func (c *Controller) Tick() bool {
	ctx, span := trace.StartSpan(c.ctx, "capture.cycle")
	defer span.End()

	if !c.dispatch(ctx, Event{Input: InputTick}).Has(ActSample) {
		span.SetAttr("dropped", true)
		return false
	}
	ev := c.cycle(ctx)
	span.SetAttr("fingerprint", ev.Fingerprint)
	c.dispatch(ctx, ev)
	return true
}

// cycle samples and extracts, turning any panic into a failure so the
// in-flight guard is always released.
func (c *Controller) cycle(ctx context.Context) (ev Event) {
	defer func() {
		if r := recover(); r != nil {
			ev = Event{Input: InputFailure, Err: apperrors.Newf(apperrors.CodeInternal, "capture cycle panic: %v", r)}
		}
	}()

	f, ok := c.sampler.Sample()
	if !ok || f == nil {
		trace.Logger(ctx).Debug("no frame available", "code", apperrors.CodeSourceNotReady)
		return Event{Input: InputNoFrame}
	}
	fp := f.Fingerprint()
	if !c.dispatch(ctx, Event{Input: InputFrame, Fingerprint: fp}).Has(ActExtract) {
		return Event{Input: InputNoFrame}
	}

	octx := ctx
	if c.ocrTimeout > 0 {
		var cancel context.CancelFunc
		octx, cancel = context.WithTimeout(ctx, c.ocrTimeout)
		defer cancel()
	}
	text, err := c.ocr.ExtractText(octx, f.Data, f.Format)
	if err != nil {
		return Event{Input: InputFailure, Err: err, Fingerprint: fp}
	}
	return Event{Input: InputText, Text: text, Fingerprint: fp}
}

// dispatch applies ev to the session and runs the resulting effects.
// After Close every event is discarded.
func (c *Controller) dispatch(ctx context.Context, ev Event) Effects {
	if c.closed.Load() {
		return nil
	}
	effects := syncx.Apply(c.state, func(s *Session) Effects {
		next, effects := Reduce(*s, ev, c.gate)
		*s = next
		return effects
	})
	for _, e := range effects {
		c.perform(ctx, e)
	}
	return effects
}

func (c *Controller) perform(ctx context.Context, e Effect) {
	log := trace.Logger(ctx)
	switch e.Action {
	case ActSchedule:
		c.syncLoop(true)
	case ActCancel:
		c.syncLoop(false)
	case ActStatus:
		u := Update{Kind: KindStatus, Status: e.Status, Fingerprint: e.Fingerprint, At: time.Now()}
		if e.Err != nil {
			u.Code = apperrors.CodeOf(e.Err)
			u.Error = e.Err.Error()
			if e.Status == Error {
				log.Error("capture halted", "error", e.Err)
			} else {
				log.Debug("capture waiting", "code", u.Code)
			}
		}
		c.emit(u)
	case ActAccept:
		log.Info("new text accepted", "chars", len(e.Text), "fingerprint", e.Fingerprint)
		c.emit(Update{Kind: KindText, Status: c.Snapshot().Status, Text: e.Text, Fingerprint: e.Fingerprint, At: time.Now()})
	}
}

// emit publishes an update (non-blocking).
func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	default:
		slog.Debug("capture update dropped", "kind", u.Kind)
	}
}

// syncLoop makes the timer follow the current session, not the one
// that produced the effect. Effects run outside the state lock, so a
// Cancel may land after a newer Start. restart replaces a live loop so
// activation still gets its immediate cycle.
func (c *Controller) syncLoop(restart bool) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	running := c.state.Get().Running && !c.closed.Load()
	if c.stopLoop != nil && (!running || restart) {
		c.stopLoop()
		c.stopLoop = nil
	}
	if running && c.stopLoop == nil {
		ctx, cancel := context.WithCancel(c.ctx)
		c.stopLoop = cancel
		go c.run(ctx)
	}
}

func (c *Controller) cancelLoop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.stopLoop != nil {
		c.stopLoop()
		c.stopLoop = nil
	}
}

// run fires a cycle immediately and then on every tick. Cycles run off
// the timer goroutine so a slow OCR call drops ticks instead of
// delaying them.
func (c *Controller) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	go c.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go c.Tick()
		}
	}
}

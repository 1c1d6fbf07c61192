package capture

import (
	"strings"
	"unicode/utf8"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
	"github.com/GriffinCanCode/study-scanner/internal/similarity"
)

// Session is the capture state owned by one Controller.
type Session struct {
	Running      bool
	InFlight     bool
	Status       Status
	LastAccepted string // dedup baseline, changes only on acceptance
	Extracted    string // last published text
	Err          string // last extraction failure
}

// Input identifies an Event.
type Input uint8

const (
	InputStart Input = iota
	InputStop
	InputPause
	InputResume
	InputRetry
	InputTick
	InputNoFrame
	InputFrame
	InputText
	InputFailure
)

// Event drives a transition. Text and Err are set for InputText and
// InputFailure; Fingerprint identifies the frame a result came from.
type Event struct {
	Input       Input
	Text        string
	Err         error
	Fingerprint string
}

// Action is a side effect the Controller must perform.
type Action uint8

const (
	ActSchedule Action = iota // start the timer with an immediate cycle
	ActCancel                 // stop the timer
	ActSample                 // grab a frame
	ActExtract                // run OCR on the grabbed frame
	ActStatus                 // publish Status
	ActAccept                 // publish Text as new content
)

// Effect is one Action plus the data it publishes.
type Effect struct {
	Action      Action
	Status      Status
	Text        string
	Err         error
	Fingerprint string
}

// Effects is the ordered output of a transition.
type Effects []Effect

// Has reports whether a is among the effects.
func (es Effects) Has(a Action) bool {
	for _, e := range es {
		if e.Action == a {
			return true
		}
	}
	return false
}

// Gate holds the acceptance thresholds.
type Gate struct {
	MinLength int
	Threshold float64
}

// DefaultGate returns the stock thresholds.
func DefaultGate() Gate {
	return Gate{MinLength: DefaultMinTextLength, Threshold: DefaultSimilarityThreshold}
}

// Reduce computes the next session and the effects to run. It is pure.
func Reduce(s Session, ev Event, g Gate) (Session, Effects) {
	switch ev.Input {
	case InputStart:
		return start(s)

	case InputResume:
		if s.Running || s.Status != Paused {
			return s, nil
		}
		return start(s)

	case InputRetry:
		if s.Running {
			return s, nil
		}
		return start(s)

	case InputStop:
		if !s.Running && s.Status != Paused {
			return s, nil
		}
		s.Running = false
		s.Status = Idle
		return s, Effects{{Action: ActCancel}, statusOf(s, nil)}

	case InputPause:
		if !s.Running {
			return s, nil
		}
		s.Running = false
		s.Status = Paused
		return s, Effects{{Action: ActCancel}, statusOf(s, nil)}

	case InputTick:
		if !s.Running || s.InFlight {
			return s, nil
		}
		s.InFlight = true
		s.Status = Scanning
		return s, Effects{statusOf(s, nil), {Action: ActSample}}

	case InputNoFrame:
		s.InFlight = false
		return s, nil

	case InputFrame:
		if !s.InFlight {
			return s, nil
		}
		var out Effects
		if s.show(Processing) {
			out = append(out, statusOf(s, nil))
		}
		return s, append(out, Effect{Action: ActExtract, Fingerprint: ev.Fingerprint})

	case InputFailure:
		s.InFlight = false
		s.Running = false
		s.Status = Error
		err := apperrors.Wrap(ev.Err, apperrors.CodeExtractionFailure, "text extraction failed")
		s.Err = "OCR failed"
		if ev.Err != nil {
			s.Err = ev.Err.Error()
		}
		return s, Effects{{Action: ActCancel}, statusOf(s, err)}

	case InputText:
		s.InFlight = false
		return accept(s, ev, g)
	}
	return s, nil
}

func start(s Session) (Session, Effects) {
	if s.Running {
		return s, nil
	}
	s.Running = true
	s.Err = ""
	s.Status = Scanning
	return s, Effects{statusOf(s, nil), {Action: ActSchedule}}
}

func accept(s Session, ev Event, g Gate) (Session, Effects) {
	text := strings.TrimSpace(ev.Text)

	if n := utf8.RuneCountInString(text); n < g.MinLength {
		if !s.show(Waiting) {
			return s, nil
		}
		return s, Effects{statusOf(s, apperrors.Newf(apperrors.CodeInsufficientContent,
			"%d characters, need %d", n, g.MinLength))}
	}

	if s.LastAccepted != "" {
		if score := similarity.Score(text, s.LastAccepted); score >= g.Threshold {
			if !s.show(Waiting) {
				return s, nil
			}
			return s, Effects{statusOf(s, apperrors.Newf(apperrors.CodeDuplicateContent,
				"similarity %.2f", score))}
		}
	}

	s.LastAccepted = text
	s.Extracted = text
	s.Err = ""
	out := Effects{{Action: ActAccept, Text: text, Fingerprint: ev.Fingerprint}}
	if s.show(Idle) {
		out = append(out, statusOf(s, nil))
	}
	return s, out
}

// show sets the status unless the session is paused, where late cycle
// results must not hide the pause.
func (s *Session) show(st Status) bool {
	if !s.Running && s.Status == Paused {
		return false
	}
	s.Status = st
	return true
}

func statusOf(s Session, err error) Effect {
	return Effect{Action: ActStatus, Status: s.Status, Err: err}
}

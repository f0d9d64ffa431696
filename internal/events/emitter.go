package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
)

// Emitter stamps events and enforces that a run ends with exactly one terminal event.
// Anything emitted after the terminal event is dropped and logged.
type Emitter struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	terminal *Event
}

func NewEmitter(pub Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = Multi(nil)
	}
	return &Emitter{pub: pub, logger: logger, now: time.Now}
}

// Emit publishes a progress event. A terminal stage passed here ends the stream like Complete or Fail.
func (e *Emitter) Emit(stage constants.Stage, message string, details map[string]any) {
	e.publish(Event{Stage: stage, Message: message, Details: details})
}

// Complete ends the stream successfully with result.
func (e *Emitter) Complete(result any, message string, details map[string]any) {
	e.publish(Event{Stage: constants.StageComplete, Message: message, Details: details, Result: result})
}

// Fail ends the stream with err. details.code is filled from the error when absent.
func (e *Emitter) Fail(err error, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	for k, v := range ErrorDetails(err) {
		if _, ok := details[k]; !ok {
			details[k] = v
		}
	}
	msg := "extraction failed"
	if err != nil {
		msg = err.Error()
	}
	e.publish(Event{Stage: constants.StageError, Message: msg, Details: details})
}

// Terminated reports whether the terminal event has been published.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal != nil
}

// TerminalEvent returns the terminal event once published.
func (e *Emitter) TerminalEvent() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal == nil {
		return Event{}, false
	}
	return *e.terminal, true
}

func (e *Emitter) publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal != nil {
		e.logger.Warn("events.after_terminal",
			"stage", ev.Stage, "message", ev.Message, "terminal", e.terminal.Stage)
		return
	}
	ev.Timestamp = e.now().UnixMilli()
	if ev.Terminal() {
		t := ev
		e.terminal = &t
	}
	e.pub.Publish(ev)
}

// ErrorDetails maps an error to the details attached to an error event.
func ErrorDetails(err error) map[string]any {
	d := map[string]any{"code": constants.CodeInternal}
	var (
		ee  *common.ExtractionError
		le  *common.LLMError
		de  *common.DuplicateError
		ve  common.ValidationError
		vep *common.ValidationError
	)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		d["code"] = constants.CodeCanceled
	case errors.As(err, &de):
		d["code"] = constants.CodeDuplicate
		d["key"] = de.Key
	case errors.As(err, &ee):
		d["code"] = constants.CodeExtraction
		if ee.Page > 0 {
			d["page"] = ee.Page
		}
	case errors.As(err, &le):
		d["code"] = constants.CodeLLMFatal
		if le.Transient() {
			d["code"] = constants.CodeLLMTransient
		}
		d["attempts"] = le.Attempts
	case errors.As(err, &ve):
		d["code"] = constants.CodeValidation
		d["field"] = ve.Field
	case errors.As(err, &vep):
		d["code"] = constants.CodeValidation
		d["field"] = vep.Field
	case errors.Is(err, context.DeadlineExceeded):
		d["code"] = constants.CodeCanceled
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		d["code"] = constants.CodeValidation
	case errors.Is(err, common.ErrDatabase):
		d["code"] = constants.CodeStorage
	}
	return d
}

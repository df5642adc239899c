package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Step status values carried on events.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// Event is one step transition, consumed by the terminal UI.
type Event struct {
	Step    string    `json:"step"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Recorder accumulates an ordered transcript of a pipeline run and
// mirrors step transitions onto an optional event channel. Log lines
// are append-only; Logs hands out copies so a consumer can never see a
// line land twice or out of order.
type Recorder struct {
	mu     sync.Mutex
	lines  []string
	events chan<- Event
}

// NewRecorder wires a recorder to an optional event channel. A nil
// channel means log-only.
func NewRecorder(events chan<- Event) *Recorder {
	return &Recorder{events: events}
}

func (r *Recorder) emit(e Event) {
	if r.events == nil {
		return
	}
	e.Time = time.Now()
	r.events <- e
}

// Logf appends a formatted line to the transcript.
func (r *Recorder) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.lines = append(r.lines, fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), line))
	r.mu.Unlock()
	logrus.Debug(line)
}

// Logs returns a copy of the transcript so far.
func (r *Recorder) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// StepStart marks a step as running.
func (r *Recorder) StepStart(step string) {
	r.Logf("step %s: started", step)
	logrus.WithField("step", step).Info("step started")
	r.emit(Event{Step: step, Status: StatusRunning})
}

// StepComplete marks a step as done.
func (r *Recorder) StepComplete(step string, d time.Duration) {
	r.Logf("step %s: completed in %s", step, d.Round(time.Millisecond))
	logrus.WithFields(logrus.Fields{"step": step, "duration": d.Round(time.Millisecond).String()}).Info("step completed")
	r.emit(Event{Step: step, Status: StatusComplete, Message: d.Round(time.Millisecond).String()})
}

// StepSkipped marks a step as deliberately not run.
func (r *Recorder) StepSkipped(step, reason string) {
	r.Logf("step %s: skipped (%s)", step, reason)
	logrus.WithField("step", step).Info("step skipped: " + reason)
	r.emit(Event{Step: step, Status: StatusSkipped, Message: reason})
}

// StepFailed marks a step as failed.
func (r *Recorder) StepFailed(step string, err error) {
	r.Logf("step %s: failed: %v", step, err)
	logrus.WithField("step", step).WithError(err).Error("step failed")
	r.emit(Event{Step: step, Status: StatusFailed, Error: err.Error()})
}

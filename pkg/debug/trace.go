package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// TraceLogger provides step-by-step trace logging, e.g. of the events the
// live printer replays.
type TraceLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	enabled atomic.Bool
	now     func() time.Time
}

// NewTraceLogger creates a trace logger writing to the given writer, stderr when nil.
func NewTraceLogger(w io.Writer) *TraceLogger {
	if w == nil {
		w = defaultTraceWriter()
	}
	t := &TraceLogger{
		writer: w,
		now:    time.Now,
	}
	t.enabled.Store(true)
	return t
}

// SetEnabled turns trace output on or off.
func (t *TraceLogger) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Log records a trace entry for a component step.
func (t *TraceLogger) Log(component, step, detail string) {
	if !t.enabled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE %s] %s: %s - %s\n",
		t.now().Format("15:04:05.000"), component, step, detail)
}

// LogDuration records how long a named step of a component took.
func (t *TraceLogger) LogDuration(component, step string, d time.Duration) {
	if !t.enabled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE %s] %s: %s took %v\n",
		t.now().Format("15:04:05.000"), component, step, d)
}

// defaultTraceWriter returns stderr for trace output.
func defaultTraceWriter() io.Writer {
	return os.Stderr
}

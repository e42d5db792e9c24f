// Package live reports long-running sections while they are still executing.
//
// The printer runs on its own goroutine and never touches the call tree. It
// rebuilds a shadow stack from the Started/Finished events of an
// eventlog.Ring and announces the frame on top of that stack once it has
// been running longer than the time limit or has grown memory past the
// memory limit.
package live

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/perfgraph/pkg/eventlog"
	"github.com/danpilch/perfgraph/pkg/memory"
	"github.com/danpilch/perfgraph/pkg/registry"
)

// State is the printer's current activity.
type State int32

const (
	Polling State = iota
	PrintingStack
	PrintingStats
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case PrintingStack:
		return "printing-stack"
	case PrintingStats:
		return "printing-stats"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// Tracer receives a line for every replayed event. debug.TraceLogger satisfies it.
type Tracer interface {
	Log(component, step, detail string)
}

// Options configures a Printer.
type Options struct {
	// TimeLimit is both the announcement threshold and the polling timeout.
	TimeLimit time.Duration
	// MemLimitMB announces a section once its memory grows by this much. Zero disables it.
	MemLimitMB float64
	// Depth is the shadow stack capacity; deeper frames are counted but not tracked.
	Depth int

	Out    io.Writer
	Logger *logrus.Logger
	Clock  func() time.Time
	// Memory samples current memory for the frame on top of the shadow stack.
	Memory memory.Sampler
	Tracer Tracer
}

var statsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

type frame struct {
	section   registry.SectionID
	start     time.Time
	startMem  int64
	announced bool
	lastShown time.Time
}

// Printer is the background live status reporter.
type Printer struct {
	reg    *registry.Registry
	reader *eventlog.Reader
	opts   Options
	log    *logrus.Logger

	stack   []frame
	top     int
	skipped int

	// lineOwner is the shadow depth whose line is still open (dots pending), or -1.
	lineOwner int
	dropped   uint64

	state atomic.Int32
	lines atomic.Uint64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a printer consuming ring. Call Start to launch it.
func New(reg *registry.Registry, ring *eventlog.Ring, opts Options) *Printer {
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = 5 * time.Second
	}
	if opts.Depth < 1 {
		opts.Depth = 100
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Memory == nil {
		opts.Memory = memory.Unavailable
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Printer{
		reg:       reg,
		reader:    ring.NewReader(),
		opts:      opts,
		log:       logger,
		stack:     make([]frame, opts.Depth),
		top:       -1,
		lineOwner: -1,
		done:      make(chan struct{}),
	}
}

// Start launches the printer goroutine.
func (p *Printer) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop asks the printer to exit and waits for it. It is safe to call more than once.
func (p *Printer) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

// State returns what the printer is doing.
func (p *Printer) State() State {
	return State(p.state.Load())
}

// Lines returns the number of status lines printed so far.
func (p *Printer) Lines() uint64 {
	return p.lines.Load()
}

func (p *Printer) setState(s State) {
	p.state.Store(int32(s))
}

func (p *Printer) run() {
	defer p.wg.Done()

	buf := make([]eventlog.Event, 0, 64)
	for {
		p.setState(Polling)
		var closed bool
		buf, closed = p.reader.Receive(p.done, p.opts.TimeLimit, buf[:0])
		if closed {
			p.setState(ShuttingDown)
			p.closeLine()
			return
		}
		p.step(buf)
	}
}

// step replays one batch of events and checks the top frame. A panic here
// must never reach the instrumented program.
func (p *Printer) step(events []eventlog.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Warn("Live printer recovered from failure")
			p.lineOwner = -1
		}
	}()

	for _, e := range events {
		p.replay(e)
	}
	if d := p.reader.Dropped(); d != p.dropped {
		p.log.WithField("dropped", d-p.dropped).Debug("Live printer missed events")
		p.dropped = d
	}
	p.checkTop()
}

func (p *Printer) replay(e eventlog.Event) {
	if p.opts.Tracer != nil {
		p.opts.Tracer.Log("live", e.Kind.String(), p.reg.Name(e.Section))
	}

	switch e.Kind {
	case eventlog.Started:
		if p.top+1 >= len(p.stack) {
			p.skipped++
			return
		}
		mem := e.Memory
		if mem == 0 && p.top >= 0 {
			mem = p.stack[p.top].startMem
		}
		p.top++
		p.stack[p.top] = frame{section: e.Section, start: e.Time, startMem: mem}

	case eventlog.Finished:
		if p.skipped > 0 {
			p.skipped--
			return
		}
		idx := p.find(e.Section)
		if idx < 0 {
			return
		}
		// Frames above idx lost their Finished events to ring overwrites.
		for p.top > idx {
			p.pop()
		}
		f := p.stack[p.top]
		if f.announced {
			p.setState(PrintingStats)
			p.printFinished(p.top, f, e)
		}
		p.pop()
	}
}

func (p *Printer) find(section registry.SectionID) int {
	for i := p.top; i >= 0; i-- {
		if p.stack[i].section == section {
			return i
		}
	}
	return -1
}

func (p *Printer) pop() {
	if p.lineOwner == p.top {
		p.closeLine()
	}
	p.stack[p.top] = frame{}
	p.top--
}

// checkTop announces the top frame once it exceeds a limit.
func (p *Printer) checkTop() {
	if p.top < 0 {
		return
	}
	now := p.opts.Clock()
	f := &p.stack[p.top]

	mem, ok := p.opts.Memory.Sample()
	if !ok {
		mem = f.startMem
	}
	elapsed := now.Sub(f.start)
	memDelta := memory.ToMB(mem - f.startMem)
	exceeded := elapsed > p.opts.TimeLimit ||
		(p.opts.MemLimitMB > 0 && memDelta > p.opts.MemLimitMB)
	if !exceeded {
		return
	}

	info, _ := p.reg.Info(f.section)
	switch {
	case !f.announced:
		p.setState(PrintingStack)
		p.printStack(now)
	case info.PrintDots && p.lineOwner == p.top:
		if now.Sub(f.lastShown) >= p.opts.TimeLimit {
			p.write(".")
			f.lastShown = now
		}
	case now.Sub(f.lastShown) >= p.opts.TimeLimit:
		p.setState(PrintingStack)
		p.openLine(p.top, "Still "+lowerFirst(message(info)), info.PrintDots)
		f.lastShown = now
	}
}

// printStack announces every frame that has not been shown yet, outermost first,
// so the new line appears with its context.
func (p *Printer) printStack(now time.Time) {
	for i := 0; i <= p.top; i++ {
		f := &p.stack[i]
		if f.announced {
			continue
		}
		info, _ := p.reg.Info(f.section)
		p.openLine(i, message(info), info.PrintDots && i == p.top)
		f.announced = true
		f.lastShown = now
	}
}

func (p *Printer) printFinished(depth int, f frame, e eventlog.Event) {
	info, _ := p.reg.Info(f.section)
	stats := statsStyle.Render(fmt.Sprintf("[%8.3f s] [%6.0f MB]",
		e.Time.Sub(f.start).Seconds(), memory.ToMB(e.Memory-f.startMem)))

	if p.lineOwner == depth {
		p.write(" " + stats + "\n")
		p.lineOwner = -1
		p.lines.Add(1)
		return
	}
	p.openLine(depth, "Finished "+lowerFirst(message(info))+" "+stats, false)
}

// openLine starts a new status line at depth. When keepOpen is set the line
// is left without a newline so dots can follow.
func (p *Printer) openLine(depth int, text string, keepOpen bool) {
	p.closeLine()
	p.write(strings.Repeat("  ", depth) + text)
	p.lines.Add(1)
	if keepOpen {
		p.lineOwner = depth
		return
	}
	p.write("\n")
}

func (p *Printer) closeLine() {
	if p.lineOwner >= 0 {
		p.write("\n")
		p.lineOwner = -1
	}
}

func (p *Printer) write(s string) {
	if _, err := io.WriteString(p.opts.Out, s); err != nil {
		p.log.WithError(err).Debug("Live printer write failed")
	}
}

func message(info registry.SectionInfo) string {
	if info.LiveMessage != "" {
		return info.LiveMessage
	}
	return info.Name
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

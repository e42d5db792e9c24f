// Package graph implements the hierarchical call-stack profiler: a tree of
// timed sections built by Push/Pop, statistical queries over it, reports and
// a checkpoint stream.
//
// Push and Pop are not safe for concurrent use; exactly one goroutine
// instruments a Recorder. Queries and reports must not race Push/Pop. The
// live printer runs concurrently and only reads the event ring.
package graph

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/perfgraph/pkg/config"
	"github.com/danpilch/perfgraph/pkg/eventlog"
	"github.com/danpilch/perfgraph/pkg/live"
	"github.com/danpilch/perfgraph/pkg/memory"
	"github.com/danpilch/perfgraph/pkg/registry"
)

// RootSection is the name of the synthetic section at the base of every tree.
const RootSection = "Root"

// Options configures a Recorder.
type Options struct {
	Config config.Config

	// Coordinator enables the live printer on this process, e.g. rank 0 of a distributed run.
	Coordinator bool

	Logger *logrus.Logger
	// LiveOutput receives live status lines. Defaults to os.Stdout.
	LiveOutput io.Writer
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Memory defaults to memory.New() when Config.TrackMemory is set.
	Memory memory.Sampler
	// Tracer, if set, sees every event replayed by the live printer.
	Tracer live.Tracer
}

// Recorder is the call-stack instrumentation and query surface.
type Recorder struct {
	reg *registry.Registry
	cfg config.Config
	log *logrus.Logger
	now func() time.Time
	mem memory.Sampler

	active       atomic.Bool
	liveActive   atomic.Bool
	liveDisabled atomic.Bool

	rootID    registry.SectionID
	root      *Node
	stack     []*Node
	position  int
	// announced marks stack entries whose Started event reached the ring.
	announced []bool

	ring    *eventlog.Ring
	printer *live.Printer
	// owned is closed with the recorder when New created the sampler.
	owned   io.Closer

	summaries map[string]*SectionSummary
	byID      []*SectionSummary

	closed bool
}

// New creates a recorder, opens the root section and, when live printing is
// enabled on a coordinator, starts the live printer.
func New(reg *registry.Registry, opts Options) *Recorder {
	cfg := opts.Config
	def := config.Default()
	if cfg.MaxStackDepth < 1 {
		cfg.MaxStackDepth = def.MaxStackDepth
	}
	if cfg.MaxEventLogSize < 1 {
		cfg.MaxEventLogSize = def.MaxEventLogSize
	}
	if cfg.LivePrintTimeLimit <= 0 {
		cfg.LivePrintTimeLimit = def.LivePrintTimeLimit
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sampler := opts.Memory
	var owned io.Closer
	if sampler == nil {
		if cfg.TrackMemory {
			ps := memory.New()
			sampler, owned = ps, ps
		} else {
			sampler = memory.Unavailable
		}
	}

	r := &Recorder{
		reg:       reg,
		cfg:       cfg,
		log:       logger,
		now:       clock,
		mem:       sampler,
		owned:     owned,
		stack:     make([]*Node, cfg.MaxStackDepth),
		announced: make([]bool, cfg.MaxStackDepth),
		position:  -1,
		summaries: make(map[string]*SectionSummary),
	}
	r.active.Store(cfg.Active)
	r.rootID = reg.Register(RootSection, 0, "", false)
	r.root = newNode(r.rootID)

	if cfg.LivePrintEnabled && opts.Coordinator {
		out := opts.LiveOutput
		if out == nil {
			out = os.Stdout
		}
		r.ring = eventlog.New(cfg.MaxEventLogSize)
		r.printer = live.New(reg, r.ring, live.Options{
			TimeLimit:  cfg.LivePrintTimeLimit,
			MemLimitMB: cfg.LivePrintMemLimitMB,
			Depth:      cfg.MaxStackDepth,
			Out:        out,
			Logger:     logger,
			Clock:      clock,
			Memory:     sampler,
			Tracer:     opts.Tracer,
		})
		r.printer.Start()
		r.liveActive.Store(true)
		logger.WithFields(logrus.Fields{
			"time_limit": cfg.LivePrintTimeLimit,
			"capacity":   cfg.MaxEventLogSize,
		}).Debug("Live printer started")
	}

	r.push(r.rootID)
	return r
}

// Registry returns the registry sections are resolved against.
func (r *Recorder) Registry() *registry.Registry {
	return r.reg
}

// Active reports whether timing collection is on.
func (r *Recorder) Active() bool {
	return r.active.Load()
}

// SetActive turns timing collection on or off.
func (r *Recorder) SetActive(active bool) {
	if r.closed {
		return
	}
	r.active.Store(active)
}

// DisableLivePrint stops sending events to the live printer until EnableLivePrint.
func (r *Recorder) DisableLivePrint() {
	r.liveDisabled.Store(true)
}

// EnableLivePrint resumes live printing after DisableLivePrint.
func (r *Recorder) EnableLivePrint() {
	r.liveDisabled.Store(false)
}

// Depth returns the index of the top of the stack: 0 when only the root is
// open, -1 once the recorder is closed.
func (r *Recorder) Depth() int {
	return r.position
}

// Root returns the root node of the call tree.
func (r *Recorder) Root() *Node {
	return r.root
}

// Current returns the node on top of the stack, or nil once closed.
func (r *Recorder) Current() *Node {
	if r.position < 0 {
		return nil
	}
	return r.stack[r.position]
}

func (r *Recorder) enabled() bool {
	return r.active.Load() || r.liveActive.Load()
}

// Push opens section id below the current top of the stack.
func (r *Recorder) Push(id registry.SectionID) {
	if !r.enabled() {
		return
	}
	r.push(id)
}

// Pop closes the most recently opened section.
func (r *Recorder) Pop() {
	if !r.enabled() {
		return
	}
	r.pop()
}

func (r *Recorder) push(id registry.SectionID) {
	if r.position+1 >= len(r.stack) {
		r.fatal(ErrStackOverflow, id, "exceeded max_stack_depth")
	}

	var node *Node
	if r.position < 0 {
		node = r.root
	} else {
		node = r.stack[r.position].Child(id)
	}

	fallback := int64(0)
	if r.position >= 0 {
		fallback = r.stack[r.position].startMemory
	}
	now, mem := r.sample(fallback)
	node.open(now, mem)

	r.position++
	r.stack[r.position] = node
	r.announced[r.position] = r.announce(id)

	if r.announced[r.position] {
		r.ring.TrySend(eventlog.Event{Section: id, Kind: eventlog.Started, Time: now, Memory: mem})
	}
}

func (r *Recorder) pop() {
	if r.position <= 0 {
		r.fatal(ErrStackUnderflow, r.rootID, "pop without a matching push")
	}

	node := r.stack[r.position]
	now, mem := r.sample(node.startMemory)
	node.AddTimeAndMemory(now, mem)

	announced := r.announced[r.position]
	r.stack[r.position] = nil
	r.announced[r.position] = false
	r.position--

	// Finished follows Started even if live printing was disabled in between.
	if announced {
		r.ring.TrySend(eventlog.Event{Section: node.id, Kind: eventlog.Finished, Time: now, Memory: mem})
		r.ring.Notify()
	}
}

// sample snapshots the clock and, when enabled, resident memory. A failed
// memory sample falls back to the given value.
func (r *Recorder) sample(fallback int64) (time.Time, int64) {
	now := r.now()
	if !r.cfg.TrackMemory {
		return now, 0
	}
	if mem, ok := r.mem.Sample(); ok {
		return now, mem
	}
	return now, fallback
}

// announce reports whether id feeds the live printer. The root never does;
// it has no matching pop until Close.
func (r *Recorder) announce(id registry.SectionID) bool {
	if id == r.rootID || !r.liveActive.Load() || r.liveDisabled.Load() {
		return false
	}
	if r.cfg.LivePrintAll {
		return true
	}
	info, _ := r.reg.Info(id)
	return info.HasLiveMessage()
}

func (r *Recorder) fatal(kind ErrorKind, id registry.SectionID, detail string) {
	err := &Error{Kind: kind, Section: r.reg.Name(id), Detail: detail}
	r.log.WithFields(logrus.Fields{
		"section": err.Section,
		"depth":   r.position,
	}).Error(err.Error())
	panic(err)
}

// Close stops the live printer and closes the root section. The tree stays
// readable afterwards; Push and Pop become no-ops.
func (r *Recorder) Close() {
	if r.closed {
		return
	}
	r.liveActive.Store(false)
	if r.printer != nil {
		r.printer.Stop()
		r.log.Debug("Live printer stopped")
	}

	now, mem := r.sample(r.root.startMemory)
	for r.position >= 0 {
		r.stack[r.position].AddTimeAndMemory(now, mem)
		r.stack[r.position] = nil
		r.announced[r.position] = false
		r.position--
	}
	r.active.Store(false)
	r.closed = true

	if r.owned != nil {
		if err := r.owned.Close(); err != nil {
			r.log.WithError(err).Debug("Cannot close memory sampler")
		}
	}
}

// Reset discards the whole tree and reopens the root. Only valid while no
// section other than the root is open.
func (r *Recorder) Reset() {
	if r.closed {
		return
	}
	if r.position > 0 {
		r.fatal(ErrStackUnderflow, r.stack[r.position].id, "reset with open sections")
	}
	r.root = newNode(r.rootID)
	r.position = -1
	r.push(r.rootID)
	for _, s := range r.summaries {
		s.reset()
	}
}

package graph

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/perfgraph/pkg/config"
	"github.com/danpilch/perfgraph/pkg/eventlog"
	"github.com/danpilch/perfgraph/pkg/memory"
	"github.com/danpilch/perfgraph/pkg/registry"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LivePrintEnabled = false
	return cfg
}

func newTestRecorder(t *testing.T, cfg config.Config) (*Recorder, *registry.Registry, *testClock) {
	t.Helper()
	reg := registry.New()
	clock := newTestClock()
	rec := New(reg, Options{Config: cfg, Clock: clock.Now})
	t.Cleanup(rec.Close)
	return rec, reg, clock
}

// catchFatal runs fn and returns the *Error it panicked with.
func catchFatal(t *testing.T, fn func()) (err *Error) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fatal error")
		var ok bool
		err, ok = r.(*Error)
		require.True(t, ok, "panic value %v is not *Error", r)
	}()
	fn()
	return nil
}

func TestRecorder_EndToEndScenario(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)
	b := reg.Register("b", 1, "", false)
	c := reg.Register("c", 2, "", false)

	rec.Push(a)
	clock.Advance(100 * time.Millisecond)
	rec.Push(c)
	clock.Advance(200 * time.Millisecond)
	rec.Pop()
	rec.Pop()
	rec.Push(b)
	rec.Push(c)
	clock.Advance(300 * time.Millisecond)
	rec.Pop()
	clock.Advance(50 * time.Millisecond)
	rec.Pop()

	nodeA, ok := rec.Root().Lookup(a)
	require.True(t, ok)
	nodeB, ok := rec.Root().Lookup(b)
	require.True(t, ok)
	assert.Equal(t, uint64(1), nodeA.NumCalls())
	assert.Equal(t, uint64(1), nodeB.NumCalls())

	assert.Equal(t, uint64(2), rec.NumCalls("c"))
	assert.InDelta(t, 0.5, rec.Time(Total, "c"), 1e-9)
	assert.InDelta(t, rec.Time(Total, "a")+rec.Time(Total, "b"), rec.Time(Total, RootSection), 1e-9)
	assert.InDelta(t, 0.1, rec.Time(Self, "a"), 1e-9)
	assert.InDelta(t, 0.2, rec.Time(Children, "a"), 1e-9)
}

func TestRecorder_Balance(t *testing.T) {
	rec, reg, _ := newTestRecorder(t, testConfig())
	ids := []registry.SectionID{
		reg.Register("x", 1, "", false),
		reg.Register("y", 1, "", false),
		reg.Register("z", 1, "", false),
	}

	for round := 0; round < 4; round++ {
		for _, id := range ids {
			rec.Push(id)
		}
		assert.Equal(t, len(ids), rec.Depth())
		for range ids {
			rec.Pop()
		}
	}
	assert.Equal(t, 0, rec.Depth())

	n := rec.Root()
	for _, id := range ids {
		var ok bool
		n, ok = n.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, uint64(4), n.NumCalls())
	}

	rec.Close()
	assert.Equal(t, -1, rec.Depth())
	assert.Nil(t, rec.Current())
}

func TestRecorder_Conservation(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	outer := reg.Register("outer", 1, "", false)
	inner := reg.Register("inner", 1, "", false)
	leaf := reg.Register("leaf", 1, "", false)

	for i := 0; i < 3; i++ {
		rec.Push(outer)
		clock.Advance(time.Duration(i+1) * time.Millisecond)
		rec.Push(inner)
		clock.Advance(2 * time.Millisecond)
		rec.Push(leaf)
		clock.Advance(3 * time.Millisecond)
		rec.Pop()
		rec.Pop()
		rec.Push(leaf)
		clock.Advance(time.Millisecond)
		rec.Pop()
		rec.Pop()
	}

	rec.Walk(func(path []string, n *Node) {
		var sum time.Duration
		for _, c := range n.Children() {
			sum += c.TotalTime()
			assert.GreaterOrEqual(t, n.TotalTime(), c.TotalTime(), "path %v", path)
		}
		assert.Equal(t, n.TotalTime(), n.SelfTime()+sum, "path %v", path)
	})
}

func TestRecorder_IdempotentAggregation(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)

	rec.Push(a)
	clock.Advance(time.Second)
	rec.Pop()
	rec.Push(a)
	clock.Advance(time.Second)

	rec.UpdateTiming()
	first := *rec.Summary("a")
	rootFirst := *rec.Summary(RootSection)
	rec.UpdateTiming()
	assert.Equal(t, first, *rec.Summary("a"))
	assert.Equal(t, rootFirst, *rec.Summary(RootSection))
	assert.InDelta(t, 2.0, first.Total, 1e-9)
	assert.Equal(t, uint64(2), first.Calls)
}

func TestRecorder_InFlightTopUpDoesNotDoubleCount(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)

	rec.Push(a)
	clock.Advance(time.Second)
	assert.InDelta(t, 1.0, rec.Time(Total, "a"), 1e-9)
	clock.Advance(time.Second)
	rec.Pop()
	assert.InDelta(t, 2.0, rec.Time(Total, "a"), 1e-9)
}

func TestRecorder_StableReferences(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)

	total := rec.TotalTime("a")
	self := rec.SelfTime("a")
	children := rec.ChildrenTime("a")
	assert.Zero(t, *total)

	rec.Push(a)
	clock.Advance(3 * time.Second)
	rec.Pop()
	rec.UpdateTiming()

	assert.InDelta(t, 3.0, *total, 1e-9)
	assert.InDelta(t, 3.0, *self, 1e-9)
	assert.Zero(t, *children)
	assert.Same(t, rec.Summary("a"), rec.Summary("a"))
}

func TestRecorder_TimeKinds(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)
	b := reg.Register("b", 1, "", false)

	rec.Push(a)
	clock.Advance(400 * time.Millisecond)
	rec.Push(b)
	clock.Advance(100 * time.Millisecond)
	rec.Pop()
	rec.Pop()
	rec.Push(a)
	clock.Advance(500 * time.Millisecond)
	rec.Pop()
	clock.Advance(time.Second)

	assert.InDelta(t, 0.9, rec.Time(Self, "a"), 1e-9)
	assert.InDelta(t, 0.1, rec.Time(Children, "a"), 1e-9)
	assert.InDelta(t, 1.0, rec.Time(Total, "a"), 1e-9)
	assert.InDelta(t, 0.45, rec.Time(SelfAvg, "a"), 1e-9)
	assert.InDelta(t, 0.05, rec.Time(ChildrenAvg, "a"), 1e-9)
	assert.InDelta(t, 0.5, rec.Time(TotalAvg, "a"), 1e-9)
	assert.InDelta(t, 45.0, rec.Time(SelfPercent, "a"), 1e-9)
	assert.InDelta(t, 5.0, rec.Time(ChildrenPercent, "a"), 1e-9)
	assert.InDelta(t, 50.0, rec.Time(TotalPercent, "a"), 1e-9)
	assert.Zero(t, rec.Time(TotalMemory, "a"))
	assert.Zero(t, rec.Time(TimeKind(99), "a"))
}

func TestRecorder_UnknownAndUnexecutedSections(t *testing.T) {
	rec, reg, _ := newTestRecorder(t, testConfig())
	reg.Register("idle", 1, "", false)

	assert.Zero(t, rec.NumCalls("idle"))
	assert.Zero(t, rec.Time(Total, "idle"))
	assert.False(t, rec.Executed("idle"))

	err := catchFatal(t, func() { rec.Time(Self, "missing") })
	assert.Equal(t, ErrUnknownSection, err.Kind)
	assert.Equal(t, "missing", err.Section)

	err = catchFatal(t, func() { rec.NumCalls("also-missing") })
	assert.Equal(t, ErrUnknownSection, err.Kind)
}

func TestRecorder_LateRegistration(t *testing.T) {
	rec, reg, _ := newTestRecorder(t, testConfig())
	rec.UpdateTiming()

	late := reg.Register("late", 1, "", false)
	rec.Push(late)
	rec.Pop()
	assert.Equal(t, uint64(1), rec.NumCalls("late"))

	s, ok := rec.SummaryByID(late)
	require.True(t, ok)
	assert.Equal(t, "late", s.Name)
	_, ok = rec.SummaryByID(registry.SectionID(1000))
	assert.False(t, ok)
}

func TestRecorder_StackOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.MaxStackDepth = 3
	rec, reg, _ := newTestRecorder(t, cfg)
	a := reg.Register("a", 1, "", false)
	b := reg.Register("b", 1, "", false)
	c := reg.Register("c", 1, "", false)

	rec.Push(a)
	rec.Push(b)
	err := catchFatal(t, func() { rec.Push(c) })
	assert.Equal(t, ErrStackOverflow, err.Kind)
	assert.Equal(t, "c", err.Section)
	assert.Contains(t, err.Error(), "stack overflow")
	assert.Equal(t, 2, rec.Depth())
}

func TestRecorder_Underflow(t *testing.T) {
	rec, _, _ := newTestRecorder(t, testConfig())

	err := catchFatal(t, rec.Pop)
	assert.Equal(t, ErrStackUnderflow, err.Kind)
	assert.Equal(t, 0, rec.Depth())
}

func TestRecorder_Inactive(t *testing.T) {
	cfg := testConfig()
	cfg.Active = false
	rec, reg, _ := newTestRecorder(t, cfg)
	a := reg.Register("a", 1, "", false)

	rec.Push(a)
	assert.Equal(t, 0, rec.Depth())
	rec.Pop()
	assert.Equal(t, 0, rec.Depth())
	assert.False(t, rec.Active())

	rec.SetActive(true)
	rec.Push(a)
	assert.Equal(t, 1, rec.Depth())
	rec.Pop()
}

func TestGuard(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)

	func() {
		g := rec.Begin(a)
		defer g.End()
		assert.True(t, g.Pushed())
		clock.Advance(time.Second)
		assert.Equal(t, time.Second, g.Elapsed())
		assert.Equal(t, 1, rec.Depth())
	}()
	assert.Equal(t, 0, rec.Depth())
	assert.InDelta(t, 1.0, rec.Time(Total, "a"), 1e-9)
}

func TestGuard_PanicUnwinds(t *testing.T) {
	rec, reg, _ := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)
	b := reg.Register("b", 1, "", false)

	func() {
		defer func() { _ = recover() }()
		defer rec.Begin(a).End()
		defer rec.Begin(b).End()
		panic("boom")
	}()
	assert.Equal(t, 0, rec.Depth())
	assert.Equal(t, uint64(1), rec.NumCalls("b"))
}

func TestGuard_ActiveFlagChanges(t *testing.T) {
	rec, reg, _ := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)

	g := rec.Begin(a)
	rec.SetActive(false)
	g.End()
	assert.Equal(t, 0, rec.Depth())
	assert.Equal(t, uint64(1), rec.NumCalls("a"))

	g = rec.Begin(a)
	assert.False(t, g.Pushed())
	rec.SetActive(true)
	assert.NotPanics(t, g.End)
	assert.Equal(t, 0, rec.Depth())
	assert.Equal(t, uint64(1), rec.NumCalls("a"))
}

func TestGuard_AfterClose(t *testing.T) {
	rec, reg, _ := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)

	g := rec.Begin(a)
	rec.Close()
	assert.NotPanics(t, g.End)
	assert.False(t, rec.Begin(a).Pushed())
	rec.Push(a)
	assert.Equal(t, -1, rec.Depth())
}

func TestRecorder_MemoryTracking(t *testing.T) {
	type reading struct {
		bytes int64
		ok    bool
	}
	var mu sync.Mutex
	readings := []reading{{0, true}, {100, true}, {0, false}, {300, true}, {350, true}}
	sampler := memory.SamplerFunc(func() (int64, bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(readings) == 0 {
			return 0, false
		}
		r := readings[0]
		readings = readings[1:]
		return r.bytes, r.ok
	})

	cfg := testConfig()
	cfg.TrackMemory = true
	reg := registry.New()
	clock := newTestClock()
	rec := New(reg, Options{Config: cfg, Clock: clock.Now, Memory: sampler})
	defer rec.Close()
	a := reg.Register("a", 1, "", false)
	b := reg.Register("b", 1, "", false)

	rec.Push(a)
	rec.Push(b)
	rec.Pop()
	rec.Pop()

	nodeA, _ := rec.Root().Lookup(a)
	nodeB, _ := nodeA.Lookup(b)
	assert.Equal(t, int64(200), nodeB.TotalMemory())
	assert.Equal(t, int64(250), nodeA.TotalMemory())
	assert.Equal(t, int64(50), nodeA.SelfMemory())
	assert.Equal(t, int64(200), nodeA.ChildrenMemory())
	assert.InDelta(t, memory.ToMB(250), rec.Time(TotalMemory, "a"), 1e-12)
	assert.InDelta(t, memory.ToMB(50), rec.Time(SelfMemory, "a"), 1e-12)
	assert.InDelta(t, memory.ToMB(200), rec.Time(ChildrenMemory, "a"), 1e-12)
}

func TestRecorder_MemoryKinds(t *testing.T) {
	var current int64
	cfg := testConfig()
	cfg.TrackMemory = true
	reg := registry.New()
	rec := New(reg, Options{
		Config: cfg,
		Clock:  newTestClock().Now,
		Memory: memory.SamplerFunc(func() (int64, bool) { return current, true }),
	})
	defer rec.Close()
	a := reg.Register("a", 1, "", false)

	current = 100
	rec.Push(a)
	current = 500
	rec.Pop()
	rec.Push(a)
	current = 700
	rec.Pop()

	assert.InDelta(t, memory.ToMB(600), rec.Time(TotalMemory, "a"), 1e-12)
	assert.InDelta(t, memory.ToMB(300), rec.Time(TotalMemoryAvg, "a"), 1e-12)
	assert.InDelta(t, memory.ToMB(300), rec.Time(SelfMemoryAvg, "a"), 1e-12)
	assert.Zero(t, rec.Time(ChildrenMemoryAvg, "a"))
	assert.InDelta(t, 600.0/700.0*100, rec.Time(TotalMemoryPercent, "a"), 1e-9)
	assert.InDelta(t, 600.0/700.0*100, rec.Time(SelfMemoryPercent, "a"), 1e-9)
	assert.Zero(t, rec.Time(ChildrenMemoryPercent, "a"))
	assert.InDelta(t, 100.0, rec.Time(TotalMemoryPercent, RootSection), 1e-9)
}

func TestRecorder_LiveEvents(t *testing.T) {
	cfg := config.Default()
	cfg.LivePrintTimeLimit = time.Hour
	reg := registry.New()
	var out bytes.Buffer
	rec := New(reg, Options{Config: cfg, Coordinator: true, LiveOutput: &out})
	loud := reg.Register("loud", 1, "Doing loud work", false)
	quiet := reg.Register("quiet", 1, "", false)

	rec.Push(loud)
	rec.Pop()
	rec.Push(quiet)
	rec.Pop()
	assert.Equal(t, uint64(2), rec.ring.End())

	rec.DisableLivePrint()
	rec.Push(loud)
	rec.Pop()
	assert.Equal(t, uint64(2), rec.ring.End())

	rec.EnableLivePrint()
	rec.Push(loud)
	rec.Pop()
	assert.Equal(t, uint64(4), rec.ring.End())

	rec.Close()
	assert.Empty(t, out.String())
}

func TestRecorder_FinishedFollowsStartedAcrossDisable(t *testing.T) {
	cfg := config.Default()
	cfg.LivePrintTimeLimit = time.Hour
	reg := registry.New()
	rec := New(reg, Options{Config: cfg, Coordinator: true, LiveOutput: &bytes.Buffer{}})
	defer rec.Close()
	solve := reg.Register("solve", 1, "Solving", false)
	other := reg.Register("other", 1, "Other work", false)
	reader := rec.ring.NewReader()

	rec.Push(solve)
	rec.DisableLivePrint()
	rec.Pop()
	// Pushed while disabled: no Started, so no Finished either.
	rec.Push(other)
	rec.EnableLivePrint()
	rec.Pop()

	events := reader.Drain(nil)
	require.Len(t, events, 2)
	assert.Equal(t, eventlog.Started, events[0].Kind)
	assert.Equal(t, eventlog.Finished, events[1].Kind)
	assert.Equal(t, solve, events[1].Section)
	assert.Equal(t, 0, rec.Depth())
}

func TestRecorder_LivePrintAll(t *testing.T) {
	cfg := config.Default()
	cfg.LivePrintAll = true
	cfg.LivePrintTimeLimit = time.Hour
	reg := registry.New()
	rec := New(reg, Options{Config: cfg, Coordinator: true, LiveOutput: &bytes.Buffer{}})
	defer rec.Close()
	quiet := reg.Register("quiet", 1, "", false)

	rec.Push(quiet)
	rec.Pop()
	assert.Equal(t, uint64(2), rec.ring.End())
}

func TestRecorder_NoPrinterOffCoordinator(t *testing.T) {
	reg := registry.New()
	rec := New(reg, Options{Config: config.Default()})
	defer rec.Close()
	assert.Nil(t, rec.printer)
	assert.Nil(t, rec.ring)
}

func TestRecorder_LivePrinterReportsSlowSection(t *testing.T) {
	cfg := config.Default()
	cfg.LivePrintTimeLimit = 20 * time.Millisecond
	reg := registry.New()
	out := &lockedBuffer{}
	rec := New(reg, Options{Config: cfg, Coordinator: true, LiveOutput: out})
	slow := reg.Register("slow", 1, "Crunching numbers", false)
	fast := reg.Register("fast", 2, "Tiny step", false)

	rec.Push(slow)
	deadline := time.Now().Add(120 * time.Millisecond)
	for time.Now().Before(deadline) {
		rec.Push(fast)
		rec.Pop()
		time.Sleep(time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return bytes.Contains(out.Bytes(), []byte("Crunching numbers"))
	}, 2*time.Second, 5*time.Millisecond)
	rec.Pop()

	done := make(chan struct{})
	go func() {
		rec.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not shut down the live printer")
	}
}

func TestRecorder_Reset(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)

	rec.Push(a)
	clock.Advance(time.Second)
	rec.Pop()
	rec.Reset()

	assert.Zero(t, rec.NumCalls("a"))
	assert.Equal(t, uint64(1), rec.NumCalls(RootSection))
	assert.Equal(t, 0, rec.Depth())

	rec.Push(a)
	err := catchFatal(t, rec.Reset)
	assert.Equal(t, ErrStackUnderflow, err.Kind)
	rec.Pop()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestRecorder_Summaries(t *testing.T) {
	rec, reg, clock := newTestRecorder(t, testConfig())
	a := reg.Register("a", 1, "", false)
	reg.Register("never", 1, "", false)

	rec.Push(a)
	clock.Advance(time.Second)
	rec.Pop()

	got := rec.Summaries()
	require.Len(t, got, 3)
	assert.Equal(t, RootSection, got[0].Name)
	assert.Equal(t, "a", got[1].Name)
	assert.InDelta(t, 1.0, got[1].Total, 1e-9)
	assert.Equal(t, "never", got[2].Name)
	assert.Zero(t, got[2].Calls)

	got[1].Total = 42
	assert.InDelta(t, 1.0, rec.Time(Total, "a"), 1e-9)
}

package graph

import (
	"time"

	"github.com/danpilch/perfgraph/pkg/registry"
)

// Guard pairs a Push with exactly one Pop. Use it with defer:
//
//	defer rec.Begin(id).End()
//
// The pop happens on every exit path, including a panic unwinding through the
// caller.
type Guard struct {
	r      *Recorder
	pushed bool
	start  time.Time
}

// Begin pushes id if the recorder is active and returns the guard closing it.
func (r *Recorder) Begin(id registry.SectionID) Guard {
	g := Guard{r: r, start: r.now()}
	if r.closed || !r.enabled() {
		return g
	}
	r.push(id)
	g.pushed = true
	return g
}

// End pops the section opened by Begin. It pops only when Begin pushed, so
// toggling the recorder's active flag in between cannot unbalance the stack.
func (g Guard) End() {
	if !g.pushed || g.r.closed {
		return
	}
	g.r.pop()
}

// Elapsed returns the time since Begin.
func (g Guard) Elapsed() time.Duration {
	return g.r.now().Sub(g.start)
}

// Pushed reports whether Begin opened a section.
func (g Guard) Pushed() bool {
	return g.pushed
}

package graph

import (
	"github.com/danpilch/perfgraph/pkg/memory"
	"github.com/danpilch/perfgraph/pkg/registry"
)

// SectionSummary is the cumulative view of one section across every tree
// position it appears at. Times are in seconds, memory in MB.
type SectionSummary struct {
	Name string `json:"name"`

	Self     float64 `json:"self"`
	Children float64 `json:"children"`
	Total    float64 `json:"total"`

	SelfMemory     float64 `json:"self_memory"`
	ChildrenMemory float64 `json:"children_memory"`
	TotalMemory    float64 `json:"total_memory"`

	Calls uint64 `json:"calls"`
}

func (s *SectionSummary) reset() {
	name := s.Name
	*s = SectionSummary{Name: name}
}

// TimeKind selects the statistic returned by Recorder.Time.
type TimeKind int

const (
	Self TimeKind = iota
	Children
	Total
	SelfAvg
	ChildrenAvg
	TotalAvg
	SelfPercent
	ChildrenPercent
	TotalPercent
	SelfMemory
	ChildrenMemory
	TotalMemory
	SelfMemoryAvg
	ChildrenMemoryAvg
	TotalMemoryAvg
	SelfMemoryPercent
	ChildrenMemoryPercent
	TotalMemoryPercent
)

var timeKindNames = map[TimeKind]string{
	Self:            "self",
	Children:        "children",
	Total:           "total",
	SelfAvg:         "self_avg",
	ChildrenAvg:     "children_avg",
	TotalAvg:        "total_avg",
	SelfPercent:     "self_percent",
	ChildrenPercent: "children_percent",
	TotalPercent:    "total_percent",
	SelfMemory:      "self_memory",
	ChildrenMemory:  "children_memory",
	TotalMemory:     "total_memory",

	SelfMemoryAvg:         "self_memory_avg",
	ChildrenMemoryAvg:     "children_memory_avg",
	TotalMemoryAvg:        "total_memory_avg",
	SelfMemoryPercent:     "self_memory_percent",
	ChildrenMemoryPercent: "children_memory_percent",
	TotalMemoryPercent:    "total_memory_percent",
}

func (k TimeKind) String() string {
	if name, ok := timeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseTimeKind returns the kind named by s, as printed by TimeKind.String.
func ParseTimeKind(s string) (TimeKind, bool) {
	for k, name := range timeKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// UpdateTiming refreshes the section summaries from the tree. Sections still
// open are first charged with the time elapsed up to now, so in-flight work
// shows up in queries.
func (r *Recorder) UpdateTiming() {
	now := r.now()
	mem, memOK := int64(0), false
	if r.cfg.TrackMemory {
		mem, memOK = r.mem.Sample()
	}
	for i := 0; i <= r.position; i++ {
		n := r.stack[i]
		m := n.startMemory
		if memOK {
			m = mem
		}
		n.AddTimeAndMemory(now, m)
		n.restart(now, m)
	}

	for _, s := range r.summaries {
		s.reset()
	}
	r.accumulate(r.root)

	// Registered but never executed sections get a zero entry.
	sections := r.reg.Sections()
	if cap(r.byID) < len(sections) {
		r.byID = make([]*SectionSummary, len(sections))
	}
	r.byID = r.byID[:len(sections)]
	for _, info := range sections {
		r.byID[info.ID] = r.summaryFor(info.Name)
	}
}

func (r *Recorder) accumulate(n *Node) {
	s := r.summaryFor(r.reg.Name(n.id))
	s.Self += n.SelfTime().Seconds()
	s.Children += n.ChildrenTime().Seconds()
	s.Total += n.TotalTime().Seconds()
	s.SelfMemory += memory.ToMB(n.SelfMemory())
	s.ChildrenMemory += memory.ToMB(n.ChildrenMemory())
	s.TotalMemory += memory.ToMB(n.TotalMemory())
	s.Calls += n.calls

	for _, c := range n.order {
		r.accumulate(c)
	}
}

func (r *Recorder) summaryFor(name string) *SectionSummary {
	s, ok := r.summaries[name]
	if !ok {
		s = &SectionSummary{Name: name}
		r.summaries[name] = s
	}
	return s
}

// lookup refreshes the summaries and returns the one for name. An
// unregistered name is a fatal error.
func (r *Recorder) lookup(name string) *SectionSummary {
	id, ok := r.reg.ID(name)
	if !ok {
		err := &Error{Kind: ErrUnknownSection, Section: name, Detail: "section was never registered"}
		r.log.WithField("section", name).Error(err.Error())
		panic(err)
	}
	r.UpdateTiming()
	return r.byID[id]
}

// Summary returns the summary for name. The pointer stays valid for the life
// of the recorder and is updated in place by every UpdateTiming.
func (r *Recorder) Summary(name string) *SectionSummary {
	return r.lookup(name)
}

// SummaryByID returns the summary for id as of the last UpdateTiming.
func (r *Recorder) SummaryByID(id registry.SectionID) (*SectionSummary, bool) {
	if int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// Time returns one statistic for name: seconds for time kinds, MB for memory
// kinds and, for percent kinds, a share of the root's total time or memory.
func (r *Recorder) Time(kind TimeKind, name string) float64 {
	s := r.lookup(name)
	root := r.byID[r.rootID]

	switch kind {
	case Self:
		return s.Self
	case Children:
		return s.Children
	case Total:
		return s.Total
	case SelfAvg:
		return average(s.Self, s.Calls)
	case ChildrenAvg:
		return average(s.Children, s.Calls)
	case TotalAvg:
		return average(s.Total, s.Calls)
	case SelfPercent:
		return percent(s.Self, root.Total)
	case ChildrenPercent:
		return percent(s.Children, root.Total)
	case TotalPercent:
		return percent(s.Total, root.Total)
	case SelfMemory:
		return s.SelfMemory
	case ChildrenMemory:
		return s.ChildrenMemory
	case TotalMemory:
		return s.TotalMemory
	case SelfMemoryAvg:
		return average(s.SelfMemory, s.Calls)
	case ChildrenMemoryAvg:
		return average(s.ChildrenMemory, s.Calls)
	case TotalMemoryAvg:
		return average(s.TotalMemory, s.Calls)
	case SelfMemoryPercent:
		return percent(s.SelfMemory, root.TotalMemory)
	case ChildrenMemoryPercent:
		return percent(s.ChildrenMemory, root.TotalMemory)
	case TotalMemoryPercent:
		return percent(s.TotalMemory, root.TotalMemory)
	default:
		return 0
	}
}

// Summaries returns a copy of every section summary in registration order.
func (r *Recorder) Summaries() []SectionSummary {
	r.UpdateTiming()
	out := make([]SectionSummary, len(r.byID))
	for i, s := range r.byID {
		out[i] = *s
	}
	return out
}

// NumCalls returns how many times name was pushed.
func (r *Recorder) NumCalls(name string) uint64 {
	return r.lookup(name).Calls
}

// Executed reports whether name has been pushed at least once.
func (r *Recorder) Executed(name string) bool {
	return r.NumCalls(name) > 0
}

// SelfTime returns a reference to the self time of name, refreshed in place by UpdateTiming.
func (r *Recorder) SelfTime(name string) *float64 {
	return &r.lookup(name).Self
}

// ChildrenTime returns a reference to the children time of name, refreshed in place by UpdateTiming.
func (r *Recorder) ChildrenTime(name string) *float64 {
	return &r.lookup(name).Children
}

// TotalTime returns a reference to the total time of name, refreshed in place by UpdateTiming.
func (r *Recorder) TotalTime(name string) *float64 {
	return &r.lookup(name).Total
}

func average(v float64, calls uint64) float64 {
	if calls == 0 {
		return 0
	}
	return v / float64(calls)
}

func percent(v, total float64) float64 {
	if total == 0 {
		return 0
	}
	return v / total * 100
}

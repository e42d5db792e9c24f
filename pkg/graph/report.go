package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/danpilch/perfgraph/pkg/memory"
	"github.com/danpilch/perfgraph/pkg/output"
	"github.com/danpilch/perfgraph/pkg/registry"
)

var treeHeaders = []string{
	"Section", "Calls",
	"Self(s)", "Avg(s)", "%", "Mem(MB)",
	"Total(s)", "Avg(s)", "%", "Mem(MB)",
}

// Print renders the call tree down to sections of the given level.
func (r *Recorder) Print(w io.Writer, level uint) error {
	return r.PrintFormat(w, output.FormatTable, level)
}

// PrintFormat is Print with an explicit output format.
func (r *Recorder) PrintFormat(w io.Writer, format output.Format, level uint) error {
	r.UpdateTiming()

	t := output.NewTable("Performance Graph:", treeHeaders...)
	r.addTreeRows(t, r.root, 0, level)
	return output.NewFormatter(format, w).Render(t)
}

// addTreeRows adds n and its descendants. Sections above the level are
// skipped but their children are still visited at the same indentation.
func (r *Recorder) addTreeRows(t *output.Table, n *Node, depth int, level uint) {
	info, _ := r.reg.Info(n.id)
	next := depth
	if info.Level <= level {
		t.AddRow(r.nodeRow(n, info, depth)...)
		next = depth + 1
	}
	for _, c := range n.order {
		r.addTreeRows(t, c, next, level)
	}
}

func (r *Recorder) nodeRow(n *Node, info registry.SectionInfo, depth int) []output.Cell {
	rootTime := r.root.TotalTime().Seconds()

	self := n.SelfTime().Seconds()
	total := n.TotalTime().Seconds()

	return []output.Cell{
		output.Text(strings.Repeat("  ", depth) + info.Name),
		output.Uint(n.calls),
		output.Float(self, 3),
		output.Float(average(self, n.calls), 3),
		output.Pct(percent(self, rootTime), 2),
		output.Float(memory.ToMB(n.SelfMemory()), 2),
		output.Float(total, 3),
		output.Float(average(total, n.calls), 3),
		output.Pct(percent(total, rootTime), 2),
		output.Float(memory.ToMB(n.TotalMemory()), 2),
	}
}

// HeaviestBranch returns the chain from the root that always follows the
// child with the largest total time.
func (r *Recorder) HeaviestBranch() []*Node {
	r.UpdateTiming()

	branch := []*Node{r.root}
	n := r.root
	for len(n.order) > 0 {
		heaviest := n.order[0]
		for _, c := range n.order[1:] {
			if c.TotalTime() > heaviest.TotalTime() {
				heaviest = c
			}
		}
		branch = append(branch, heaviest)
		n = heaviest
	}
	return branch
}

// PrintHeaviestBranch renders HeaviestBranch.
func (r *Recorder) PrintHeaviestBranch(w io.Writer) error {
	t := output.NewTable("Heaviest Branch:", treeHeaders...)
	for depth, n := range r.HeaviestBranch() {
		info, _ := r.reg.Info(n.id)
		t.AddRow(r.nodeRow(n, info, depth)...)
	}
	return output.NewFormatter(output.FormatTable, w).Render(t)
}

// HeaviestSections returns up to n section summaries ordered by self time,
// heaviest first. Ties keep registration order. A negative n yields none.
func (r *Recorder) HeaviestSections(n int) []*SectionSummary {
	r.UpdateTiming()

	sorted := make([]*SectionSummary, len(r.byID))
	copy(sorted, r.byID)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Self > sorted[j].Self
	})
	if n < 0 {
		n = 0
	}
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// PrintHeaviestSections renders the n sections with the most self time.
func (r *Recorder) PrintHeaviestSections(w io.Writer, n int) error {
	sections := r.HeaviestSections(n)
	rootTime := r.byID[r.rootID].Total

	t := output.NewTable("Heaviest Sections:", "Section", "Calls", "Self(s)", "Avg(s)", "%", "Mem(MB)")
	for _, s := range sections {
		t.AddRow(
			output.Text(s.Name),
			output.Uint(s.Calls),
			output.Float(s.Self, 3),
			output.Float(average(s.Self, s.Calls), 3),
			output.Pct(percent(s.Self, rootTime), 2),
			output.Float(s.SelfMemory, 2),
		)
	}
	return output.NewFormatter(output.FormatTable, w).Render(t)
}

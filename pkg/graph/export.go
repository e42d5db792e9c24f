package graph

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/danpilch/perfgraph/pkg/memory"
)

// ExportNode is the JSON report form of a tree node.
type ExportNode struct {
	Name     string  `json:"name"`
	Level    uint    `json:"level"`
	Calls    uint64  `json:"num_calls"`
	Self     float64 `json:"time"`
	Children float64 `json:"children_time"`
	Total    float64 `json:"total_time"`
	// Memory values are in MB.
	SelfMemory  float64 `json:"memory"`
	TotalMemory float64 `json:"total_memory"`

	Nodes []ExportNode `json:"children,omitempty"`
}

// Export returns the current tree with derived statistics.
func (r *Recorder) Export() ExportNode {
	r.UpdateTiming()
	return r.exportNode(r.root)
}

func (r *Recorder) exportNode(n *Node) ExportNode {
	info, _ := r.reg.Info(n.id)
	e := ExportNode{
		Name:        info.Name,
		Level:       info.Level,
		Calls:       n.calls,
		Self:        n.SelfTime().Seconds(),
		Children:    n.ChildrenTime().Seconds(),
		Total:       n.TotalTime().Seconds(),
		SelfMemory:  memory.ToMB(n.SelfMemory()),
		TotalMemory: memory.ToMB(n.TotalMemory()),
	}
	for _, c := range n.order {
		e.Nodes = append(e.Nodes, r.exportNode(c))
	}
	return e
}

// WriteJSON writes Export as indented JSON.
func (r *Recorder) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Export())
}

// Walk visits every node depth-first with the section names from the root
// down to it. The path slice is reused between calls.
func (r *Recorder) Walk(fn func(path []string, n *Node)) {
	r.UpdateTiming()
	var path []string
	var visit func(n *Node)
	visit = func(n *Node) {
		path = append(path, r.reg.Name(n.id))
		fn(path, n)
		for _, c := range n.order {
			visit(c)
		}
		path = path[:len(path)-1]
	}
	visit(r.root)
}

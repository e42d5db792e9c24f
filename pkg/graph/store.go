package graph

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
)

// storedNode is the persisted form of a Node. Sections are stored by name
// because IDs may be renumbered when the program restarts.
type storedNode struct {
	Section     string       `json:"section"`
	Level       uint         `json:"level"`
	LiveMessage string       `json:"live_message,omitempty"`
	PrintDots   bool         `json:"print_dots,omitempty"`
	DurationNS  int64        `json:"duration_ns"`
	Calls       uint64       `json:"calls"`
	Memory      int64        `json:"memory"`
	Children    []storedNode `json:"children,omitempty"`
}

// Store writes the tree depth-first to w. Open sections are charged up to
// now before writing.
func (r *Recorder) Store(w io.Writer) error {
	r.UpdateTiming()
	if err := json.NewEncoder(w).Encode(r.storeNode(r.root)); err != nil {
		return fmt.Errorf("cannot encode call tree: %w", err)
	}
	return nil
}

func (r *Recorder) storeNode(n *Node) storedNode {
	info, _ := r.reg.Info(n.id)
	s := storedNode{
		Section:     info.Name,
		Level:       info.Level,
		LiveMessage: info.LiveMessage,
		PrintDots:   info.PrintDots,
		DurationNS:  int64(n.duration),
		Calls:       n.calls,
		Memory:      n.memory,
	}
	if len(n.order) > 0 {
		s.Children = make([]storedNode, 0, len(n.order))
		for _, c := range n.order {
			s.Children = append(s.Children, r.storeNode(c))
		}
	}
	return s
}

// Load reads a tree written by Store and adds it onto the current tree.
// Nodes at the same position are summed; unknown sections are registered.
// Only the root may be open while loading.
func (r *Recorder) Load(rd io.Reader) error {
	var root storedNode
	if err := json.NewDecoder(rd).Decode(&root); err != nil {
		return fmt.Errorf("cannot decode call tree: %w", err)
	}
	if r.position > 0 {
		return fmt.Errorf("cannot load call tree with %d open sections", r.position)
	}
	r.merge(r.root, root)
	r.log.WithField("sections", r.reg.Len()).Debug("Loaded call tree")
	return nil
}

func (r *Recorder) merge(n *Node, s storedNode) {
	n.duration += time.Duration(s.DurationNS)
	n.calls += s.Calls
	n.memory += s.Memory
	for _, c := range s.Children {
		id := r.reg.Register(c.Section, c.Level, c.LiveMessage, c.PrintDots)
		r.merge(n.Child(id), c)
	}
}

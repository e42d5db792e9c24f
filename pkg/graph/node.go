package graph

import (
	"time"

	"github.com/danpilch/perfgraph/pkg/registry"
)

// Node accumulates time and memory for one position in the call tree.
// A node exclusively owns its children.
type Node struct {
	id registry.SectionID

	duration time.Duration
	memory   int64
	calls    uint64

	// open marker set on every push
	start       time.Time
	startMemory int64

	children map[registry.SectionID]*Node
	order    []*Node
}

func newNode(id registry.SectionID) *Node {
	return &Node{id: id}
}

// ID returns the section this node times.
func (n *Node) ID() registry.SectionID {
	return n.id
}

// Child returns the child for id, creating a zeroed one on first access.
func (n *Node) Child(id registry.SectionID) *Node {
	if c, ok := n.children[id]; ok {
		return c
	}
	if n.children == nil {
		n.children = make(map[registry.SectionID]*Node)
	}
	c := newNode(id)
	n.children[id] = c
	n.order = append(n.order, c)
	return c
}

// Lookup returns the child for id without creating it.
func (n *Node) Lookup(id registry.SectionID) (*Node, bool) {
	c, ok := n.children[id]
	return c, ok
}

// Children returns the children in creation order.
func (n *Node) Children() []*Node {
	return n.order
}

// NumCalls returns how many times the node was pushed.
func (n *Node) NumCalls() uint64 {
	return n.calls
}

func (n *Node) open(now time.Time, mem int64) {
	n.start = now
	n.startMemory = mem
	n.calls++
}

// AddTimeAndMemory adds the time and memory elapsed since the node was opened.
func (n *Node) AddTimeAndMemory(now time.Time, mem int64) {
	n.duration += now.Sub(n.start)
	n.memory += mem - n.startMemory
}

// restart moves the open marker, so a later AddTimeAndMemory only adds what follows.
func (n *Node) restart(now time.Time, mem int64) {
	n.start = now
	n.startMemory = mem
}

// TotalTime is the accumulated duration of the node, children included.
func (n *Node) TotalTime() time.Duration {
	return n.duration
}

// ChildrenTime is the sum of the children's total time.
func (n *Node) ChildrenTime() time.Duration {
	var t time.Duration
	for _, c := range n.order {
		t += c.TotalTime()
	}
	return t
}

// SelfTime is the time spent in the node outside of its children.
func (n *Node) SelfTime() time.Duration {
	return n.TotalTime() - n.ChildrenTime()
}

// TotalMemory is the accumulated memory delta in bytes, children included.
func (n *Node) TotalMemory() int64 {
	return n.memory
}

// ChildrenMemory is the sum of the children's total memory.
func (n *Node) ChildrenMemory() int64 {
	var m int64
	for _, c := range n.order {
		m += c.TotalMemory()
	}
	return m
}

// SelfMemory is the memory delta outside of the children.
func (n *Node) SelfMemory() int64 {
	return n.TotalMemory() - n.ChildrenMemory()
}

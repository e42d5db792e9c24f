// Package eventlog implements the bounded single-producer/single-consumer ring
// of section start/finish events read by the live printer.
//
// The producer never blocks: TrySend overwrites the oldest slot when the ring
// is full. The consumer detects overwritten slots through a per-slot sequence
// number and counts them as dropped.
package eventlog

import (
	"sync/atomic"
	"time"

	"github.com/danpilch/perfgraph/pkg/registry"
)

// Kind distinguishes section entry from section exit.
type Kind uint32

const (
	Started Kind = iota + 1
	Finished
)

func (k Kind) String() string {
	switch k {
	case Started:
		return "started"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is one entry of the execution log.
type Event struct {
	Section registry.SectionID
	Kind    Kind
	Time    time.Time
	// Memory is the resident memory in bytes when the event was recorded.
	Memory int64
}

// slot fields are all atomics so a reader racing an overwrite sees a torn
// sequence number instead of a data race.
type slot struct {
	seq     atomic.Uint64 // index+1 once committed, 0 while being written
	section atomic.Uint32
	kind    atomic.Uint32
	offset  atomic.Int64 // nanoseconds since the ring epoch
	memory  atomic.Int64
}

// Ring is a fixed-capacity circular event log.
type Ring struct {
	slots    []slot
	capacity uint64
	epoch    time.Time

	// end is the number of events ever written; published after the slot commit.
	end  atomic.Uint64
	wake chan struct{}
}

// New creates a ring holding at most capacity unread events.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		slots:    make([]slot, capacity),
		capacity: uint64(capacity),
		epoch:    time.Now(),
		wake:     make(chan struct{}, 1),
	}
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return int(r.capacity)
}

// End returns the total number of events written so far.
func (r *Ring) End() uint64 {
	return r.end.Load()
}

// TrySend appends e, overwriting the oldest entry when the ring is full.
// Only one goroutine may call TrySend.
func (r *Ring) TrySend(e Event) {
	n := r.end.Load()
	s := &r.slots[n%r.capacity]
	s.seq.Store(0)
	s.section.Store(uint32(e.Section))
	s.kind.Store(uint32(e.Kind))
	s.offset.Store(int64(e.Time.Sub(r.epoch)))
	s.memory.Store(e.Memory)
	s.seq.Store(n + 1)
	r.end.Store(n + 1)
}

// Notify wakes a consumer blocked in Receive. It never blocks; a notification
// sent while one is already pending is coalesced.
func (r *Ring) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// read loads the event stored for absolute index n.
func (r *Ring) read(n uint64) (Event, bool) {
	s := &r.slots[n%r.capacity]
	if s.seq.Load() != n+1 {
		return Event{}, false
	}
	e := Event{
		Section: registry.SectionID(s.section.Load()),
		Kind:    Kind(s.kind.Load()),
		Time:    r.epoch.Add(time.Duration(s.offset.Load())),
		Memory:  s.memory.Load(),
	}
	if s.seq.Load() != n+1 {
		return Event{}, false
	}
	return e, true
}

// Reader consumes events from a Ring. Only one goroutine may use a Reader.
type Reader struct {
	ring    *Ring
	next    uint64
	dropped uint64
}

// NewReader returns a reader positioned at the start of the ring history.
func (r *Ring) NewReader() *Reader {
	return &Reader{ring: r}
}

// Dropped returns how many events were overwritten before they could be read.
func (rd *Reader) Dropped() uint64 {
	return rd.dropped
}

// Drain appends every readable event published since the last call to buf.
func (rd *Reader) Drain(buf []Event) []Event {
	end := rd.ring.end.Load()
	if end-rd.next > rd.ring.capacity {
		skip := end - rd.ring.capacity
		rd.dropped += skip - rd.next
		rd.next = skip
	}
	for ; rd.next < end; rd.next++ {
		e, ok := rd.ring.read(rd.next)
		if !ok {
			rd.dropped++
			continue
		}
		buf = append(buf, e)
	}
	return buf
}

// Receive waits until the producer notifies, timeout elapses or done is
// closed, then drains the ring into buf. closed reports that done fired.
func (rd *Reader) Receive(done <-chan struct{}, timeout time.Duration, buf []Event) (events []Event, closed bool) {
	select {
	case <-done:
		return buf, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return buf, true
	case <-rd.ring.wake:
	case <-timer.C:
	}
	return rd.Drain(buf), false
}

// Package event merges process and keyboard notifications into a single
// ordered stream for the UI event loop.
//
// Producers (stream readers, process waiters and the terminal input reader)
// publish concurrently; exactly one consumer drains the bus with Next.
// Output notifications are coalesced per process: once an Output event for a
// process is queued, further NotifyOutput calls for it are dropped until the
// consumer has taken the queued one, so a burst of lines costs one redraw.
package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Kind enumerates the event types carried by the bus.
type Kind int

const (
	// Output means new lines are available for Proc.
	Output Kind = iota
	// Exit means Proc reached a terminal lifecycle state.
	Exit
	// Key carries a keystroke name such as "esc", "down" or "1".
	Key
	// Resize carries new terminal dimensions.
	Resize
	// InputClosed means the keyboard source is gone.
	InputClosed
)

func (k Kind) String() string {
	switch k {
	case Output:
		return "output"
	case Exit:
		return "exit"
	case Key:
		return "key"
	case Resize:
		return "resize"
	case InputClosed:
		return "input-closed"
	default:
		return "unknown"
	}
}

// Event is a single notification.
type Event struct {
	Kind   Kind
	Proc   int
	Key    string
	Width  int
	Height int
}

// Batch is everything the consumer picked up in one wake-up.
type Batch struct {
	Events []Event
}

// Has reports whether the batch contains an event of kind k.
func (b Batch) Has(k Kind) bool {
	for _, e := range b.Events {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// ErrClosed is returned by Next once the bus is closed and drained.
var ErrClosed = errors.New("event bus closed")

// DefaultQueueSize bounds the number of queued events.
const DefaultQueueSize = 1024

// Bus is a multi-producer, single-consumer event queue.
type Bus struct {
	ch      chan Event
	pending []atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a bus for procs processes with room for size queued events.
func New(procs, size int) *Bus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Bus{
		ch:      make(chan Event, size),
		pending: make([]atomic.Bool, procs),
		done:    make(chan struct{}),
	}
}

// Publish queues e, blocking while the queue is full. It returns false if the
// bus was closed first.
func (b *Bus) Publish(e Event) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- e:
		return true
	case <-b.done:
		return false
	}
}

// NotifyOutput signals new output for proc, coalescing with any Output event
// for proc that the consumer has not taken yet.
func (b *Bus) NotifyOutput(proc int) {
	if proc < 0 || proc >= len(b.pending) {
		return
	}
	if !b.pending[proc].CompareAndSwap(false, true) {
		return
	}
	if !b.Publish(Event{Kind: Output, Proc: proc}) {
		b.pending[proc].Store(false)
	}
}

// Next blocks until at least one event is available, then drains whatever
// else is already queued without waiting. Repeated Output events for the same
// process are collapsed.
func (b *Bus) Next(ctx context.Context) (Batch, error) {
	var first Event
	select {
	case first = <-b.ch:
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case <-b.done:
		select {
		case first = <-b.ch:
		default:
			return Batch{}, ErrClosed
		}
	}

	batch := Batch{}
	seen := make(map[int]bool)
	b.add(&batch, seen, first)
	for {
		select {
		case e := <-b.ch:
			b.add(&batch, seen, e)
		default:
			return batch, nil
		}
	}
}

func (b *Bus) add(batch *Batch, seen map[int]bool, e Event) {
	if e.Kind == Output {
		// Clear before the consumer reads the buffer so lines appended from
		// here on raise a fresh notification.
		if e.Proc >= 0 && e.Proc < len(b.pending) {
			b.pending[e.Proc].Store(false)
		}
		if seen[e.Proc] {
			return
		}
		seen[e.Proc] = true
	}
	batch.Events = append(batch.Events, e)
}

// Close stops accepting events. Already queued events can still be drained.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

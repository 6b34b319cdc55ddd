// Package queueing provides the bounded FIFO queues that kernel objects use
// to park work. Queues are hookable so tracers and analyzers can watch
// occupancy, and meterable so the monitor can report fill levels.
package queueing

import (
	"log"

	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/naming"
)

// HookPosQueuePush marks when an element is pushed into the queue.
var HookPosQueuePush = &hooking.HookPos{Name: "Queue Push"}

// HookPosQueuePop marks when an element is popped from the queue.
var HookPosQueuePop = &hooking.HookPos{Name: "Queue Pop"}

// A Meter is the type-erased view of a queue that monitoring consumes.
type Meter interface {
	naming.Named

	Capacity() int
	Size() int
}

// A Queue is a bounded fifo queue for anything.
type Queue[T any] interface {
	naming.Named
	hooking.Hookable

	CanPush() bool
	Push(e T)
	Pop() (T, bool)
	Peek() (T, bool)
	Capacity() int
	Size() int
	Clear()

	// RemoveIf removes every element the predicate matches, preserving the
	// order of the rest. The removed elements are returned in queue order.
	RemoveIf(pred func(T) bool) []T
}

// QueueBuilder is a builder for Queue.
type QueueBuilder[T any] struct {
	capacity int
}

// MakeQueueBuilder returns a new QueueBuilder.
func MakeQueueBuilder[T any]() QueueBuilder[T] {
	return QueueBuilder[T]{capacity: 4}
}

// WithCapacity defines the capacity of the queue.
func (b QueueBuilder[T]) WithCapacity(capacity int) QueueBuilder[T] {
	b.capacity = capacity
	return b
}

// Build builds a new Queue.
func (b QueueBuilder[T]) Build(name string) Queue[T] {
	naming.MustBeValid(name)

	return &queueImpl[T]{
		name:     name,
		capacity: b.capacity,
	}
}

type queueImpl[T any] struct {
	hooking.HookableBase

	name     string
	capacity int
	elements []T
}

// Name returns the name of the queue.
func (q *queueImpl[T]) Name() string {
	return q.name
}

func (q *queueImpl[T]) CanPush() bool {
	return len(q.elements) < q.capacity
}

func (q *queueImpl[T]) Push(e T) {
	if len(q.elements) >= q.capacity {
		log.Panic("queue overflow")
	}

	q.elements = append(q.elements, e)

	if q.NumHooks() > 0 {
		q.InvokeHook(hooking.HookCtx{
			Domain: q,
			Pos:    HookPosQueuePush,
			Item:   e,
			Detail: nil,
		})
	}
}

func (q *queueImpl[T]) Pop() (T, bool) {
	if len(q.elements) == 0 {
		var zero T
		return zero, false
	}

	e := q.elements[0]
	q.elements = q.elements[1:]

	if q.NumHooks() > 0 {
		q.InvokeHook(hooking.HookCtx{
			Domain: q,
			Pos:    HookPosQueuePop,
			Item:   e,
			Detail: nil,
		})
	}

	return e, true
}

func (q *queueImpl[T]) Peek() (T, bool) {
	if len(q.elements) == 0 {
		var zero T
		return zero, false
	}

	return q.elements[0], true
}

func (q *queueImpl[T]) Capacity() int {
	return q.capacity
}

func (q *queueImpl[T]) Size() int {
	return len(q.elements)
}

func (q *queueImpl[T]) Clear() {
	q.elements = nil
}

func (q *queueImpl[T]) RemoveIf(pred func(T) bool) []T {
	var removed []T
	kept := q.elements[:0]

	for _, e := range q.elements {
		if pred(e) {
			removed = append(removed, e)
			continue
		}

		kept = append(kept, e)
	}

	q.elements = kept

	return removed
}

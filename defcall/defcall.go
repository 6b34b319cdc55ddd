// Package defcall implements the deferred call scheduler. A deferred call
// is how kernel objects run a callback "soon, but not now": software-sourced
// completions and demultiplexed hardware completions are marked pending here
// and delivered on a later scheduler pass, so no callback ever runs inside
// the call stack that triggered it.
package defcall

import (
	"errors"
	"sync"

	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/naming"
)

// HookPosSet marks when a deferred call becomes pending.
var HookPosSet = &hooking.HookPos{Name: "DefCall Set"}

// HookPosService marks when a pending deferred call is delivered.
var HookPosService = &hooking.HookPos{Name: "DefCall Service"}

// ErrRegistryFull is returned by Register when all slots are taken.
var ErrRegistryFull = errors.New("deferred call registry is full")

// A Handle names one registered deferred call slot.
type Handle int

// A Client owns one or more deferred call slots and is called back when a
// slot it set is serviced.
type Client interface {
	HandleDeferredCall(h Handle)
}

// A Waker is notified when a deferred call becomes pending, so a sleeping
// kernel loop can resume.
type Waker interface {
	Wake()
}

type slot struct {
	client  Client
	pending bool
}

// A Scheduler tracks registered deferred call slots and delivers the pending
// ones in registration order. Set may be called from any goroutine.
// Register and ServiceAll belong to the kernel goroutine.
type Scheduler struct {
	hooking.HookableBase

	name     string
	capacity int
	waker    Waker

	mu         sync.Mutex
	slots      []slot
	numPending int
}

// Name returns the name of the scheduler.
func (s *Scheduler) Name() string {
	return s.name
}

// Capacity returns the number of slots the registry can hold.
func (s *Scheduler) Capacity() int {
	return s.capacity
}

// Size returns the number of deferred calls currently pending. Together with
// Capacity this lets the scheduler serve as a queue meter.
func (s *Scheduler) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.numPending
}

// NumRegistered returns the number of slots taken.
func (s *Scheduler) NumRegistered() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.slots)
}

// Register takes a slot for the client and returns its handle. Registration
// is permanent. Register fails with ErrRegistryFull when the registry is
// out of slots.
func (s *Scheduler) Register(c Client) (Handle, error) {
	if c == nil {
		panic("deferred call client must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.slots) >= s.capacity {
		return -1, ErrRegistryFull
	}

	h := Handle(len(s.slots))
	s.slots = append(s.slots, slot{client: c})

	return h, nil
}

// Set marks the handle pending. Setting an already-pending handle is a
// no-op, so callers never observe more than one delivery per pass. Set is
// safe to call from any goroutine.
func (s *Scheduler) Set(h Handle) {
	s.mu.Lock()
	s.handleMustBeRegistered(h)

	if s.slots[h].pending {
		s.mu.Unlock()
		return
	}

	s.slots[h].pending = true
	s.numPending++
	waker := s.waker
	s.mu.Unlock()

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosSet,
			Item:   h,
		})
	}

	if waker != nil {
		waker.Wake()
	}
}

// IsPending reports whether the handle is waiting to be serviced.
func (s *Scheduler) IsPending(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handleMustBeRegistered(h)

	return s.slots[h].pending
}

// HasPending reports whether any handle is waiting to be serviced.
func (s *Scheduler) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.numPending > 0
}

// ServiceAll delivers every deferred call that was pending when the pass
// started, in ascending handle order, and returns how many it delivered.
// A handle set during the pass, including by one of the callbacks being
// delivered, is not serviced until the next pass.
func (s *Scheduler) ServiceAll() int {
	s.mu.Lock()
	var batch []Handle
	for i := range s.slots {
		if s.slots[i].pending {
			s.slots[i].pending = false
			batch = append(batch, Handle(i))
		}
	}
	s.numPending -= len(batch)
	s.mu.Unlock()

	for _, h := range batch {
		if s.NumHooks() > 0 {
			s.InvokeHook(hooking.HookCtx{
				Domain: s,
				Pos:    HookPosService,
				Item:   h,
			})
		}

		s.mu.Lock()
		client := s.slots[h].client
		s.mu.Unlock()

		client.HandleDeferredCall(h)
	}

	return len(batch)
}

func (s *Scheduler) handleMustBeRegistered(h Handle) {
	if h < 0 || int(h) >= len(s.slots) {
		panic("deferred call handle is not registered")
	}
}

// Builder can build deferred call schedulers.
type Builder struct {
	capacity int
	waker    Waker
}

// MakeBuilder returns a new Builder with the default capacity.
func MakeBuilder() Builder {
	return Builder{capacity: 32}
}

// WithCapacity sets the number of slots the registry holds.
func (b Builder) WithCapacity(capacity int) Builder {
	b.capacity = capacity
	return b
}

// WithWaker sets the waker notified when a call becomes pending.
func (b Builder) WithWaker(w Waker) Builder {
	b.waker = w
	return b
}

// Build builds a Scheduler.
func (b Builder) Build(name string) *Scheduler {
	naming.MustBeValid(name)

	if b.capacity <= 0 {
		panic("deferred call registry capacity must be positive")
	}

	return &Scheduler{
		name:     name,
		capacity: b.capacity,
		waker:    b.waker,
		slots:    make([]slot, 0, b.capacity),
	}
}

// Package echo provides a software loopback adapter. Transmitted bytes land
// in an internal first-in first-out store and come back out on receive.
// There is no hardware behind it, so completions are sourced from the
// adapter's own deferred call slot: Start never completes inline and every
// operation finishes one scheduler pass later.
package echo

import (
	"github.com/kestrel-os/kestrel/defcall"
	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/naming"
)

// Comp is the loopback adapter. It is confined to the kernel goroutine: all
// its completions originate from deferred call passes.
type Comp struct {
	name      string
	scheduler *defcall.Scheduler
	handle    defcall.Handle
	sink      hil.CompletionSink

	loopback []byte
	pending  *hil.Request
}

// Name returns the name of the adapter.
func (c *Comp) Name() string {
	return c.name
}

// SetSink registers the completion sink.
func (c *Comp) SetSink(s hil.CompletionSink) {
	c.sink = s
}

// Buffered returns how many loopback bytes are waiting to be received.
func (c *Comp) Buffered() int {
	return len(c.loopback)
}

// Start accepts one operation and schedules its completion on the next
// deferred call pass.
func (c *Comp) Start(req *hil.Request) *hil.StartError {
	c.sinkMustBeSet()

	if c.pending != nil {
		return hil.NewBusyError()
	}

	c.pending = req
	c.scheduler.Set(c.handle)

	return nil
}

// HandleDeferredCall finishes the pending operation.
func (c *Comp) HandleDeferredCall(_ defcall.Handle) {
	req := c.pending
	if req == nil {
		return
	}
	c.pending = nil

	switch req.Kind {
	case hil.OpTransmit:
		c.loopback = append(c.loopback, req.Buf.Bytes[:req.N]...)
		c.sink.Complete(req, req.N, hil.OK)

	case hil.OpReceive:
		n := req.N
		if n > len(c.loopback) {
			n = len(c.loopback)
		}

		copy(req.Buf.Bytes[:n], c.loopback[:n])
		c.loopback = c.loopback[n:]
		c.sink.Complete(req, n, hil.OK)
	}
}

func (c *Comp) sinkMustBeSet() {
	if c.sink == nil {
		panic("adapter must have a sink before start")
	}
}

// Builder can build echo adapters.
type Builder struct {
	scheduler *defcall.Scheduler
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithScheduler sets the deferred call scheduler completions are sourced
// from.
func (b Builder) WithScheduler(s *defcall.Scheduler) Builder {
	b.scheduler = s
	return b
}

// Build builds an echo adapter and registers its deferred call slot.
func (b Builder) Build(name string) *Comp {
	naming.MustBeValid(name)

	if b.scheduler == nil {
		panic("echo adapter must have a deferred call scheduler")
	}

	c := &Comp{
		name:      name,
		scheduler: b.scheduler,
	}

	h, err := b.scheduler.Register(c)
	if err != nil {
		panic("echo adapter cannot register its deferred call: " +
			err.Error())
	}
	c.handle = h

	return c
}

// Package latency provides an adapter that models a transfer engine with a
// fixed service time. Operations are accepted immediately and complete after
// the configured delay on a timer goroutine, which stands in for the
// interrupt side of real hardware. Receives fill the buffer with a pattern
// byte, transmits count the bytes they consume.
//
// The adapter implements the power, configure, and abort facets, so a
// multiplexer in front of it exercises the full control path.
package latency

import (
	"sync"
	"time"

	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/naming"
)

// Comp is the fixed-latency adapter. Start and the control facets may be
// called from completion context, so all state is lock protected.
type Comp struct {
	name    string
	loop    *kernel.Loop
	latency time.Duration
	pattern byte

	mu         sync.Mutex
	sink       hil.CompletionSink
	enabled    bool
	params     hil.Params
	inFlight   *hil.Request
	timer      *time.Timer
	totalBytes uint64
	totalOps   uint64
}

// Name returns the name of the adapter.
func (c *Comp) Name() string {
	return c.name
}

// SetSink registers the completion sink.
func (c *Comp) SetSink(s hil.CompletionSink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sink = s
}

// TotalBytes returns how many bytes completed operations moved.
func (c *Comp) TotalBytes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalBytes
}

// TotalOps returns how many operations completed.
func (c *Comp) TotalOps() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalOps
}

// Enable powers the engine up. Idempotent.
func (c *Comp) Enable() hil.ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = true

	return hil.OK
}

// Disable powers the engine down. Refused while an operation is in flight.
func (c *Comp) Disable() hil.ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight != nil {
		return hil.ErrBusy
	}

	c.enabled = false

	return hil.OK
}

// Configure applies control settings. Settings take effect for operations
// started afterwards.
func (c *Comp) Configure(p hil.Params) hil.ErrorCode {
	if p.ClockHz == 0 {
		return hil.ErrInvalid
	}

	if p.WordBits > 32 {
		return hil.ErrSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.params = p

	return hil.OK
}

// Start accepts the operation and arms the completion timer.
func (c *Comp) Start(req *hil.Request) *hil.StartError {
	c.mu.Lock()

	if c.sink == nil {
		c.mu.Unlock()
		panic("adapter must have a sink before start")
	}

	if !c.enabled {
		c.mu.Unlock()
		return hil.NewStartError(hil.ErrOff, req.Buf)
	}

	if c.inFlight != nil {
		c.mu.Unlock()
		return hil.NewBusyError()
	}

	c.inFlight = req
	c.timer = time.AfterFunc(c.latency, func() {
		c.fire(req)
	})

	c.mu.Unlock()

	return nil
}

// Abort cancels the in-flight operation if its timer has not fired yet. On
// OK the operation completes with ErrCancelled. ErrFail means the transfer
// already finished and its completion is on the way.
func (c *Comp) Abort() hil.ErrorCode {
	c.mu.Lock()

	req := c.inFlight
	if req == nil {
		c.mu.Unlock()
		return hil.ErrInvalid
	}

	if !c.timer.Stop() {
		c.mu.Unlock()
		return hil.ErrFail
	}

	c.inFlight = nil
	c.timer = nil
	sink := c.sink
	c.mu.Unlock()

	sink.Complete(req, 0, hil.ErrCancelled)

	return hil.OK
}

// fire runs on the timer goroutine when the service time elapses.
func (c *Comp) fire(req *hil.Request) {
	if c.loop != nil {
		c.loop.PostInterrupt(kernel.Interrupt{
			Source:  c.name,
			Service: func() { c.complete(req) },
		})

		return
	}

	c.complete(req)
}

func (c *Comp) complete(req *hil.Request) {
	c.mu.Lock()

	if c.inFlight != req {
		// Lost the race against Abort.
		c.mu.Unlock()
		return
	}

	c.inFlight = nil
	c.timer = nil

	if req.Kind == hil.OpReceive {
		for i := 0; i < req.N; i++ {
			req.Buf.Bytes[i] = c.pattern
		}
	}

	c.totalBytes += uint64(req.N)
	c.totalOps++
	sink := c.sink

	c.mu.Unlock()

	sink.Complete(req, req.N, hil.OK)
}

// Builder can build latency adapters.
type Builder struct {
	loop    *kernel.Loop
	latency time.Duration
	pattern byte
}

// MakeBuilder returns a new Builder with defaults.
func MakeBuilder() Builder {
	return Builder{
		latency: time.Millisecond,
		pattern: 0xA5,
	}
}

// WithLoop routes completions through the loop's interrupt queue. Without a
// loop the adapter completes straight from the timer goroutine.
func (b Builder) WithLoop(l *kernel.Loop) Builder {
	b.loop = l
	return b
}

// WithLatency sets the service time of one operation.
func (b Builder) WithLatency(d time.Duration) Builder {
	b.latency = d
	return b
}

// WithFillPattern sets the byte receives fill buffers with.
func (b Builder) WithFillPattern(p byte) Builder {
	b.pattern = p
	return b
}

// Build builds a latency adapter. The adapter starts powered down.
func (b Builder) Build(name string) *Comp {
	naming.MustBeValid(name)

	return &Comp{
		name:    name,
		loop:    b.loop,
		latency: b.latency,
		pattern: b.pattern,
		params: hil.Params{
			ClockHz:  1_000_000,
			WordBits: 8,
		},
	}
}

package conformance

import (
	"sync"

	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/naming"
)

// Action tells a ScriptedAdapter what to do with one Start call.
type Action int

const (
	// Accept takes the operation and completes it on a later Fire call.
	Accept Action = iota
	// Reject refuses the operation with the step's code and hands the
	// buffer back inline.
	Reject
	// Busy refuses the operation without taking the buffer.
	Busy
	// CompleteInline completes the operation during the Start call and
	// still reports it as accepted. No conformant adapter does this; the
	// layer above must shield its clients from the early delivery.
	CompleteInline
)

// Step is one scripted answer. Code and N only matter to Reject, which
// refuses with Code, and to CompleteInline, which completes N bytes with
// Code.
type Step struct {
	Do   Action
	Code hil.ErrorCode
	N    int
}

// A ScriptedAdapter is a resource adapter that answers Start calls from a
// script. With the script exhausted, every operation is accepted. It
// panics when handed overlapping operations, which makes it a probe for
// the single-flight discipline of the layer above, and it can complete
// early or twice on demand, which makes it a probe for that layer's
// delivery defenses.
type ScriptedAdapter struct {
	name string

	mu       sync.Mutex
	sink     hil.CompletionSink
	script   []Step
	pos      int
	inflight *hil.Request
	settled  *hil.Request
	started  []*hil.Request
}

// NewScriptedAdapter creates a new ScriptedAdapter.
func NewScriptedAdapter(name string) *ScriptedAdapter {
	naming.MustBeValid(name)

	return &ScriptedAdapter{name: name}
}

// Name returns the name of the adapter.
func (a *ScriptedAdapter) Name() string {
	return a.name
}

// SetSink registers the completion sink.
func (a *ScriptedAdapter) SetSink(s hil.CompletionSink) {
	a.sink = s
}

// Program appends steps to the script.
func (a *ScriptedAdapter) Program(steps ...Step) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.script = append(a.script, steps...)
}

// Start answers with the next scripted step.
func (a *ScriptedAdapter) Start(req *hil.Request) *hil.StartError {
	a.sinkMustBeSet()

	a.mu.Lock()

	step := Step{Do: Accept}
	if a.pos < len(a.script) {
		step = a.script[a.pos]
		a.pos++
	}

	switch step.Do {
	case Busy:
		a.mu.Unlock()
		return hil.NewBusyError()
	case Reject:
		a.mu.Unlock()
		return hil.NewStartError(step.Code, req.Buf)
	}

	if a.inflight != nil {
		a.mu.Unlock()
		panic("adapter handed a second operation while one is in flight")
	}

	a.started = append(a.started, req)

	if step.Do == CompleteInline {
		a.settled = req
		a.mu.Unlock()
		a.sink.Complete(req, step.N, step.Code)

		return nil
	}

	a.inflight = req
	a.mu.Unlock()

	return nil
}

// Fire completes the operation in flight.
func (a *ScriptedAdapter) Fire(n int, code hil.ErrorCode) {
	a.mu.Lock()
	req := a.inflight
	a.inflight = nil
	if req != nil {
		a.settled = req
	}
	a.mu.Unlock()

	if req == nil {
		panic("no operation in flight to complete")
	}

	a.sink.Complete(req, n, code)
}

// Refire repeats the completion of the last settled operation. No
// conformant adapter does this.
func (a *ScriptedAdapter) Refire(n int, code hil.ErrorCode) {
	a.mu.Lock()
	req := a.settled
	a.mu.Unlock()

	if req == nil {
		panic("no settled operation to complete again")
	}

	a.sink.Complete(req, n, code)
}

// InFlight reports whether an operation is with the adapter.
func (a *ScriptedAdapter) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.inflight != nil
}

// Started returns the accepted requests in arrival order.
func (a *ScriptedAdapter) Started() []*hil.Request {
	a.mu.Lock()
	defer a.mu.Unlock()

	started := make([]*hil.Request, len(a.started))
	copy(started, a.started)

	return started
}

func (a *ScriptedAdapter) sinkMustBeSet() {
	if a.sink == nil {
		panic("adapter must have a sink before start")
	}
}

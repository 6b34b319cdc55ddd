// Package vmux implements the virtualizing multiplexer. A Mux sits in front
// of one single-user resource adapter and fans it out to any number of
// attached devices. At most one operation is in flight against the adapter,
// everything else waits in a FIFO queue, and completions travel back to the
// submitting device through the deferred call scheduler so that no client
// callback ever runs inside a submit or complete call stack.
package vmux

import (
	"sync"

	"github.com/kestrel-os/kestrel/defcall"
	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/naming"
	"github.com/kestrel-os/kestrel/queueing"
)

// HookPosSubmit marks a request entering the multiplexer. The hook Detail
// is the submitting *Device.
var HookPosSubmit = &hooking.HookPos{Name: "Mux Submit"}

// HookPosEnqueue marks a request parked in the pending queue.
var HookPosEnqueue = &hooking.HookPos{Name: "Mux Enqueue"}

// HookPosDispatch marks a request forwarded to the adapter.
var HookPosDispatch = &hooking.HookPos{Name: "Mux Dispatch"}

// HookPosDeliver marks a completion delivered to a client. The hook Detail
// is the hil.ErrorCode of the outcome.
var HookPosDeliver = &hooking.HookPos{Name: "Mux Deliver"}

// HookPosReject marks a request refused synchronously. The hook Detail is
// the hil.ErrorCode of the refusal.
var HookPosReject = &hooking.HookPos{Name: "Mux Reject"}

// HookPosWithdraw marks a queued request handed back to its device.
var HookPosWithdraw = &hooking.HookPos{Name: "Mux Withdraw"}

// HookPosAbort marks an abort forwarded to the adapter.
var HookPosAbort = &hooking.HookPos{Name: "Mux Abort"}

type txn struct {
	req *hil.Request
	dev *Device
}

type delivery struct {
	txn  *txn
	n    int
	code hil.ErrorCode
}

// A Mux virtualizes one adapter. Use Attach to create device views and
// submit operations through them.
//
// Complete is safe to call from any goroutine. Everything else belongs to
// the kernel goroutine.
type Mux struct {
	hooking.HookableBase

	name      string
	adapter   hil.Adapter
	scheduler *defcall.Scheduler
	handle    defcall.Handle
	autoPower bool

	mu         sync.Mutex
	busy       bool
	powered    bool
	current    *txn
	pending    queueing.Queue[*txn]
	deliveries []delivery
	devices    []*Device
}

// Name returns the name of the multiplexer.
func (m *Mux) Name() string {
	return m.name
}

// Devices returns the device views attached so far.
func (m *Mux) Devices() []*Device {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.devices
}

// QueueMeters exposes the pending queue fill level.
func (m *Mux) QueueMeters() []queueing.Meter {
	return []queueing.Meter{m.pending.(queueing.Meter)}
}

// Attach creates a device view on the multiplexer. The addr is carried on
// every request the device submits, for adapters that address sub-targets.
func (m *Mux) Attach(name string, addr uint64) *Device {
	naming.MustBeValid(name)

	d := &Device{
		name: name,
		mux:  m,
		addr: addr,
	}

	m.mu.Lock()
	m.devices = append(m.devices, d)
	m.mu.Unlock()

	return d
}

// Configure forwards control settings to the adapter. ErrFail if the
// adapter is not configurable.
func (m *Mux) Configure(p hil.Params) hil.ErrorCode {
	c, ok := m.adapter.(hil.Configurer)
	if !ok {
		return hil.ErrFail
	}

	return c.Configure(p)
}

// Complete is the adapter's completion sink. It must name the request in
// flight. The client callback is not made here. It is marked as a deferred
// call and runs on a later scheduler pass.
func (m *Mux) Complete(req *hil.Request, n int, code hil.ErrorCode) {
	m.mu.Lock()

	tx := m.current
	if tx == nil || tx.req != req {
		m.mu.Unlock()
		panic("completion does not match the operation in flight")
	}

	m.current = nil
	m.busy = false
	m.deliveries = append(m.deliveries, delivery{txn: tx, n: n, code: code})

	m.mu.Unlock()

	m.scheduler.Set(m.handle)
	m.drain()
}

// HandleDeferredCall delivers the completions that were queued when the
// pass began. Clients may submit new operations from inside their
// callbacks.
func (m *Mux) HandleDeferredCall(_ defcall.Handle) {
	m.mu.Lock()
	batch := m.deliveries
	m.deliveries = nil
	m.mu.Unlock()

	for _, d := range batch {
		if m.NumHooks() > 0 {
			m.InvokeHook(hooking.HookCtx{
				Domain: m,
				Pos:    HookPosDeliver,
				Item:   d.txn.req,
				Detail: d.code,
			})
		}

		switch d.txn.req.Kind {
		case hil.OpTransmit:
			d.txn.dev.txClient.TransmitDone(d.txn.req, d.n, d.code)
		case hil.OpReceive:
			d.txn.dev.rxClient.ReceiveDone(d.txn.req, d.n, d.code)
		}
	}
}

// submit is the single entry point for data-path requests from devices.
func (m *Mux) submit(tx *txn) *hil.StartError {
	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosSubmit,
			Item:   tx.req,
			Detail: tx.dev,
		})
	}

	m.mu.Lock()

	if m.busy || m.pending.Size() > 0 {
		if !m.pending.CanPush() {
			m.mu.Unlock()
			m.hookReject(tx.req, hil.ErrBusy)

			return hil.NewBusyError()
		}

		m.pending.Push(tx)
		m.mu.Unlock()

		if m.NumHooks() > 0 {
			m.InvokeHook(hooking.HookCtx{
				Domain: m,
				Pos:    HookPosEnqueue,
				Item:   tx.req,
			})
		}

		return nil
	}

	m.busy = true
	m.current = tx

	if code := m.powerUpLocked(); code != hil.OK {
		m.busy = false
		m.current = nil
		m.mu.Unlock()
		m.hookReject(tx.req, code)

		return hil.NewStartError(code, tx.req.Buf)
	}

	m.mu.Unlock()

	serr := m.startOnAdapter(tx)
	if serr == nil {
		return nil
	}

	// The first dispatch fails synchronously: the result is relayed to the
	// caller exactly as the adapter reported it.
	m.settleFailedDispatch(tx)
	m.hookReject(tx.req, serr.Code)
	m.drain()

	return serr
}

// abort asks the adapter to cancel the in-flight operation of the given
// device.
func (m *Mux) abort(d *Device) hil.ErrorCode {
	m.mu.Lock()

	tx := m.current
	if tx == nil || tx.dev != d {
		owned := tx != nil
		m.mu.Unlock()

		if owned {
			return hil.ErrBusy
		}

		return hil.ErrInvalid
	}

	aborter, ok := m.adapter.(hil.Aborter)
	if !ok {
		m.mu.Unlock()
		return hil.ErrFail
	}

	m.mu.Unlock()

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosAbort,
			Item:   tx.req,
		})
	}

	return aborter.Abort()
}

// withdraw removes every queued request of the given device and hands the
// requests, buffers included, back synchronously. Withdrawn requests never
// produce completions.
func (m *Mux) withdraw(d *Device) []*hil.Request {
	m.mu.Lock()
	removed := m.pending.RemoveIf(func(tx *txn) bool {
		return tx.dev == d
	})
	m.mu.Unlock()

	reqs := make([]*hil.Request, 0, len(removed))
	for _, tx := range removed {
		if m.NumHooks() > 0 {
			m.InvokeHook(hooking.HookCtx{
				Domain: m,
				Pos:    HookPosWithdraw,
				Item:   tx.req,
			})
		}

		reqs = append(reqs, tx.req)
	}

	return reqs
}

// drain forwards queued requests while the adapter is idle. Terminal
// synchronous failures of forwarded requests are turned into deferred
// completions, so the head failing does not wedge the queue.
func (m *Mux) drain() {
	for {
		m.mu.Lock()

		if m.busy {
			m.mu.Unlock()
			return
		}

		tx, ok := m.pending.Pop()
		if !ok {
			m.powerDownLocked()
			m.mu.Unlock()

			return
		}

		m.busy = true
		m.current = tx

		if code := m.powerUpLocked(); code != hil.OK {
			m.settleDeferredLocked(tx, code)
			m.mu.Unlock()
			m.scheduler.Set(m.handle)

			continue
		}

		m.mu.Unlock()

		serr := m.startOnAdapter(tx)
		if serr == nil {
			return
		}

		if serr.Code == hil.ErrBusy {
			panic("adapter reported busy while exclusively owned")
		}

		m.mu.Lock()
		m.currentMustBe(tx)
		m.settleDeferredLocked(tx, serr.Code)
		m.mu.Unlock()

		m.scheduler.Set(m.handle)
	}
}

func (m *Mux) startOnAdapter(tx *txn) *hil.StartError {
	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosDispatch,
			Item:   tx.req,
		})
	}

	return m.adapter.Start(tx.req)
}

func (m *Mux) settleFailedDispatch(tx *txn) {
	m.mu.Lock()
	m.currentMustBe(tx)
	m.current = nil
	m.busy = false
	m.mu.Unlock()
}

// settleDeferredLocked records a terminal outcome for a request that cannot
// be returned to the caller inline.
func (m *Mux) settleDeferredLocked(tx *txn, code hil.ErrorCode) {
	m.current = nil
	m.busy = false
	m.deliveries = append(m.deliveries, delivery{txn: tx, n: 0, code: code})
}

// powerUpLocked enables the adapter on the idle-to-active edge.
func (m *Mux) powerUpLocked() hil.ErrorCode {
	if !m.autoPower || m.powered {
		return hil.OK
	}

	pc, ok := m.adapter.(hil.PowerController)
	if !ok {
		return hil.OK
	}

	if code := pc.Enable(); code != hil.OK {
		return code
	}

	m.powered = true

	return hil.OK
}

// powerDownLocked disables the adapter on the active-to-idle edge.
func (m *Mux) powerDownLocked() {
	if !m.autoPower || !m.powered {
		return
	}

	pc, ok := m.adapter.(hil.PowerController)
	if !ok {
		return
	}

	pc.Disable()
	m.powered = false
}

func (m *Mux) hookReject(req *hil.Request, code hil.ErrorCode) {
	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosReject,
			Item:   req,
			Detail: code,
		})
	}
}

func (m *Mux) currentMustBe(tx *txn) {
	if m.current != tx {
		panic("adapter reported both a synchronous failure and a completion")
	}
}

// Builder can build multiplexers.
type Builder struct {
	adapter         hil.Adapter
	scheduler       *defcall.Scheduler
	pendingCapacity int
	autoPower       bool
}

// MakeBuilder returns a new Builder with defaults.
func MakeBuilder() Builder {
	return Builder{
		pendingCapacity: 32,
		autoPower:       true,
	}
}

// WithAdapter sets the adapter the multiplexer owns.
func (b Builder) WithAdapter(a hil.Adapter) Builder {
	b.adapter = a
	return b
}

// WithScheduler sets the deferred call scheduler completions go through.
func (b Builder) WithScheduler(s *defcall.Scheduler) Builder {
	b.scheduler = s
	return b
}

// WithPendingCapacity sets how many requests can wait in the queue.
func (b Builder) WithPendingCapacity(n int) Builder {
	b.pendingCapacity = n
	return b
}

// WithAutoPower controls whether the multiplexer brackets adapter activity
// with Enable and Disable.
func (b Builder) WithAutoPower(auto bool) Builder {
	b.autoPower = auto
	return b
}

// Build builds a Mux, registers its deferred call slot, and installs it as
// the adapter's completion sink.
func (b Builder) Build(name string) *Mux {
	naming.MustBeValid(name)

	if b.adapter == nil {
		panic("mux must have an adapter")
	}

	if b.scheduler == nil {
		panic("mux must have a deferred call scheduler")
	}

	m := &Mux{
		name:      name,
		adapter:   b.adapter,
		scheduler: b.scheduler,
		autoPower: b.autoPower,
		pending: queueing.MakeQueueBuilder[*txn]().
			WithCapacity(b.pendingCapacity).
			Build(naming.BuildName(name, "PendingQueue")),
	}

	h, err := b.scheduler.Register(m)
	if err != nil {
		panic("mux cannot register its deferred call: " + err.Error())
	}

	m.handle = h
	b.adapter.SetSink(m)

	return m
}

// Package kernel runs the main loop. The loop alternates between draining
// posted interrupts and servicing deferred calls, and parks when neither has
// work. Everything that touches client callbacks runs on the loop goroutine,
// while PostInterrupt and deferred call marking may happen from any
// goroutine.
package kernel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-os/kestrel/defcall"
	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/naming"
	"github.com/kestrel-os/kestrel/queueing"
)

// HookPosPassBegin marks the start of a loop pass.
var HookPosPassBegin = &hooking.HookPos{Name: "Loop Pass Begin"}

// HookPosPassEnd marks the end of a loop pass.
var HookPosPassEnd = &hooking.HookPos{Name: "Loop Pass End"}

// HookPosInterrupt marks an interrupt being serviced.
var HookPosInterrupt = &hooking.HookPos{Name: "Loop Interrupt"}

// An Interrupt is a piece of bottom-half work posted to the loop. Service
// runs on the loop goroutine.
type Interrupt struct {
	Source  string
	Service func()
}

// A ShutdownHandler is called when the loop finishes for good.
type ShutdownHandler interface {
	Handle(uptime float64)
}

// A Loop owns one deferred call scheduler and drives it. Each pass first
// drains the interrupt queue, then services the deferred calls that were
// pending when the pass began.
type Loop struct {
	hooking.HookableBase

	name      string
	scheduler *defcall.Scheduler
	startTime time.Time

	interruptLock sync.Mutex
	interrupts    queueing.Queue[Interrupt]

	wakeCh    chan struct{}
	stopped   atomic.Bool
	passCount atomic.Uint64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	shutdownHandlers []ShutdownHandler
}

// Name returns the name of the loop.
func (l *Loop) Name() string {
	return l.name
}

// Scheduler returns the deferred call scheduler the loop services.
func (l *Loop) Scheduler() *defcall.Scheduler {
	return l.scheduler
}

// Uptime returns the seconds elapsed since the loop was built.
func (l *Loop) Uptime() float64 {
	return time.Since(l.startTime).Seconds()
}

// PassCount returns the number of completed passes.
func (l *Loop) PassCount() uint64 {
	return l.passCount.Load()
}

// Wake unparks the loop. Safe to call from any goroutine. The loop is its
// own scheduler's waker.
func (l *Loop) Wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// PostInterrupt hands bottom-half work to the loop. Safe to call from any
// goroutine. The work runs on the loop goroutine before the next deferred
// call pass.
func (l *Loop) PostInterrupt(intr Interrupt) {
	if intr.Service == nil {
		panic("interrupt service function must not be nil")
	}

	l.interruptLock.Lock()
	l.interrupts.Push(intr)
	l.interruptLock.Unlock()

	l.Wake()
}

// Run keeps making passes until Stop is called, parking whenever there is
// no work.
func (l *Loop) Run() error {
	l.singleRunLock.Lock()
	defer l.singleRunLock.Unlock()

	for !l.stopped.Load() {
		if l.quiescent() {
			<-l.wakeCh
			continue
		}

		l.pass()
	}

	return nil
}

// RunUntilQuiescent makes passes until no interrupt and no deferred call is
// outstanding, then returns. It is the mode tests and examples use.
func (l *Loop) RunUntilQuiescent() error {
	l.singleRunLock.Lock()
	defer l.singleRunLock.Unlock()

	for !l.stopped.Load() && !l.quiescent() {
		l.pass()
	}

	return nil
}

// Stop makes Run return after the pass in flight, if any, completes.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.Wake()
}

// Pause prevents the loop from making more passes until Continue.
func (l *Loop) Pause() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if l.isPaused {
		return
	}

	l.pauseLock.Lock()
	l.isPaused = true
}

// Continue allows the loop to make passes again.
func (l *Loop) Continue() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if !l.isPaused {
		return
	}

	l.pauseLock.Unlock()
	l.isPaused = false
}

// RegisterShutdownHandler adds a handler to run when Finished is called.
func (l *Loop) RegisterShutdownHandler(h ShutdownHandler) {
	l.shutdownHandlers = append(l.shutdownHandlers, h)
}

// Finished should be called after the loop has stopped for good. It calls
// all the registered shutdown handlers.
func (l *Loop) Finished() {
	uptime := l.Uptime()
	for _, h := range l.shutdownHandlers {
		h.Handle(uptime)
	}
}

// QueueMeters exposes the interrupt queue fill level.
func (l *Loop) QueueMeters() []queueing.Meter {
	return []queueing.Meter{l.interrupts.(queueing.Meter)}
}

func (l *Loop) quiescent() bool {
	l.interruptLock.Lock()
	numIntr := l.interrupts.Size()
	l.interruptLock.Unlock()

	return numIntr == 0 && !l.scheduler.HasPending()
}

func (l *Loop) pass() {
	l.pauseLock.Lock()

	l.InvokeHook(hooking.HookCtx{Domain: l, Pos: HookPosPassBegin})

	l.drainInterrupts()
	l.scheduler.ServiceAll()

	l.InvokeHook(hooking.HookCtx{Domain: l, Pos: HookPosPassEnd})
	l.passCount.Add(1)

	l.pauseLock.Unlock()
}

func (l *Loop) drainInterrupts() {
	for {
		l.interruptLock.Lock()
		intr, ok := l.interrupts.Pop()
		l.interruptLock.Unlock()

		if !ok {
			return
		}

		l.InvokeHook(hooking.HookCtx{
			Domain: l,
			Pos:    HookPosInterrupt,
			Item:   intr,
		})

		intr.Service()
	}
}

// Builder can build loops.
type Builder struct {
	schedulerCapacity int
	interruptCapacity int
}

// MakeBuilder returns a new Builder with default capacities.
func MakeBuilder() Builder {
	return Builder{
		schedulerCapacity: 32,
		interruptCapacity: 64,
	}
}

// WithSchedulerCapacity sets the deferred call registry size.
func (b Builder) WithSchedulerCapacity(n int) Builder {
	b.schedulerCapacity = n
	return b
}

// WithInterruptCapacity sets how many interrupts can be outstanding.
func (b Builder) WithInterruptCapacity(n int) Builder {
	b.interruptCapacity = n
	return b
}

// Build builds a Loop together with its deferred call scheduler.
func (b Builder) Build(name string) *Loop {
	naming.MustBeValid(name)

	l := &Loop{
		name:      name,
		startTime: time.Now(),
		wakeCh:    make(chan struct{}, 1),
		interrupts: queueing.MakeQueueBuilder[Interrupt]().
			WithCapacity(b.interruptCapacity).
			Build(naming.BuildName(name, "InterruptQueue")),
	}

	l.scheduler = defcall.MakeBuilder().
		WithCapacity(b.schedulerCapacity).
		WithWaker(l).
		Build(naming.BuildName(name, "DefCall"))

	return l
}

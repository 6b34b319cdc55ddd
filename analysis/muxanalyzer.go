package analysis

import (
	"math"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/naming"
	"github.com/kestrel-os/kestrel/vmux"
)

// muxTrafficEntry accumulates one device's counters within a period.
type muxTrafficEntry struct {
	Device         string  `json:"device"`
	SubmittedOps   int64   `json:"submitted_ops"`
	SubmittedBytes int64   `json:"submitted_bytes"`
	CompletedOps   int64   `json:"completed_ops"`
	CompletedBytes int64   `json:"completed_bytes"`
	RejectedOps    int64   `json:"rejected_ops"`
	LatencySum     float64 `json:"latency_sum"`
}

type submitRecord struct {
	device string
	at     float64
}

// MuxAnalyzer is a hook that aggregates the request traffic through one
// multiplexer, per submitting device. It counts submitted, completed, and
// rejected operations, the bytes they asked to move, and the total
// submit-to-delivery latency.
type MuxAnalyzer struct {
	PerfLogger
	kernel.TimeTeller

	usePeriod bool
	period    float64
	mux       *vmux.Mux

	mu          sync.Mutex
	lastTime    float64
	submitTimes map[string]submitRecord
	traffic     map[string]muxTrafficEntry
}

// Func records one multiplexer hook event into the running period.
func (a *MuxAnalyzer) Func(ctx hooking.HookCtx) {
	now := a.Uptime()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.usePeriod {
		lastPeriodEndTime := a.periodEndTime(a.lastTime)
		if now > lastPeriodEndTime {
			a.summarizeLocked(now)
		}
	}

	switch ctx.Pos {
	case vmux.HookPosSubmit:
		a.recordSubmitLocked(ctx, now)
	case vmux.HookPosDeliver:
		a.recordDeliverLocked(ctx, now)
	case vmux.HookPosReject:
		a.recordRejectLocked(ctx)
	case vmux.HookPosWithdraw:
		req := ctx.Item.(*hil.Request)
		delete(a.submitTimes, req.ID)
	}

	a.lastTime = now
}

func (a *MuxAnalyzer) recordSubmitLocked(ctx hooking.HookCtx, now float64) {
	req := ctx.Item.(*hil.Request)
	device := ctx.Detail.(naming.Named).Name()

	a.submitTimes[req.ID] = submitRecord{device: device, at: now}

	e := a.traffic[device]
	e.Device = device
	e.SubmittedOps++
	e.SubmittedBytes += int64(req.N)
	a.traffic[device] = e
}

func (a *MuxAnalyzer) recordDeliverLocked(ctx hooking.HookCtx, now float64) {
	req := ctx.Item.(*hil.Request)

	// Requests submitted before the analyzer attached have no record.
	rec, ok := a.submitTimes[req.ID]
	if !ok {
		return
	}
	delete(a.submitTimes, req.ID)

	e := a.traffic[rec.device]
	e.Device = rec.device
	e.CompletedOps++
	e.CompletedBytes += int64(req.N)
	e.LatencySum += now - rec.at
	a.traffic[rec.device] = e
}

func (a *MuxAnalyzer) recordRejectLocked(ctx hooking.HookCtx) {
	req := ctx.Item.(*hil.Request)

	rec, ok := a.submitTimes[req.ID]
	if !ok {
		return
	}
	delete(a.submitTimes, req.ID)

	e := a.traffic[rec.device]
	e.Device = rec.device
	e.RejectedOps++
	a.traffic[rec.device] = e
}

// CurrentTraffic renders the counters of the running period as JSON, in
// device name order.
func (a *MuxAnalyzer) CurrentTraffic() string {
	a.mu.Lock()
	entries := make([]muxTrafficEntry, 0, len(a.traffic))
	for _, e := range a.traffic {
		entries = append(entries, e)
	}
	a.mu.Unlock()

	sortEntriesByDevice(entries)

	return marshalTraffic(entries)
}

func (a *MuxAnalyzer) summarize() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.summarizeLocked(a.Uptime())
}

func (a *MuxAnalyzer) summarizeLocked(now float64) {
	startTime := 0.0
	endTime := now

	if a.usePeriod {
		startTime = a.periodStartTime(a.lastTime)
		endTime = a.periodEndTime(a.lastTime)

		if endTime > now {
			endTime = now
		}
	}

	for _, e := range a.traffic {
		a.logEntryLocked(e, startTime, endTime)
	}

	a.traffic = make(map[string]muxTrafficEntry)
}

func (a *MuxAnalyzer) logEntryLocked(
	e muxTrafficEntry,
	startTime, endTime float64,
) {
	perfEntry := PerfAnalyzerEntry{
		Start:       startTime,
		End:         endTime,
		Where:       a.mux.Name(),
		WhereDevice: e.Device,
		EntryType:   "Traffic",
	}

	if e.SubmittedOps != 0 {
		perfEntry.What = "Submitted"

		perfEntry.Value = float64(e.SubmittedBytes)
		perfEntry.Unit = "Byte"
		a.PerfLogger.AddDataEntry(perfEntry)

		perfEntry.Value = float64(e.SubmittedOps)
		perfEntry.Unit = "Op"
		a.PerfLogger.AddDataEntry(perfEntry)
	}

	if e.CompletedOps != 0 {
		perfEntry.What = "Completed"

		perfEntry.Value = float64(e.CompletedBytes)
		perfEntry.Unit = "Byte"
		a.PerfLogger.AddDataEntry(perfEntry)

		perfEntry.Value = float64(e.CompletedOps)
		perfEntry.Unit = "Op"
		a.PerfLogger.AddDataEntry(perfEntry)

		perfEntry.What = "Latency"
		perfEntry.Value = e.LatencySum
		perfEntry.Unit = "Sec"
		a.PerfLogger.AddDataEntry(perfEntry)
	}

	if e.RejectedOps != 0 {
		perfEntry.What = "Rejected"
		perfEntry.Value = float64(e.RejectedOps)
		perfEntry.Unit = "Op"
		a.PerfLogger.AddDataEntry(perfEntry)
	}
}

func (a *MuxAnalyzer) periodStartTime(t float64) float64 {
	return math.Floor(t/a.period) * a.period
}

func (a *MuxAnalyzer) periodEndTime(t float64) float64 {
	return a.periodStartTime(t) + a.period
}

// MuxAnalyzerBuilder can build a MuxAnalyzer.
type MuxAnalyzerBuilder struct {
	perfLogger PerfLogger
	timeTeller kernel.TimeTeller
	usePeriod  bool
	period     float64
	mux        *vmux.Mux
}

// MakeMuxAnalyzerBuilder creates a MuxAnalyzerBuilder.
func MakeMuxAnalyzerBuilder() MuxAnalyzerBuilder {
	return MuxAnalyzerBuilder{}
}

// WithPerfLogger sets the logger to be used by the MuxAnalyzer.
func (b MuxAnalyzerBuilder) WithPerfLogger(l PerfLogger) MuxAnalyzerBuilder {
	b.perfLogger = l
	return b
}

// WithTimeTeller sets the TimeTeller to be used by the MuxAnalyzer.
func (b MuxAnalyzerBuilder) WithTimeTeller(
	t kernel.TimeTeller,
) MuxAnalyzerBuilder {
	b.timeTeller = t
	return b
}

// WithPeriod sets the period to be used by the MuxAnalyzer.
func (b MuxAnalyzerBuilder) WithPeriod(p float64) MuxAnalyzerBuilder {
	b.usePeriod = true
	b.period = p

	return b
}

// WithMux sets the multiplexer to be analyzed.
func (b MuxAnalyzerBuilder) WithMux(m *vmux.Mux) MuxAnalyzerBuilder {
	b.mux = m
	return b
}

// Build creates a MuxAnalyzer.
func (b MuxAnalyzerBuilder) Build() *MuxAnalyzer {
	if b.perfLogger == nil {
		panic("mux analyzer requires a perf logger")
	}

	if b.timeTeller == nil {
		panic("mux analyzer requires a time teller")
	}

	if b.mux == nil {
		panic("mux analyzer requires a mux")
	}

	a := &MuxAnalyzer{
		PerfLogger:  b.perfLogger,
		TimeTeller:  b.timeTeller,
		usePeriod:   b.usePeriod,
		period:      b.period,
		mux:         b.mux,
		submitTimes: make(map[string]submitRecord),
		traffic:     make(map[string]muxTrafficEntry),
	}

	atexit.Register(func() { a.summarize() })

	return a
}

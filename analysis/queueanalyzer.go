package analysis

import (
	"math"

	"github.com/tebeka/atexit"

	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/queueing"
)

// QueueAnalyzer records the fill level of one queue. It reports the
// time-weighted average level and the high-water mark of each period.
type QueueAnalyzer struct {
	PerfLogger
	kernel.TimeTeller

	meter     queueing.Meter
	usePeriod bool
	period    float64

	lastTime        float64
	lastLevel       int
	highWater       int
	levelToDuration map[int]float64
}

// Func records a queue level change.
func (a *QueueAnalyzer) Func(ctx hooking.HookCtx) {
	now := a.Uptime()
	level := ctx.Domain.(queueing.Meter).Size()

	if a.usePeriod {
		lastPeriodEndTime := a.periodEndTime(a.lastTime)

		if now > lastPeriodEndTime {
			a.summarize()
			a.resetPeriod()
		}
	}

	a.levelToDuration[a.lastLevel] += now - a.lastTime
	a.lastLevel = level
	a.lastTime = now

	if level > a.highWater {
		a.highWater = level
	}
}

func (a *QueueAnalyzer) summarize() {
	now := a.Uptime()

	if !a.usePeriod {
		a.summarizePeriod(now, 0, now)
		return
	}

	periodStartTime := a.periodStartTime(a.lastTime)
	periodEndTime := a.periodEndTime(a.lastTime)

	for periodEndTime < now {
		a.summarizePeriod(now, periodStartTime, periodEndTime)

		a.levelToDuration = make(map[int]float64)
		a.highWater = a.lastLevel
		a.lastTime = periodEndTime
		periodStartTime = periodEndTime
		periodEndTime = periodStartTime + a.period
	}
}

func (a *QueueAnalyzer) summarizePeriod(
	now, periodStartTime, periodEndTime float64,
) {
	sumLevel := 0.0
	sumDuration := 0.0
	for level, duration := range a.levelToDuration {
		sumLevel += float64(level) * duration
		sumDuration += duration
	}

	summarizeEndTime := math.Min(periodEndTime, now)
	if summarizeEndTime > a.lastTime {
		remainingTime := summarizeEndTime - a.lastTime
		sumLevel += float64(a.lastLevel) * remainingTime
		sumDuration += remainingTime
	}

	if sumDuration == 0 {
		return
	}

	avgLevel := sumLevel / sumDuration
	if avgLevel == 0 {
		return
	}

	entry := PerfAnalyzerEntry{
		Start:     periodStartTime,
		End:       periodEndTime,
		Where:     a.meter.Name(),
		What:      "Level",
		EntryType: "Queue",
		Value:     avgLevel,
		Unit:      "",
	}
	a.PerfLogger.AddDataEntry(entry)

	entry.What = "HighWater"
	entry.Value = float64(a.highWater)
	a.PerfLogger.AddDataEntry(entry)
}

func (a *QueueAnalyzer) resetPeriod() {
	now := a.Uptime()

	a.levelToDuration = make(map[int]float64)
	a.highWater = a.lastLevel
	a.lastTime = a.periodStartTime(now)
}

func (a *QueueAnalyzer) periodStartTime(t float64) float64 {
	return math.Floor(t/a.period) * a.period
}

func (a *QueueAnalyzer) periodEndTime(t float64) float64 {
	return a.periodStartTime(t) + a.period
}

// QueueAnalyzerBuilder can build a QueueAnalyzer.
type QueueAnalyzerBuilder struct {
	perfLogger PerfLogger
	timeTeller kernel.TimeTeller
	usePeriod  bool
	period     float64
	meter      queueing.Meter
}

// MakeQueueAnalyzerBuilder creates a QueueAnalyzerBuilder.
func MakeQueueAnalyzerBuilder() QueueAnalyzerBuilder {
	return QueueAnalyzerBuilder{}
}

// WithPerfLogger sets the PerfLogger to use.
func (b QueueAnalyzerBuilder) WithPerfLogger(
	perfLogger PerfLogger,
) QueueAnalyzerBuilder {
	b.perfLogger = perfLogger
	return b
}

// WithTimeTeller sets the TimeTeller to use.
func (b QueueAnalyzerBuilder) WithTimeTeller(
	timeTeller kernel.TimeTeller,
) QueueAnalyzerBuilder {
	b.timeTeller = timeTeller
	return b
}

// WithPeriod sets the period to use.
func (b QueueAnalyzerBuilder) WithPeriod(period float64) QueueAnalyzerBuilder {
	b.usePeriod = true
	b.period = period

	return b
}

// WithMeter sets the queue meter to observe.
func (b QueueAnalyzerBuilder) WithMeter(
	meter queueing.Meter,
) QueueAnalyzerBuilder {
	b.meter = meter
	return b
}

// Build creates a QueueAnalyzer.
func (b QueueAnalyzerBuilder) Build() *QueueAnalyzer {
	if b.perfLogger == nil {
		panic("queue analyzer requires a perf logger")
	}

	if b.timeTeller == nil {
		panic("queue analyzer requires a time teller")
	}

	if b.meter == nil {
		panic("queue analyzer requires a meter")
	}

	analyzer := &QueueAnalyzer{
		PerfLogger:      b.perfLogger,
		TimeTeller:      b.timeTeller,
		meter:           b.meter,
		usePeriod:       b.usePeriod,
		period:          b.period,
		levelToDuration: make(map[int]float64),
	}

	atexit.Register(func() { analyzer.summarize() })

	return analyzer
}

// Package analysis aggregates performance metrics from running kernels.
// Analyzers are hooks: they attach to multiplexers and queues, accumulate
// counters in periodic buckets, and emit summary entries to a backend when
// a period closes. The raw event stream stays in tracing; this package only
// stores aggregates.
package analysis

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/queueing"
	"github.com/kestrel-os/kestrel/recording"
	"github.com/kestrel-os/kestrel/vmux"
)

// PerfAnalyzerEntry is a single entry in the performance database. Where
// names the component the entry is about and WhereDevice the device view
// within it, when one applies.
type PerfAnalyzerEntry struct {
	Start       float64
	End         float64
	Where       string
	WhereDevice string
	What        string
	EntryType   string
	Value       float64
	Unit        string
}

// PerfLogger is the interface that provides the service that can record
// performance data entries.
type PerfLogger interface {
	AddDataEntry(entry PerfAnalyzerEntry)
}

// PerfAnalyzer can report performance metrics of a running kernel. It hangs
// analyzers on the components registered with it and forwards their entries
// to its backend.
type PerfAnalyzer struct {
	usePeriod  bool
	period     float64
	timeTeller kernel.TimeTeller
	backend    PerfAnalyzerBackend

	mu           sync.Mutex
	muxAnalyzers map[string]*MuxAnalyzer
}

// RegisterTimeTeller registers the clock that timestamps the entries. It
// must be called before any component is registered.
func (p *PerfAnalyzer) RegisterTimeTeller(t kernel.TimeTeller) {
	p.timeTeller = t
}

// RegisterComponent registers a component to be analyzed. Multiplexers get
// a traffic analyzer and every hookable queue meter the component exposes
// gets a queue analyzer.
func (p *PerfAnalyzer) RegisterComponent(c kernel.Component) {
	if m, ok := c.(*vmux.Mux); ok {
		p.RegisterMux(m)
	}

	if mp, ok := c.(kernel.MeterProvider); ok {
		for _, meter := range mp.QueueMeters() {
			p.RegisterQueue(meter)
		}
	}
}

// RegisterMux attaches a traffic analyzer to a multiplexer.
func (p *PerfAnalyzer) RegisterMux(m *vmux.Mux) {
	p.timeTellerMustBeRegistered()

	builder := MakeMuxAnalyzerBuilder().
		WithTimeTeller(p.timeTeller).
		WithPerfLogger(p).
		WithMux(m)

	if p.usePeriod {
		builder = builder.WithPeriod(p.period)
	}

	a := builder.Build()
	m.AcceptHook(a)

	p.mu.Lock()
	p.muxAnalyzers[m.Name()] = a
	p.mu.Unlock()
}

// RegisterQueue attaches a queue analyzer to a meter. Meters that are not
// hookable are skipped.
func (p *PerfAnalyzer) RegisterQueue(meter queueing.Meter) {
	p.timeTellerMustBeRegistered()

	hookable, ok := meter.(hooking.Hookable)
	if !ok {
		return
	}

	builder := MakeQueueAnalyzerBuilder().
		WithTimeTeller(p.timeTeller).
		WithPerfLogger(p).
		WithMeter(meter)

	if p.usePeriod {
		builder = builder.WithPeriod(p.period)
	}

	hookable.AcceptHook(builder.Build())
}

// AddDataEntry adds a data entry to the backend.
func (p *PerfAnalyzer) AddDataEntry(entry PerfAnalyzerEntry) {
	p.backend.AddDataEntry(entry)
}

// GetCurrentTraffic returns the live counters of the named multiplexer as
// JSON, for the monitor. An unknown name yields an empty list.
func (p *PerfAnalyzer) GetCurrentTraffic(name string) string {
	p.mu.Lock()
	a, ok := p.muxAnalyzers[name]
	p.mu.Unlock()

	if !ok {
		return "[]"
	}

	return a.CurrentTraffic()
}

func (p *PerfAnalyzer) timeTellerMustBeRegistered() {
	if p.timeTeller == nil {
		panic("perf analyzer must have a time teller before registration")
	}
}

// PerfAnalyzerBuilder is a builder that can build a PerfAnalyzer.
type PerfAnalyzerBuilder struct {
	usePeriod bool
	period    float64
	backend   PerfAnalyzerBackend
}

// MakePerfAnalyzerBuilder creates a new PerfAnalyzerBuilder.
func MakePerfAnalyzerBuilder() PerfAnalyzerBuilder {
	return PerfAnalyzerBuilder{}
}

// WithPeriod makes the analyzers bucket their entries into periods of the
// given length, in seconds. Without a period each analyzer emits one
// summary at exit.
func (b PerfAnalyzerBuilder) WithPeriod(period float64) PerfAnalyzerBuilder {
	b.usePeriod = true
	b.period = period

	return b
}

// WithBackend sets the backend entries are written to.
func (b PerfAnalyzerBuilder) WithBackend(
	backend PerfAnalyzerBackend,
) PerfAnalyzerBuilder {
	b.backend = backend
	return b
}

// WithCSVBackend directs the entries into a CSV file with the given name,
// without the ".csv" suffix.
func (b PerfAnalyzerBuilder) WithCSVBackend(
	filename string,
) PerfAnalyzerBuilder {
	b.backend = NewCSVPerfAnalyzerBackend(filename)
	return b
}

// WithRecorderBackend directs the entries into a recording backend.
func (b PerfAnalyzerBuilder) WithRecorderBackend(
	r recording.Recorder,
) PerfAnalyzerBuilder {
	b.backend = NewRecorderPerfAnalyzerBackend(r)
	return b
}

// Build creates a PerfAnalyzer.
func (b PerfAnalyzerBuilder) Build() *PerfAnalyzer {
	if b.backend == nil {
		panic("perf analyzer must have a backend")
	}

	return &PerfAnalyzer{
		usePeriod:    b.usePeriod,
		period:       b.period,
		backend:      b.backend,
		muxAnalyzers: make(map[string]*MuxAnalyzer),
	}
}

// sortEntriesByDevice orders traffic snapshots for stable JSON output.
func sortEntriesByDevice(entries []muxTrafficEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Device < entries[j].Device
	})
}

func marshalTraffic(entries []muxTrafficEntry) string {
	b, err := json.Marshal(entries)
	if err != nil {
		panic(err)
	}

	return string(b)
}

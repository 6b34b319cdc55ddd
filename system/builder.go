package system

import (
	"github.com/rs/xid"

	"github.com/kestrel-os/kestrel/analysis"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/monitoring"
	"github.com/kestrel-os/kestrel/recording"
	"github.com/kestrel-os/kestrel/tracing"
)

// Builder can be used to build a system.
type Builder struct {
	monitorOn         bool
	monitorPort       int
	perfPeriod        float64
	outputFileName    string
	schedulerCapacity int
	interruptCapacity int
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:         true,
		schedulerCapacity: 32,
		interruptCapacity: 64,
	}
}

// WithoutMonitoring sets the system to not start a monitoring server.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithPerfPeriod makes the performance analyzer bucket its entries into
// periods of the given length, in seconds.
func (b Builder) WithPerfPeriod(period float64) Builder {
	b.perfPeriod = period
	return b
}

// WithOutputFileName sets the custom output file name for the recorder,
// without the ".sqlite3" suffix.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithSchedulerCapacity sets how many deferred call handles the kernel
// scheduler can hold.
func (b Builder) WithSchedulerCapacity(n int) Builder {
	b.schedulerCapacity = n
	return b
}

// WithInterruptCapacity sets how many interrupts can be outstanding on the
// kernel loop.
func (b Builder) WithInterruptCapacity(n int) Builder {
	b.interruptCapacity = n
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the system.
func (b Builder) Build() *System {
	b.parametersMustBeValid()

	s := &System{
		compNameIndex: make(map[string]int),
	}

	s.id = xid.New().String()

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "kestrel_" + s.id
	}
	s.recorder = recording.New(outputPath)

	s.loop = kernel.MakeBuilder().
		WithSchedulerCapacity(b.schedulerCapacity).
		WithInterruptCapacity(b.interruptCapacity).
		Build("Kernel")

	s.opTracer = tracing.NewDBTracer(s.loop, s.recorder)
	tracing.CollectWakeups(s.loop.Scheduler(), s.opTracer)

	perfBuilder := analysis.MakePerfAnalyzerBuilder().
		WithRecorderBackend(s.recorder)
	if b.perfPeriod > 0 {
		perfBuilder = perfBuilder.WithPeriod(b.perfPeriod)
	}
	s.perfAnalyzer = perfBuilder.Build()
	s.perfAnalyzer.RegisterTimeTeller(s.loop)

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		s.monitor.RegisterLoop(s.loop)
		s.monitor.RegisterPerfAnalyzer(s.perfAnalyzer)
		s.monitor.StartServer()
	}

	s.RegisterComponent(s.loop)

	return s
}

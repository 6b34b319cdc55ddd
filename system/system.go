// Package system assembles a complete kestrel stack. One System owns the
// kernel loop, the recorder the run writes to, the operation tracer, the
// performance analyzer and the monitor, so that binaries and examples wire
// them the same way.
package system

import (
	"github.com/kestrel-os/kestrel/analysis"
	"github.com/kestrel-os/kestrel/defcall"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/monitoring"
	"github.com/kestrel-os/kestrel/recording"
	"github.com/kestrel-os/kestrel/tracing"
	"github.com/kestrel-os/kestrel/vmux"
)

// A System provides the services required to run a kestrel kernel.
type System struct {
	id string

	loop         *kernel.Loop
	recorder     recording.Recorder
	monitor      *monitoring.Monitor
	opTracer     *tracing.DBTracer
	perfAnalyzer *analysis.PerfAnalyzer

	components    []kernel.Component
	compNameIndex map[string]int
}

// ID returns the unique ID of the run.
func (s *System) ID() string {
	return s.id
}

// GetLoop returns the kernel loop that drives the system.
func (s *System) GetLoop() *kernel.Loop {
	return s.loop
}

// GetScheduler returns the deferred call scheduler of the kernel loop.
func (s *System) GetScheduler() *defcall.Scheduler {
	return s.loop.Scheduler()
}

// GetRecorder returns the recorder the run writes to.
func (s *System) GetRecorder() recording.Recorder {
	return s.recorder
}

// GetMonitor returns the monitor used in the system. It is nil when the
// system was built without monitoring.
func (s *System) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetOpTracer returns the operation tracer of the system.
func (s *System) GetOpTracer() *tracing.DBTracer {
	return s.opTracer
}

// GetPerfAnalyzer returns the performance analyzer of the system.
func (s *System) GetPerfAnalyzer() *analysis.PerfAnalyzer {
	return s.perfAnalyzer
}

// RegisterComponent registers a component with the system. The component
// becomes visible to the monitor and the performance analyzer.
func (s *System) RegisterComponent(c kernel.Component) {
	compName := c.Name()
	if _, ok := s.compNameIndex[compName]; ok {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}

	s.perfAnalyzer.RegisterComponent(c)
}

// RegisterMux registers a multiplexer and hooks the operation tracer onto
// it, so every request the mux carries shows up in the trace table.
func (s *System) RegisterMux(m *vmux.Mux) {
	s.RegisterComponent(m)

	tracing.CollectRequests(m, s.opTracer)
}

// Components returns all registered components.
func (s *System) Components() []kernel.Component {
	return s.components
}

// GetComponentByName returns the component with the given name.
func (s *System) GetComponentByName(name string) kernel.Component {
	return s.components[s.compNameIndex[name]]
}

// Terminate ends the run: the tracer flushes its finished tasks and the
// recorder closes its database.
func (s *System) Terminate() {
	s.opTracer.Terminate()

	err := s.recorder.Close()
	if err != nil {
		panic(err)
	}
}

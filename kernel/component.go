package kernel

import (
	"github.com/kestrel-os/kestrel/naming"
	"github.com/kestrel-os/kestrel/queueing"
)

// A Component is a named kernel object that the monitor can list and
// inspect.
type Component interface {
	naming.Named
}

// A MeterProvider is a component that exposes the fill levels of its
// internal queues.
type MeterProvider interface {
	QueueMeters() []queueing.Meter
}

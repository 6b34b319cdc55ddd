package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kestrel-os/kestrel/defcall"
)

type idleClient struct{}

func (idleClient) HandleDeferredCall(defcall.Handle) {}

var _ = Describe("CollectWakeups", func() {
	var (
		scheduler *defcall.Scheduler
		handle    defcall.Handle
		tracer    *captureTracer
	)

	BeforeEach(func() {
		scheduler = defcall.MakeBuilder().Build("Scheduler")

		var err error
		handle, err = scheduler.Register(idleClient{})
		Expect(err).To(BeNil())

		tracer = &captureTracer{}
		CollectWakeups(scheduler, tracer)
	})

	It("should trace a wakeup from set to delivery", func() {
		scheduler.Set(handle)

		Expect(tracer.starts).To(HaveLen(1))

		start := tracer.starts[0]
		Expect(start.ID).To(Equal("Scheduler[0]"))
		Expect(start.Kind).To(Equal("deferred_call"))
		Expect(start.What).To(Equal("wakeup"))
		Expect(start.Location).To(Equal("Scheduler"))

		scheduler.ServiceAll()

		Expect(tracer.ends).To(HaveLen(1))
		Expect(tracer.ends[0].ID).To(Equal("Scheduler[0]"))
	})

	It("should trace one task per pending period", func() {
		scheduler.Set(handle)
		scheduler.Set(handle)

		Expect(tracer.starts).To(HaveLen(1))

		scheduler.ServiceAll()
		scheduler.Set(handle)

		Expect(tracer.starts).To(HaveLen(2))
	})

	It("should refuse a second registration of the same tracer", func() {
		Expect(func() {
			CollectWakeups(scheduler, tracer)
		}).To(Panic())
	})
})

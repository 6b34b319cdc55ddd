package conformance_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kestrel-os/kestrel/conformance"
	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/vmux"
)

var _ = Describe("Virtualized stack", func() {
	var (
		test    *conformance.Test
		loop    *kernel.Loop
		adapter *conformance.ScriptedAdapter
		mux     *vmux.Mux
		a, b    *conformance.Client
	)

	BeforeEach(func() {
		test = conformance.NewTest()
		loop = kernel.MakeBuilder().Build("Kernel")
		adapter = conformance.NewScriptedAdapter("Engine")
		mux = vmux.MakeBuilder().
			WithAdapter(adapter).
			WithScheduler(loop.Scheduler()).
			Build("Mux")

		a = conformance.NewClient(test, "ClientA", 8)
		test.RegisterClient(a)
		a.UseTransmitter(mux.Attach("Mux.Device[0]", 0))

		b = conformance.NewClient(test, "ClientB", 8)
		test.RegisterClient(b)
		b.UseTransmitter(mux.Attach("Mux.Device[1]", 1))
	})

	It("should serve two clients one after the other", func() {
		Expect(a.Transmit(4)).To(BeNil())
		Expect(b.Transmit(4)).To(BeNil())

		Expect(adapter.Started()).To(HaveLen(1))

		adapter.Fire(4, hil.OK)
		Expect(adapter.Started()).To(HaveLen(2))
		adapter.Fire(4, hil.OK)

		loop.RunUntilQuiescent()

		Expect(a.State()).To(Equal(conformance.StateIdle))
		Expect(b.State()).To(Equal(conformance.StateIdle))
		Expect(test.DeliveryOrder()).To(Equal([]string{"ClientA", "ClientB"}))
		test.MustHaveSettledAllCalls()
		test.Ledger().MustHaveNoBufferWith(conformance.HolderCore)
	})

	It("should forward queued requests in submission order", func() {
		c := conformance.NewClient(test, "ClientC", 8)
		test.RegisterClient(c)
		c.UseTransmitter(mux.Attach("Mux.Device[2]", 2))

		Expect(a.Transmit(1)).To(BeNil())
		Expect(b.Transmit(1)).To(BeNil())
		Expect(c.Transmit(1)).To(BeNil())

		adapter.Fire(1, hil.OK)
		adapter.Fire(1, hil.OK)
		adapter.Fire(1, hil.OK)
		loop.RunUntilQuiescent()

		started := adapter.Started()
		Expect(started).To(HaveLen(3))
		Expect(started[0].Addr).To(Equal(uint64(0)))
		Expect(started[1].Addr).To(Equal(uint64(1)))
		Expect(started[2].Addr).To(Equal(uint64(2)))
		Expect(test.DeliveryOrder()).To(
			Equal([]string{"ClientA", "ClientB", "ClientC"}))
	})

	It("should relay an inline refusal and never complete it", func() {
		adapter.Program(conformance.Step{
			Do:   conformance.Reject,
			Code: hil.ErrInvalid,
		})

		serr := a.Transmit(4)

		Expect(serr).NotTo(BeNil())
		Expect(serr.Code).To(Equal(hil.ErrInvalid))
		Expect(a.State()).To(Equal(conformance.StateIdle))
		Expect(a.HoldsBuffer()).To(BeTrue())

		loop.RunUntilQuiescent()

		Expect(a.Completions()).To(Equal(0))
		test.MustHaveSettledAllCalls()
	})

	It("should shield clients from an adapter that completes during start",
		func() {
			adapter.Program(conformance.Step{
				Do:   conformance.CompleteInline,
				Code: hil.OK,
				N:    4,
			})

			Expect(a.Transmit(4)).To(BeNil())
			Expect(a.State()).To(Equal(conformance.StateWaiting))

			loop.RunUntilQuiescent()

			Expect(a.State()).To(Equal(conformance.StateIdle))
			Expect(a.Completions()).To(Equal(1))
			Expect(a.LastN()).To(Equal(4))
		})

	It("should stop a second completion at the multiplexer", func() {
		Expect(a.Transmit(4)).To(BeNil())
		adapter.Fire(4, hil.OK)
		loop.RunUntilQuiescent()

		Expect(func() { adapter.Refire(4, hil.OK) }).To(Panic())
	})

	It("should refuse with busy only when the queue is full", func() {
		tiny := conformance.NewScriptedAdapter("TinyEngine")
		smallMux := vmux.MakeBuilder().
			WithAdapter(tiny).
			WithScheduler(loop.Scheduler()).
			WithPendingCapacity(1).
			Build("SmallMux")

		x := conformance.NewClient(test, "ClientX", 4)
		test.RegisterClient(x)
		x.UseTransmitter(smallMux.Attach("SmallMux.Device[0]", 0))

		y := conformance.NewClient(test, "ClientY", 4)
		test.RegisterClient(y)
		y.UseTransmitter(smallMux.Attach("SmallMux.Device[1]", 1))

		z := conformance.NewClient(test, "ClientZ", 4)
		test.RegisterClient(z)
		z.UseTransmitter(smallMux.Attach("SmallMux.Device[2]", 2))

		Expect(x.Transmit(1)).To(BeNil())
		Expect(y.Transmit(1)).To(BeNil())

		serr := z.Transmit(1)
		Expect(serr.Code).To(Equal(hil.ErrBusy))
		Expect(z.State()).To(Equal(conformance.StateIdle))
		Expect(z.HoldsBuffer()).To(BeTrue())

		tiny.Fire(1, hil.OK)
		tiny.Fire(1, hil.OK)
		loop.RunUntilQuiescent()

		Expect(z.Transmit(1)).To(BeNil())
		tiny.Fire(1, hil.OK)
		loop.RunUntilQuiescent()

		Expect(z.Completions()).To(Equal(1))
		test.MustHaveSettledAllCalls()
	})

	It("should fail loudly when the deferred call registry is full", func() {
		crowded := kernel.MakeBuilder().
			WithSchedulerCapacity(1).
			Build("Crowded")

		first := vmux.MakeBuilder().
			WithAdapter(conformance.NewScriptedAdapter("EngineA")).
			WithScheduler(crowded.Scheduler()).
			Build("MuxA")
		Expect(first).NotTo(BeNil())

		Expect(func() {
			vmux.MakeBuilder().
				WithAdapter(conformance.NewScriptedAdapter("EngineB")).
				WithScheduler(crowded.Scheduler()).
				Build("MuxB")
		}).To(Panic())
	})
})

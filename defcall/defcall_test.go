package defcall

import (
	gomock "go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scheduler", func() {
	var (
		mockCtrl  *gomock.Controller
		client    *MockClient
		scheduler *Scheduler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		client = NewMockClient(mockCtrl)

		scheduler = MakeBuilder().
			WithCapacity(4).
			Build("Scheduler")
	})

	It("should hand out handles in registration order", func() {
		h1, err := scheduler.Register(client)
		Expect(err).To(BeNil())
		Expect(h1).To(Equal(Handle(0)))

		h2, err := scheduler.Register(client)
		Expect(err).To(BeNil())
		Expect(h2).To(Equal(Handle(1)))

		Expect(scheduler.NumRegistered()).To(Equal(2))
	})

	It("should refuse registration beyond capacity", func() {
		for i := 0; i < 4; i++ {
			_, err := scheduler.Register(client)
			Expect(err).To(BeNil())
		}

		_, err := scheduler.Register(client)
		Expect(err).To(MatchError(ErrRegistryFull))
	})

	It("should panic when setting an unregistered handle", func() {
		Expect(func() { scheduler.Set(Handle(0)) }).To(Panic())
	})

	It("should mark handles pending idempotently", func() {
		h, _ := scheduler.Register(client)

		Expect(scheduler.IsPending(h)).To(BeFalse())
		Expect(scheduler.HasPending()).To(BeFalse())

		scheduler.Set(h)
		scheduler.Set(h)

		Expect(scheduler.IsPending(h)).To(BeTrue())
		Expect(scheduler.Size()).To(Equal(1))
	})

	It("should deliver one callback per pass per set handle", func() {
		h, _ := scheduler.Register(client)
		scheduler.Set(h)
		scheduler.Set(h)

		client.EXPECT().HandleDeferredCall(h)

		Expect(scheduler.ServiceAll()).To(Equal(1))
		Expect(scheduler.HasPending()).To(BeFalse())

		Expect(scheduler.ServiceAll()).To(Equal(0))
	})

	It("should service handles in ascending handle order", func() {
		another := NewMockClient(mockCtrl)

		h1, _ := scheduler.Register(client)
		h2, _ := scheduler.Register(another)
		h3, _ := scheduler.Register(client)

		// Set out of order. Delivery order follows registration.
		scheduler.Set(h3)
		scheduler.Set(h1)
		scheduler.Set(h2)

		gomock.InOrder(
			client.EXPECT().HandleDeferredCall(h1),
			another.EXPECT().HandleDeferredCall(h2),
			client.EXPECT().HandleDeferredCall(h3),
		)

		Expect(scheduler.ServiceAll()).To(Equal(3))
	})

	It("should defer a handle set during a pass to the next pass", func() {
		h, _ := scheduler.Register(client)
		scheduler.Set(h)

		first := client.EXPECT().HandleDeferredCall(h).
			Do(func(h Handle) {
				scheduler.Set(h)
			})
		second := client.EXPECT().HandleDeferredCall(h).After(first)
		_ = second

		Expect(scheduler.ServiceAll()).To(Equal(1))
		Expect(scheduler.IsPending(h)).To(BeTrue())
		Expect(scheduler.ServiceAll()).To(Equal(1))
		Expect(scheduler.HasPending()).To(BeFalse())
	})

	It("should wake the waker on the pending edge only", func() {
		waker := NewMockWaker(mockCtrl)
		scheduler = MakeBuilder().
			WithCapacity(4).
			WithWaker(waker).
			Build("Scheduler")

		h, _ := scheduler.Register(client)

		waker.EXPECT().Wake()
		scheduler.Set(h)
		scheduler.Set(h)
	})
})

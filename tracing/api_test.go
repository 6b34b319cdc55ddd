package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/kestrel-os/kestrel/hooking"
)

// hookableDomain is a concrete NamedHookable for the specs that need real
// hook delivery.
type hookableDomain struct {
	hooking.HookableBase
}

func (d *hookableDomain) Name() string { return "domain" }

var _ = Describe("Api", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *MockNamedHookable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewMockNamedHookable(mockCtrl)
		domain.EXPECT().NumHooks().Return(1).AnyTimes()
		domain.EXPECT().InvokeHook(gomock.Any()).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic if ID is not given", func() {
		domain.EXPECT().Name().Return("domain").AnyTimes()
		Expect(func() {
			StartTask("", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if domain is nil", func() {
		Expect(func() {
			StartTask("id", "123", nil, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if the domain's name is empty", func() {
		domain.EXPECT().Name().Return("").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if kind is empty", func() {
		domain.EXPECT().Name().Return("domain").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "", "what", nil)
		}).Should(Panic())
	})

	It("should panic if what is empty", func() {
		domain.EXPECT().Name().Return("domain").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "kind", "", nil)
		}).Should(Panic())
	})

	It("should not build a task when nothing hooks the domain", func() {
		quiet := NewMockNamedHookable(mockCtrl)
		quiet.EXPECT().NumHooks().Return(0).AnyTimes()

		StartTask("id", "", quiet, "kind", "what", nil)
		AddTaskStep("id", quiet, "step")
		EndTask("id", quiet)
	})

	It("should deliver start, step, and end to a collected tracer", func() {
		tracer := NewMockTracer(mockCtrl)
		base := &hookableDomain{}
		CollectTrace(base, tracer)

		tracer.EXPECT().StartTask(gomock.Any()).
			Do(func(task Task) {
				Expect(task.ID).To(Equal("id"))
				Expect(task.Kind).To(Equal("kind"))
				Expect(task.Location).To(Equal("domain"))
			})
		StartTask("id", "", base, "kind", "what", nil)

		tracer.EXPECT().StepTask(gomock.Any()).
			Do(func(task Task) {
				Expect(task.Steps).To(HaveLen(1))
				Expect(task.Steps[0].What).To(Equal("milestone"))
			})
		AddTaskStep("id", base, "milestone")

		tracer.EXPECT().EndTask(gomock.Any()).
			Do(func(task Task) {
				Expect(task.ID).To(Equal("id"))
			})
		EndTask("id", base)
	})

	It("should refuse to add the same tracer twice", func() {
		tracer := NewMockTracer(mockCtrl)
		base := &hookableDomain{}

		CollectTrace(base, tracer)

		Expect(func() {
			CollectTrace(base, tracer)
		}).To(Panic())
	})
})

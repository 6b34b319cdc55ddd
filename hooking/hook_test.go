package hooking

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	invoked int
	lastCtx HookCtx
}

func (h *countingHook) Func(ctx HookCtx) {
	h.invoked++
	h.lastCtx = ctx
}

type namedHookable struct {
	HookableBase
	name string
}

func (h *namedHookable) Name() string {
	return h.name
}

var _ = Describe("HookableBase", func() {
	var (
		hookable *HookableBase
		hook     *countingHook
	)

	BeforeEach(func() {
		hookable = &HookableBase{}
		hook = &countingHook{}
	})

	It("should register hooks", func() {
		hookable.AcceptHook(hook)

		Expect(hookable.NumHooks()).To(Equal(1))
		Expect(hookable.Hooks()).To(HaveLen(1))
	})

	It("should panic on duplicated hooks", func() {
		hookable.AcceptHook(hook)

		Expect(func() { hookable.AcceptHook(hook) }).To(Panic())
	})

	It("should invoke all hooks", func() {
		anotherHook := &countingHook{}
		hookable.AcceptHook(hook)
		hookable.AcceptHook(anotherHook)

		pos := &HookPos{Name: "TestPos"}
		hookable.InvokeHook(HookCtx{Pos: pos, Item: "item"})

		Expect(hook.invoked).To(Equal(1))
		Expect(anotherHook.invoked).To(Equal(1))
		Expect(hook.lastCtx.Pos).To(BeIdenticalTo(pos))
	})
})

var _ = Describe("ActivityLogger", func() {
	var (
		buf      bytes.Buffer
		domain   *namedHookable
		activity *ActivityLogger
	)

	BeforeEach(func() {
		buf.Reset()
		domain = &namedHookable{name: "Comp"}
		activity = NewActivityLogger(log.New(&buf, "", 0))
		domain.AcceptHook(activity)
	})

	It("should log the domain name and position", func() {
		domain.InvokeHook(HookCtx{
			Domain: domain,
			Pos:    &HookPos{Name: "Submit"},
		})

		Expect(buf.String()).To(Equal("Comp, Submit\n"))
	})

	It("should log the item and detail when present", func() {
		domain.InvokeHook(HookCtx{
			Domain: domain,
			Pos:    &HookPos{Name: "Deliver"},
			Item:   "req",
			Detail: 3,
		})

		Expect(buf.String()).To(Equal("Comp, Deliver, req, 3\n"))
	})

	It("should mark domains without a name", func() {
		bare := &HookableBase{}
		logger := NewActivityLogger(log.New(&buf, "", 0))
		bare.AcceptHook(logger)

		bare.InvokeHook(HookCtx{
			Domain: bare,
			Pos:    &HookPos{Name: "Set"},
			Item:   7,
		})

		Expect(buf.String()).To(Equal("?, Set, 7\n"))
	})
})

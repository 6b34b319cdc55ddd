package conformance

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kestrel-os/kestrel/hil"
)

type capture struct {
	req  *hil.Request
	n    int
	code hil.ErrorCode
}

type captureSink struct {
	captures []capture
}

func (s *captureSink) Complete(req *hil.Request, n int, code hil.ErrorCode) {
	s.captures = append(s.captures, capture{req, n, code})
}

func buildReq(kind hil.OpKind, n int) *hil.Request {
	return hil.MakeRequestBuilder().
		WithKind(kind).
		WithLength(n).
		WithBuffer(hil.NewBuffer(n)).
		Build()
}

var _ = Describe("ScriptedAdapter", func() {
	var (
		sink    *captureSink
		adapter *ScriptedAdapter
	)

	BeforeEach(func() {
		sink = &captureSink{}
		adapter = NewScriptedAdapter("Adapter")
		adapter.SetSink(sink)
	})

	It("should accept by default and complete on fire", func() {
		req := buildReq(hil.OpTransmit, 4)

		Expect(adapter.Start(req)).To(BeNil())
		Expect(adapter.InFlight()).To(BeTrue())
		Expect(sink.captures).To(BeEmpty())

		adapter.Fire(4, hil.OK)

		Expect(adapter.InFlight()).To(BeFalse())
		Expect(sink.captures).To(HaveLen(1))
		Expect(sink.captures[0].req).To(BeIdenticalTo(req))
		Expect(sink.captures[0].code).To(Equal(hil.OK))
	})

	It("should refuse busy without taking the buffer", func() {
		adapter.Program(Step{Do: Busy})

		serr := adapter.Start(buildReq(hil.OpTransmit, 4))

		Expect(serr.Code).To(Equal(hil.ErrBusy))
		Expect(serr.Buf).To(BeNil())
		Expect(adapter.InFlight()).To(BeFalse())
	})

	It("should hand the buffer back on reject", func() {
		adapter.Program(Step{Do: Reject, Code: hil.ErrInvalid})
		req := buildReq(hil.OpTransmit, 4)

		serr := adapter.Start(req)

		Expect(serr.Code).To(Equal(hil.ErrInvalid))
		Expect(serr.Buf).To(BeIdenticalTo(req.Buf))
	})

	It("should complete during start when told to", func() {
		adapter.Program(Step{Do: CompleteInline, Code: hil.OK, N: 4})

		Expect(adapter.Start(buildReq(hil.OpTransmit, 4))).To(BeNil())

		Expect(sink.captures).To(HaveLen(1))
		Expect(adapter.InFlight()).To(BeFalse())
	})

	It("should repeat a completion on refire", func() {
		req := buildReq(hil.OpTransmit, 4)
		adapter.Start(req)
		adapter.Fire(4, hil.OK)

		adapter.Refire(4, hil.OK)

		Expect(sink.captures).To(HaveLen(2))
		Expect(sink.captures[1].req).To(BeIdenticalTo(req))
	})

	It("should panic when handed overlapping operations", func() {
		Expect(adapter.Start(buildReq(hil.OpTransmit, 1))).To(BeNil())

		Expect(func() { adapter.Start(buildReq(hil.OpTransmit, 1)) }).To(
			PanicWith("adapter handed a second operation while one is in flight"))
	})

	It("should panic when fired with nothing in flight", func() {
		Expect(func() { adapter.Fire(0, hil.OK) }).To(Panic())
	})

	It("should run the script in order", func() {
		adapter.Program(
			Step{Do: Busy},
			Step{Do: Reject, Code: hil.ErrSize},
		)

		Expect(adapter.Start(buildReq(hil.OpTransmit, 1)).Code).
			To(Equal(hil.ErrBusy))
		Expect(adapter.Start(buildReq(hil.OpTransmit, 1)).Code).
			To(Equal(hil.ErrSize))
		Expect(adapter.Start(buildReq(hil.OpTransmit, 1))).To(BeNil())
		Expect(adapter.Started()).To(HaveLen(1))
	})
})

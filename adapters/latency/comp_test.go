package latency

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/kernel"
)

type completion struct {
	req  *hil.Request
	n    int
	code hil.ErrorCode
}

// safeSink records completions from any goroutine.
type safeSink struct {
	mu          sync.Mutex
	completions []completion
}

func (s *safeSink) Complete(req *hil.Request, n int, code hil.ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completions = append(s.completions, completion{req, n, code})
}

func (s *safeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.completions)
}

func (s *safeSink) at(i int) completion {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.completions[i]
}

func receiveReq(n int) *hil.Request {
	return hil.MakeRequestBuilder().
		WithKind(hil.OpReceive).
		WithLength(n).
		WithBuffer(hil.NewBuffer(n)).
		Build()
}

func transmitReq(n int) *hil.Request {
	return hil.MakeRequestBuilder().
		WithKind(hil.OpTransmit).
		WithLength(n).
		WithBuffer(hil.NewBuffer(n)).
		Build()
}

var _ = Describe("Comp", func() {
	var (
		sink *safeSink
		comp *Comp
	)

	BeforeEach(func() {
		sink = &safeSink{}
		comp = MakeBuilder().
			WithLatency(time.Millisecond).
			Build("Engine")
		comp.SetSink(sink)
	})

	It("should refuse to start while powered down", func() {
		req := transmitReq(4)

		serr := comp.Start(req)

		Expect(serr).NotTo(BeNil())
		Expect(serr.Code).To(Equal(hil.ErrOff))
		Expect(serr.Buf).To(BeIdenticalTo(req.Buf))
	})

	It("should complete a transmit after the service time", func() {
		comp.Enable()
		req := transmitReq(4)

		Expect(comp.Start(req)).To(BeNil())
		Expect(sink.count()).To(Equal(0))

		Eventually(sink.count).Should(Equal(1))
		Expect(sink.at(0).req).To(BeIdenticalTo(req))
		Expect(sink.at(0).n).To(Equal(4))
		Expect(sink.at(0).code).To(Equal(hil.OK))
		Expect(comp.TotalBytes()).To(Equal(uint64(4)))
		Expect(comp.TotalOps()).To(Equal(uint64(1)))
	})

	It("should fill receive buffers with the pattern byte", func() {
		comp = MakeBuilder().
			WithLatency(time.Millisecond).
			WithFillPattern(0x5A).
			Build("Engine")
		comp.SetSink(sink)
		comp.Enable()

		req := receiveReq(3)
		Expect(comp.Start(req)).To(BeNil())

		Eventually(sink.count).Should(Equal(1))
		Expect(req.Buf.Bytes).To(Equal([]byte{0x5A, 0x5A, 0x5A}))
	})

	It("should refuse a second operation while one is in flight", func() {
		comp = MakeBuilder().
			WithLatency(time.Hour).
			Build("Engine")
		comp.SetSink(sink)
		comp.Enable()

		Expect(comp.Start(transmitReq(1))).To(BeNil())

		serr := comp.Start(transmitReq(1))
		Expect(serr.Code).To(Equal(hil.ErrBusy))
		Expect(serr.Buf).To(BeNil())

		Expect(comp.Abort()).To(Equal(hil.OK))
	})

	It("should cancel on abort and complete once with the cancelled code", func() {
		comp = MakeBuilder().
			WithLatency(time.Hour).
			Build("Engine")
		comp.SetSink(sink)
		comp.Enable()

		req := transmitReq(4)
		Expect(comp.Start(req)).To(BeNil())

		Expect(comp.Abort()).To(Equal(hil.OK))

		Expect(sink.count()).To(Equal(1))
		Expect(sink.at(0).code).To(Equal(hil.ErrCancelled))
		Expect(sink.at(0).n).To(Equal(0))

		Consistently(sink.count, 50*time.Millisecond).Should(Equal(1))
	})

	It("should report abort with nothing in flight as invalid", func() {
		comp.Enable()

		Expect(comp.Abort()).To(Equal(hil.ErrInvalid))
	})

	It("should refuse to power down mid-operation", func() {
		comp = MakeBuilder().
			WithLatency(time.Hour).
			Build("Engine")
		comp.SetSink(sink)
		comp.Enable()

		Expect(comp.Start(transmitReq(1))).To(BeNil())
		Expect(comp.Disable()).To(Equal(hil.ErrBusy))

		comp.Abort()
		Expect(comp.Disable()).To(Equal(hil.OK))
	})

	It("should validate configuration", func() {
		Expect(comp.Configure(hil.Params{})).To(Equal(hil.ErrInvalid))
		Expect(comp.Configure(hil.Params{ClockHz: 1000, WordBits: 40})).
			To(Equal(hil.ErrSize))
		Expect(comp.Configure(hil.Params{ClockHz: 1000, WordBits: 8})).
			To(Equal(hil.OK))
	})

	It("should route completions through the loop when wired", func() {
		loop := kernel.MakeBuilder().Build("Kernel")
		comp = MakeBuilder().
			WithLoop(loop).
			WithLatency(time.Millisecond).
			Build("Engine")
		comp.SetSink(sink)
		comp.Enable()

		done := make(chan struct{})
		go func() {
			loop.Run()
			close(done)
		}()

		Expect(comp.Start(transmitReq(2))).To(BeNil())

		Eventually(sink.count).Should(Equal(1))
		Expect(sink.at(0).n).To(Equal(2))

		loop.Stop()
		Eventually(done).Should(BeClosed())
	})
})

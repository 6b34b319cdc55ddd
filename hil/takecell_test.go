package hil

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TakeCell", func() {
	var cell TakeCell[*Buffer]

	BeforeEach(func() {
		cell = TakeCell[*Buffer]{}
	})

	It("should start empty", func() {
		Expect(cell.Occupied()).To(BeFalse())

		_, ok := cell.Take()
		Expect(ok).To(BeFalse())
	})

	It("should hold what is put in", func() {
		buf := NewBuffer(8)
		cell.Put(buf)

		Expect(cell.Occupied()).To(BeTrue())

		got, ok := cell.Take()
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(buf))
		Expect(cell.Occupied()).To(BeFalse())
	})

	It("should replace on second put", func() {
		first := NewBuffer(8)
		second := NewBuffer(8)

		cell.Put(first)
		cell.Put(second)

		got, ok := cell.Take()
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(second))
	})
})

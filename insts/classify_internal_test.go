package insts

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func countMatches[F any](matchers []classMatcher[F], f F) int {
	n := 0
	for _, m := range matchers {
		if m.match(f) {
			n++
		}
	}
	return n
}

var _ = Describe("Classification", func() {
	It("should match at most one load/store family for every field combination", func() {
		for op0 := uint32(0); op0 < 16; op0++ {
			for op1 := uint32(0); op1 < 2; op1++ {
				for op2 := uint32(0); op2 < 4; op2++ {
					for op3 := uint32(0); op3 < 64; op3++ {
						for op4 := uint32(0); op4 < 4; op4++ {
							f := lsFields{op0: op0, op1: op1, op2: op2, op3: op3, op4: op4}
							Expect(countMatches(loadStoreClasses, f)).To(BeNumerically("<=", 1),
								"fields %+v", f)
						}
					}
				}
			}
		}
	})

	It("should never classify outside the load/store and system groups", func() {
		words := []uint32{0x9100A820, 0x8B020020, 0x1E602820, 0x0E208400}
		for _, w := range words {
			Expect(GroupOf(w)).To(Equal(GroupOther), "word 0x%08X", w)
			Expect(Classify(w)).To(Equal(ClassUnknown))
		}
	})

	It("should agree between Classify and Decode", func() {
		d := NewDecoder()
		for _, w := range []uint32{0xA9000C02, 0xF9000401, 0xF8627801, 0x3C810021, 0xC8A17C02, 0xD50B7420} {
			desc, err := d.Decode(w)
			Expect(err).NotTo(HaveOccurred())
			Expect(desc.Class).To(Equal(Classify(w)))
		}
	})
})

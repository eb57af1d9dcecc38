package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/alignfix/emu"
)

var _ = Describe("Transfer", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
		Expect(memory.Map(0x1000, 0x1000)).To(Succeed())
	})

	pattern := func(n int) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(0xA0 + i)
		}
		return b
	}

	It("should round-trip every operand width at every alignment", func() {
		for _, n := range []int{1, 2, 4, 8, 16} {
			for offset := uint64(0); offset < 16; offset++ {
				addr := 0x1100 + offset
				src := pattern(n)
				Expect(emu.Transfer(memory, emu.ToUser, addr, src)).To(Succeed())

				dst := make([]byte, n)
				Expect(emu.Transfer(memory, emu.FromUser, addr, dst)).To(Succeed())
				Expect(dst).To(Equal(src), "width %d at 0x%X", n*8, addr)
			}
		}
	})

	It("should use the largest aligned unit at each step", func() {
		// 0x1101: 1 byte, then 2 at 0x1102, then 4 at 0x1104, then 1 at 0x1108.
		Expect(emu.Transfer(memory, emu.ToUser, 0x1101, pattern(8))).To(Succeed())

		stats := memory.Stats()
		Expect(stats.Writes8).To(Equal(uint64(2)))
		Expect(stats.Writes16).To(Equal(uint64(1)))
		Expect(stats.Writes32).To(Equal(uint64(1)))
	})

	It("should use word units for an aligned buffer", func() {
		Expect(emu.Transfer(memory, emu.ToUser, 0x1100, pattern(16))).To(Succeed())

		Expect(memory.Stats().Writes32).To(Equal(uint64(4)))
		Expect(memory.Stats().Writes()).To(Equal(uint64(4)))
	})

	It("should keep units written before a fault", func() {
		err := emu.Transfer(memory, emu.ToUser, 0x1FFC, pattern(8))
		Expect(err).To(MatchError(emu.ErrFault))

		data, err := memory.Dump(0x1FFC, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(pattern(4)))
	})

	Describe("TransferFixed", func() {
		It("should round-trip using byte accesses only", func() {
			src := pattern(8)
			Expect(emu.TransferFixed(memory, emu.ToUser, 0x1103, src)).To(Succeed())

			dst := make([]byte, 8)
			Expect(emu.TransferFixed(memory, emu.FromUser, 0x1103, dst)).To(Succeed())
			Expect(dst).To(Equal(src))

			stats := memory.Stats()
			Expect(stats.Writes8).To(Equal(uint64(8)))
			Expect(stats.Reads8).To(Equal(uint64(8)))
		})

		It("should reject other sizes", func() {
			err := emu.TransferFixed(memory, emu.ToUser, 0x1100, make([]byte, 3))
			Expect(err).To(MatchError(emu.ErrTransferSize))
		})
	})

	Describe("ZeroBlock", func() {
		It("should zero exactly the requested bytes", func() {
			Expect(memory.Load(0x1000, bytesOf(0xFF, 0x100))).To(Succeed())

			Expect(emu.ZeroBlock(memory, 0x1040, 64)).To(Succeed())

			data, err := memory.Dump(0x1000, 0x100)
			Expect(err).NotTo(HaveOccurred())
			Expect(data[:0x40]).To(Equal(bytesOf(0xFF, 0x40)))
			Expect(data[0x40:0x80]).To(Equal(bytesOf(0, 0x40)))
			Expect(data[0x80:]).To(Equal(bytesOf(0xFF, 0x80)))
		})

		It("should reject blocks above the architectural maximum", func() {
			Expect(emu.ZeroBlock(memory, 0x1000, emu.MaxZeroBlock*2)).
				To(MatchError(emu.ErrTransferSize))
		})
	})
})

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

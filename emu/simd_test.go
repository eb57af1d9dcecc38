package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/alignfix/emu"
	"github.com/sarchlab/alignfix/insts"
)

var _ = Describe("SIMDRegFile", func() {
	var simdRegFile *emu.SIMDRegFile

	BeforeEach(func() {
		simdRegFile = emu.NewSIMDRegFile()
	})

	It("should read and write full registers and lanes", func() {
		simdRegFile.WriteQ(5, 0x1111, 0x2222)

		lo, hi := simdRegFile.ReadQ(5)
		Expect(lo).To(Equal(uint64(0x1111)))
		Expect(hi).To(Equal(uint64(0x2222)))
		Expect(simdRegFile.ReadLane64(5, 1)).To(Equal(uint64(0x2222)))
	})

	It("should open and close one activation window", func() {
		vf, err := simdRegFile.Begin()
		Expect(err).NotTo(HaveOccurred())
		Expect(simdRegFile.Active()).To(BeTrue())

		vf.WriteQ(1, 7, 8)
		simdRegFile.End()

		Expect(simdRegFile.Active()).To(BeFalse())
		Expect(simdRegFile.ReadLane64(1, 0)).To(Equal(uint64(7)))
		Expect(simdRegFile.Activations()).To(Equal(uint64(1)))
	})

	It("should refuse a nested activation without closing the outer one", func() {
		_, err := simdRegFile.Begin()
		Expect(err).NotTo(HaveOccurred())

		_, err = simdRegFile.Begin()
		Expect(err).To(MatchError(emu.ErrVectorNested))
		simdRegFile.End()

		Expect(simdRegFile.Active()).To(BeTrue())
		simdRegFile.End()
		Expect(simdRegFile.Active()).To(BeFalse())
	})

	It("should panic when a window is used after End", func() {
		vf, err := simdRegFile.Begin()
		Expect(err).NotTo(HaveOccurred())
		simdRegFile.End()

		Expect(func() { vf.ReadQ(0) }).To(Panic())
	})

	It("should report unavailability", func() {
		simdRegFile.SetAvailable(false)

		_, err := simdRegFile.Begin()
		Expect(err).To(MatchError(emu.ErrVectorUnavailable))
		simdRegFile.End()
		Expect(simdRegFile.Active()).To(BeFalse())
	})
})

var _ = Describe("Register access", func() {
	var (
		regFile     *emu.RegFile
		simdRegFile *emu.SIMDRegFile
		frame       *emu.TrapFrame
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		simdRegFile = emu.NewSIMDRegFile()
		frame = emu.NewTrapFrame(regFile, simdRegFile, emu.NewMemory())
	})

	It("should read general-purpose registers without activating vectors", func() {
		regFile.X[4] = 0xABCD

		v, err := emu.ReadRegister(frame, insts.GPR(4))
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(emu.Vec128{Lo: 0xABCD}))
		Expect(simdRegFile.Activations()).To(BeZero())
	})

	It("should read XZR as zero and discard writes to it", func() {
		v, err := emu.ReadRegister(frame, insts.GPR(31))
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Lo).To(BeZero())

		Expect(emu.WriteRegister(frame, insts.GPR(31), emu.Vec128{Lo: 5})).To(Succeed())
		Expect(regFile.X).To(Equal([31]uint64{}))
	})

	It("should access several vector registers in one window", func() {
		simdRegFile.WriteQ(0, 1, 2)
		simdRegFile.WriteQ(1, 3, 4)

		vals, err := emu.ReadRegisters(frame, insts.VReg(0), insts.VReg(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(Equal([]emu.Vec128{{Lo: 1, Hi: 2}, {Lo: 3, Hi: 4}}))
		Expect(simdRegFile.Activations()).To(Equal(uint64(1)))
		Expect(simdRegFile.Active()).To(BeFalse())
	})

	It("should fail instead of writing when vectors are unavailable", func() {
		simdRegFile.SetAvailable(false)

		err := emu.WriteRegister(frame, insts.VReg(2), emu.Vec128{Lo: 9})
		Expect(err).To(MatchError(emu.ErrVectorUnavailable))
		Expect(simdRegFile.Active()).To(BeFalse())
		Expect(simdRegFile.ReadLane64(2, 0)).To(BeZero())
	})

	It("should fail when the task has no vector unit", func() {
		frame = emu.NewTrapFrame(regFile, nil, emu.NewMemory())

		_, err := emu.ReadRegister(frame, insts.VReg(0))
		Expect(err).To(MatchError(emu.ErrVectorUnavailable))
	})

	It("should fail on a nested activation and leave the outer one open", func() {
		_, err := simdRegFile.Begin()
		Expect(err).NotTo(HaveOccurred())

		_, err = emu.ReadRegister(frame, insts.VReg(0))
		Expect(err).To(MatchError(emu.ErrVectorNested))
		Expect(simdRegFile.Active()).To(BeTrue())
		simdRegFile.End()
	})
})

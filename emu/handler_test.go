package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/alignfix/emu"
	"github.com/sarchlab/alignfix/insts"
)

var _ = Describe("Handler", func() {
	var (
		memory  *emu.Memory
		regFile *emu.RegFile
		frame   *emu.TrapFrame
		handler *emu.Handler
		trace   *emu.InstructionTrace
		hook    *test.Hook
	)

	placeInstruction := func(word uint32) {
		Expect(memory.Load(codeBase, []byte{
			byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24),
		})).To(Succeed())
	}

	BeforeEach(func() {
		memory = emu.NewMemory()
		Expect(memory.Map(dataBase, dataSize)).To(Succeed())
		Expect(memory.Map(codeBase, 0x1000)).To(Succeed())

		regFile = &emu.RegFile{PC: codeBase}
		frame = emu.NewTrapFrame(regFile, emu.NewSIMDRegFile(), memory)

		var logger *logrus.Logger
		logger, hook = test.NewNullLogger()
		trace = emu.NewInstructionTrace(logger)

		handler = emu.NewHandler(
			emu.NewEmulator(memory, emu.WithLogger(logger)),
			emu.WithInstructionTrace(trace),
		)
	})

	It("should fix up STP X2, X3, [X0]", func() {
		placeInstruction(0xA9000C02)
		regFile.X[0] = 0x1000
		regFile.X[2] = 0x1111
		regFile.X[3] = 0x2222

		Expect(handler.HandleAlignmentFault(0x1000, frame)).To(Succeed())

		Expect(memory.Uint64(0x1000)).To(Equal(uint64(0x1111)))
		Expect(memory.Uint64(0x1008)).To(Equal(uint64(0x2222)))
		Expect(regFile.PC).To(Equal(uint64(codeBase + 4)))
	})

	It("should reject a CAS with a non-reserved Rt2 without side effects", func() {
		placeInstruction(0xC8A10002)
		regFile.X[0] = 0x1003
		regFile.X[1] = 0x5
		before := regFile.X

		err := handler.HandleAlignmentFault(0x1003, frame)
		Expect(err).To(MatchError(insts.ErrUnsupported))

		var handlerErr *emu.HandlerError
		Expect(errors.As(err, &handlerErr)).To(BeTrue())
		Expect(handlerErr.Stage).To(Equal(emu.StageClassified))
		Expect(handlerErr.Word).To(Equal(uint32(0xC8A10002)))

		Expect(memory.Stats().Writes()).To(BeZero())
		Expect(regFile.X).To(Equal(before))
		Expect(regFile.PC).To(Equal(uint64(codeBase)))
	})

	It("should log the raw classification fields of a rejected word", func() {
		placeInstruction(0xC8A10002)
		hook.Reset()

		Expect(handler.HandleAlignmentFault(0x1003, frame)).NotTo(Succeed())

		entry := hook.LastEntry()
		Expect(entry).NotTo(BeNil())
		Expect(entry.Level).To(Equal(logrus.WarnLevel))
		Expect(entry.Data).To(HaveKeyWithValue("word", "0xC8A10002"))
		Expect(entry.Data).To(HaveKeyWithValue("class", "cas"))
		Expect(entry.Data).To(HaveKey("reason"))
		Expect(entry.Data).To(HaveKey("op0"))
		Expect(entry.Data).To(HaveKey("op4"))
	})

	It("should report an unrecognized word as failed after fetch", func() {
		placeInstruction(0x9100A820) // ADD X0, X1, #42

		err := handler.HandleAlignmentFault(0x1000, frame)
		Expect(err).To(MatchError(insts.ErrUnrecognized))

		var handlerErr *emu.HandlerError
		Expect(errors.As(err, &handlerErr)).To(BeTrue())
		Expect(handlerErr.Stage).To(Equal(emu.StageFetched))
	})

	It("should fail when the instruction cannot be fetched", func() {
		regFile.PC = 0x40000

		err := handler.HandleAlignmentFault(0x1000, frame)
		Expect(err).To(MatchError(emu.ErrFetch))
		Expect(err).To(MatchError(emu.ErrFault))

		var handlerErr *emu.HandlerError
		Expect(errors.As(err, &handlerErr)).To(BeTrue())
		Expect(handlerErr.Stage).To(Equal(emu.StageReceived))
		Expect(regFile.PC).To(Equal(uint64(0x40000)))
	})

	It("should report memory faults after decoding", func() {
		placeInstruction(0xA9000C02)
		regFile.X[0] = 0x30000

		err := handler.HandleAlignmentFault(0x30000, frame)
		Expect(err).To(MatchError(emu.ErrFault))

		var handlerErr *emu.HandlerError
		Expect(errors.As(err, &handlerErr)).To(BeTrue())
		Expect(handlerErr.Stage).To(Equal(emu.StageDecoded))
		Expect(hook.LastEntry().Data).To(HaveKeyWithValue("addr", "0x30000"))
		Expect(regFile.PC).To(Equal(uint64(codeBase)))
	})

	It("should record each distinct word once", func() {
		placeInstruction(0xA9000C02)
		regFile.X[0] = 0x1000

		Expect(handler.HandleAlignmentFault(0x1000, frame)).To(Succeed())
		regFile.PC = codeBase
		Expect(handler.HandleAlignmentFault(0x1000, frame)).To(Succeed())

		Expect(trace.Len()).To(Equal(1))
		Expect(trace.Words()).To(Equal([]uint32{0xA9000C02}))

		infos := 0
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.InfoLevel {
				infos++
			}
		}
		Expect(infos).To(Equal(1))
	})
})

var _ = Describe("InstructionTrace", func() {
	It("should report only new words and forget them on Reset", func() {
		logger, hook := test.NewNullLogger()
		trace := emu.NewInstructionTrace(logger)

		Expect(trace.Observe(0x3D800020, 0x400000)).To(BeTrue())
		Expect(trace.Observe(0x3C810021, 0x400004)).To(BeTrue())
		Expect(trace.Observe(0x3D800020, 0x400008)).To(BeFalse())

		Expect(trace.Words()).To(Equal([]uint32{0x3C810021, 0x3D800020}))
		Expect(hook.AllEntries()).To(HaveLen(2))
		Expect(hook.LastEntry().Data).To(HaveKeyWithValue("word", "0x3C810021"))

		trace.Reset()
		Expect(trace.Len()).To(BeZero())
		Expect(trace.Observe(0x3D800020, 0x400000)).To(BeTrue())
	})
})

package emu_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/alignfix/emu"
)

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("should report 64-byte DC ZVA blocks", func() {
			config := emu.DefaultConfig()

			Expect(config.Validate()).To(Succeed())
			Expect(emu.DCZID(config.DCZID).BlockSize()).To(Equal(uint64(64)))
			Expect(emu.DCZID(config.DCZID).Prohibited()).To(BeFalse())
			Expect(config.Level()).To(Equal(logrus.InfoLevel))
		})
	})

	Describe("Validate", func() {
		It("should reject a block size above 2048 bytes", func() {
			config := emu.DefaultConfig()
			config.DCZID = 0xA
			Expect(config.Validate()).NotTo(Succeed())
		})

		It("should accept a prohibited DC ZVA", func() {
			config := emu.DefaultConfig()
			config.DCZID = 0x14
			Expect(config.Validate()).To(Succeed())
		})

		It("should reject reserved DCZID bits", func() {
			config := emu.DefaultConfig()
			config.DCZID = 0x24
			Expect(config.Validate()).NotTo(Succeed())
		})

		It("should reject an unknown log level", func() {
			config := emu.DefaultConfig()
			config.LogLevel = "chatty"
			Expect(config.Validate()).NotTo(Succeed())
		})
	})

	Describe("LoadConfig and SaveConfig", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("should round-trip through a file", func() {
			config := emu.DefaultConfig()
			config.DCZID = 0x2
			config.AlignZeroBlock = true
			config.TraceNewInstructions = true
			config.LogLevel = "debug"

			path := filepath.Join(dir, "alignfix.json")
			Expect(config.SaveConfig(path)).To(Succeed())

			loaded, err := emu.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(config))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(dir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"trace_new_instructions": true}`), 0644)).To(Succeed())

			loaded, err := emu.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.DCZID).To(Equal(uint64(emu.DefaultDCZID)))
			Expect(loaded.TraceNewInstructions).To(BeTrue())
		})

		It("should fail on a missing file", func() {
			_, err := emu.LoadConfig(filepath.Join(dir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})

		It("should fail on malformed JSON", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte(`{`), 0644)).To(Succeed())

			_, err := emu.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should copy independently", func() {
			config := emu.DefaultConfig()
			clone := config.Clone()
			clone.DCZID = 0x10

			Expect(config.DCZID).To(Equal(uint64(emu.DefaultDCZID)))
		})
	})

	Describe("NewHandlerFromConfig", func() {
		It("should apply the configured DCZID_EL0", func() {
			memory := emu.NewMemory()
			Expect(memory.Map(dataBase, dataSize)).To(Succeed())
			Expect(memory.Map(codeBase, 0x1000)).To(Succeed())
			Expect(memory.Load(codeBase, []byte{0x20, 0x74, 0x0B, 0xD5})).To(Succeed()) // DC ZVA, X0

			config := emu.DefaultConfig()
			config.DCZID = 0x14
			logger, _ := test.NewNullLogger()

			handler, err := emu.NewHandlerFromConfig(config, memory, logger)
			Expect(err).NotTo(HaveOccurred())

			regFile := &emu.RegFile{PC: codeBase}
			regFile.X[0] = 0x1040
			frame := emu.NewTrapFrame(regFile, nil, memory)

			Expect(handler.HandleAlignmentFault(0x1040, frame)).To(MatchError(emu.ErrDZProhibited))
		})

		It("should zero the enclosing block when aligned zeroing is set", func() {
			memory := emu.NewMemory()
			Expect(memory.Map(dataBase, dataSize)).To(Succeed())
			Expect(memory.Map(codeBase, 0x1000)).To(Succeed())
			Expect(memory.Load(codeBase, []byte{0x20, 0x74, 0x0B, 0xD5})).To(Succeed()) // DC ZVA, X0
			Expect(memory.Load(dataBase, bytesOf(0xFF, 0x100))).To(Succeed())

			config := emu.DefaultConfig()
			config.AlignZeroBlock = true
			logger, _ := test.NewNullLogger()

			handler, err := emu.NewHandlerFromConfig(config, memory, logger)
			Expect(err).NotTo(HaveOccurred())

			regFile := &emu.RegFile{PC: codeBase}
			regFile.X[0] = 0x1071
			frame := emu.NewTrapFrame(regFile, nil, memory)

			Expect(handler.HandleAlignmentFault(0x1071, frame)).To(Succeed())

			data, err := memory.Dump(dataBase, 0x100)
			Expect(err).NotTo(HaveOccurred())
			Expect(data[0x3F]).To(Equal(byte(0xFF)))
			Expect(data[0x40:0x80]).To(Equal(bytesOf(0, 0x40)))
			Expect(data[0x80]).To(Equal(byte(0xFF)))
		})

		It("should refuse an invalid config", func() {
			config := emu.DefaultConfig()
			config.LogLevel = "chatty"

			_, err := emu.NewHandlerFromConfig(config, emu.NewMemory(), nil)
			Expect(err).To(HaveOccurred())
		})
	})
})

// Package emu provides emulation of ARM64 instructions that raised a
// user-space alignment fault.
//
// The Emulator redoes a decoded access with naturally aligned unit
// accesses, and the Handler drives a whole fault from instruction fetch to
// PC advance. RegFile, SIMDRegFile, Memory and TrapFrame form a synthetic
// trap context for tests and offline replay.
package emu

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/alignfix/insts"
)

// InstructionBytes is the size of an instruction word.
const InstructionBytes = 4

// ErrDZProhibited means DCZID_EL0 reports DC ZVA as prohibited.
var ErrDZProhibited = errors.New("DC ZVA prohibited")

// Emulator executes decoded descriptors against a trap context and user
// memory.
type Emulator struct {
	memory  UserMemory
	sysregs SystemRegisters
	lsu     *LoadStoreUnit
	log     logrus.FieldLogger

	alignZeroBlock bool

	instructionCount uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithSystemRegisters sets the source of DCZID_EL0. A nil source keeps the
// default.
func WithSystemRegisters(s SystemRegisters) EmulatorOption {
	return func(e *Emulator) {
		if s != nil {
			e.sysregs = s
		}
	}
}

// WithAlignedZeroBlock makes DC ZVA zero the block containing the address,
// as the hardware does, instead of the block starting at the address.
func WithAlignedZeroBlock(aligned bool) EmulatorOption {
	return func(e *Emulator) {
		e.alignZeroBlock = aligned
	}
}

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) EmulatorOption {
	return func(e *Emulator) {
		e.log = log
	}
}

// NewEmulator creates an emulator that accesses memory through the given
// primitive.
func NewEmulator(memory UserMemory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		memory:  memory,
		sysregs: StaticSystemRegisters{DCZID: DefaultDCZID},
		log:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.lsu = NewLoadStoreUnit(memory)

	return e
}

// Logger returns the emulator's logger.
func (e *Emulator) Logger() logrus.FieldLogger {
	return e.log
}

// InstructionCount returns the number of instructions emulated successfully.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Execute performs the access described by desc and advances the PC by one
// instruction. The PC is left untouched when Execute fails; memory units
// already written before a failure stay written.
func (e *Emulator) Execute(tc TrapContext, desc *insts.Descriptor) error {
	if desc.Kind != insts.KindZeroBlock && !desc.Width.Valid() {
		return fmt.Errorf("invalid operand width %d", desc.Width)
	}
	if !desc.Resolved {
		desc.Resolve(tc)
	}

	var err error
	switch desc.Kind {
	case insts.KindTransfer:
		if desc.Load {
			err = e.lsu.Load(tc, desc)
		} else {
			err = e.lsu.Store(tc, desc)
		}
	case insts.KindCAS:
		err = e.executeCAS(tc, desc)
	case insts.KindZeroBlock:
		err = e.executeZeroBlock(desc)
	default:
		err = fmt.Errorf("unknown descriptor kind %d", desc.Kind)
	}
	if err != nil {
		return err
	}

	tc.AdvancePC(InstructionBytes)
	e.instructionCount++
	return nil
}

func (e *Emulator) executeCAS(tc TrapContext, desc *insts.Descriptor) error {
	old, swapped, err := e.lsu.CompareAndSwap(tc, desc)
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"addr":    fmt.Sprintf("0x%X", desc.Address),
		"width":   int(desc.Width),
		"old":     fmt.Sprintf("0x%X", old),
		"swapped": swapped,
	}).Debug("emulated CAS without atomicity")
	return nil
}

// executeZeroBlock zeroes one DC ZVA block starting at desc.Address, or
// containing it when aligned zeroing is enabled.
func (e *Emulator) executeZeroBlock(desc *insts.Descriptor) error {
	dczid := e.sysregs.ReadDCZID()
	if dczid.Prohibited() {
		return ErrDZProhibited
	}
	if dczid.BlockShift() > MaxDCZIDBlockShift {
		return fmt.Errorf("DCZID_EL0.BS %d out of range", dczid.BlockShift())
	}

	size := dczid.BlockSize()
	addr := desc.Address
	if e.alignZeroBlock {
		addr &^= size - 1
	}
	return ZeroBlock(e.memory, addr, size)
}

package emu

import (
	"errors"
	"fmt"
)

// ErrFetch means the faulting instruction word could not be read.
var ErrFetch = errors.New("failed to fetch instruction")

// TrapContext is the saved state of the faulting task, as handed over by
// the trap dispatcher.
type TrapContext interface {
	// ReadReg returns X0-X30; 31 reads as zero.
	ReadReg(reg uint8) uint64
	// ReadRegOrSP returns X0-X30; 31 reads as SP.
	ReadRegOrSP(reg uint8) uint64
	// WriteReg writes X0-X30; writes to 31 are discarded.
	WriteReg(reg uint8, value uint64)

	// PC returns the address of the faulting instruction.
	PC() uint64
	// AdvancePC moves the saved PC past the emulated instruction.
	AdvancePC(n uint64)

	// FetchInstruction reads the instruction word at addr.
	FetchInstruction(addr uint64) (uint32, error)

	// Vectors returns the task's vector register unit, or nil if the task
	// has none.
	Vectors() VectorUnit
}

// TrapFrame is a TrapContext assembled from a RegFile, a SIMDRegFile and
// the Memory instructions are fetched from.
type TrapFrame struct {
	regFile *RegFile
	simd    *SIMDRegFile
	memory  *Memory
}

// NewTrapFrame creates a trap context. simd may be nil.
func NewTrapFrame(regFile *RegFile, simd *SIMDRegFile, memory *Memory) *TrapFrame {
	return &TrapFrame{
		regFile: regFile,
		simd:    simd,
		memory:  memory,
	}
}

// RegFile returns the general-purpose register state.
func (f *TrapFrame) RegFile() *RegFile {
	return f.regFile
}

// SIMDRegFile returns the vector register state.
func (f *TrapFrame) SIMDRegFile() *SIMDRegFile {
	return f.simd
}

// Memory returns the task memory.
func (f *TrapFrame) Memory() *Memory {
	return f.memory
}

func (f *TrapFrame) ReadReg(reg uint8) uint64 {
	return f.regFile.ReadReg(reg)
}

func (f *TrapFrame) ReadRegOrSP(reg uint8) uint64 {
	return f.regFile.ReadRegOrSP(reg)
}

func (f *TrapFrame) WriteReg(reg uint8, value uint64) {
	f.regFile.WriteReg(reg, value)
}

func (f *TrapFrame) PC() uint64 {
	return f.regFile.PC
}

func (f *TrapFrame) AdvancePC(n uint64) {
	f.regFile.PC += n
}

func (f *TrapFrame) FetchInstruction(addr uint64) (uint32, error) {
	word, err := f.memory.Fetch32(addr)
	if err != nil {
		return 0, fmt.Errorf("%w at 0x%X: %w", ErrFetch, addr, err)
	}
	return word, nil
}

func (f *TrapFrame) Vectors() VectorUnit {
	if f.simd == nil {
		return nil
	}
	return f.simd
}

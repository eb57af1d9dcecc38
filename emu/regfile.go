package emu

// RegFile is the trap-saved general-purpose register state of a task.
// It contains 31 general-purpose registers (X0-X30), the stack pointer (SP)
// and the program counter (PC).
type RegFile struct {
	// X holds general-purpose registers X0-X30.
	X [31]uint64

	// SP is the stack pointer.
	SP uint64

	// PC is the program counter.
	PC uint64
}

// ReadReg reads a register value. Register 31 returns 0 (XZR).
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg >= 31 {
		return 0
	}
	return r.X[reg]
}

// ReadRegOrSP reads a register value, treating register 31 as SP (not XZR).
// This is used for base registers in address computation.
func (r *RegFile) ReadRegOrSP(reg uint8) uint64 {
	if reg >= 31 {
		return r.SP
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to register 31 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg >= 31 {
		return
	}
	r.X[reg] = value
}

package emu

// DCZID is a DCZID_EL0 value.
//
// Bits [3:0] (BS) hold log2 of the DC ZVA block size in 4-byte words.
// Bit 4 (DZP) set means DC ZVA is prohibited.
type DCZID uint64

// DefaultDCZID reports 64-byte blocks with zeroing permitted.
const DefaultDCZID DCZID = 0x4

// MaxDCZIDBlockShift is the largest BS value the architecture defines.
const MaxDCZIDBlockShift = 9

// BlockShift returns the BS field.
func (d DCZID) BlockShift() uint {
	return uint(d & 0xF)
}

// BlockSize returns the DC ZVA block size in bytes.
func (d DCZID) BlockSize() uint64 {
	return 4 << d.BlockShift()
}

// Prohibited reports whether DC ZVA is disallowed.
func (d DCZID) Prohibited() bool {
	return (d>>4)&1 == 1
}

// SystemRegisters answers capability queries made during emulation.
type SystemRegisters interface {
	ReadDCZID() DCZID
}

// StaticSystemRegisters reports fixed register values.
type StaticSystemRegisters struct {
	DCZID DCZID
}

// ReadDCZID returns the configured DCZID_EL0.
func (s StaticSystemRegisters) ReadDCZID() DCZID {
	return s.DCZID
}

package emu

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/alignfix/insts"
)

// LoadStoreUnit redoes register transfers and compare-and-swap against user
// memory using alignment-safe unit accesses.
type LoadStoreUnit struct {
	memory UserMemory
}

// NewLoadStoreUnit creates a new LoadStoreUnit.
func NewLoadStoreUnit(memory UserMemory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

func operands(desc *insts.Descriptor) []insts.Reg {
	if desc.Pair {
		return []insts.Reg{desc.Rt, desc.Rt2}
	}
	return []insts.Reg{desc.Rt}
}

// Store writes the source register(s) to desc.Address. The second register
// of a pair goes to desc.Address + width.
func (lsu *LoadStoreUnit) Store(tc TrapContext, desc *insts.Descriptor) error {
	regs := operands(desc)
	vals, err := ReadRegisters(tc, regs...)
	if err != nil {
		return err
	}

	n := desc.Width.Bytes()
	var buf [16]byte
	for i, v := range vals {
		v.PutBytes(buf[:])
		addr := desc.Address + uint64(i)*n
		if err := Transfer(lsu.memory, ToUser, addr, buf[:n]); err != nil {
			return err
		}
	}
	return nil
}

// Load reads desc.Address (and desc.Address + width for a pair) into the
// destination register(s). Registers are only written once every transfer
// has succeeded; each loaded value goes to its own register.
func (lsu *LoadStoreUnit) Load(tc TrapContext, desc *insts.Descriptor) error {
	regs := operands(desc)
	vals := make([]Vec128, len(regs))

	n := desc.Width.Bytes()
	for i := range regs {
		var buf [16]byte
		addr := desc.Address + uint64(i)*n
		if err := Transfer(lsu.memory, FromUser, addr, buf[:n]); err != nil {
			return err
		}
		vals[i] = extendLoaded(desc, Vec128FromBytes(buf[:n]))
	}

	return WriteRegisters(tc, regs, vals)
}

// extendLoaded applies sign extension and the target register width to a
// zero-extended loaded value.
func extendLoaded(desc *insts.Descriptor, v Vec128) Vec128 {
	if !desc.SignExtend || desc.Rt.IsVector() {
		return v
	}

	lo := uint64(insts.SignExtend(v.Lo, uint(desc.Width)))
	if desc.ExtendTo == insts.Width32 {
		lo = uint64(uint32(lo))
	}
	return Vec128{Lo: lo}
}

// widthMask returns the mask of the low w bits of a 64-bit register.
func widthMask(w insts.Width) uint64 {
	if w >= insts.Width64 {
		return ^uint64(0)
	}
	return 1<<uint(w) - 1
}

// CompareAndSwap emulates CAS at desc.Address. The old memory value is read
// byte by byte, compared with Rs masked to the operand width, and on a match
// Rt is written back byte by byte. Rs receives the old value either way.
//
// The read-compare-write sequence is not atomic with respect to other
// execution contexts touching the same address.
func (lsu *LoadStoreUnit) CompareAndSwap(
	tc TrapContext,
	desc *insts.Descriptor,
) (old uint64, swapped bool, err error) {
	n := desc.Width.Bytes()
	if n > 8 {
		return 0, false, fmt.Errorf("%w: %d-byte CAS", ErrTransferSize, n)
	}

	var buf [8]byte
	if err := TransferFixed(lsu.memory, FromUser, desc.Address, buf[:n]); err != nil {
		return 0, false, err
	}
	old = binary.LittleEndian.Uint64(buf[:])

	mask := widthMask(desc.Width)
	expected := tc.ReadReg(desc.Rs) & mask

	if old == expected {
		binary.LittleEndian.PutUint64(buf[:], tc.ReadReg(desc.Rt.Num)&mask)
		if err := TransferFixed(lsu.memory, ToUser, desc.Address, buf[:n]); err != nil {
			return old, false, err
		}
		swapped = true
	}

	tc.WriteReg(desc.Rs, old)
	return old, swapped, nil
}

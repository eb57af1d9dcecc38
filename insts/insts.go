// Package insts provides decoding of the ARM64 load/store and system
// instructions that can raise a user-space alignment fault.
//
// Decoding is pure: a 32-bit instruction word is classified into one of the
// supported encoding families and turned into a Descriptor. The Descriptor
// carries everything the emulator needs to redo the access with
// alignment-safe memory operations. It supports:
//   - Load/store register pair, signed offset (LDP, STP)
//   - Load/store register, unsigned immediate (LDR, STR, LDRS*)
//   - Load/store register, register offset
//   - Load/store register, unscaled immediate (LDUR, STUR, LDURS*)
//   - Compare and swap (CAS, CASA, CASL, CASAL and byte/halfword forms)
//   - DC ZVA
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	desc, err := decoder.Decode(0xA9000C02) // STP X2, X3, [X0]
//	if err != nil {
//		return err
//	}
//	desc.Resolve(regs)
//	fmt.Printf("%s %d-bit at 0x%X\n", desc.Class, desc.Width, desc.Address)
package insts

import "fmt"

// Class identifies the encoding family an instruction was decoded from.
type Class uint8

// Encoding families.
const (
	ClassUnknown     Class = iota
	ClassPair              // Load/store register pair (offset)
	ClassUnsignedImm       // Load/store register (unsigned immediate)
	ClassRegOffset         // Load/store register (register offset)
	ClassUnscaledImm       // Load/store register (unscaled immediate)
	ClassCAS               // Compare and swap
	ClassSystem            // System instruction (DC ZVA)
)

var classNames = [...]string{
	ClassUnknown:     "unknown",
	ClassPair:        "pair",
	ClassUnsignedImm: "unsigned-imm",
	ClassRegOffset:   "reg-offset",
	ClassUnscaledImm: "unscaled-imm",
	ClassCAS:         "cas",
	ClassSystem:      "system",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Kind selects the emulation path for a Descriptor.
type Kind uint8

// Emulation paths.
const (
	KindTransfer  Kind = iota // register <-> memory, single or pair
	KindCAS                   // non-atomic compare and swap
	KindZeroBlock             // DC ZVA
)

// RegFile selects which register file an operand lives in.
type RegFile uint8

// Register files.
const (
	GeneralPurpose RegFile = iota
	Vector
)

// Reg is a register operand tagged with its register file.
type Reg struct {
	File RegFile
	Num  uint8
}

// GPR returns a general-purpose register operand. Number 31 is the zero
// register when used as a data operand.
func GPR(n uint8) Reg {
	return Reg{File: GeneralPurpose, Num: n & 0x1F}
}

// VReg returns a vector register operand.
func VReg(n uint8) Reg {
	return Reg{File: Vector, Num: n & 0x1F}
}

// IsVector reports whether r names a vector register.
func (r Reg) IsVector() bool {
	return r.File == Vector
}

func (r Reg) String() string {
	if r.File == Vector {
		return fmt.Sprintf("V%d", r.Num)
	}
	if r.Num == 31 {
		return "XZR"
	}
	return fmt.Sprintf("X%d", r.Num)
}

// Width is an operand width in bits.
type Width uint8

// Operand widths.
const (
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Bytes returns the width in bytes.
func (w Width) Bytes() uint64 {
	return uint64(w) / 8
}

// Log2Bytes returns log2 of the width in bytes.
func (w Width) Log2Bytes() uint8 {
	switch w {
	case Width8:
		return 0
	case Width16:
		return 1
	case Width32:
		return 2
	case Width64:
		return 3
	default:
		return 4
	}
}

// Valid reports whether w is one of the supported operand widths.
func (w Width) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64, Width128:
		return true
	}
	return false
}

// widthFromShift converts log2(bytes) into a Width.
func widthFromShift(shift uint32) (Width, bool) {
	if shift > 4 {
		return 0, false
	}
	return Width(8 << shift), true
}

// ExtendType is the extend option of a register-offset address.
type ExtendType uint8

// Extend options (option field, bits [15:13]).
const (
	ExtendUXTW ExtendType = 0b010
	ExtendUXTX ExtendType = 0b011 // LSL
	ExtendSXTW ExtendType = 0b110
	ExtendSXTX ExtendType = 0b111
)

// AddrMode is how the target address is formed.
type AddrMode uint8

// Address modes.
const (
	AddrBaseImm AddrMode = iota // base + Offset
	AddrBaseReg                 // base + (extend(Rm) << Shift)
	AddrRegOnly                 // value of Rt, used by DC ZVA
)

// Descriptor is a decoded instruction, filled by exactly one decoder and
// consumed once by the emulator.
type Descriptor struct {
	Word  uint32
	Class Class
	Kind  Kind

	// Data operands. Rt2 is only meaningful when Pair is set.
	Rt  Reg
	Rt2 Reg

	// Rs is the CAS comparand register; it receives the old memory value.
	Rs uint8

	Load       bool
	Pair       bool
	Width      Width
	SignExtend bool
	// ExtendTo is the register width a sign-extended load fills (32 or 64).
	ExtendTo Width

	// Address operands.
	Mode   AddrMode
	Rn     uint8 // base register, 31 is SP
	Offset int64 // already scaled
	Rm     uint8 // index register, 31 is XZR
	Extend ExtendType
	Shift  uint8

	// Address is the absolute user-space address, set by Resolve.
	Address  uint64
	Resolved bool
}

// Registers is the read-only register view needed to resolve an address.
type Registers interface {
	// ReadReg returns X0-X30; 31 reads as zero.
	ReadReg(reg uint8) uint64
	// ReadRegOrSP returns X0-X30; 31 reads as SP.
	ReadRegOrSP(reg uint8) uint64
}

// Resolve computes the absolute target address from the register state.
func (d *Descriptor) Resolve(regs Registers) uint64 {
	switch d.Mode {
	case AddrBaseReg:
		offset := ExtendReg(regs.ReadReg(d.Rm), d.Extend, d.Shift)
		d.Address = regs.ReadRegOrSP(d.Rn) + offset
	case AddrRegOnly:
		d.Address = regs.ReadReg(d.Rt.Num)
	default:
		d.Address = regs.ReadRegOrSP(d.Rn) + uint64(d.Offset)
	}
	d.Resolved = true
	return d.Address
}

// ExtendReg applies a register-offset extend option and left shift.
func ExtendReg(value uint64, ext ExtendType, shift uint8) uint64 {
	switch ext {
	case ExtendUXTW:
		value = uint64(uint32(value))
	case ExtendSXTW:
		value = uint64(int64(int32(value)))
	}
	return value << shift
}

func (d *Descriptor) String() string {
	switch d.Kind {
	case KindCAS:
		return fmt.Sprintf("cas%d %s, %s, [%s]",
			d.Width, d.regName(GPR(d.Rs)), d.regName(d.Rt), baseName(d.Rn))
	case KindZeroBlock:
		return fmt.Sprintf("dc zva, %s", d.Rt)
	}

	op := "str"
	if d.Load {
		op = "ldr"
	}
	ops := d.regName(d.Rt)
	if d.Pair {
		op = op[:2] + "p"
		ops += ", " + d.regName(d.Rt2)
	}
	if d.SignExtend {
		op += "s"
	}

	var addr string
	switch d.Mode {
	case AddrBaseReg:
		addr = fmt.Sprintf("[%s, X%d, ext=%03b #%d]", baseName(d.Rn), d.Rm, uint8(d.Extend), d.Shift)
	default:
		addr = fmt.Sprintf("[%s, #%d]", baseName(d.Rn), d.Offset)
	}
	return fmt.Sprintf("%s%d %s, %s", op, d.Width, ops, addr)
}

// regName names r the way the instruction views it: W for a general-purpose
// register holding at most 32 bits.
func (d *Descriptor) regName(r Reg) string {
	if r.File == Vector {
		return r.String()
	}
	w := d.Width <= Width32
	if d.SignExtend {
		w = d.ExtendTo == Width32
	}
	if !w {
		return r.String()
	}
	if r.Num == 31 {
		return "WZR"
	}
	return fmt.Sprintf("W%d", r.Num)
}

func baseName(rn uint8) string {
	if rn == 31 {
		return "SP"
	}
	return fmt.Sprintf("X%d", rn)
}

package insts

// operandShape is the width and extension behaviour of a single-register
// load/store, resolved from size, V and opc.
type operandShape struct {
	width      Width
	load       bool
	signExtend bool
	extendTo   Width
}

// singleShape resolves the operand shape shared by the unsigned-immediate,
// register-offset and unscaled-immediate families.
//
// For general-purpose registers opc<1> selects a sign-extending load and
// opc<0> the target register width. For vector registers opc<1> is instead
// the third width bit, which only yields a valid width with size == 0.
func singleShape(size, v, opc uint32) (operandShape, string) {
	if v == 1 {
		if opc&0b10 != 0 && size != 0 {
			return operandShape{}, "vector width out of range"
		}
		w, ok := widthFromShift(size | (opc&0b10)<<1)
		if !ok {
			return operandShape{}, "vector width out of range"
		}
		return operandShape{width: w, load: opc&1 == 1}, ""
	}

	w := Width(8 << size)
	switch opc {
	case 0b00:
		return operandShape{width: w}, ""
	case 0b01:
		return operandShape{width: w, load: true}, ""
	case 0b10:
		switch size {
		case 0b11:
			return operandShape{}, "prefetch is not emulated"
		default:
			// LDRSB/LDRSH/LDRSW Xt
			return operandShape{width: w, load: true, signExtend: true, extendTo: Width64}, ""
		}
	default:
		if size >= 0b10 {
			return operandShape{}, "unallocated size/opc combination"
		}
		// LDRSB/LDRSH Wt
		return operandShape{width: w, load: true, signExtend: true, extendTo: Width32}, ""
	}
}

func dataReg(v uint32, num uint32) Reg {
	if v == 1 {
		return VReg(uint8(num))
	}
	return GPR(uint8(num))
}

// decodePair decodes load/store register pair, signed offset form.
// Format: opc | 101 | V | 0 | op2 | L | imm7 | Rt2 | Rn | Rt
func (d *Decoder) decodePair(word uint32) (*Descriptor, string) {
	opc := Field(word, 30, 2)  // bits [31:30]
	v := Bit(word, 26)         // bit 26
	op2 := Field(word, 23, 2)  // bits [24:23]
	l := Bit(word, 22)         // bit 22
	imm7 := Field(word, 15, 7) // bits [21:15]
	rt2 := Field(word, 10, 5)  // bits [14:10]
	rn := Field(word, 5, 5)    // bits [9:5]
	rt := Field(word, 0, 5)    // bits [4:0]

	if op2 != 0b10 {
		return nil, "only the signed-offset pair form is emulated"
	}

	var width Width
	if v == 1 {
		switch opc {
		case 0b00:
			width = Width32
		case 0b01:
			width = Width64
		case 0b10:
			width = Width128
		default:
			return nil, "vector pair width out of range"
		}
	} else {
		switch opc {
		case 0b00:
			width = Width32
		case 0b10:
			width = Width64
		default:
			return nil, "LDPSW/STGP are not emulated"
		}
	}

	return &Descriptor{
		Word:   word,
		Class:  ClassPair,
		Kind:   KindTransfer,
		Rt:     dataReg(v, rt),
		Rt2:    dataReg(v, rt2),
		Load:   l == 1,
		Pair:   true,
		Width:  width,
		Mode:   AddrBaseImm,
		Rn:     uint8(rn),
		Offset: SignExtend(uint64(imm7), 7) << width.Log2Bytes(),
	}, ""
}

// decodeUnsignedImm decodes load/store register, unsigned immediate.
// Format: size | 111 | V | 01 | opc | imm12 | Rn | Rt
func (d *Decoder) decodeUnsignedImm(word uint32) (*Descriptor, string) {
	size := Field(word, 30, 2)   // bits [31:30]
	v := Bit(word, 26)           // bit 26
	opc := Field(word, 22, 2)    // bits [23:22]
	imm12 := Field(word, 10, 12) // bits [21:10]
	rn := Field(word, 5, 5)      // bits [9:5]
	rt := Field(word, 0, 5)      // bits [4:0]

	shape, reason := singleShape(size, v, opc)
	if reason != "" {
		return nil, reason
	}

	return &Descriptor{
		Word:       word,
		Class:      ClassUnsignedImm,
		Kind:       KindTransfer,
		Rt:         dataReg(v, rt),
		Load:       shape.load,
		Width:      shape.width,
		SignExtend: shape.signExtend,
		ExtendTo:   shape.extendTo,
		Mode:       AddrBaseImm,
		Rn:         uint8(rn),
		Offset:     int64(uint64(imm12) << shape.width.Log2Bytes()),
	}, ""
}

// decodeRegOffset decodes load/store register, register offset.
// Format: size | 111 | V | 00 | opc | 1 | Rm | option | S | 10 | Rn | Rt
func (d *Decoder) decodeRegOffset(word uint32) (*Descriptor, string) {
	size := Field(word, 30, 2)   // bits [31:30]
	v := Bit(word, 26)           // bit 26
	opc := Field(word, 22, 2)    // bits [23:22]
	rm := Field(word, 16, 5)     // bits [20:16]
	option := Field(word, 13, 3) // bits [15:13]
	s := Bit(word, 12)           // bit 12
	rn := Field(word, 5, 5)      // bits [9:5]
	rt := Field(word, 0, 5)      // bits [4:0]

	if option&0b010 == 0 {
		return nil, "reserved extend option"
	}

	shape, reason := singleShape(size, v, opc)
	if reason != "" {
		return nil, reason
	}

	var shift uint8
	if s == 1 {
		shift = shape.width.Log2Bytes()
	}

	return &Descriptor{
		Word:       word,
		Class:      ClassRegOffset,
		Kind:       KindTransfer,
		Rt:         dataReg(v, rt),
		Load:       shape.load,
		Width:      shape.width,
		SignExtend: shape.signExtend,
		ExtendTo:   shape.extendTo,
		Mode:       AddrBaseReg,
		Rn:         uint8(rn),
		Rm:         uint8(rm),
		Extend:     ExtendType(option),
		Shift:      shift,
	}, ""
}

// decodeUnscaledImm decodes load/store register, unscaled immediate.
// Format: size | 111 | V | 00 | opc | 0 | imm9 | 00 | Rn | Rt
func (d *Decoder) decodeUnscaledImm(word uint32) (*Descriptor, string) {
	size := Field(word, 30, 2) // bits [31:30]
	v := Bit(word, 26)         // bit 26
	opc := Field(word, 22, 2)  // bits [23:22]
	imm9 := Field(word, 12, 9) // bits [20:12]
	rn := Field(word, 5, 5)    // bits [9:5]
	rt := Field(word, 0, 5)    // bits [4:0]

	shape, reason := singleShape(size, v, opc)
	if reason != "" {
		return nil, reason
	}

	return &Descriptor{
		Word:       word,
		Class:      ClassUnscaledImm,
		Kind:       KindTransfer,
		Rt:         dataReg(v, rt),
		Load:       shape.load,
		Width:      shape.width,
		SignExtend: shape.signExtend,
		ExtendTo:   shape.extendTo,
		Mode:       AddrBaseImm,
		Rn:         uint8(rn),
		Offset:     SignExtend(uint64(imm9), 9),
	}, ""
}

// decodeCAS decodes compare and swap. Acquire (L) and release (o0)
// semantics have no effect on the non-atomic emulation.
// Format: size | 0010001 | L | 1 | Rs | o0 | Rt2 | Rn | Rt
func (d *Decoder) decodeCAS(word uint32) (*Descriptor, string) {
	size := Field(word, 30, 2) // bits [31:30]
	rs := Field(word, 16, 5)   // bits [20:16]
	rt2 := Field(word, 10, 5)  // bits [14:10]
	rn := Field(word, 5, 5)    // bits [9:5]
	rt := Field(word, 0, 5)    // bits [4:0]

	if rt2 != 0b11111 {
		return nil, "Rt2 must be 31 for single-register CAS"
	}

	return &Descriptor{
		Word:  word,
		Class: ClassCAS,
		Kind:  KindCAS,
		Rt:    GPR(uint8(rt)),
		Rs:    uint8(rs),
		Width: Width(8 << size),
		Mode:  AddrBaseImm,
		Rn:    uint8(rn),
	}, ""
}

package insts

// DC ZVA is SYS #3, C7, C4, #1, Xt.
const (
	zvaOp1 = 0b011
	zvaCRn = 0b0111
	zvaCRm = 0b0100
	zvaOp2 = 0b001
)

func systemRaw(word uint32) []RawField {
	return []RawField{
		{"l", Bit(word, 21)},
		{"op1", Field(word, 16, 3)},
		{"crn", Field(word, 12, 4)},
		{"crm", Field(word, 8, 4)},
		{"op2", Field(word, 5, 3)},
	}
}

// decodeSystem decodes the supported system instructions.
// Format: 1101010100 | L | 01 | op1 | CRn | CRm | op2 | Rt
func (d *Decoder) decodeSystem(word uint32) (*Descriptor, string) {
	l := Bit(word, 21)        // bit 21: 0=SYS, 1=SYSL
	op1 := Field(word, 16, 3) // bits [18:16]
	crn := Field(word, 12, 4) // bits [15:12]
	crm := Field(word, 8, 4)  // bits [11:8]
	op2 := Field(word, 5, 3)  // bits [7:5]
	rt := Field(word, 0, 5)   // bits [4:0]

	if l != 0 {
		return nil, "SYSL is not emulated"
	}
	if op1 != zvaOp1 || crn != zvaCRn || crm != zvaCRm || op2 != zvaOp2 {
		return nil, "only DC ZVA is emulated"
	}

	return &Descriptor{
		Word:  word,
		Class: ClassSystem,
		Kind:  KindZeroBlock,
		Rt:    GPR(uint8(rt)),
		Mode:  AddrRegOnly,
	}, ""
}

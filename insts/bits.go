package insts

// Field extracts width bits of word starting at bit offset.
func Field(word uint32, offset, width uint) uint32 {
	if width >= 32 {
		return word >> offset
	}
	return (word >> offset) & (1<<width - 1)
}

// Bit extracts a single bit of word.
func Bit(word uint32, offset uint) uint32 {
	return (word >> offset) & 1
}

// SignExtend treats the low bits of value as a two's complement number and
// extends it to 64 bits. bits may be anything from 1 to 64.
func SignExtend(value uint64, bits uint) int64 {
	if bits == 0 || bits >= 64 {
		return int64(value)
	}
	// Shift by bits-1 so a full-width field never shifts by the type width.
	sign := uint64(1) << (bits - 1)
	mask := sign<<1 - 1
	value &= mask
	if value&sign != 0 {
		value |= ^mask
	}
	return int64(value)
}

package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTransferSize is returned by TransferFixed for an unsupported size.
var ErrTransferSize = errors.New("unsupported transfer size")

// Direction is the direction of a user memory transfer.
type Direction uint8

// Transfer directions.
const (
	FromUser Direction = iota // user memory -> buffer
	ToUser                    // buffer -> user memory
)

// MaxZeroBlock is the largest block DC ZVA can report (DCZID_EL0.BS = 9).
const MaxZeroBlock = 2048

var zeroes [MaxZeroBlock]byte

// Transfer copies len(buf) bytes between buf and user memory at addr. Each
// step uses the largest unit (4, 2, then 1 byte) that fits in the remaining
// count and is naturally aligned at the current address. A unit fits
// whenever at least that many bytes remain; the bytes moved are the same as
// when the unit must divide the remaining count, in fewer accesses.
//
// Transfer stops at the first failing unit. Units already transferred stay
// transferred.
func Transfer(m UserMemory, dir Direction, addr uint64, buf []byte) error {
	for len(buf) > 0 {
		var n int
		switch {
		case len(buf) >= 4 && addr%4 == 0:
			n = 4
		case len(buf) >= 2 && addr%2 == 0:
			n = 2
		default:
			n = 1
		}

		if err := transferUnit(m, dir, addr, buf[:n]); err != nil {
			return err
		}

		addr += uint64(n)
		buf = buf[n:]
	}
	return nil
}

func transferUnit(m UserMemory, dir Direction, addr uint64, unit []byte) error {
	if dir == ToUser {
		switch len(unit) {
		case 4:
			return m.Write32(addr, binary.LittleEndian.Uint32(unit))
		case 2:
			return m.Write16(addr, binary.LittleEndian.Uint16(unit))
		default:
			return m.Write8(addr, unit[0])
		}
	}

	switch len(unit) {
	case 4:
		v, err := m.Read32(addr)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(unit, v)
	case 2:
		v, err := m.Read16(addr)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(unit, v)
	default:
		v, err := m.Read8(addr)
		if err != nil {
			return err
		}
		unit[0] = v
	}
	return nil
}

// TransferFixed copies an operand of 1, 2, 4, 8 or 16 bytes one byte at a
// time. It never relies on the alignment of addr.
func TransferFixed(m UserMemory, dir Direction, addr uint64, buf []byte) error {
	switch len(buf) {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: %d bytes", ErrTransferSize, len(buf))
	}

	for i := range buf {
		a := addr + uint64(i)
		if dir == ToUser {
			if err := m.Write8(a, buf[i]); err != nil {
				return err
			}
			continue
		}
		v, err := m.Read8(a)
		if err != nil {
			return err
		}
		buf[i] = v
	}
	return nil
}

// ZeroBlock writes size zero bytes at addr.
func ZeroBlock(m UserMemory, addr, size uint64) error {
	if size > MaxZeroBlock {
		return fmt.Errorf("%w: zero block of %d bytes", ErrTransferSize, size)
	}
	return Transfer(m, ToUser, addr, zeroes[:size])
}

package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/akita/v3/mem/mem"
)

// Memory access errors.
var (
	// ErrFault means the address is not accessible.
	ErrFault = errors.New("address not accessible")
	// ErrMisaligned means a unit access was not naturally aligned.
	ErrMisaligned = errors.New("misaligned unit access")
)

// FaultError reports a failed single-unit user memory access.
type FaultError struct {
	Addr  uint64
	Size  int
	Write bool
	Err   error
}

func (e *FaultError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	return fmt.Sprintf("%s of %d bytes at 0x%X: %v", op, e.Size, e.Addr, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// UserMemory is the primitive used to touch the faulting task's memory.
// Every call transfers one naturally aligned unit and fails if the address
// is not accessible.
type UserMemory interface {
	Read8(addr uint64) (uint8, error)
	Read16(addr uint64) (uint16, error)
	Read32(addr uint64) (uint32, error)
	Write8(addr uint64, value uint8) error
	Write16(addr uint64, value uint16) error
	Write32(addr uint64, value uint32) error
}

// MemoryStats counts unit accesses by size.
type MemoryStats struct {
	Reads8   uint64 `json:"reads8"`
	Reads16  uint64 `json:"reads16"`
	Reads32  uint64 `json:"reads32"`
	Writes8  uint64 `json:"writes8"`
	Writes16 uint64 `json:"writes16"`
	Writes32 uint64 `json:"writes32"`
}

// Writes returns the total number of unit writes.
func (s MemoryStats) Writes() uint64 {
	return s.Writes8 + s.Writes16 + s.Writes32
}

// Reads returns the total number of unit reads.
func (s MemoryStats) Reads() uint64 {
	return s.Reads8 + s.Reads16 + s.Reads32
}

type region struct {
	base    uint64
	size    uint64
	storage *mem.Storage
}

func (r *region) contains(addr, n uint64) bool {
	return addr >= r.base && addr-r.base < r.size && n <= r.size-(addr-r.base)
}

// Memory is a sparse user address space made of mapped regions. Each region
// is backed by an akita storage. Unit accesses must be naturally aligned,
// like the hardware that raised the fault.
type Memory struct {
	regions []*region
	stats   MemoryStats
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{}
}

// Map makes [base, base+size) accessible, zero-filled.
func (m *Memory) Map(base, size uint64) error {
	if size == 0 {
		return fmt.Errorf("cannot map empty region at 0x%X", base)
	}
	if base+size < base {
		return fmt.Errorf("region at 0x%X of 0x%X bytes wraps the address space", base, size)
	}
	for _, r := range m.regions {
		if base < r.base+r.size && r.base < base+size {
			return fmt.Errorf("region at 0x%X overlaps region at 0x%X", base, r.base)
		}
	}

	m.regions = append(m.regions, &region{
		base:    base,
		size:    size,
		storage: mem.NewStorage(size),
	})
	sort.Slice(m.regions, func(i, j int) bool {
		return m.regions[i].base < m.regions[j].base
	})
	return nil
}

// Mapped reports whether all of [addr, addr+n) is accessible.
func (m *Memory) Mapped(addr, n uint64) bool {
	for n > 0 {
		r := m.regionAt(addr)
		if r == nil {
			return false
		}
		chunk := min(n, r.base+r.size-addr)
		addr += chunk
		n -= chunk
	}
	return true
}

// Stats returns unit access statistics.
func (m *Memory) Stats() MemoryStats {
	return m.stats
}

// ResetStats clears unit access statistics.
func (m *Memory) ResetStats() {
	m.stats = MemoryStats{}
}

func (m *Memory) regionAt(addr uint64) *region {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].base+m.regions[i].size > addr
	})
	if i < len(m.regions) && m.regions[i].contains(addr, 1) {
		return m.regions[i]
	}
	return nil
}

func (m *Memory) unit(addr uint64, n int, write bool) (*region, error) {
	if addr%uint64(n) != 0 {
		return nil, &FaultError{Addr: addr, Size: n, Write: write, Err: ErrMisaligned}
	}
	r := m.regionAt(addr)
	if r == nil || !r.contains(addr, uint64(n)) {
		return nil, &FaultError{Addr: addr, Size: n, Write: write, Err: ErrFault}
	}
	return r, nil
}

func (m *Memory) readUnit(addr uint64, n int) ([]byte, error) {
	r, err := m.unit(addr, n, false)
	if err != nil {
		return nil, err
	}
	data, err := r.storage.Read(addr-r.base, uint64(n))
	if err != nil {
		return nil, &FaultError{Addr: addr, Size: n, Err: fmt.Errorf("%w: %v", ErrFault, err)}
	}
	return data, nil
}

func (m *Memory) writeUnit(addr uint64, data []byte) error {
	r, err := m.unit(addr, len(data), true)
	if err != nil {
		return err
	}
	if err := r.storage.Write(addr-r.base, data); err != nil {
		return &FaultError{Addr: addr, Size: len(data), Write: true, Err: fmt.Errorf("%w: %v", ErrFault, err)}
	}
	return nil
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint64) (uint8, error) {
	data, err := m.readUnit(addr, 1)
	if err != nil {
		return 0, err
	}
	m.stats.Reads8++
	return data[0], nil
}

// Read16 reads a naturally aligned little-endian halfword.
func (m *Memory) Read16(addr uint64) (uint16, error) {
	data, err := m.readUnit(addr, 2)
	if err != nil {
		return 0, err
	}
	m.stats.Reads16++
	return binary.LittleEndian.Uint16(data), nil
}

// Read32 reads a naturally aligned little-endian word.
func (m *Memory) Read32(addr uint64) (uint32, error) {
	data, err := m.readUnit(addr, 4)
	if err != nil {
		return 0, err
	}
	m.stats.Reads32++
	return binary.LittleEndian.Uint32(data), nil
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint64, value uint8) error {
	if err := m.writeUnit(addr, []byte{value}); err != nil {
		return err
	}
	m.stats.Writes8++
	return nil
}

// Write16 writes a naturally aligned little-endian halfword.
func (m *Memory) Write16(addr uint64, value uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	if err := m.writeUnit(addr, buf[:]); err != nil {
		return err
	}
	m.stats.Writes16++
	return nil
}

// Write32 writes a naturally aligned little-endian word.
func (m *Memory) Write32(addr uint64, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	if err := m.writeUnit(addr, buf[:]); err != nil {
		return err
	}
	m.stats.Writes32++
	return nil
}

// Fetch32 reads an instruction word. It is not counted in Stats.
func (m *Memory) Fetch32(addr uint64) (uint32, error) {
	data, err := m.readUnit(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Load copies data into memory at addr without alignment rules or
// statistics. The whole range must be mapped.
func (m *Memory) Load(addr uint64, data []byte) error {
	for len(data) > 0 {
		r := m.regionAt(addr)
		if r == nil {
			return &FaultError{Addr: addr, Size: len(data), Write: true, Err: ErrFault}
		}
		chunk := min(uint64(len(data)), r.base+r.size-addr)
		if err := r.storage.Write(addr-r.base, data[:chunk]); err != nil {
			return fmt.Errorf("failed to load 0x%X bytes at 0x%X: %w", chunk, addr, err)
		}
		addr += chunk
		data = data[chunk:]
	}
	return nil
}

// Dump returns a copy of n bytes at addr without alignment rules or
// statistics. The whole range must be mapped.
func (m *Memory) Dump(addr, n uint64) ([]byte, error) {
	out := make([]byte, 0, n)
	for n > 0 {
		r := m.regionAt(addr)
		if r == nil {
			return nil, &FaultError{Addr: addr, Size: int(n), Err: ErrFault}
		}
		chunk := min(n, r.base+r.size-addr)
		data, err := r.storage.Read(addr-r.base, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to dump 0x%X bytes at 0x%X: %w", chunk, addr, err)
		}
		out = append(out, data...)
		addr += chunk
		n -= chunk
	}
	return out, nil
}

// Uint64 reads a little-endian doubleword with Dump semantics.
func (m *Memory) Uint64(addr uint64) (uint64, error) {
	data, err := m.Dump(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

package emu

import (
	"encoding/binary"
	"errors"
)

// Vector context errors.
var (
	// ErrVectorUnavailable means the vector register file could not be
	// activated for this fault.
	ErrVectorUnavailable = errors.New("vector registers unavailable")
	// ErrVectorNested means the vector register file is already active.
	ErrVectorNested = errors.New("vector registers already active")
)

// Vec128 is the content of a 128-bit vector register.
type Vec128 struct {
	Lo uint64
	Hi uint64
}

// PutBytes stores v little-endian into b, which must hold 16 bytes.
func (v Vec128) PutBytes(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], v.Lo)
	binary.LittleEndian.PutUint64(b[8:16], v.Hi)
}

// Vec128FromBytes builds a value from up to 16 little-endian bytes,
// zero-extending short input.
func Vec128FromBytes(b []byte) Vec128 {
	var buf [16]byte
	copy(buf[:], b)
	return Vec128{
		Lo: binary.LittleEndian.Uint64(buf[0:8]),
		Hi: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// VectorFile is the vector register file as seen inside an activation.
type VectorFile interface {
	ReadQ(reg uint8) (lo, hi uint64)
	WriteQ(reg uint8, lo, hi uint64)
}

// VectorUnit hands out scoped access to a task's vector registers. Every
// Begin must be paired with exactly one End, even when Begin fails.
type VectorUnit interface {
	Begin() (VectorFile, error)
	End()
}

// SIMDRegFile is the 32 x 128-bit vector register file of a task. The
// emulator only reaches it through Begin/End; ReadQ and WriteQ are the
// owner's direct access.
type SIMDRegFile struct {
	regs        [32]Vec128
	depth       int
	activations uint64
	unavailable bool
}

// NewSIMDRegFile creates a zeroed vector register file.
func NewSIMDRegFile() *SIMDRegFile {
	return &SIMDRegFile{}
}

// ReadQ reads the full 128-bit register.
func (s *SIMDRegFile) ReadQ(reg uint8) (lo, hi uint64) {
	v := s.regs[reg&0x1F]
	return v.Lo, v.Hi
}

// WriteQ writes the full 128-bit register.
func (s *SIMDRegFile) WriteQ(reg uint8, lo, hi uint64) {
	s.regs[reg&0x1F] = Vec128{Lo: lo, Hi: hi}
}

// ReadLane64 reads 64-bit lane 0 or 1.
func (s *SIMDRegFile) ReadLane64(reg, lane uint8) uint64 {
	if lane&1 == 0 {
		return s.regs[reg&0x1F].Lo
	}
	return s.regs[reg&0x1F].Hi
}

// SetAvailable controls whether Begin succeeds.
func (s *SIMDRegFile) SetAvailable(available bool) {
	s.unavailable = !available
}

// Active reports whether an activation is open.
func (s *SIMDRegFile) Active() bool {
	return s.depth > 0
}

// Activations returns how many times Begin was called.
func (s *SIMDRegFile) Activations() uint64 {
	return s.activations
}

// Begin opens an activation window.
func (s *SIMDRegFile) Begin() (VectorFile, error) {
	s.depth++
	s.activations++

	if s.unavailable {
		return nil, ErrVectorUnavailable
	}
	if s.depth > 1 {
		return nil, ErrVectorNested
	}
	return simdWindow{file: s}, nil
}

// End closes the activation window opened by the matching Begin.
func (s *SIMDRegFile) End() {
	if s.depth > 0 {
		s.depth--
	}
}

// simdWindow is the VectorFile handed out by Begin. Using it after End is a
// programming error.
type simdWindow struct {
	file *SIMDRegFile
}

func (w simdWindow) check() {
	if w.file.depth != 1 {
		panic("emu: vector registers accessed outside activation")
	}
}

func (w simdWindow) ReadQ(reg uint8) (lo, hi uint64) {
	w.check()
	return w.file.ReadQ(reg)
}

func (w simdWindow) WriteQ(reg uint8, lo, hi uint64) {
	w.check()
	w.file.WriteQ(reg, lo, hi)
}

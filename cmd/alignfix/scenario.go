package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sarchlab/alignfix/emu"
)

// Region is a mapped range of user memory. Data is loaded at Base and the
// rest of the region is zero.
type Region struct {
	Base hexutil.Uint64 `json:"base"`
	Size hexutil.Uint64 `json:"size"`
	Data hexutil.Bytes  `json:"data,omitempty"`
}

// VectorValue is a 128-bit vector register.
type VectorValue struct {
	Lo hexutil.Uint64 `json:"lo"`
	Hi hexutil.Uint64 `json:"hi"`
}

// Scenario is the task state at the moment of an alignment fault.
type Scenario struct {
	PC        hexutil.Uint64 `json:"pc"`
	SP        hexutil.Uint64 `json:"sp"`
	FaultAddr hexutil.Uint64 `json:"fault_addr"`

	// Instruction, if set, is written at PC before the fault is replayed.
	Instruction *hexutil.Uint64 `json:"instruction,omitempty"`

	X map[uint8]hexutil.Uint64 `json:"x,omitempty"`
	V map[uint8]VectorValue    `json:"v,omitempty"`

	// NoVectors replays a task without a usable vector register file.
	NoVectors bool `json:"no_vectors,omitempty"`

	// DCZID overrides the configured DCZID_EL0.
	DCZID *hexutil.Uint64 `json:"dczid_el0,omitempty"`

	Regions []Region `json:"regions"`
}

// Result is the task state after the fault was handled.
type Result struct {
	Handled bool                     `json:"handled"`
	Error   string                   `json:"error,omitempty"`
	PC      hexutil.Uint64           `json:"pc"`
	SP      hexutil.Uint64           `json:"sp"`
	X       map[uint8]hexutil.Uint64 `json:"x"`
	V       map[uint8]VectorValue    `json:"v,omitempty"`
	Regions []Region                 `json:"regions"`
	Stats   emu.MemoryStats          `json:"stats"`
}

// LoadScenario reads a Scenario from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return &s, nil
}

// Build creates the memory and trap context described by s.
func (s *Scenario) Build() (*emu.TrapFrame, *emu.Memory, error) {
	memory := emu.NewMemory()
	for _, r := range s.Regions {
		if uint64(len(r.Data)) > uint64(r.Size) {
			return nil, nil, fmt.Errorf("region 0x%X: %d bytes of data exceed size 0x%X",
				uint64(r.Base), len(r.Data), uint64(r.Size))
		}
		if err := memory.Map(uint64(r.Base), uint64(r.Size)); err != nil {
			return nil, nil, err
		}
		if err := memory.Load(uint64(r.Base), r.Data); err != nil {
			return nil, nil, err
		}
	}

	if s.Instruction != nil {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(*s.Instruction))
		if err := memory.Load(uint64(s.PC), buf[:]); err != nil {
			return nil, nil, fmt.Errorf("failed to place instruction at pc: %w", err)
		}
	}

	regFile := &emu.RegFile{
		PC: uint64(s.PC),
		SP: uint64(s.SP),
	}
	for n, v := range s.X {
		if n > 30 {
			return nil, nil, fmt.Errorf("no general-purpose register X%d", n)
		}
		regFile.X[n] = uint64(v)
	}

	var simd *emu.SIMDRegFile
	if !s.NoVectors {
		simd = emu.NewSIMDRegFile()
		for n, v := range s.V {
			if n > 31 {
				return nil, nil, fmt.Errorf("no vector register V%d", n)
			}
			simd.WriteQ(n, uint64(v.Lo), uint64(v.Hi))
		}
	}

	return emu.NewTrapFrame(regFile, simd, memory), memory, nil
}

// snapshot captures the state of frame after handling, with the regions of
// s dumped in address order.
func (s *Scenario) snapshot(frame *emu.TrapFrame, faultErr error) (*Result, error) {
	regFile := frame.RegFile()
	result := &Result{
		Handled: faultErr == nil,
		PC:      hexutil.Uint64(regFile.PC),
		SP:      hexutil.Uint64(regFile.SP),
		X:       make(map[uint8]hexutil.Uint64),
		Stats:   frame.Memory().Stats(),
	}
	if faultErr != nil {
		result.Error = faultErr.Error()
	}

	for n, v := range regFile.X {
		if v != 0 {
			result.X[uint8(n)] = hexutil.Uint64(v)
		}
	}

	if simd := frame.SIMDRegFile(); simd != nil {
		result.V = make(map[uint8]VectorValue)
		for n := uint8(0); n < 32; n++ {
			lo, hi := simd.ReadQ(n)
			if lo != 0 || hi != 0 {
				result.V[n] = VectorValue{Lo: hexutil.Uint64(lo), Hi: hexutil.Uint64(hi)}
			}
		}
	}

	regions := append([]Region(nil), s.Regions...)
	sort.Slice(regions, func(i, j int) bool { return regions[i].Base < regions[j].Base })
	for _, r := range regions {
		data, err := frame.Memory().Dump(uint64(r.Base), uint64(r.Size))
		if err != nil {
			return nil, err
		}
		result.Regions = append(result.Regions, Region{Base: r.Base, Size: r.Size, Data: data})
	}

	return result, nil
}

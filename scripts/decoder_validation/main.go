// Measure decode and fixup cost - allocations and throughput of the fault path
package main

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/alignfix/emu"
	"github.com/sarchlab/alignfix/insts"
)

var words = []uint32{
	0xA9000C02, // STP X2, X3, [X0]
	0x3D800020, // STR Q0, [X1]
	0x3C810021, // STUR Q1, [X1, #16]
	0xF8627801, // LDR X1, [X0, X2, LSL #3]
	0xC8A17C02, // CAS X1, X2, [X0]
	0xD50B7420, // DC ZVA, X0
}

func measure(name string, iterations int, fn func()) {
	// Warm up
	for i := 0; i < 1000; i++ {
		fn()
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		fn()
	}
	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("%s\n", name)
	fmt.Printf("  Operations: %d\n", iterations)
	fmt.Printf("  Time elapsed: %v\n", elapsed)
	fmt.Printf("  Operations per second: %.0f\n", float64(iterations)/elapsed.Seconds())
	fmt.Printf("  Allocations per operation: %.3f\n", float64(allocations)/float64(iterations))
	fmt.Printf("  Bytes per operation: %.1f\n", float64(allocatedBytes)/float64(iterations))
}

func main() {
	decoder := insts.NewDecoder()
	iterations := 100000

	measure("Decode", iterations*len(words), func() {
		for _, w := range words {
			_, _ = decoder.Decode(w)
		}
	})

	memory := emu.NewMemory()
	if err := memory.Map(0x1000, 0x1000); err != nil {
		panic(err)
	}
	if err := memory.Map(0x8000, 0x1000); err != nil {
		panic(err)
	}
	if err := memory.Load(0x8000, []byte{0x02, 0x0C, 0x00, 0xA9}); err != nil {
		panic(err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	handler := emu.NewHandler(emu.NewEmulator(memory, emu.WithLogger(log)))

	regFile := &emu.RegFile{}
	regFile.X[0] = 0x1003
	frame := emu.NewTrapFrame(regFile, emu.NewSIMDRegFile(), memory)

	failures := 0
	measure("HandleAlignmentFault (STP X2, X3, [X0])", iterations, func() {
		regFile.PC = 0x8000
		if err := handler.HandleAlignmentFault(0x1003, frame); err != nil {
			failures++
		}
	})

	stats := memory.Stats()
	fmt.Printf("\nUnit writes: 8-bit %d, 16-bit %d, 32-bit %d\n",
		stats.Writes8, stats.Writes16, stats.Writes32)
	if failures != 0 {
		fmt.Printf("\n⚠️  WARNING: %d fixups failed\n", failures)
	} else {
		fmt.Printf("\n✅ SUCCESS: all fixups succeeded\n")
	}
}

package emu

import (
	"fmt"

	"github.com/sarchlab/alignfix/insts"
)

// withVectors runs fn inside one activation of the task's vector registers.
// End is called on every path, including a failed Begin.
func withVectors(ctx TrapContext, fn func(VectorFile)) error {
	unit := ctx.Vectors()
	if unit == nil {
		return ErrVectorUnavailable
	}

	file, err := unit.Begin()
	defer unit.End()
	if err != nil {
		return fmt.Errorf("failed to activate vector registers: %w", err)
	}

	fn(file)
	return nil
}

func needsVectors(regs []insts.Reg) bool {
	for _, r := range regs {
		if r.IsVector() {
			return true
		}
	}
	return false
}

// ReadRegisters reads the given operands. Vector operands are all read
// inside a single activation window.
func ReadRegisters(ctx TrapContext, regs ...insts.Reg) ([]Vec128, error) {
	vals := make([]Vec128, len(regs))
	for i, r := range regs {
		if !r.IsVector() {
			vals[i] = Vec128{Lo: ctx.ReadReg(r.Num)}
		}
	}

	if !needsVectors(regs) {
		return vals, nil
	}

	err := withVectors(ctx, func(vf VectorFile) {
		for i, r := range regs {
			if r.IsVector() {
				vals[i].Lo, vals[i].Hi = vf.ReadQ(r.Num)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return vals, nil
}

// WriteRegisters writes vals to the given operands. General-purpose
// registers receive the low 64 bits. Vector operands are all written inside
// a single activation window, and nothing is written if activation fails.
func WriteRegisters(ctx TrapContext, regs []insts.Reg, vals []Vec128) error {
	if len(regs) != len(vals) {
		return fmt.Errorf("%d registers but %d values", len(regs), len(vals))
	}

	if needsVectors(regs) {
		err := withVectors(ctx, func(vf VectorFile) {
			for i, r := range regs {
				if r.IsVector() {
					vf.WriteQ(r.Num, vals[i].Lo, vals[i].Hi)
				}
			}
		})
		if err != nil {
			return err
		}
	}

	for i, r := range regs {
		if !r.IsVector() {
			ctx.WriteReg(r.Num, vals[i].Lo)
		}
	}
	return nil
}

// ReadRegister reads a single operand.
func ReadRegister(ctx TrapContext, reg insts.Reg) (Vec128, error) {
	vals, err := ReadRegisters(ctx, reg)
	if err != nil {
		return Vec128{}, err
	}
	return vals[0], nil
}

// WriteRegister writes a single operand.
func WriteRegister(ctx TrapContext, reg insts.Reg, value Vec128) error {
	return WriteRegisters(ctx, []insts.Reg{reg}, []Vec128{value})
}

package emu

import (
	"github.com/sarchlab/gbadbg/cpustate"
)

// Cond represents an ARM condition code.
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always
	CondNV Cond = 0b1111 // Never on ARMv4
)

// CheckCondition evaluates a condition code against a status word.
func CheckCondition(cond Cond, cpsr uint32) bool {
	f := cpustate.Decode(cpsr).Flags

	switch cond {
	case CondEQ:
		return f.Zero
	case CondNE:
		return !f.Zero
	case CondCS:
		return f.Carry
	case CondCC:
		return !f.Carry
	case CondMI:
		return f.Negative
	case CondPL:
		return !f.Negative
	case CondVS:
		return f.Overflow
	case CondVC:
		return !f.Overflow
	case CondHI:
		return f.Carry && !f.Zero
	case CondLS:
		return !f.Carry || f.Zero
	case CondGE:
		return f.Negative == f.Overflow
	case CondLT:
		return f.Negative != f.Overflow
	case CondGT:
		return !f.Zero && (f.Negative == f.Overflow)
	case CondLE:
		return f.Zero || (f.Negative != f.Overflow)
	case CondAL:
		return true
	default:
		return false
	}
}

// SWIVector is the software interrupt exception vector.
const SWIVector = 0x08

// executeARM runs the control-flow effect of a 32-bit instruction fetched
// from addr. It returns true when the instruction redirected the PC.
func (e *Emulator) executeARM(addr, op uint32) bool {
	if !CheckCondition(Cond(op>>28), e.regs.CPSR) {
		return false
	}

	switch {
	case op&0x0FFFFFF0 == 0x012FFF10:
		e.branchExchange(e.regs.R[op&0xF])
		return true
	case op&0x0E000000 == 0x0A000000:
		if op&0x01000000 != 0 {
			e.regs.R[RegLR] = addr + 4
		}
		offset := signExtend(op&0x00FFFFFF, 24) << 2
		e.regs.R[RegPC] = uint32(int32(addr+8) + offset)
		return true
	case op&0x0F000000 == 0x0F000000:
		e.enterException(cpustate.ModeSupervisor, SWIVector, addr+4)
		return true
	}

	return false
}

// executeThumb runs the control-flow effect of a 16-bit instruction.
func (e *Emulator) executeThumb(addr uint32, op uint16) bool {
	switch {
	case op&0xFF00 == 0xDF00:
		e.enterException(cpustate.ModeSupervisor, SWIVector, addr+2)
		return true
	case op&0xF000 == 0xD000:
		cond := Cond((op >> 8) & 0xF)
		if cond >= CondAL || !CheckCondition(cond, e.regs.CPSR) {
			return false
		}
		offset := signExtend(uint32(op&0xFF), 8) << 1
		e.regs.R[RegPC] = uint32(int32(addr+4) + offset)
		return true
	case op&0xF800 == 0xE000:
		offset := signExtend(uint32(op&0x7FF), 11) << 1
		e.regs.R[RegPC] = uint32(int32(addr+4) + offset)
		return true
	case op&0xF800 == 0xF000:
		offset := signExtend(uint32(op&0x7FF), 11) << 12
		e.regs.R[RegLR] = uint32(int32(addr+4) + offset)
		return false
	case op&0xF800 == 0xF800:
		target := e.regs.R[RegLR] + uint32(op&0x7FF)<<1
		e.regs.R[RegLR] = (addr + 2) | 1
		e.regs.R[RegPC] = target
		return true
	case op&0xFF87 == 0x4700:
		e.branchExchange(e.regs.R[(op>>3)&0xF])
		return true
	}

	return false
}

// branchExchange jumps to target, switching to Thumb state when bit 0 is
// set.
func (e *Emulator) branchExchange(target uint32) {
	thumb := target&1 != 0
	e.regs.SetThumb(thumb)
	if thumb {
		e.regs.R[RegPC] = target &^ 1
		return
	}
	e.regs.R[RegPC] = target &^ 3
}

// enterException switches to mode in ARM state with IRQs disabled and
// jumps to vector.
func (e *Emulator) enterException(mode cpustate.Mode, vector, ret uint32) {
	e.regs.SPSR = e.regs.CPSR
	e.regs.R[RegLR] = ret
	cpsr := e.regs.CPSR &^ (cpustate.ModeMask | 1<<cpustate.BitThumb)
	e.regs.CPSR = cpsr | uint32(mode) | 1<<cpustate.BitIRQDisabled
	e.regs.R[RegPC] = vector
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

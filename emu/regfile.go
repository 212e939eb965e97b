package emu

import (
	"github.com/sarchlab/gbadbg/cpustate"
)

// Register aliases.
const (
	RegSP = 13
	RegLR = 14
	RegPC = 15
)

// ResetCPSR is the status word after a cold reset: Supervisor mode, ARM
// state, IRQ and FIQ disabled.
const ResetCPSR uint32 = 0x000000D3

// RegFile represents the ARM7TDMI register file visible to the current
// mode. Banked registers are not modelled.
type RegFile struct {
	// R holds R0-R15. R15 reads as the fetch address, two instructions
	// ahead of the one executing.
	R [16]uint32

	// CPSR is the current program status register.
	CPSR uint32

	// SPSR receives the CPSR on exception entry.
	SPSR uint32
}

// Reset restores the cold-reset state.
func (r *RegFile) Reset() {
	*r = RegFile{CPSR: ResetCPSR}
}

// Thumb reports whether the T bit is set.
func (r *RegFile) Thumb() bool {
	return r.CPSR&(1<<cpustate.BitThumb) != 0
}

// SetThumb sets or clears the T bit.
func (r *RegFile) SetThumb(on bool) {
	if on {
		r.CPSR |= 1 << cpustate.BitThumb
		return
	}
	r.CPSR &^= 1 << cpustate.BitThumb
}

// Width returns the size of an instruction in the current state.
func (r *RegFile) Width() uint32 {
	if r.Thumb() {
		return cpustate.WidthThumb
	}
	return cpustate.WidthARM
}

// SetFlags writes the four condition flags.
func (r *RegFile) SetFlags(n, z, c, v bool) {
	r.CPSR &^= 0xF << cpustate.BitOverflow
	r.CPSR |= bit(n, cpustate.BitNegative) | bit(z, cpustate.BitZero) |
		bit(c, cpustate.BitCarry) | bit(v, cpustate.BitOverflow)
}

func bit(on bool, pos uint) uint32 {
	if on {
		return 1 << pos
	}
	return 0
}

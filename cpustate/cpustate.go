// Package cpustate decodes the ARM7TDMI current program status register.
//
// The decoder is a pure function of the 32-bit status word:
//
//	| 31 | 30 | 29 | 28 | ... | 7 | 6 | 5 | 4 ... 0
//	| N  | Z  | C  | V  | ... | I | F | T | processor mode
//
// Usage:
//
//	st := cpustate.Decode(0x000000D3)
//	fmt.Println(st.Flags, st.Mode) // "----I- Supervisor"
package cpustate

import (
	"fmt"
	"strings"
)

// Status register bit positions.
const (
	BitNegative    = 31
	BitZero        = 30
	BitCarry       = 29
	BitOverflow    = 28
	BitIRQDisabled = 7
	BitFIQDisabled = 6
	BitThumb       = 5
)

// ModeMask selects the processor mode field of the status word.
const ModeMask = 0b11111

// Instruction widths in bytes.
const (
	WidthARM   uint32 = 4
	WidthThumb uint32 = 2
)

// Mode is the 5-bit processor mode field. Patterns outside the ARM7TDMI
// mode table are kept as-is and report themselves as unknown.
type Mode uint8

// Processor modes of the ARM7TDMI.
const (
	ModeUser       Mode = 0b10000
	ModeFIQ        Mode = 0b10001
	ModeIRQ        Mode = 0b10010
	ModeSupervisor Mode = 0b10011
	ModeAbort      Mode = 0b10111
	ModeUndefined  Mode = 0b11011
	ModeSystem     Mode = 0b11111
)

var modeNames = map[Mode]string{
	ModeUser:       "User",
	ModeFIQ:        "FIQ",
	ModeIRQ:        "IRQ",
	ModeSupervisor: "Supervisor",
	ModeAbort:      "Abort",
	ModeUndefined:  "Undefined",
	ModeSystem:     "System",
}

var modeMnemonics = map[Mode]string{
	ModeUser:       "USR",
	ModeFIQ:        "FIQ",
	ModeIRQ:        "IRQ",
	ModeSupervisor: "SVC",
	ModeAbort:      "ABT",
	ModeUndefined:  "UND",
	ModeSystem:     "SYS",
}

// Known reports whether the mode is one of the seven defined modes.
func (m Mode) Known() bool {
	_, ok := modeNames[m]
	return ok
}

// Bits returns the raw 5-bit pattern.
func (m Mode) Bits() string {
	return fmt.Sprintf("%05b", uint8(m)&ModeMask)
}

// String returns the display label of the mode. Unknown modes render as
// their binary pattern.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "Unknown(" + m.Bits() + ")"
}

// Mnemonic returns the three letter assembler name of the mode, or the
// binary pattern for unknown modes.
func (m Mode) Mnemonic() string {
	if name, ok := modeMnemonics[m]; ok {
		return name
	}
	return m.Bits()
}

// InstructionSet is the instruction set selected by the T bit.
type InstructionSet uint8

// Instruction sets of the ARM7TDMI.
const (
	ARM InstructionSet = iota
	Thumb
)

func (s InstructionSet) String() string {
	if s == Thumb {
		return "THUMB"
	}
	return "ARM"
}

// Width returns the instruction width in bytes.
func (s InstructionSet) Width() uint32 {
	if s == Thumb {
		return WidthThumb
	}
	return WidthARM
}

// PipelineOffset is how far the reported program counter runs ahead of
// the instruction that executes next.
func (s InstructionSet) PipelineOffset() uint32 {
	return 2 * s.Width()
}

// Flags holds the single-bit fields of the status word.
type Flags struct {
	Negative    bool
	Zero        bool
	Carry       bool
	Overflow    bool
	IRQDisabled bool
	FIQDisabled bool
	Thumb       bool
}

// String renders the six displayed flags as "NZCVIT", with '-' for every
// clear bit.
func (f Flags) String() string {
	var s strings.Builder
	for _, flag := range []struct {
		set    bool
		letter byte
	}{
		{f.Negative, 'N'},
		{f.Zero, 'Z'},
		{f.Carry, 'C'},
		{f.Overflow, 'V'},
		{f.IRQDisabled, 'I'},
		{f.Thumb, 'T'},
	} {
		if flag.set {
			s.WriteByte(flag.letter)
		} else {
			s.WriteByte('-')
		}
	}
	return s.String()
}

// State is the decoded form of one status word.
type State struct {
	Raw   uint32
	Flags Flags
	Mode  Mode
}

// Decode splits a raw status word into flags and processor mode.
func Decode(cpsr uint32) State {
	return State{
		Raw: cpsr,
		Flags: Flags{
			Negative:    bit(cpsr, BitNegative),
			Zero:        bit(cpsr, BitZero),
			Carry:       bit(cpsr, BitCarry),
			Overflow:    bit(cpsr, BitOverflow),
			IRQDisabled: bit(cpsr, BitIRQDisabled),
			FIQDisabled: bit(cpsr, BitFIQDisabled),
			Thumb:       bit(cpsr, BitThumb),
		},
		Mode: Mode(cpsr & ModeMask),
	}
}

// InstructionSet returns the instruction set selected by the T flag.
func (s State) InstructionSet() InstructionSet {
	if s.Flags.Thumb {
		return Thumb
	}
	return ARM
}

// Width returns the instruction width in bytes for the current state.
func (s State) Width() uint32 {
	return s.InstructionSet().Width()
}

// PipelineOffset returns 8 in ARM state and 4 in Thumb state.
func (s State) PipelineOffset() uint32 {
	return s.InstructionSet().PipelineOffset()
}

// EffectivePC compensates a reported program counter for the pipeline.
func (s State) EffectivePC(reported uint32) uint32 {
	return reported - s.PipelineOffset()
}

func (s State) String() string {
	return s.Flags.String() + " " + s.Mode.String()
}

func bit(v uint32, i uint) bool {
	return (v>>i)&1 == 1
}

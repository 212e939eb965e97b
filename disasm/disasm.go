// Package disasm plans the instruction window shown around the program
// counter and drives the ARM and Thumb disassemblers over it.
//
// The reported program counter of an ARM7TDMI is two instructions ahead of
// the instruction about to execute, so the window reaches back two
// instructions and ends one instruction past the reported PC:
//
//	start = max(0, pc - 2*width)
//	end   = pc + width
package disasm

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/gbadbg/cpustate"
	"github.com/sarchlab/gbadbg/memview"
)

// ErrUnaligned is returned by disassemblers for byte sequences that are
// not a whole number of instructions.
var ErrUnaligned = errors.New("unaligned instruction bytes")

// Line is one disassembled instruction.
type Line struct {
	Address  uint32
	Raw      []byte
	Mnemonic string
	Operands string
}

func (l Line) String() string {
	if l.Operands == "" {
		return fmt.Sprintf("%08x  % x  %s", l.Address, l.Raw, l.Mnemonic)
	}
	return fmt.Sprintf("%08x  % x  %s %s", l.Address, l.Raw, l.Mnemonic, l.Operands)
}

// Disassembler turns raw instruction bytes into lines, labelling them from
// base. It may reject malformed or unaligned input.
type Disassembler interface {
	Disassemble(code []byte, base uint32) ([]Line, error)
}

// Variant selects which disassembler decodes a window.
type Variant uint8

// Disassembler variants.
const (
	VariantARM Variant = iota
	VariantThumb
)

func (v Variant) String() string {
	if v == VariantThumb {
		return "thumb"
	}
	return "arm"
}

// VariantFor picks the disassembler variant for a decoded status word.
func VariantFor(st cpustate.State) Variant {
	if st.InstructionSet() == cpustate.Thumb {
		return VariantThumb
	}
	return VariantARM
}

// Window is the address range handed to a disassembler.
type Window struct {
	Start uint32
	End   uint32
	// Base labels the first decoded instruction.
	Base uint32
}

// PlanWindow computes the window for a reported PC and instruction width.
func PlanWindow(pc, width uint32) Window {
	var start uint32
	if back := 2 * width; pc > back {
		start = pc - back
	}
	return Window{Start: start, End: pc + width, Base: start}
}

// Result is either a decoded list of lines or a decode failure.
type Result struct {
	Window  Window
	Variant Variant
	Lines   []Line
	// Reason is set when decoding failed.
	Reason string
}

// Decoded builds a successful result.
func Decoded(w Window, v Variant, lines []Line) Result {
	return Result{Window: w, Variant: v, Lines: lines}
}

// DecodeFailed builds a failed result.
func DecodeFailed(w Window, v Variant, reason string) Result {
	return Result{Window: w, Variant: v, Reason: reason}
}

// Failed reports whether the result is a decode failure.
func (r Result) Failed() bool {
	return r.Reason != ""
}

// Planner computes windows and dispatches them to the disassembler of the
// current instruction set.
type Planner struct {
	arm   Disassembler
	thumb Disassembler
	log   logr.Logger
}

// PlannerOption is a functional option for configuring the Planner.
type PlannerOption func(*Planner)

// WithARM replaces the ARM disassembler.
func WithARM(d Disassembler) PlannerOption {
	return func(p *Planner) {
		p.arm = d
	}
}

// WithThumb replaces the Thumb disassembler.
func WithThumb(d Disassembler) PlannerOption {
	return func(p *Planner) {
		p.thumb = d
	}
}

// WithLogger sets the logger decode failures are reported to.
func WithLogger(l logr.Logger) PlannerOption {
	return func(p *Planner) {
		p.log = l
	}
}

// NewPlanner creates a planner using the built-in disassemblers unless
// overridden.
func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{
		arm:   ARM{},
		thumb: Thumb{},
		log:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Planner) disassembler(v Variant) Disassembler {
	switch v {
	case VariantThumb:
		return p.thumb
	default:
		return p.arm
	}
}

// Plan disassembles the window around pc. biosBase is the view offset of
// address zero. Failures are logged and returned as a failed Result; they
// never propagate.
func (p *Planner) Plan(view []byte, biosBase, pc uint32, st cpustate.State) Result {
	v := VariantFor(st)
	w := PlanWindow(pc, st.Width())

	if w.End < w.Start {
		reason := fmt.Sprintf("window 0x%08x-0x%08x wraps past the top of the address space", w.Start, w.End)
		p.log.Info("disassembly failed", "reason", reason, "variant", v.String())
		return DecodeFailed(w, v, reason)
	}

	code, ok := memview.New(view).Slice(uint64(biosBase)+uint64(w.Start), uint64(biosBase)+uint64(w.End))
	if !ok {
		reason := fmt.Sprintf("window 0x%08x-0x%08x lies outside the %d byte memory view", w.Start, w.End, len(view))
		p.log.Info("disassembly failed", "reason", reason, "variant", v.String())
		return DecodeFailed(w, v, reason)
	}

	lines, err := p.disassembler(v).Disassemble(code, w.Base)
	if err != nil {
		p.log.Error(err, "disassembly failed", "start", w.Start, "end", w.End, "variant", v.String())
		return DecodeFailed(w, v, err.Error())
	}

	return Decoded(w, v, lines)
}

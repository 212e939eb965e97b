package session

import (
	"fmt"
	"image"
	"image/color"

	"github.com/sarchlab/gbadbg/control"
	"github.com/sarchlab/gbadbg/cpustate"
	"github.com/sarchlab/gbadbg/disasm"
	"github.com/sarchlab/gbadbg/video"
)

// NumRegisters is the number of general registers shown.
const NumRegisters = 16

// Display is everything the presentation layer shows.
type Display struct {
	Registers [NumRegisters]string
	State     cpustate.State
	Flags     string
	Mode      string

	Variant disasm.Variant
	Window  disasm.Window
	Lines   []disasm.Line
	// DisasmError is the reason the latest disassembly failed. Lines then
	// still hold the last successful result.
	DisasmError string

	BGSwatch     []color.RGBA
	SpriteSwatch []color.RGBA
	Tiles        *image.RGBA

	InstructionCount uint64
	LastRun          *control.RunResult
}

// Display returns the display produced by the last refresh.
func (s *Session) Display() Display {
	return s.display
}

// Refresh rebuilds the display from the engine.
func (s *Session) Refresh() {
	d := &s.display
	pc := s.engine.Register(control.PCRegister)

	for i := range d.Registers {
		d.Registers[i] = fmt.Sprintf("%08X", s.engine.Register(i))
	}

	d.State = cpustate.Decode(s.engine.CPSR())
	d.Flags = d.State.Flags.String()
	d.Mode = d.State.Mode.String()

	res := s.planner.Plan(s.view.Bytes(), s.bases.BIOS, pc, d.State)
	d.Variant, d.Window = res.Variant, res.Window
	if res.Failed() {
		d.DisasmError = res.Reason
	} else {
		d.Lines = res.Lines
		d.DisasmError = ""
	}

	s.cache.Reset()
	d.BGSwatch = video.Swatch(s.cache, s.bases.BGPalette, s.order)
	d.SpriteSwatch = video.Swatch(s.cache, s.bases.SpritePalette, s.order)
	d.Tiles = video.RenderTiles(s.cache, video.TileBases{
		VRAM:          s.bases.VRAM,
		BGPalette:     s.bases.BGPalette,
		SpritePalette: s.bases.SpritePalette,
	}, s.order)

	d.InstructionCount = s.ctrl.InstructionCount()
	d.LastRun = s.lastRun
}

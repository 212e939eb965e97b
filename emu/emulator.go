package emu

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// DefaultFrameInstructions approximates one 280896-cycle display frame at
// four cycles per instruction.
const DefaultFrameInstructions = 280896 / 4

// Upload errors.
var (
	ErrBIOSSize = errors.New("bios image size out of range")
	ErrROMSize  = errors.New("rom image size out of range")
	ErrUnmapped = errors.New("address not mapped")
)

// fetched is one pipeline slot.
type fetched struct {
	addr  uint32
	op    uint32
	thumb bool
}

// Emulator is a control-flow model of the GBA CPU. It follows branches,
// exceptions and state switches through a three-stage pipeline but does
// not execute data-processing or memory instructions.
type Emulator struct {
	regs     RegFile
	mem      *Memory
	pipeline []fetched

	frameInstructions int
	panicHook         func(any)
	log               logr.Logger

	// Execution state
	stepCount uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithFrameInstructions sets the number of engine steps in one frame.
func WithFrameInstructions(n int) EmulatorOption {
	return func(e *Emulator) {
		e.frameInstructions = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.log = l
	}
}

// NewEmulator creates an emulator in its cold-reset state with no BIOS or
// cartridge loaded.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		mem:               NewMemory(),
		pipeline:          make([]fetched, 0, 3),
		frameInstructions: DefaultFrameInstructions,
		log:               logr.Discard(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.Reset()
	return e
}

// Reset restores the cold-reset CPU state and empties the pipeline.
// Memory is left untouched.
func (e *Emulator) Reset() {
	e.regs.Reset()
	e.pipeline = e.pipeline[:0]
	e.stepCount = 0
}

// UploadBIOS replaces the BIOS image and resets the CPU.
func (e *Emulator) UploadBIOS(data []byte) error {
	if len(data) == 0 || len(data) > BIOSSize {
		return fmt.Errorf("%w: %d bytes", ErrBIOSSize, len(data))
	}

	e.mem.LoadBIOS(data)
	e.Reset()
	e.log.V(1).Info("bios uploaded", "bytes", len(data))
	return nil
}

// UploadROM replaces the cartridge image and resets the CPU. The memory
// buffer is reallocated, so every offset must be fetched again.
func (e *Emulator) UploadROM(data []byte) error {
	if len(data) == 0 || len(data) > MaxROMSize {
		return fmt.Errorf("%w: %d bytes", ErrROMSize, len(data))
	}

	e.mem.LoadROM(data)
	e.Reset()
	e.log.V(1).Info("rom uploaded", "bytes", len(data),
		"bios", e.BIOS(), "vram", e.VRAM())
	return nil
}

// SetPanicHook installs a function that receives panics raised while
// stepping. Without a hook, panics propagate.
func (e *Emulator) SetPanicHook(hook func(recovered any)) {
	e.panicHook = hook
}

// Step fetches one instruction and executes the oldest one in the
// pipeline. It returns true when the executed instruction flushed the
// pipeline.
func (e *Emulator) Step() (flushed bool) {
	if e.panicHook != nil {
		defer func() {
			if r := recover(); r != nil {
				e.panicHook(r)
				flushed = false
			}
		}()
	}
	return e.step()
}

func (e *Emulator) step() bool {
	pc := e.regs.R[RegPC]
	width := e.regs.Width()

	slot := fetched{addr: pc, thumb: e.regs.Thumb()}
	if slot.thumb {
		slot.op = uint32(e.mem.Read16(pc))
	} else {
		slot.op = e.mem.Read32(pc)
	}
	e.pipeline = append(e.pipeline, slot)
	e.stepCount++

	if len(e.pipeline) == 3 {
		exec := e.pipeline[0]
		e.pipeline = append(e.pipeline[:0], e.pipeline[1:]...)

		var flush bool
		if exec.thumb {
			flush = e.executeThumb(exec.addr, uint16(exec.op))
		} else {
			flush = e.executeARM(exec.addr, exec.op)
		}
		if flush {
			e.pipeline = e.pipeline[:0]
			return true
		}
	}

	e.regs.R[RegPC] = pc + width
	return false
}

// Frame runs one frame's worth of engine steps.
func (e *Emulator) Frame() {
	for i := 0; i < e.frameInstructions; i++ {
		e.Step()
	}
}

// Register returns R0-R15. It panics on any other index.
func (e *Emulator) Register(i int) uint32 {
	if i < 0 || i >= len(e.regs.R) {
		panic(fmt.Sprintf("register index %d out of range", i))
	}
	return e.regs.R[i]
}

// CPSR returns the current program status register.
func (e *Emulator) CPSR() uint32 {
	return e.regs.CPSR
}

// SPSR returns the status word saved by the last exception.
func (e *Emulator) SPSR() uint32 {
	return e.regs.SPSR
}

// RegFile returns the register file.
func (e *Emulator) RegFile() *RegFile {
	return &e.regs
}

// StepCount returns the number of engine steps since the last reset.
func (e *Emulator) StepCount() uint64 {
	return e.stepCount
}

// Memory returns the flat memory buffer.
func (e *Emulator) Memory() []byte {
	return e.mem.Bytes()
}

// BIOS returns the buffer offset of the BIOS region.
func (e *Emulator) BIOS() uint32 {
	return e.mem.Offset(RegionBIOS)
}

// VRAM returns the buffer offset of video RAM.
func (e *Emulator) VRAM() uint32 {
	return e.mem.Offset(RegionVRAM)
}

// BGPalette returns the buffer offset of the 32-bit background palette.
func (e *Emulator) BGPalette() uint32 {
	return e.mem.Offset(RegionBGPalette)
}

// SpritePalette returns the buffer offset of the 32-bit sprite palette.
func (e *Emulator) SpritePalette() uint32 {
	return e.mem.Offset(RegionSpritePalette)
}

// WriteMemory stores data on the bus starting at addr.
func (e *Emulator) WriteMemory(addr uint32, data []byte) error {
	return e.mem.Write(addr, data)
}

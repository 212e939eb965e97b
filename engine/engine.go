// Package engine defines the contract between the debugger and the
// emulation engine it inspects.
//
// Offsets returned by the engine index into Memory(). Uploads may replace
// the buffer, so offsets and the buffer must be fetched again after every
// upload.
package engine

// Engine is an emulated GBA CPU with its memory.
type Engine interface {
	UploadBIOS(data []byte) error
	UploadROM(data []byte) error

	// Step advances one pipeline stage and reports whether the executed
	// instruction flushed the pipeline.
	Step() bool
	Frame()

	// Register returns R0-R15. R15 reads ahead of the executing
	// instruction by two instruction widths.
	Register(i int) uint32
	CPSR() uint32

	BIOS() uint32
	VRAM() uint32
	BGPalette() uint32
	SpritePalette() uint32
	Memory() []byte

	SetPanicHook(hook func(recovered any))
}

// Poker is implemented by engines that accept direct memory writes.
type Poker interface {
	WriteMemory(addr uint32, data []byte) error
}

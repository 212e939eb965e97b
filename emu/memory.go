// Package emu provides a reference engine for the debugger: a control-flow
// model of the GBA's ARM7TDMI.
package emu

import (
	"encoding/binary"
	"fmt"
)

// GBA address map.
const (
	BIOSStart  = 0x00000000
	BIOSSize   = 0x4000
	EWRAMStart = 0x02000000
	EWRAMSize  = 0x40000
	IWRAMStart = 0x03000000
	IWRAMSize  = 0x8000
	IOStart    = 0x04000000
	IOSize     = 0x400
	PALStart   = 0x05000000
	PALSize    = 0x400
	VRAMStart  = 0x06000000
	VRAMSize   = 0x18000
	OAMStart   = 0x07000000
	OAMSize    = 0x400
	ROMStart   = 0x08000000
	// ROMMirror is the distance between the three wait-state mirrors of
	// the cartridge ROM.
	ROMMirror  = 0x02000000
	MaxROMSize = 0x02000000

	// SpritePaletteStart splits palette RAM into background and sprite
	// halves.
	SpritePaletteStart = PALStart + PALSize/2

	// PaletteCacheSize is the size of one 32-bit palette cache.
	PaletteCacheSize = 256 * 4
)

// Region identifies a block of the flat memory buffer.
type Region int

// Regions in buffer order. ROM comes first, so resizing it moves every
// other region.
const (
	RegionROM Region = iota
	RegionBIOS
	RegionEWRAM
	RegionIWRAM
	RegionIO
	RegionPAL
	RegionVRAM
	RegionOAM
	RegionBGPalette
	RegionSpritePalette
	numRegions
)

var regionNames = [numRegions]string{
	"rom", "bios", "ewram", "iwram", "io", "pal", "vram", "oam", "bgpal", "objpal",
}

func (r Region) String() string {
	if r < 0 || r >= numRegions {
		return fmt.Sprintf("region(%d)", int(r))
	}
	return regionNames[r]
}

// Memory is the GBA address space packed into one flat buffer, followed by
// the two 32-bit palette caches derived from palette RAM.
type Memory struct {
	buf    []byte
	offset [numRegions]uint32
	size   [numRegions]uint32
}

// NewMemory creates a memory with an empty cartridge.
func NewMemory() *Memory {
	m := &Memory{}
	m.size = [numRegions]uint32{
		RegionROM:           0,
		RegionBIOS:          BIOSSize,
		RegionEWRAM:         EWRAMSize,
		RegionIWRAM:         IWRAMSize,
		RegionIO:            IOSize,
		RegionPAL:           PALSize,
		RegionVRAM:          VRAMSize,
		RegionOAM:           OAMSize,
		RegionBGPalette:     PaletteCacheSize,
		RegionSpritePalette: PaletteCacheSize,
	}
	m.layout()
	return m
}

// layout allocates a fresh buffer for the current region sizes, carrying
// over the contents of every region that kept its size.
func (m *Memory) layout() {
	old, oldOffset := m.buf, m.offset

	var total uint32
	for r := Region(0); r < numRegions; r++ {
		m.offset[r] = total
		total += m.size[r]
	}
	m.buf = make([]byte, total)

	if old == nil {
		return
	}
	for r := RegionBIOS; r < numRegions; r++ {
		copy(m.buf[m.offset[r]:m.offset[r]+m.size[r]], old[oldOffset[r]:])
	}
}

// Bytes returns the flat buffer. It is replaced whenever a ROM is loaded.
func (m *Memory) Bytes() []byte {
	return m.buf
}

// Offset returns the buffer offset of a region.
func (m *Memory) Offset(r Region) uint32 {
	return m.offset[r]
}

// Size returns the size of a region in bytes.
func (m *Memory) Size(r Region) uint32 {
	return m.size[r]
}

// LoadROM replaces the cartridge image, reallocating the buffer.
func (m *Memory) LoadROM(data []byte) {
	m.size[RegionROM] = (uint32(len(data)) + 3) &^ 3
	m.layout()
	copy(m.buf[m.offset[RegionROM]:], data)
}

// LoadBIOS replaces the BIOS image.
func (m *Memory) LoadBIOS(data []byte) {
	bios := m.region(RegionBIOS)
	n := copy(bios, data)
	clear(bios[n:])
}

func (m *Memory) region(r Region) []byte {
	return m.buf[m.offset[r] : m.offset[r]+m.size[r]]
}

// translate maps a bus address to a buffer offset.
func (m *Memory) translate(addr uint32) (uint32, bool) {
	var r Region
	var rel uint32

	switch {
	case addr < BIOSStart+BIOSSize:
		r, rel = RegionBIOS, addr
	case addr >= EWRAMStart && addr < EWRAMStart+0x01000000:
		r, rel = RegionEWRAM, (addr-EWRAMStart)%EWRAMSize
	case addr >= IWRAMStart && addr < IWRAMStart+0x01000000:
		r, rel = RegionIWRAM, (addr-IWRAMStart)%IWRAMSize
	case addr >= IOStart && addr < IOStart+IOSize:
		r, rel = RegionIO, addr-IOStart
	case addr >= PALStart && addr < PALStart+0x01000000:
		r, rel = RegionPAL, (addr-PALStart)%PALSize
	case addr >= VRAMStart && addr < VRAMStart+VRAMSize:
		r, rel = RegionVRAM, addr-VRAMStart
	case addr >= OAMStart && addr < OAMStart+0x01000000:
		r, rel = RegionOAM, (addr-OAMStart)%OAMSize
	case addr >= ROMStart && addr < ROMStart+3*ROMMirror:
		r, rel = RegionROM, (addr-ROMStart)%ROMMirror
	default:
		return 0, false
	}

	if rel >= m.size[r] {
		return 0, false
	}
	return m.offset[r] + rel, true
}

// Read8 reads a byte. Unmapped addresses read as zero.
func (m *Memory) Read8(addr uint32) byte {
	off, ok := m.translate(addr)
	if !ok {
		return 0
	}
	return m.buf[off]
}

// Read16 reads a little-endian halfword from a halfword-aligned address.
func (m *Memory) Read16(addr uint32) uint16 {
	addr &^= 1
	return uint16(m.Read8(addr)) | uint16(m.Read8(addr+1))<<8
}

// Read32 reads a little-endian word from a word-aligned address.
func (m *Memory) Read32(addr uint32) uint32 {
	addr &^= 3
	return uint32(m.Read16(addr)) | uint32(m.Read16(addr+2))<<16
}

// Write8 stores a byte. Writes to palette RAM refresh the 32-bit palette
// caches. Writes to unmapped addresses are dropped.
func (m *Memory) Write8(addr uint32, val byte) bool {
	off, ok := m.translate(addr)
	if !ok {
		return false
	}
	m.buf[off] = val
	if addr >= PALStart && addr < PALStart+0x01000000 {
		m.updatePalette(PALStart + (addr-PALStart)%PALSize)
	}
	return true
}

// Write copies data to consecutive addresses starting at addr.
func (m *Memory) Write(addr uint32, data []byte) error {
	for i, b := range data {
		if !m.Write8(addr+uint32(i), b) {
			return fmt.Errorf("%w: 0x%08x", ErrUnmapped, addr+uint32(i))
		}
	}
	return nil
}

// updatePalette converts the 15-bit color containing addr into its 32-bit
// cache entry.
func (m *Memory) updatePalette(addr uint32) {
	cache := m.region(RegionBGPalette)
	if addr >= SpritePaletteStart {
		cache = m.region(RegionSpritePalette)
	}
	idx := ((addr - PALStart) / 2) % 256
	binary.LittleEndian.PutUint32(cache[idx*4:], HighToTrue(m.Read16(addr)))
}

// HighToTrue converts a 15-bit BGR color to a 32-bit 0xAARRGGBB word with
// full alpha. Each 5-bit channel moves into the top bits of its byte.
func HighToTrue(color uint16) uint32 {
	c := uint32(color)
	red := c & 0x1F
	green := (c >> 5) & 0x1F
	blue := (c >> 10) & 0x1F
	return 0xFF000000 | red<<19 | green<<11 | blue<<3
}

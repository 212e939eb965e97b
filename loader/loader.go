// Package loader reads BIOS and cartridge images from disk.
//
// Cartridge images are either raw dumps or 32-bit ARM ELF executables whose
// loadable segments are placed in the cartridge ROM window.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// ROMWindowStart and ROMWindowSize bound the addresses an ELF segment may
// be loaded at.
const (
	ROMWindowStart = 0x08000000
	ROMWindowSize  = 0x02000000
)

// Loader errors.
var (
	ErrEmpty         = errors.New("image is empty")
	ErrNotARM32      = errors.New("not a 32-bit ARM ELF file")
	ErrNoROMSegments = errors.New("no loadable segment in the ROM window")
	ErrShortHeader   = errors.New("image too short for a cartridge header")
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Format tells how an image was stored on disk.
type Format uint8

// Image formats.
const (
	FormatRaw Format = iota
	FormatELF
)

func (f Format) String() string {
	if f == FormatELF {
		return "elf"
	}
	return "raw"
}

// Image is a cartridge or BIOS image ready for upload.
type Image struct {
	Path   string
	Format Format
	Data   []byte
	// Entry is the ELF entry point. Zero for raw images.
	Entry uint32
}

// Load reads an image file. ELF files are flattened into a ROM image; any
// other file is taken as a raw dump.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return Parse(path, data)
}

// Parse interprets image bytes read from path. ELF data is flattened into
// a ROM image; anything else is taken as a raw dump.
func Parse(path string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}

	if bytes.HasPrefix(data, elfMagic) {
		return parseELF(path, data)
	}

	return &Image{Path: path, Format: FormatRaw, Data: data}, nil
}

// LoadRaw reads a file without interpreting it.
func LoadRaw(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return &Image{Path: path, Format: FormatRaw, Data: data}, nil
}

// Pair holds a BIOS and a cartridge image. Either may be nil when its path
// was empty.
type Pair struct {
	BIOS *Image
	ROM  *Image
}

// LoadPair reads the BIOS and the cartridge concurrently. The BIOS is
// always read raw.
func LoadPair(ctx context.Context, biosPath, romPath string) (*Pair, error) {
	var pair Pair
	g, ctx := errgroup.WithContext(ctx)

	if biosPath != "" {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := LoadRaw(biosPath)
			if err != nil {
				return fmt.Errorf("bios: %w", err)
			}
			pair.BIOS = img
			return nil
		})
	}

	if romPath != "" {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := Load(romPath)
			if err != nil {
				return fmt.Errorf("rom: %w", err)
			}
			pair.ROM = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &pair, nil
}

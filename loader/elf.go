package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
)

// parseELF flattens the PT_LOAD segments of a 32-bit ARM executable into a
// ROM image. Segments are placed by physical address, so initialised data
// copied to work RAM at startup stays in the image at its load address.
// Segments outside the ROM window are skipped.
func parseELF(path string, data []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}

	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("%w (class %v, machine %v)", ErrNotARM32, f.Class, f.Machine)
	}

	var rom []byte
	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Memsz == 0 {
			continue
		}
		if phdr.Paddr < ROMWindowStart || phdr.Paddr+phdr.Memsz > ROMWindowStart+ROMWindowSize {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Paddr, n, phdr.Filesz)
			}
		}

		start := phdr.Paddr - ROMWindowStart
		end := start + phdr.Memsz
		if uint64(len(rom)) < end {
			rom = append(rom, make([]byte, end-uint64(len(rom)))...)
		}
		copy(rom[start:end], data)
	}

	if len(rom) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoROMSegments)
	}

	return &Image{
		Path:   path,
		Format: FormatELF,
		Data:   rom,
		Entry:  uint32(f.Entry),
	}, nil
}

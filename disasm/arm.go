package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
)

// ARM disassembles 32-bit ARM instructions with golang.org/x/arch.
type ARM struct{}

// Disassemble implements Disassembler.
func (ARM) Disassemble(code []byte, base uint32) ([]Line, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes in ARM state", ErrUnaligned, len(code))
	}

	lines := make([]Line, 0, len(code)/4)
	for off := 0; off < len(code); off += 4 {
		addr := base + uint32(off)
		inst, err := armasm.Decode(code[off:off+4], armasm.ModeARM)
		if err != nil {
			return nil, fmt.Errorf("decode %08x at 0x%08x: %w",
				binary.LittleEndian.Uint32(code[off:]), addr, err)
		}

		mnemonic, operands := splitSyntax(armasm.GNUSyntax(inst))
		lines = append(lines, Line{
			Address:  addr,
			Raw:      append([]byte(nil), code[off:off+4]...),
			Mnemonic: mnemonic,
			Operands: operands,
		})
	}

	return lines, nil
}

func splitSyntax(text string) (string, string) {
	mnemonic, operands, _ := strings.Cut(strings.TrimSpace(text), " ")
	return mnemonic, strings.TrimSpace(operands)
}

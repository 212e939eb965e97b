package disasm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrUndefined is returned for encodings outside the ARMv4T Thumb set.
var ErrUndefined = errors.New("undefined thumb instruction")

// Thumb disassembles 16-bit ARMv4T Thumb instructions. A long branch with
// link prefix followed by its suffix is shown as one 4 byte line.
type Thumb struct{}

var condNames = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "al", "nv",
}

var regNames = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

// Disassemble implements Disassembler.
func (Thumb) Disassemble(code []byte, base uint32) ([]Line, error) {
	if len(code)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes in Thumb state", ErrUnaligned, len(code))
	}

	lines := make([]Line, 0, len(code)/2)
	for off := 0; off < len(code); off += 2 {
		addr := base + uint32(off)
		opcode := binary.LittleEndian.Uint16(code[off:])

		if isBLPrefix(opcode) && off+4 <= len(code) {
			if next := binary.LittleEndian.Uint16(code[off+2:]); isBLSuffix(next) {
				lines = append(lines, Line{
					Address:  addr,
					Raw:      append([]byte(nil), code[off:off+4]...),
					Mnemonic: "bl",
					Operands: fmt.Sprintf("0x%08x", longBranchTarget(addr, opcode, next)),
				})
				off += 2
				continue
			}
		}

		mnemonic, operands, err := decodeThumb(opcode, addr)
		if err != nil {
			return nil, fmt.Errorf("decode %04x at 0x%08x: %w", opcode, addr, err)
		}
		lines = append(lines, Line{
			Address:  addr,
			Raw:      append([]byte(nil), code[off:off+2]...),
			Mnemonic: mnemonic,
			Operands: operands,
		})
	}

	return lines, nil
}

func isBLPrefix(opcode uint16) bool { return opcode&0xf800 == 0xf000 }
func isBLSuffix(opcode uint16) bool { return opcode&0xf800 == 0xf800 }

func longBranchTarget(addr uint32, hi, lo uint16) uint32 {
	offset := signExtend(uint32(hi&0x07ff), 11)<<12 | int32(lo&0x07ff)<<1
	return uint32(int32(addr+4) + offset)
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func decodeThumb(opcode uint16, addr uint32) (string, string, error) {
	switch {
	case opcode&0xf000 == 0xf000:
		// format 19 - long branch with link, unpaired half
		off := uint32(opcode & 0x07ff)
		if opcode&0x0800 == 0 {
			return "bl.1", fmt.Sprintf("lr, pc, #%d", signExtend(off, 11)<<12), nil
		}
		return "bl.2", fmt.Sprintf("pc, lr, #0x%x", off<<1), nil
	case opcode&0xf800 == 0xe000:
		// format 18 - unconditional branch
		target := int32(addr+4) + signExtend(uint32(opcode&0x07ff), 11)<<1
		return "b", fmt.Sprintf("0x%08x", uint32(target)), nil
	case opcode&0xff00 == 0xdf00:
		// format 17 - software interrupt
		return "swi", fmt.Sprintf("#0x%02x", opcode&0xff), nil
	case opcode&0xf000 == 0xd000:
		// format 16 - conditional branch
		cond := (opcode >> 8) & 0xf
		if cond == 0xe {
			return "", "", ErrUndefined
		}
		target := int32(addr+4) + signExtend(uint32(opcode&0xff), 8)<<1
		return "b" + condNames[cond], fmt.Sprintf("0x%08x", uint32(target)), nil
	case opcode&0xf000 == 0xc000:
		// format 15 - multiple load/store
		op := "stmia"
		if opcode&0x0800 != 0 {
			op = "ldmia"
		}
		return op, fmt.Sprintf("%s!, %s", regNames[(opcode>>8)&7], regList(opcode&0xff, "")), nil
	case opcode&0xf600 == 0xb400:
		// format 14 - push/pop registers
		if opcode&0x0800 != 0 {
			extra := ""
			if opcode&0x0100 != 0 {
				extra = "pc"
			}
			return "pop", regList(opcode&0xff, extra), nil
		}
		extra := ""
		if opcode&0x0100 != 0 {
			extra = "lr"
		}
		return "push", regList(opcode&0xff, extra), nil
	case opcode&0xff00 == 0xb000:
		// format 13 - add offset to stack pointer
		imm := (opcode & 0x7f) << 2
		if opcode&0x80 != 0 {
			return "sub", fmt.Sprintf("sp, #0x%x", imm), nil
		}
		return "add", fmt.Sprintf("sp, #0x%x", imm), nil
	case opcode&0xf000 == 0xa000:
		// format 12 - load address
		src := "pc"
		if opcode&0x0800 != 0 {
			src = "sp"
		}
		return "add", fmt.Sprintf("%s, %s, #0x%x", regNames[(opcode>>8)&7], src, (opcode&0xff)<<2), nil
	case opcode&0xf000 == 0x9000:
		// format 11 - SP-relative load/store
		op := "str"
		if opcode&0x0800 != 0 {
			op = "ldr"
		}
		return op, fmt.Sprintf("%s, [sp, #0x%x]", regNames[(opcode>>8)&7], (opcode&0xff)<<2), nil
	case opcode&0xf000 == 0x8000:
		// format 10 - load/store halfword
		op := "strh"
		if opcode&0x0800 != 0 {
			op = "ldrh"
		}
		return op, immOffset(opcode, ((opcode>>6)&0x1f)<<1), nil
	case opcode&0xe000 == 0x6000:
		// format 9 - load/store with immediate offset
		byteWide := opcode&0x1000 != 0
		load := opcode&0x0800 != 0
		imm := (opcode >> 6) & 0x1f
		op := "str"
		if load {
			op = "ldr"
		}
		if byteWide {
			op += "b"
		} else {
			imm <<= 2
		}
		return op, immOffset(opcode, imm), nil
	case opcode&0xf200 == 0x5200:
		// format 8 - load/store sign-extended byte/halfword
		op := [4]string{"strh", "ldsb", "ldrh", "ldsh"}[(opcode>>10)&3]
		return op, regOffset(opcode), nil
	case opcode&0xf200 == 0x5000:
		// format 7 - load/store with register offset
		op := [4]string{"str", "strb", "ldr", "ldrb"}[(opcode>>10)&3]
		return op, regOffset(opcode), nil
	case opcode&0xf800 == 0x4800:
		// format 6 - PC-relative load
		return "ldr", fmt.Sprintf("%s, [pc, #0x%x]", regNames[(opcode>>8)&7], (opcode&0xff)<<2), nil
	case opcode&0xfc00 == 0x4400:
		// format 5 - hi register operations/branch exchange
		rd := (opcode & 7) | (opcode>>4)&8
		rs := (opcode >> 3) & 0xf
		switch (opcode >> 8) & 3 {
		case 0:
			return "add", regNames[rd] + ", " + regNames[rs], nil
		case 1:
			return "cmp", regNames[rd] + ", " + regNames[rs], nil
		case 2:
			return "mov", regNames[rd] + ", " + regNames[rs], nil
		default:
			if opcode&0x80 != 0 {
				return "", "", ErrUndefined
			}
			return "bx", regNames[rs], nil
		}
	case opcode&0xfc00 == 0x4000:
		// format 4 - ALU operations
		op := [16]string{
			"and", "eor", "lsl", "lsr", "asr", "adc", "sbc", "ror",
			"tst", "neg", "cmp", "cmn", "orr", "mul", "bic", "mvn",
		}[(opcode>>6)&0xf]
		return op, regNames[opcode&7] + ", " + regNames[(opcode>>3)&7], nil
	case opcode&0xe000 == 0x2000:
		// format 3 - move/compare/add/subtract immediate
		op := [4]string{"mov", "cmp", "add", "sub"}[(opcode>>11)&3]
		return op, fmt.Sprintf("%s, #0x%x", regNames[(opcode>>8)&7], opcode&0xff), nil
	case opcode&0xf800 == 0x1800:
		// format 2 - add/subtract
		op := "add"
		if opcode&0x0200 != 0 {
			op = "sub"
		}
		rn := (opcode >> 6) & 7
		operand := regNames[rn]
		if opcode&0x0400 != 0 {
			operand = fmt.Sprintf("#0x%x", rn)
		}
		return op, fmt.Sprintf("%s, %s, %s", regNames[opcode&7], regNames[(opcode>>3)&7], operand), nil
	case opcode&0xe000 == 0x0000:
		// format 1 - move shifted register
		op := [3]string{"lsl", "lsr", "asr"}[(opcode>>11)&3]
		return op, fmt.Sprintf("%s, %s, #0x%x", regNames[opcode&7], regNames[(opcode>>3)&7], (opcode>>6)&0x1f), nil
	}

	return "", "", ErrUndefined
}

func immOffset(opcode, imm uint16) string {
	return fmt.Sprintf("%s, [%s, #0x%x]", regNames[opcode&7], regNames[(opcode>>3)&7], imm)
}

func regOffset(opcode uint16) string {
	return fmt.Sprintf("%s, [%s, %s]", regNames[opcode&7], regNames[(opcode>>3)&7], regNames[(opcode>>6)&7])
}

func regList(mask uint16, extra string) string {
	var regs []string
	for i := 0; i < 8; i++ {
		if mask&(1<<i) != 0 {
			regs = append(regs, regNames[i])
		}
	}
	if extra != "" {
		regs = append(regs, extra)
	}
	return "{" + strings.Join(regs, ", ") + "}"
}

package disasm_test

import (
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/cpustate"
	"github.com/sarchlab/gbadbg/disasm"
)

// recordingDisassembler remembers what it was asked to decode.
type recordingDisassembler struct {
	code  []byte
	base  uint32
	calls int
	err   error
}

func (r *recordingDisassembler) Disassemble(code []byte, base uint32) ([]disasm.Line, error) {
	r.calls++
	r.code = append([]byte(nil), code...)
	r.base = base
	if r.err != nil {
		return nil, r.err
	}
	return []disasm.Line{{Address: base, Raw: code, Mnemonic: "nop"}}, nil
}

var (
	armState   = cpustate.Decode(0xD3)
	thumbState = cpustate.Decode(0x3F)
)

var _ = Describe("PlanWindow", func() {
	It("should look back two Thumb instructions", func() {
		w := disasm.PlanWindow(0x100, 2)
		Expect(w).To(Equal(disasm.Window{Start: 0xFC, End: 0x102, Base: 0xFC}))
	})

	It("should clamp the start at zero", func() {
		w := disasm.PlanWindow(0x04, 4)
		Expect(w).To(Equal(disasm.Window{Start: 0, End: 0x08, Base: 0}))
	})

	It("should let the end wrap at the top of the address space", func() {
		w := disasm.PlanWindow(0xFFFFFFFC, 4)
		Expect(w.Start).To(Equal(uint32(0xFFFFFFF4)))
		Expect(w.End).To(Equal(uint32(0)))
	})

	It("should cover three ARM instructions", func() {
		w := disasm.PlanWindow(0x0800, 4)
		Expect(w.Start).To(Equal(uint32(0x07F8)))
		Expect(w.End - w.Start).To(Equal(uint32(12)))
	})
})

var _ = Describe("Planner", func() {
	var (
		view  []byte
		arm   *recordingDisassembler
		thumb *recordingDisassembler
		p     *disasm.Planner
	)

	BeforeEach(func() {
		view = make([]byte, 0x400)
		for i := range view {
			view[i] = byte(i)
		}
		arm = &recordingDisassembler{}
		thumb = &recordingDisassembler{}
		p = disasm.NewPlanner(
			disasm.WithARM(arm),
			disasm.WithThumb(thumb),
			disasm.WithLogger(GinkgoLogr),
		)
	})

	It("should slice relative to the BIOS base and label from the window start", func() {
		res := p.Plan(view, 0x100, 0x20, armState)

		Expect(res.Failed()).To(BeFalse())
		Expect(res.Variant).To(Equal(disasm.VariantARM))
		Expect(arm.calls).To(Equal(1))
		Expect(thumb.calls).To(Equal(0))
		Expect(arm.base).To(Equal(uint32(0x18)))
		Expect(arm.code).To(Equal(view[0x118:0x124]))
	})

	It("should select the Thumb disassembler from the T flag", func() {
		res := p.Plan(view, 0, 0x100, thumbState)

		Expect(res.Variant).To(Equal(disasm.VariantThumb))
		Expect(thumb.calls).To(Equal(1))
		Expect(thumb.code).To(HaveLen(6))
		Expect(thumb.base).To(Equal(uint32(0xFC)))
	})

	It("should pass lines through unmodified", func() {
		res := p.Plan(view, 0, 0x10, armState)
		Expect(res.Lines).To(HaveLen(1))
		Expect(res.Lines[0].Mnemonic).To(Equal("nop"))
		Expect(res.Lines[0].Address).To(Equal(uint32(0x08)))
	})

	It("should turn disassembler errors into a failed result", func() {
		arm.err = errors.New("bad encoding")
		res := p.Plan(view, 0, 0x10, armState)

		Expect(res.Failed()).To(BeTrue())
		Expect(res.Reason).To(ContainSubstring("bad encoding"))
		Expect(res.Lines).To(BeEmpty())
	})

	DescribeTable("should fail windows that wrap past 0xFFFFFFFF",
		func(pc uint32, st cpustate.State) {
			var res disasm.Result
			Expect(func() { res = p.Plan(view, 0, pc, st) }).NotTo(Panic())

			Expect(res.Failed()).To(BeTrue())
			Expect(res.Reason).To(ContainSubstring("wraps"))
			Expect(arm.calls + thumb.calls).To(Equal(0))
		},
		Entry("ARM at the last word", uint32(0xFFFFFFFC), armState),
		Entry("ARM past the last word", uint32(0xFFFFFFFE), armState),
		Entry("Thumb at the last halfword", uint32(0xFFFFFFFE), thumbState),
	)

	It("should fail a wrapped window even with a non-zero BIOS base", func() {
		res := p.Plan(view, 0x100, 0xFFFFFFFC, armState)
		Expect(res.Failed()).To(BeTrue())
	})

	It("should fail windows that leave the memory view", func() {
		res := p.Plan(view, 0x3F8, 0x10, armState)

		Expect(res.Failed()).To(BeTrue())
		Expect(res.Reason).To(ContainSubstring("outside"))
		Expect(arm.calls).To(Equal(0))
	})
})

var _ = Describe("ARM", func() {
	It("should decode little-endian ARM words", func() {
		// mov r0, #1
		lines, err := disasm.ARM{}.Disassemble([]byte{0x01, 0x00, 0xa0, 0xe3}, 0x100)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(1))
		Expect(lines[0].Address).To(Equal(uint32(0x100)))
		Expect(lines[0].Mnemonic).To(Equal("mov"))
		Expect(lines[0].Operands).To(ContainSubstring("r0"))
		Expect(lines[0].Raw).To(Equal([]byte{0x01, 0x00, 0xa0, 0xe3}))
	})

	It("should label consecutive words", func() {
		code := make([]byte, 12)
		lines, err := disasm.ARM{}.Disassemble(code, 0x08)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(3))
		Expect(lines[2].Address).To(Equal(uint32(0x10)))
	})

	It("should reject unaligned input", func() {
		_, err := disasm.ARM{}.Disassemble([]byte{1, 2, 3}, 0)
		Expect(err).To(MatchError(disasm.ErrUnaligned))
	})
})

var _ = Describe("Thumb", func() {
	decode := func(opcodes ...uint16) []disasm.Line {
		code := make([]byte, 0, 2*len(opcodes))
		for _, op := range opcodes {
			code = append(code, byte(op), byte(op>>8))
		}
		lines, err := disasm.Thumb{}.Disassemble(code, 0x1000)
		Expect(err).NotTo(HaveOccurred())
		return lines
	}

	DescribeTable("formats",
		func(opcode uint16, mnemonic, operands string) {
			lines := decode(opcode)
			Expect(lines).To(HaveLen(1))
			Expect(lines[0].Mnemonic).To(Equal(mnemonic))
			Expect(lines[0].Operands).To(Equal(operands))
		},
		Entry("lsl", uint16(0x0088), "lsl", "r0, r1, #0x2"),
		Entry("add register", uint16(0x1888), "add", "r0, r1, r2"),
		Entry("sub immediate", uint16(0x1e48), "sub", "r0, r1, #0x1"),
		Entry("mov immediate", uint16(0x2005), "mov", "r0, #0x5"),
		Entry("alu", uint16(0x4048), "eor", "r0, r1"),
		Entry("hi mov", uint16(0x46c0), "mov", "r8, r8"),
		Entry("bx", uint16(0x4770), "bx", "lr"),
		Entry("pc-relative load", uint16(0x4801), "ldr", "r0, [pc, #0x4]"),
		Entry("register offset", uint16(0x5888), "ldr", "r0, [r1, r2]"),
		Entry("sign-extended", uint16(0x5e88), "ldsh", "r0, [r1, r2]"),
		Entry("immediate offset", uint16(0x6848), "ldr", "r0, [r1, #0x4]"),
		Entry("byte immediate offset", uint16(0x7848), "ldrb", "r0, [r1, #0x1]"),
		Entry("halfword", uint16(0x8848), "ldrh", "r0, [r1, #0x2]"),
		Entry("sp-relative", uint16(0x9001), "str", "r0, [sp, #0x4]"),
		Entry("load address", uint16(0xa901), "add", "r1, sp, #0x4"),
		Entry("sp offset", uint16(0xb082), "sub", "sp, #0x8"),
		Entry("push", uint16(0xb503), "push", "{r0, r1, lr}"),
		Entry("pop", uint16(0xbd01), "pop", "{r0, pc}"),
		Entry("ldmia", uint16(0xc906), "ldmia", "r1!, {r1, r2}"),
		Entry("beq", uint16(0xd0fe), "beq", "0x00001000"),
		Entry("swi", uint16(0xdf05), "swi", "#0x05"),
		Entry("b", uint16(0xe7fe), "b", "0x00001000"),
	)

	It("should merge a long branch with link pair", func() {
		// bl +0x100
		lines := decode(0xf000, 0xf880)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0].Mnemonic).To(Equal("bl"))
		Expect(lines[0].Operands).To(Equal("0x00001104"))
		Expect(lines[0].Raw).To(HaveLen(4))
	})

	It("should keep a lone long branch prefix at the window edge", func() {
		lines := decode(0x2001, 0xf000)
		Expect(lines).To(HaveLen(2))
		Expect(lines[1].Mnemonic).To(Equal("bl.1"))
	})

	It("should produce ordered lines with raw bytes", func() {
		lines := decode(0x2001, 0x2102, 0x1840)
		want := []disasm.Line{
			{Address: 0x1000, Raw: []byte{0x01, 0x20}, Mnemonic: "mov", Operands: "r0, #0x1"},
			{Address: 0x1002, Raw: []byte{0x02, 0x21}, Mnemonic: "mov", Operands: "r1, #0x2"},
			{Address: 0x1004, Raw: []byte{0x40, 0x18}, Mnemonic: "add", Operands: "r0, r0, r1"},
		}
		Expect(cmp.Diff(want, lines)).To(BeEmpty())
	})

	It("should reject undefined encodings", func() {
		_, err := disasm.Thumb{}.Disassemble([]byte{0x00, 0xe8}, 0)
		Expect(err).To(MatchError(disasm.ErrUndefined))
	})

	It("should reject an odd number of bytes", func() {
		_, err := disasm.Thumb{}.Disassemble([]byte{0x00, 0x20, 0x01}, 0)
		Expect(err).To(MatchError(disasm.ErrUnaligned))
	})
})

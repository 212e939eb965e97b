package script_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/script"
	"github.com/sarchlab/gbadbg/session"
)

var _ = Describe("Script", func() {
	var (
		s   *session.Session
		out *bytes.Buffer
		ctx context.Context
	)

	BeforeEach(func() {
		bios := make([]byte, 0x100)
		binary.LittleEndian.PutUint32(bios[0x10:], 0xEAFFFFFE) // b 0x10

		s = session.New(emu.NewEmulator())
		Expect(s.UploadBIOS(bios)).To(Succeed())
		out = &bytes.Buffer{}
		ctx = context.Background()
	})

	It("should step and report the count", func() {
		Expect(script.Run(ctx, s, "step() step() print(count())", out)).To(Succeed())
		Expect(out.String()).To(Equal("2\n"))
	})

	It("should trace", func() {
		Expect(script.Run(ctx, s, "trace(3) print(count())", out)).To(Succeed())
		Expect(out.String()).To(Equal("3\n"))
	})

	It("should expose the decoded state", func() {
		Expect(script.Run(ctx, s, "print(mode(), flags(), cpsr())", out)).To(Succeed())
		Expect(out.String()).To(Equal("Supervisor\t----I-\t211\n"))
	})

	It("should run to a breakpoint", func() {
		src := `
local outcome, steps = run_until(0x10)
print(outcome, steps, reg(15))
`
		Expect(script.Run(ctx, s, src, out)).To(Succeed())
		Expect(out.String()).To(Equal("breakpoint hit\t4\t24\n"))
	})

	It("should accept hex strings as breakpoints", func() {
		Expect(script.Run(ctx, s, `print(run_until("0x10"))`, out)).To(Succeed())
		Expect(out.String()).To(HavePrefix("breakpoint hit"))
	})

	It("should return the disassembly as a table", func() {
		Expect(script.Run(ctx, s, "print(#disasm())", out)).To(Succeed())
		Expect(out.String()).To(Equal("3\n"))
	})

	It("should surface session errors", func() {
		err := script.Run(ctx, s, `run_until("zz")`, out)
		Expect(err).To(MatchError(ContainSubstring("invalid breakpoint")))

		err = script.Run(ctx, s, `reg(16)`, out)
		Expect(err).To(MatchError(ContainSubstring("register index out of range")))

		err = script.Run(ctx, s, `trace(-1)`, out)
		Expect(err).To(MatchError(ContainSubstring("invalid trace count")))
	})

	It("should run files", func() {
		path := filepath.Join(GinkgoT().TempDir(), "probe.lua")
		Expect(os.WriteFile(path, []byte("frame() print(count())"), 0644)).To(Succeed())

		Expect(script.RunFile(ctx, s, path, out)).To(Succeed())
		Expect(out.String()).To(Equal("0\n"))
	})
})

package session_test

import (
	"context"
	"encoding/binary"
	"image/color"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/config"
	"github.com/sarchlab/gbadbg/control"
	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/session"
)

// hookCountingEngine records every panic hook it is given.
type hookCountingEngine struct {
	*emu.Emulator
	hooks int
	hook  func(any)
}

func (e *hookCountingEngine) SetPanicHook(h func(any)) {
	e.hooks++
	e.hook = h
	e.Emulator.SetPanicHook(h)
}

// romRejectingEngine accepts a BIOS but fails every cartridge upload.
type romRejectingEngine struct {
	*emu.Emulator
}

func (e *romRejectingEngine) UploadROM([]byte) error {
	return emu.ErrROMSize
}

func bios(words ...uint32) []byte {
	buf := make([]byte, 0x100)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

var _ = Describe("Session", func() {
	var (
		eng *hookCountingEngine
		s   *session.Session
	)

	BeforeEach(func() {
		eng = &hookCountingEngine{Emulator: emu.NewEmulator()}
		s = session.New(eng, session.WithLogger(GinkgoLogr))
	})

	Describe("construction", func() {
		It("should install the panic hook exactly once", func() {
			Expect(eng.hooks).To(Equal(1))
			Expect(s.UploadBIOS(bios())).To(Succeed())
			s.Step()
			Expect(eng.hooks).To(Equal(1))
		})

		It("should report a cold-reset engine in Supervisor mode", func() {
			d := s.Display()
			Expect(d.Mode).To(Equal("Supervisor"))
			Expect(d.State.Mode.Bits()).To(Equal("10011"))
			Expect(d.Flags).To(Equal("----I-"))
			Expect(d.InstructionCount).To(BeZero())
		})

		It("should carry a session id", func() {
			Expect(s.ID()).NotTo(BeEmpty())
		})
	})

	Describe("uploads", func() {
		It("should fill the pipeline without counting", func() {
			Expect(s.UploadBIOS(bios(0xE3A00001))).To(Succeed())

			d := s.Display()
			Expect(d.Registers[15]).To(Equal("00000008"))
			Expect(d.InstructionCount).To(BeZero())
			Expect(s.Stats().RefillSteps).To(Equal(uint64(2)))
			Expect(d.Lines).To(HaveLen(3))
			Expect(d.Lines[0].Mnemonic).To(Equal("mov"))
		})

		It("should re-derive bases after the ROM relocates memory", func() {
			Expect(s.UploadBIOS(bios(0xE3A00001))).To(Succeed())
			Expect(s.Bases().BIOS).To(BeZero())

			Expect(s.UploadROM(make([]byte, 0x100))).To(Succeed())

			Expect(s.Bases().BIOS).To(Equal(uint32(0x100)))
			Expect(s.Bases().VRAM).To(Equal(eng.VRAM()))
			Expect(s.Display().Lines[0].Raw).To(Equal([]byte{0x01, 0x00, 0xa0, 0xe3}))
		})

		It("should reset the counter", func() {
			Expect(s.UploadBIOS(bios())).To(Succeed())
			_, err := s.Trace("5")
			Expect(err).NotTo(HaveOccurred())

			Expect(s.UploadBIOS(bios())).To(Succeed())

			Expect(s.Display().InstructionCount).To(BeZero())
		})

		It("should wrap the engine's error", func() {
			Expect(s.UploadBIOS(nil)).To(MatchError(emu.ErrBIOSSize))
			Expect(s.UploadROM(nil)).To(MatchError(emu.ErrROMSize))
		})

		It("should load both files before refreshing", func() {
			dir := GinkgoT().TempDir()
			biosPath := filepath.Join(dir, "bios.bin")
			romPath := filepath.Join(dir, "game.gba")
			Expect(os.WriteFile(biosPath, bios(0xE3A00001), 0644)).To(Succeed())
			Expect(os.WriteFile(romPath, make([]byte, 0x40), 0644)).To(Succeed())

			Expect(s.Load(context.Background(), biosPath, romPath)).To(Succeed())

			Expect(s.Bases().BIOS).To(Equal(uint32(0x40)))
			Expect(s.Display().Lines[0].Mnemonic).To(Equal("mov"))
		})
	})

	It("should refresh when the cartridge upload fails after the BIOS", func() {
		dir := GinkgoT().TempDir()
		biosPath := filepath.Join(dir, "bios.bin")
		romPath := filepath.Join(dir, "game.gba")
		Expect(os.WriteFile(biosPath, bios(), 0644)).To(Succeed())
		Expect(os.WriteFile(romPath, make([]byte, 0x40), 0644)).To(Succeed())

		s = session.New(&romRejectingEngine{Emulator: emu.NewEmulator()})
		Expect(s.UploadBIOS(bios())).To(Succeed())
		_, err := s.Trace("5")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Display().InstructionCount).To(Equal(uint64(5)))

		err = s.Load(context.Background(), biosPath, romPath)

		Expect(err).To(MatchError(emu.ErrROMSize))
		Expect(s.Display().InstructionCount).To(BeZero())
		Expect(s.Display().Registers[15]).To(Equal("00000008"))
	})

	Describe("execution", func() {
		It("should count single steps", func() {
			Expect(s.UploadBIOS(bios())).To(Succeed())
			s.Step()
			s.Step()
			Expect(s.Display().InstructionCount).To(Equal(uint64(2)))
		})

		It("should not count frames", func() {
			Expect(s.UploadBIOS(bios())).To(Succeed())
			s.Frame()
			Expect(s.Display().InstructionCount).To(BeZero())
			Expect(s.Stats().Frames).To(Equal(uint64(1)))
		})

		It("should trace exactly n instructions", func() {
			Expect(s.UploadBIOS(bios())).To(Succeed())
			n, err := s.Trace("10")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(uint64(10)))
			Expect(s.Display().InstructionCount).To(Equal(uint64(10)))
		})

		It("should stop at a breakpoint", func() {
			Expect(s.UploadBIOS(bios(0xEAFFFFFE))).To(Succeed())

			res, err := s.RunUntilBreak("0x0")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(control.BreakpointHit))
			Expect(res.Steps).To(Equal(uint64(1)))
			Expect(s.Display().LastRun).To(HaveValue(Equal(res)))
		})

		It("should report a capped run", func() {
			cfg := config.DefaultConfig()
			cfg.MaxRunIterations = 50
			s = session.New(eng, session.WithConfig(cfg))
			Expect(s.UploadBIOS(bios(0xEAFFFFFE))).To(Succeed())

			res, err := s.RunUntilBreak("4")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(control.CapExceeded))
			Expect(res.Steps).To(Equal(uint64(50)))
			Expect(s.Display().InstructionCount).To(Equal(uint64(50)))
		})

		It("should reject malformed input without touching the engine", func() {
			Expect(s.UploadBIOS(bios())).To(Succeed())

			_, err := s.RunUntilBreak("zz")
			Expect(err).To(MatchError(session.ErrInvalidBreakpoint))
			_, err = s.Trace("ten")
			Expect(err).To(MatchError(session.ErrInvalidTraceCount))

			Expect(s.Stats().EngineSteps).To(Equal(uint64(2)))
		})
	})

	Describe("disassembly", func() {
		It("should keep the previous lines when the window leaves the view", func() {
			Expect(s.UploadBIOS(bios(0xE12FFF10))).To(Succeed())
			before := s.Display().Lines
			Expect(before).NotTo(BeEmpty())

			eng.RegFile().R[0] = emu.ROMStart
			s.Step()

			d := s.Display()
			Expect(d.Registers[15]).To(Equal("08000008"))
			Expect(d.DisasmError).NotTo(BeEmpty())
			Expect(d.Lines).To(Equal(before))
		})
	})

	Describe("disassembly at the top of the address space", func() {
		It("should survive a branch that wraps the PC below zero", func() {
			Expect(s.UploadBIOS(bios(0xEAFFFFFB))).To(Succeed())
			before := s.Display().Lines

			Expect(s.Step).NotTo(Panic())

			d := s.Display()
			Expect(d.Registers[15]).To(Equal("FFFFFFFC"))
			Expect(d.DisasmError).To(ContainSubstring("wraps"))
			Expect(d.Lines).To(Equal(before))
		})
	})

	Describe("video", func() {
		It("should render palettes and tiles from engine memory", func() {
			Expect(s.Poke(emu.PALStart+2, []byte{0x1F, 0x00})).To(Succeed())
			Expect(s.Poke(emu.SpritePaletteStart+2, []byte{0xE0, 0x03})).To(Succeed())
			Expect(s.Poke(emu.VRAMStart, []byte{1})).To(Succeed())
			Expect(s.Poke(emu.VRAMStart+4*0x4000, []byte{1})).To(Succeed())

			d := s.Display()
			red := color.RGBA{R: 248, A: 255}
			green := color.RGBA{G: 248, A: 255}
			Expect(d.BGSwatch[1]).To(Equal(red))
			Expect(d.SpriteSwatch[1]).To(Equal(green))
			Expect(d.Tiles.RGBAAt(0, 0)).To(Equal(red))
			Expect(d.Tiles.RGBAAt(0, 256)).To(Equal(green))
			Expect(d.Tiles.RGBAAt(1, 0)).To(Equal(color.RGBA{A: 255}))
			Expect(s.CacheStats().Reads).To(BeNumerically(">", 0))
		})

		It("should reject writes to unmapped memory", func() {
			Expect(s.Poke(0x10000000, []byte{1})).To(MatchError(emu.ErrUnmapped))
		})
	})

	Describe("engine faults", func() {
		It("should record panics passed to the hook", func() {
			eng.hook("bad opcode")

			n, last := s.Faults()
			Expect(n).To(Equal(uint64(1)))
			Expect(last).To(Equal("bad opcode"))
		})
	})

	Describe("Register", func() {
		It("should bound the index", func() {
			_, err := s.Register(16)
			Expect(err).To(MatchError(session.ErrRegisterIndex))
			pc, err := s.Register(15)
			Expect(err).NotTo(HaveOccurred())
			Expect(pc).To(BeZero())
		})
	})
})

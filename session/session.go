// Package session composes the debugger: it owns the engine handle, the
// memory view, the execution controller and the last rendered display.
//
// Every operation that changes engine state ends with Refresh. Uploads may
// relocate the engine's memory buffer, so they rebuild the memory view and
// the cached bases before the pipeline is filled and the display refreshed.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/rs/xid"

	"github.com/sarchlab/gbadbg/config"
	"github.com/sarchlab/gbadbg/control"
	"github.com/sarchlab/gbadbg/disasm"
	"github.com/sarchlab/gbadbg/engine"
	"github.com/sarchlab/gbadbg/loader"
	"github.com/sarchlab/gbadbg/memview"
	"github.com/sarchlab/gbadbg/video"
)

// Session errors.
var (
	ErrRegisterIndex    = errors.New("register index out of range")
	ErrPokeNotSupported = errors.New("engine does not accept memory writes")
)

// Bases are the view offsets of the regions the debugger reads.
type Bases struct {
	BIOS          uint32
	VRAM          uint32
	BGPalette     uint32
	SpritePalette uint32
}

// Session is one debugging session over one engine.
type Session struct {
	id     string
	engine engine.Engine
	config *config.Config
	order  video.ChannelOrder

	ctrl    *control.Controller
	planner *disasm.Planner
	observe func(control.Event)

	view  *memview.View
	cache *memview.Cache
	bases Bases

	display Display
	lastRun *control.RunResult

	faults    uint64
	lastFault string

	log logr.Logger
}

// Option is a functional option for configuring the Session.
type Option func(*Session)

// WithConfig sets the session configuration. It should be validated.
func WithConfig(c *config.Config) Option {
	return func(s *Session) {
		s.config = c.Clone()
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithPlanner replaces the disassembly planner.
func WithPlanner(p *disasm.Planner) Option {
	return func(s *Session) {
		s.planner = p
	}
}

// WithObserver registers a callback for every counted step.
func WithObserver(f func(control.Event)) Option {
	return func(s *Session) {
		s.observe = f
	}
}

// New creates a session over eng and renders the initial display.
func New(eng engine.Engine, opts ...Option) *Session {
	s := &Session{
		id:     xid.New().String(),
		engine: eng,
		config: config.DefaultConfig(),
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.WithValues("session", s.id)
	s.order = s.config.ChannelOrder()

	if s.planner == nil {
		s.planner = disasm.NewPlanner(disasm.WithLogger(s.log.WithName("disasm")))
	}

	ctrlOpts := []control.Option{
		control.WithMaxRunIterations(int(s.config.MaxRunIterations)),
		control.WithLogger(s.log.WithName("control")),
	}
	if s.observe != nil {
		ctrlOpts = append(ctrlOpts, control.WithObserver(s.observe))
	}
	s.ctrl = control.New(eng, ctrlOpts...)

	eng.SetPanicHook(s.onPanic)

	s.rebuild()
	s.Refresh()
	return s
}

// ID returns the session identifier carried by every log line.
func (s *Session) ID() string {
	return s.id
}

// Config returns a copy of the session configuration.
func (s *Session) Config() *config.Config {
	return s.config.Clone()
}

// Bases returns the cached region offsets.
func (s *Session) Bases() Bases {
	return s.bases
}

// Stats returns the execution counters.
func (s *Session) Stats() control.Stats {
	return s.ctrl.Stats()
}

// CacheStats returns the statistics of the memory read cache.
func (s *Session) CacheStats() memview.Statistics {
	return s.cache.Stats()
}

// Faults returns the number of engine panics caught and the last one.
func (s *Session) Faults() (uint64, string) {
	return s.faults, s.lastFault
}

func (s *Session) onPanic(recovered any) {
	s.faults++
	s.lastFault = fmt.Sprint(recovered)
	s.log.Error(fmt.Errorf("engine panic: %v", recovered), "engine fault", "faults", s.faults)
}

// rebuild re-derives the memory view and every base from the engine.
func (s *Session) rebuild() {
	s.view = memview.New(s.engine.Memory())
	s.bases = Bases{
		BIOS:          s.engine.BIOS(),
		VRAM:          s.engine.VRAM(),
		BGPalette:     s.engine.BGPalette(),
		SpritePalette: s.engine.SpritePalette(),
	}

	if s.cache == nil {
		s.cache = memview.NewCache(s.config.CacheConfig(), s.view)
	} else {
		s.cache.Rebind(s.view)
	}
}

// startOver prepares a freshly uploaded engine: new view and bases, zeroed
// counters, and a primed pipeline.
func (s *Session) startOver() {
	s.rebuild()
	s.ctrl.Reset()
	s.ctrl.Fill()
	s.lastRun = nil
	s.log.V(1).Info("session restarted",
		"bios", s.bases.BIOS, "vram", s.bases.VRAM, "viewBytes", s.view.Len())
}

func (s *Session) uploadBIOS(data []byte) error {
	if err := s.engine.UploadBIOS(data); err != nil {
		return fmt.Errorf("failed to upload bios: %w", err)
	}
	s.startOver()
	return nil
}

func (s *Session) uploadROM(data []byte) error {
	if err := s.engine.UploadROM(data); err != nil {
		return fmt.Errorf("failed to upload rom: %w", err)
	}
	s.startOver()
	return nil
}

// UploadBIOS loads a BIOS image and restarts the session.
func (s *Session) UploadBIOS(data []byte) error {
	if err := s.uploadBIOS(data); err != nil {
		return err
	}
	s.Refresh()
	return nil
}

// UploadROM loads a cartridge image and restarts the session.
func (s *Session) UploadROM(data []byte) error {
	if err := s.uploadROM(data); err != nil {
		return err
	}
	s.Refresh()
	return nil
}

// Load reads the BIOS and cartridge files concurrently, uploads them in
// that order and refreshes once both are in place. An empty path skips
// that image. The display is refreshed even when an upload fails, since an
// earlier upload may already have reset the engine.
func (s *Session) Load(ctx context.Context, biosPath, romPath string) error {
	pair, err := loader.LoadPair(ctx, biosPath, romPath)
	if err != nil {
		return err
	}
	defer s.Refresh()

	if pair.BIOS != nil {
		if err := s.uploadBIOS(pair.BIOS.Data); err != nil {
			return err
		}
	}
	if pair.ROM != nil {
		if err := s.uploadROM(pair.ROM.Data); err != nil {
			return err
		}
		s.log.Info("rom loaded", "path", pair.ROM.Path, "format", pair.ROM.Format.String(),
			"bytes", len(pair.ROM.Data))
		if h, err := loader.ParseHeader(pair.ROM.Data); err == nil {
			s.log.Info("cartridge header", "title", h.Title, "gameCode", h.GameCode,
				"maker", h.Maker, "complementOK", h.ComplementOK)
		}
	}

	return nil
}

// Step executes one instruction.
func (s *Session) Step() {
	s.ctrl.Step()
	s.Refresh()
}

// Frame runs one display frame.
func (s *Session) Frame() {
	s.ctrl.Frame()
	s.Refresh()
}

// RunUntilBreak parses a hexadecimal breakpoint and runs to it. Invalid
// text leaves the engine untouched.
func (s *Session) RunUntilBreak(text string) (control.RunResult, error) {
	target, err := ParseBreakpoint(text)
	if err != nil {
		return control.RunResult{}, err
	}

	res := s.ctrl.RunUntilBreak(target)
	s.lastRun = &res
	s.Refresh()
	return res, nil
}

// Trace parses a decimal count and executes that many instructions.
func (s *Session) Trace(text string) (uint64, error) {
	n, err := ParseTraceCount(text)
	if err != nil {
		return 0, err
	}

	s.ctrl.Trace(n)
	s.Refresh()
	return n, nil
}

// Register returns one register of the engine.
func (s *Session) Register(i int) (uint32, error) {
	if i < 0 || i >= NumRegisters {
		return 0, fmt.Errorf("%w: %d", ErrRegisterIndex, i)
	}
	return s.engine.Register(i), nil
}

// CPSR returns the raw status word.
func (s *Session) CPSR() uint32 {
	return s.engine.CPSR()
}

// Poke writes data to the engine's bus, for loading memory dumps.
func (s *Session) Poke(addr uint32, data []byte) error {
	p, ok := s.engine.(engine.Poker)
	if !ok {
		return ErrPokeNotSupported
	}
	if err := p.WriteMemory(addr, data); err != nil {
		return fmt.Errorf("failed to write memory: %w", err)
	}
	s.Refresh()
	return nil
}

// Package control drives controlled execution of an engine: single step,
// frame step, run to breakpoint and fixed-length trace.
//
// The engine reports a pipeline flush from Step. A flushed pipeline is
// refilled with exactly two further engine steps before anything is shown;
// refill steps are not counted as instructions.
package control

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/gbadbg/cpustate"
)

// DefaultMaxRunIterations bounds RunUntilBreak.
const DefaultMaxRunIterations = 100000

// RefillSteps is the number of engine steps that refill a flushed pipeline.
const RefillSteps = 2

// PCRegister is the register index of the program counter.
const PCRegister = 15

// Engine is the part of the emulation engine the controller drives.
type Engine interface {
	// Step advances one instruction and reports a pipeline flush.
	Step() bool
	// Frame advances until one display frame has elapsed.
	Frame()
	Register(i int) uint32
	CPSR() uint32
}

// Outcome tells why RunUntilBreak stopped.
type Outcome uint8

// Run outcomes.
const (
	BreakpointHit Outcome = iota
	CapExceeded
)

func (o Outcome) String() string {
	if o == CapExceeded {
		return "cap exceeded"
	}
	return "breakpoint hit"
}

// RunResult reports how a RunUntilBreak ended.
type RunResult struct {
	Outcome Outcome
	Target  uint32
	// Steps is the number of counted steps executed.
	Steps uint64
}

// Event describes one counted step.
type Event struct {
	// Count is the instruction count after the step.
	Count uint64
	PC    uint32
	CPSR  uint32
	// Flushed is true if the step flushed and refilled the pipeline.
	Flushed bool
}

// Stats holds diagnostic counters. Only InstructionCount is shown as the
// instruction count; the others explain where engine steps went.
type Stats struct {
	InstructionCount uint64
	EngineSteps      uint64
	Flushes          uint64
	RefillSteps      uint64
	Frames           uint64
}

// Controller owns the instruction counter and the execution state machine.
type Controller struct {
	engine  Engine
	maxRun  int
	observe func(Event)
	log     logr.Logger

	stats Stats
	state cpustate.State
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMaxRunIterations sets the RunUntilBreak iteration cap. Values below
// one are raised to one.
func WithMaxRunIterations(n int) Option {
	return func(c *Controller) {
		c.maxRun = n
	}
}

// WithObserver registers a callback invoked after every counted step.
func WithObserver(f func(Event)) Option {
	return func(c *Controller) {
		c.observe = f
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// New creates a controller for the given engine.
func New(engine Engine, opts ...Option) *Controller {
	c := &Controller{
		engine: engine,
		maxRun: DefaultMaxRunIterations,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRun < 1 {
		c.maxRun = 1
	}
	c.state = cpustate.Decode(engine.CPSR())
	return c
}

// InstructionCount returns the number of counted steps since the last
// Reset.
func (c *Controller) InstructionCount() uint64 {
	return c.stats.InstructionCount
}

// Stats returns the diagnostic counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// State returns the status decoded after the last operation.
func (c *Controller) State() cpustate.State {
	return c.state
}

// MaxRunIterations returns the RunUntilBreak cap.
func (c *Controller) MaxRunIterations() int {
	return c.maxRun
}

// Reset clears all counters. It is called when a new BIOS or ROM is
// uploaded.
func (c *Controller) Reset() {
	c.stats = Stats{}
	c.redecode()
}

// Fill primes an empty pipeline with two uncounted engine steps.
func (c *Controller) Fill() {
	c.refill()
	c.redecode()
}

// Step executes one counted instruction.
func (c *Controller) Step() {
	c.step()
	c.redecode()
}

// Frame runs the engine for one display frame. The instruction count is
// not changed.
func (c *Controller) Frame() {
	c.engine.Frame()
	c.stats.Frames++
	c.redecode()
}

// Trace executes exactly n counted steps.
func (c *Controller) Trace(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.step()
	}
	c.redecode()
	c.log.V(1).Info("trace complete", "steps", n, "count", c.stats.InstructionCount)
}

// RunUntilBreak steps until the pipeline-compensated program counter
// equals target. The check happens after each step, so at least one step
// always runs. The loop gives up after the iteration cap. The cap counts
// counted steps; refill steps after a flush come on top, so up to three
// times as many engine steps may run.
func (c *Controller) RunUntilBreak(target uint32) RunResult {
	res := RunResult{Outcome: CapExceeded, Target: target}

	for i := 0; i < c.maxRun; i++ {
		c.step()
		res.Steps++
		if c.effectivePC() == target {
			res.Outcome = BreakpointHit
			break
		}
	}

	c.redecode()
	if res.Outcome == CapExceeded {
		c.log.Info("run stopped at iteration cap",
			"target", target, "steps", res.Steps, "pc", c.engine.Register(PCRegister))
	}
	return res
}

func (c *Controller) effectivePC() uint32 {
	return cpustate.Decode(c.engine.CPSR()).EffectivePC(c.engine.Register(PCRegister))
}

// step is one counted step including any refill it causes.
func (c *Controller) step() {
	flushed := c.engine.Step()
	c.stats.EngineSteps++
	if flushed {
		c.stats.Flushes++
		c.refill()
	}
	c.stats.InstructionCount++

	if c.observe != nil {
		c.observe(Event{
			Count:   c.stats.InstructionCount,
			PC:      c.engine.Register(PCRegister),
			CPSR:    c.engine.CPSR(),
			Flushed: flushed,
		})
	}
}

func (c *Controller) refill() {
	for i := 0; i < RefillSteps; i++ {
		c.engine.Step()
		c.stats.EngineSteps++
		c.stats.RefillSteps++
	}
}

func (c *Controller) redecode() {
	c.state = cpustate.Decode(c.engine.CPSR())
}

// Package script runs Lua debugger scripts against a session.
//
// Globals available to a script:
//
//	step()              execute one instruction
//	frame()             run one frame
//	trace(n)            execute n instructions
//	run_until(addr)     run to a breakpoint; returns outcome, steps
//	reg(i)              register value
//	cpsr()              raw status word
//	mode(), flags()     decoded mode label and flag string
//	count()             instruction count
//	disasm()            table of disassembly lines
//	print(...)          write to the script output
package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/sarchlab/gbadbg/session"
)

// Run executes Lua source against s. Output of print goes to out.
func Run(ctx context.Context, s *session.Session, src string, out io.Writer) error {
	L := newState(ctx, s, out)
	defer L.Close()

	if err := L.DoString(src); err != nil {
		return fmt.Errorf("script failed: %w", err)
	}
	return nil
}

// RunFile executes the Lua file at path.
func RunFile(ctx context.Context, s *session.Session, path string, out io.Writer) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return Run(ctx, s, string(src), out)
}

func newState(ctx context.Context, s *session.Session, out io.Writer) *lua.LState {
	L := lua.NewState()
	L.SetContext(ctx)

	b := &bindings{s: s, out: out}
	for name, fn := range map[string]lua.LGFunction{
		"step":      b.step,
		"frame":     b.frame,
		"trace":     b.trace,
		"run_until": b.runUntil,
		"reg":       b.reg,
		"cpsr":      b.cpsr,
		"mode":      b.mode,
		"flags":     b.flags,
		"count":     b.count,
		"disasm":    b.disasm,
		"print":     b.print,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}
	return L
}

type bindings struct {
	s   *session.Session
	out io.Writer
}

func (b *bindings) step(L *lua.LState) int {
	b.s.Step()
	return 0
}

func (b *bindings) frame(L *lua.LState) int {
	b.s.Frame()
	return 0
}

func (b *bindings) trace(L *lua.LState) int {
	n := L.CheckInt64(1)
	if _, err := b.s.Trace(strconv.FormatInt(n, 10)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (b *bindings) runUntil(L *lua.LState) int {
	var text string
	switch v := L.CheckAny(1).(type) {
	case lua.LNumber:
		text = strconv.FormatUint(uint64(v), 16)
	case lua.LString:
		text = string(v)
	default:
		L.ArgError(1, "address must be a number or a hex string")
		return 0
	}

	res, err := b.s.RunUntilBreak(text)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LString(res.Outcome.String()))
	L.Push(lua.LNumber(res.Steps))
	return 2
}

func (b *bindings) reg(L *lua.LState) int {
	v, err := b.s.Register(L.CheckInt(1))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (b *bindings) cpsr(L *lua.LState) int {
	L.Push(lua.LNumber(b.s.CPSR()))
	return 1
}

func (b *bindings) mode(L *lua.LState) int {
	L.Push(lua.LString(b.s.Display().Mode))
	return 1
}

func (b *bindings) flags(L *lua.LState) int {
	L.Push(lua.LString(b.s.Display().Flags))
	return 1
}

func (b *bindings) count(L *lua.LState) int {
	L.Push(lua.LNumber(b.s.Display().InstructionCount))
	return 1
}

func (b *bindings) disasm(L *lua.LState) int {
	t := L.NewTable()
	for _, line := range b.s.Display().Lines {
		t.Append(lua.LString(line.String()))
	}
	L.Push(t)
	return 1
}

func (b *bindings) print(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	fmt.Fprintln(b.out, strings.Join(parts, "\t"))
	return 0
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sarchlab/gbadbg/control"
	"github.com/sarchlab/gbadbg/session"
	"github.com/sarchlab/gbadbg/video"
)

const prompt = "gbadbg> "

var errQuit = errors.New("quit")

var registerNames = [session.NumRegisters]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

const helpText = `commands:
  step, s              execute one instruction
  frame, f             run one frame
  break, b <hex>       run until the executing address equals <hex>
  trace, t <n>         execute n instructions
  regs, r              show registers and status
  dis, d               show the disassembly window
  pal [file]           show palettes, or export them as an image
  tiles <file>         export the tile sheet as an image
  poke <hex> <file>    write a file to memory at <hex>
  stats                show execution and cache counters
  help                 show this text
  quit, q              leave`

// lineReader yields one command line at a time.
type lineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (s *scannerReader) ReadLine() (string, error) {
	fmt.Fprint(s.out, prompt)
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

type repl struct {
	sess  *session.Session
	scale int
}

func newREPL(sess *session.Session, scale int) *repl {
	return &repl{sess: sess, scale: scale}
}

// runConsole reads commands from in. A terminal is put in raw mode and
// driven through a line editor; anything else is read line by line.
func (r *repl) runConsole(ctx context.Context, in *os.File, out io.Writer) error {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return r.run(ctx, &scannerReader{sc: bufio.NewScanner(in), out: out}, out)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, prompt)
	return r.run(ctx, t, t)
}

// run executes commands until quit, end of input or cancellation.
func (r *repl) run(ctx context.Context, in lineReader, out io.Writer) error {
	fmt.Fprintln(out, "gbadbg - type 'help' for commands")
	r.summary(out)

	for ctx.Err() == nil {
		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		err = r.exec(line, out)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return nil
}

func (r *repl) exec(line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "step", "s":
		r.sess.Step()
		r.summary(out)
	case "frame", "f":
		r.sess.Frame()
		r.summary(out)
	case "break", "b":
		if len(args) != 1 {
			return errors.New("usage: break <hex address>")
		}
		res, err := r.sess.RunUntilBreak(args[0])
		if err != nil {
			return err
		}
		r.runOutcome(out, res)
		r.summary(out)
	case "trace", "t":
		if len(args) != 1 {
			return errors.New("usage: trace <count>")
		}
		if _, err := r.sess.Trace(args[0]); err != nil {
			return err
		}
		r.summary(out)
	case "regs", "r":
		r.registers(out)
	case "dis", "d":
		r.disassembly(out)
	case "pal":
		return r.palettes(out, args)
	case "tiles":
		if len(args) != 1 {
			return errors.New("usage: tiles <file>")
		}
		return video.Export(args[0], r.sess.Display().Tiles, r.scale)
	case "poke":
		return r.poke(args)
	case "stats":
		r.stats(out)
	case "help", "h", "?":
		fmt.Fprintln(out, helpText)
	case "quit", "q", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (r *repl) summary(out io.Writer) {
	d := r.sess.Display()
	fmt.Fprintf(out, "pc=%s %s %s count=%d\n",
		d.Registers[control.PCRegister], d.Flags, d.Mode, d.InstructionCount)
}

func (r *repl) runOutcome(out io.Writer, res control.RunResult) {
	fmt.Fprintf(out, "%s at 0x%08x after %d steps\n", res.Outcome, res.Target, res.Steps)
}

func (r *repl) registers(out io.Writer) {
	d := r.sess.Display()
	for i, v := range d.Registers {
		fmt.Fprintf(out, "%-4s%s", registerNames[i], v)
		if i%4 == 3 {
			fmt.Fprintln(out)
		} else {
			fmt.Fprint(out, "  ")
		}
	}
	fmt.Fprintf(out, "cpsr %08X  %s  %s\n", d.State.Raw, d.Flags, d.Mode)
}

func (r *repl) disassembly(out io.Writer) {
	d := r.sess.Display()
	if d.DisasmError != "" {
		fmt.Fprintf(out, "disassembly failed: %s\n", d.DisasmError)
	}

	pc, _ := r.sess.Register(control.PCRegister)
	current := d.State.EffectivePC(pc)
	for _, line := range d.Lines {
		marker := " "
		if line.Address == current {
			marker = ">"
		}
		fmt.Fprintf(out, "%s %s\n", marker, line)
	}
}

func (r *repl) palettes(out io.Writer, args []string) error {
	d := r.sess.Display()
	if len(args) == 1 {
		swatch := append(append(d.BGSwatch[:0:0], d.BGSwatch...), d.SpriteSwatch...)
		return video.Export(args[0], video.SwatchImage(swatch, 8), r.scale)
	}

	for _, p := range []struct {
		name   string
		colors []color.RGBA
	}{
		{"background", d.BGSwatch},
		{"sprite", d.SpriteSwatch},
	} {
		fmt.Fprintf(out, "%s:\n", p.name)
		for i, c := range p.colors {
			fmt.Fprint(out, video.CSS(c))
			if i%8 == 7 {
				fmt.Fprintln(out)
			} else {
				fmt.Fprint(out, " ")
			}
		}
	}
	return nil
}

func (r *repl) poke(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: poke <hex address> <file>")
	}
	addr, err := session.ParseBreakpoint(args[0])
	if err != nil {
		return fmt.Errorf("bad address: %w", err)
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	return r.sess.Poke(addr, data)
}

func (r *repl) stats(out io.Writer) {
	st := r.sess.Stats()
	cs := r.sess.CacheStats()
	faults, last := r.sess.Faults()

	fmt.Fprintf(out, "instructions: %d\n", st.InstructionCount)
	fmt.Fprintf(out, "engine steps: %d (refill %d, flushes %d)\n",
		st.EngineSteps, st.RefillSteps, st.Flushes)
	fmt.Fprintf(out, "frames:       %d\n", st.Frames)
	fmt.Fprintf(out, "cache:        %d reads, %.1f%% hits, %d evictions\n",
		cs.Reads, 100*cs.HitRate(), cs.Evictions)
	if faults > 0 {
		fmt.Fprintf(out, "engine faults: %d (last: %s)\n", faults, last)
	}
}

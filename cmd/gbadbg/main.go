// Package main provides the gbadbg command line debugger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/gbadbg/config"
	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/script"
	"github.com/sarchlab/gbadbg/session"
	"github.com/sarchlab/gbadbg/video"
)

var (
	biosPath   = flag.String("bios", "", "Path to the BIOS image")
	romPath    = flag.String("rom", "", "Path to the cartridge image (raw or ARM ELF)")
	configPath = flag.String("config", "", "Path to a JSON or YAML configuration file")
	scriptPath = flag.String("script", "", "Run a Lua script and exit")
	tilesPath  = flag.String("tiles", "", "Export the tile sheet to a PNG or BMP file and exit")
	scale      = flag.Int("scale", 2, "Upscale factor for exported images")
	verbosity  = flag.Int("v", 0, "Log verbosity")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *verbosity > 0 {
		cfg.LogVerbosity = *verbosity
	}

	log := newLogger(cfg.LogVerbosity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng := emu.NewEmulator(
		emu.WithFrameInstructions(cfg.FrameInstructions),
		emu.WithLogger(log.WithName("emu")),
	)
	sess := session.New(eng, session.WithConfig(cfg), session.WithLogger(log))

	if *biosPath != "" || *romPath != "" {
		if err := sess.Load(ctx, *biosPath, *romPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading images: %v\n", err)
			os.Exit(1)
		}
	}

	batch := false
	if *scriptPath != "" {
		batch = true
		if err := script.RunFile(ctx, sess, *scriptPath, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *tilesPath != "" {
		batch = true
		if err := video.Export(*tilesPath, sess.Display().Tiles, *scale); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting tiles: %v\n", err)
			os.Exit(1)
		}
	}
	if batch {
		return
	}

	r := newREPL(sess, *scale)
	if err := r.runConsole(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: v})
}

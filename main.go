// Package main provides the entry point for gbadbg.
// gbadbg is a debugger for a GBA ARM7TDMI engine.
//
// For the full CLI, use: go run ./cmd/gbadbg
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("gbadbg - GBA ARM7TDMI debugger")
	fmt.Println("")
	fmt.Println("Usage: gbadbg [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -bios      Path to the BIOS image")
	fmt.Println("  -rom       Path to the cartridge image (raw or ARM ELF)")
	fmt.Println("  -config    Path to a JSON or YAML configuration file")
	fmt.Println("  -script    Run a Lua script and exit")
	fmt.Println("  -tiles     Export the tile sheet and exit")
	fmt.Println("  -scale     Upscale factor for exported images")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/gbadbg' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/gbadbg' instead.")
	}
}

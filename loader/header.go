package loader

import (
	"strings"
)

// Cartridge header layout.
const (
	headerTitle      = 0xA0
	headerGameCode   = 0xAC
	headerMaker      = 0xB0
	headerFixed      = 0xB2
	headerVersion    = 0xBC
	headerComplement = 0xBD
	HeaderSize       = 0xC0
)

// Header is the informational part of a cartridge header.
type Header struct {
	Title    string
	GameCode string
	Maker    string
	Version  uint8
	// Complement is the checksum stored in the header. ComplementOK tells
	// whether it matches the bytes it covers.
	Complement   uint8
	ComplementOK bool
}

// ParseHeader reads the cartridge header at the start of a ROM image.
func ParseHeader(rom []byte) (Header, error) {
	if len(rom) < HeaderSize {
		return Header{}, ErrShortHeader
	}

	h := Header{
		Title:      text(rom[headerTitle:headerGameCode]),
		GameCode:   text(rom[headerGameCode:headerMaker]),
		Maker:      text(rom[headerMaker:headerFixed]),
		Version:    rom[headerVersion],
		Complement: rom[headerComplement],
	}
	h.ComplementOK = HeaderComplement(rom) == h.Complement
	return h, nil
}

// HeaderComplement computes the complement check over 0xA0-0xBC.
func HeaderComplement(rom []byte) uint8 {
	var chk uint8
	for _, b := range rom[headerTitle:headerComplement] {
		chk -= b
	}
	return chk - 0x19
}

func text(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

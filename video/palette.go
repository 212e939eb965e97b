// Package video decodes character (tile) memory and 32-bit palette memory
// into displayable images.
package video

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/sarchlab/gbadbg/memview"
)

// Palette geometry.
const (
	PaletteEntries   = 256
	PaletteEntrySize = 4
	PaletteSize      = PaletteEntries * PaletteEntrySize
)

// ChannelOrder gives the byte offset of each color channel inside a 4-byte
// palette entry. The remaining byte is ignored.
type ChannelOrder struct {
	Red, Green, Blue uint32
}

// Channel orders understood by ParseChannelOrder.
var (
	// OrderBGR matches a little-endian 0xAARRGGBB word: blue first.
	OrderBGR = ChannelOrder{Red: 2, Green: 1, Blue: 0}
	// OrderRGB matches a little-endian 0xAABBGGRR word: red first.
	OrderRGB = ChannelOrder{Red: 0, Green: 1, Blue: 2}
	// OrderXRGB skips a leading pad byte.
	OrderXRGB = ChannelOrder{Red: 1, Green: 2, Blue: 3}
	// OrderXBGR skips a leading pad byte, blue first.
	OrderXBGR = ChannelOrder{Red: 3, Green: 2, Blue: 1}
)

var channelOrders = map[string]ChannelOrder{
	"bgr":  OrderBGR,
	"rgb":  OrderRGB,
	"xrgb": OrderXRGB,
	"xbgr": OrderXBGR,
}

// ParseChannelOrder parses a channel order name ("bgr", "rgb", "xrgb",
// "xbgr").
func ParseChannelOrder(name string) (ChannelOrder, error) {
	order, ok := channelOrders[strings.ToLower(name)]
	if !ok {
		return ChannelOrder{}, fmt.Errorf("unknown palette channel order %q", name)
	}
	return order, nil
}

// DecodeColor converts one 4-byte palette entry into an opaque color.
func DecodeColor(entry [PaletteEntrySize]byte, order ChannelOrder) color.RGBA {
	return color.RGBA{
		R: entry[order.Red],
		G: entry[order.Green],
		B: entry[order.Blue],
		A: 0xFF,
	}
}

// readColor decodes palette entry idx of the palette at base.
func readColor(mem memview.Reader, base uint32, idx uint8, order ChannelOrder) color.RGBA {
	addr := base + uint32(idx)*PaletteEntrySize
	var entry [PaletteEntrySize]byte
	for i := range entry {
		entry[i] = mem.Read8(addr + uint32(i))
	}
	return DecodeColor(entry, order)
}

// Swatch decodes all 256 entries of the palette starting at base.
func Swatch(mem memview.Reader, base uint32, order ChannelOrder) []color.RGBA {
	colors := make([]color.RGBA, PaletteEntries)
	for i := range colors {
		colors[i] = readColor(mem, base, uint8(i), order)
	}
	return colors
}

// CSS formats a color the way the presentation layer expects it.
func CSS(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

package video

import (
	"image"

	"github.com/sarchlab/gbadbg/memview"
)

// Character memory geometry, assuming 8 bits per pixel.
const (
	TileSize      = 8
	TileBytes     = TileSize * TileSize
	TilesPerBlock = 256
	CharBlocks    = 6
	CharBlockSize = TilesPerBlock * TileBytes

	// BackgroundBlocks is the number of charblocks indexing the background
	// palette; the rest index the sprite palette.
	BackgroundBlocks = 4

	SheetColumns = 32
	SheetRows    = CharBlocks * TilesPerBlock / SheetColumns
	SheetWidth   = SheetColumns * TileSize
	SheetHeight  = SheetRows * TileSize
)

// TileBases holds the absolute view offsets the tile renderer reads from.
type TileBases struct {
	VRAM          uint32
	BGPalette     uint32
	SpritePalette uint32
}

// TexelPosition returns the sheet pixel (row, col) of texel k of tile t in
// charblock cb.
func TexelPosition(cb, t, k int) (row, col int) {
	idx := cb*TilesPerBlock + t
	tileRow, tileCol := idx/SheetColumns, idx%SheetColumns
	return tileRow*TileSize + k/TileSize, tileCol*TileSize + k%TileSize
}

// PaletteFor returns the palette base used by charblock cb.
func (b TileBases) PaletteFor(cb int) uint32 {
	if cb < BackgroundBlocks {
		return b.BGPalette
	}
	return b.SpritePalette
}

// RenderTiles decodes all six charblocks into a 256x384 sheet of 32 by 48
// tiles.
func RenderTiles(mem memview.Reader, bases TileBases, order ChannelOrder) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, SheetWidth, SheetHeight))

	addr := bases.VRAM
	for cb := 0; cb < CharBlocks; cb++ {
		pal := bases.PaletteFor(cb)
		for t := 0; t < TilesPerBlock; t++ {
			for k := 0; k < TileBytes; k++ {
				row, col := TexelPosition(cb, t, k)
				img.SetRGBA(col, row, readColor(mem, pal, mem.Read8(addr), order))
				addr++
			}
		}
	}

	return img
}

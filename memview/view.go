// Package memview provides access to the flat memory buffer an engine
// shares with the debugger, and a read-through cache in front of it.
package memview

// Reader reads single bytes at absolute offsets into a memory view.
type Reader interface {
	Read8(addr uint32) byte
}

// View is a flat byte buffer shared with the engine. A View is never
// patched: whenever the engine may have reallocated its memory a new View
// is built over the new buffer.
type View struct {
	buf []byte
}

// New wraps an engine memory buffer.
func New(buf []byte) *View {
	return &View{buf: buf}
}

// Len returns the size of the view in bytes.
func (v *View) Len() int {
	return len(v.buf)
}

// Bytes returns the underlying buffer.
func (v *View) Bytes() []byte {
	return v.buf
}

// Read8 reads one byte. Offsets past the end of the view read as zero.
func (v *View) Read8(addr uint32) byte {
	if uint64(addr) >= uint64(len(v.buf)) {
		return 0
	}
	return v.buf[addr]
}

// Slice returns buf[start:end] and whether the range lies inside the view.
func (v *View) Slice(start, end uint64) ([]byte, bool) {
	if start > end || end > uint64(len(v.buf)) {
		return nil, false
	}
	return v.buf[start:end], true
}

// Read copies size bytes starting at addr. Bytes past the end of the view
// read as zero.
func (v *View) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	if addr < uint64(len(v.buf)) {
		copy(data, v.buf[addr:])
	}
	return data
}

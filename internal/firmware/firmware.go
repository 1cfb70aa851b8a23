// Package firmware wraps a raw Cortex-M firmware dump. Dumps have no
// header or section table: the file's byte offsets are assumed to equal
// the link-time virtual addresses, which holds for images that begin at
// their reset vector.
package firmware

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Image is an in-memory firmware dump. Any length is valid, including
// empty and odd-sized files; out-of-range reads simply report !ok.
type Image struct {
	name string
	data []byte
}

// Load reads a firmware dump from disk.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read firmware: %w", err)
	}
	return &Image{name: filepath.Base(path), data: data}, nil
}

// New wraps an already-loaded dump.
func New(name string, data []byte) *Image {
	return &Image{name: name, data: data}
}

// Name returns the base name of the dump's file.
func (im *Image) Name() string { return im.name }

// Len returns the dump size in bytes.
func (im *Image) Len() int { return len(im.data) }

// Halfword reads the little-endian 16-bit value at off.
func (im *Image) Halfword(off int) (uint16, bool) {
	if off < 0 || off+2 > len(im.data) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(im.data[off:]), true
}

// Word reads the little-endian 32-bit value at off.
func (im *Image) Word(off int) (uint32, bool) {
	if off < 0 || off+4 > len(im.data) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(im.data[off:]), true
}

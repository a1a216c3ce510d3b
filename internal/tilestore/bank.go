// Package tilestore provides tile-addressable word storage, a container file
// format for persisting banks, and the asynchronous transfer engine that
// moves tiles between a bank and the staging pool.
package tilestore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMagic reports a file that is not a tile bank.
	ErrInvalidMagic = errors.New("invalid tile bank magic")
	// ErrUnsupportedMajor reports a bank written by an incompatible version.
	ErrUnsupportedMajor = errors.New("unsupported tile bank major version")
	// ErrCorruptFile reports a structurally invalid bank file.
	ErrCorruptFile = errors.New("corrupt tile bank file")
)

// Bank is a flat arena of 32-bit words addressed by tile accessors. It
// models the external tensor store: the pipelines never touch it directly,
// they resolve tiles through an Accessor and move them with an Engine.
type Bank struct {
	words []uint32

	// Layout metadata carried by the container header. Informational for
	// tools; accessors carry their own tile geometry.
	tileWords uint32
	tileCount uint64
}

// NewBank allocates an in-memory bank of tileCount tiles of tileWords words.
func NewBank(tileCount, tileWords int) (*Bank, error) {
	if tileCount <= 0 || tileWords <= 0 {
		return nil, fmt.Errorf("tilestore: bank dimensions must be positive, got %dx%d", tileCount, tileWords)
	}
	return &Bank{
		words:     make([]uint32, tileCount*tileWords),
		tileWords: uint32(tileWords),
		tileCount: uint64(tileCount),
	}, nil
}

// BankFromWords wraps an existing word arena. The metadata describes the
// intended tile layout and must cover the arena exactly.
func BankFromWords(words []uint32, tileCount, tileWords int) (*Bank, error) {
	if tileCount <= 0 || tileWords <= 0 {
		return nil, fmt.Errorf("tilestore: bank dimensions must be positive, got %dx%d", tileCount, tileWords)
	}
	if len(words) != tileCount*tileWords {
		return nil, fmt.Errorf("tilestore: arena holds %d words, layout needs %d", len(words), tileCount*tileWords)
	}
	return &Bank{words: words, tileWords: uint32(tileWords), tileCount: uint64(tileCount)}, nil
}

// Words returns the size of the arena in 32-bit words.
func (b *Bank) Words() int { return len(b.words) }

// TileWords returns the per-tile word count recorded in the bank metadata.
func (b *Bank) TileWords() int { return int(b.tileWords) }

// TileCount returns the tile count recorded in the bank metadata.
func (b *Bank) TileCount() int { return int(b.tileCount) }

// Range returns the words [off, off+n) of the arena.
func (b *Bank) Range(off, n int) []uint32 {
	return b.words[off : off+n]
}

// Accessor resolves a logical tile index against a bank: tile id maps to the
// word range starting at base + id*tileWords. The tile word size is supplied
// by the caller, not derived from the bank, matching the transfer unit of
// the active numeric format.
type Accessor struct {
	bank      *Bank
	base      int
	tileWords int
}

// NewAccessor binds a bank, a base word offset, and a tile word size.
func NewAccessor(bank *Bank, base, tileWords int) (Accessor, error) {
	if bank == nil {
		return Accessor{}, errors.New("tilestore: nil bank")
	}
	if base < 0 || tileWords <= 0 {
		return Accessor{}, fmt.Errorf("tilestore: invalid accessor geometry base=%d tileWords=%d", base, tileWords)
	}
	return Accessor{bank: bank, base: base, tileWords: tileWords}, nil
}

// TileWords returns the transfer unit size in 32-bit words.
func (a Accessor) TileWords() int { return a.tileWords }

// Tile returns the backing words of logical tile id.
func (a Accessor) Tile(id uint32) []uint32 {
	off := a.base + int(id)*a.tileWords
	return a.bank.Range(off, a.tileWords)
}

// TileRange returns the first n words of logical tile id. Compact writes use
// this to address a payload shorter than the full transfer unit.
func (a Accessor) TileRange(id uint32, n int) []uint32 {
	if n > a.tileWords {
		panic(fmt.Sprintf("tilestore: range %d exceeds tile size %d", n, a.tileWords))
	}
	off := a.base + int(id)*a.tileWords
	return a.bank.Range(off, n)
}

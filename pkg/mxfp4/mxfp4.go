// Package mxfp4 implements the shared-exponent 4-bit block format used for
// compact tile storage.
//
// Values are grouped 32 at a time. Each group is stored as five 32-bit words:
// one exponent word whose high byte holds the shared 8-bit exponent (the
// remaining bits are zero), followed by four words carrying the 32 values'
// 4-bit magnitudes packed eight per word, low nibble first. A full-precision
// tile of n float32 words therefore packs to (n/32)*5 words, a ~6.4x
// reduction.
//
// The format is unsigned: encode discards the sign bit and decode always
// produces non-negative values. Values whose exponent falls 16 or more below
// their group's maximum are flushed to zero.
package mxfp4

const (
	// GroupSize is the number of values sharing one exponent.
	GroupSize = 32
	// GroupWords is the packed word count per group: one exponent word
	// plus four magnitude words.
	GroupWords = 5

	expShift  = 24
	mantShift = 19
)

// PackedWords returns the packed word count for a tile of elems float32
// values. elems must be a positive multiple of GroupSize.
func PackedWords(elems int) int {
	checkElems(elems)
	return elems / GroupSize * GroupWords
}

// PackedBytes returns the packed byte count for a tile of elems values.
func PackedBytes(elems int) int {
	return PackedWords(elems) * 4
}

// EncodeGroup packs 32 float32 bit patterns into one shared-exponent group.
// src must hold at least GroupSize words.
func EncodeGroup(src []uint32) [GroupWords]uint32 {
	_ = src[GroupSize-1]

	var maxExp uint32
	for j := 0; j < GroupSize; j++ {
		if src[j] == 0 {
			continue
		}
		exp := (src[j] >> 23) & 0xFF
		if exp > maxExp {
			maxExp = exp
		}
	}

	var g [GroupWords]uint32
	g[0] = maxExp << expShift
	for j := 0; j < GroupSize; j++ {
		v := src[j]
		var mag uint32
		if v != 0 {
			mant := (v & 0x7FFFFF) >> mantShift
			diff := maxExp - (v>>23)&0xFF
			if diff < 16 {
				mag = mant >> diff
			}
		}
		g[1+j/8] |= mag << ((j % 8) * 4)
	}
	return g
}

// DecodeGroup expands one shared-exponent group into 32 float32 bit
// patterns. dst must hold at least GroupSize words.
func DecodeGroup(g [GroupWords]uint32, dst []uint32) {
	_ = dst[GroupSize-1]

	sharedExp := (g[0] >> expShift) & 0xFF
	for j := 0; j < GroupSize; j++ {
		nib := (g[1+j/8] >> ((j % 8) * 4)) & 0xF
		if nib == 0 {
			dst[j] = 0
		} else {
			dst[j] = sharedExp<<23 | nib<<mantShift
		}
	}
}

// Encode packs elems float32 bit patterns from src into dst and returns the
// packed word count. dst and src may alias the same backing array as long as
// dst does not start above src; EncodeTile covers the fully aliased case.
func Encode(dst, src []uint32, elems int) int {
	checkElems(elems)
	groups := elems / GroupSize
	for i := 0; i < groups; i++ {
		g := EncodeGroup(src[i*GroupSize:])
		copy(dst[i*GroupWords:], g[:])
	}
	return groups * GroupWords
}

// Decode expands elems packed values from src into dst. src and dst must not
// overlap; DecodeTile covers the in-place case.
func Decode(dst, src []uint32, elems int) {
	checkElems(elems)
	groups := elems / GroupSize
	for i := 0; i < groups; i++ {
		var g [GroupWords]uint32
		copy(g[:], src[i*GroupWords:])
		DecodeGroup(g, dst[i*GroupSize:])
	}
}

// EncodeTile packs a full-precision tile in place and returns the packed
// word count. Group i reads words [32i, 32i+32) and writes words [5i, 5i+5);
// for i >= 1 the write region lies strictly below the read region, and for
// group 0 EncodeGroup has consumed all 32 inputs before any store, so
// front-to-back order is alias-safe.
func EncodeTile(buf []uint32, elems int) int {
	checkElems(elems)
	groups := elems / GroupSize
	for i := 0; i < groups; i++ {
		g := EncodeGroup(buf[i*GroupSize:])
		copy(buf[i*GroupWords:], g[:])
	}
	return groups * GroupWords
}

// DecodeTile expands a packed tile in place. The expansion of group 0 writes
// words [0, 32), on top of the packed words of every later group, so groups
// are processed back to front with each group's five packed words staged in
// locals before its 32 outputs are stored.
func DecodeTile(buf []uint32, elems int) {
	checkElems(elems)
	groups := elems / GroupSize
	for i := groups - 1; i >= 0; i-- {
		var g [GroupWords]uint32
		copy(g[:], buf[i*GroupWords:])
		DecodeGroup(g, buf[i*GroupSize:])
	}
}

func checkElems(elems int) {
	if elems <= 0 || elems%GroupSize != 0 {
		panic("mxfp4: element count must be a positive multiple of 32")
	}
}

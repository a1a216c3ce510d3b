package tilestore

import (
	"fmt"
	"io"
	"math"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// MagicTFBK identifies a tile bank file.
	MagicTFBK = "TFBK"

	// CurrentMajor is bumped on breaking layout changes only.
	CurrentMajor uint16 = 1
	// CurrentMinor tracks compatible additions.
	CurrentMinor uint16 = 0
)

// Header is the fixed on-disk prefix of a tile bank file. The word payload
// follows immediately, host-endian, 4-byte aligned.
type Header struct {
	Magic     [4]byte
	Major     uint16
	Minor     uint16
	TileWords uint32
	_         uint32
	TileCount uint64
	FileSize  uint64
}

const headerSize = int(unsafe.Sizeof(Header{}))

func (h *Header) Valid() bool {
	if string(h.Magic[:]) != MagicTFBK {
		return false
	}
	return h.TileWords != 0 && h.TileCount != 0
}

func (h *Header) Compatible() bool {
	return h.Major == CurrentMajor
}

// File is an open tile bank backed by a mapped or loaded file.
type File struct {
	Bank    *Bank
	Header  Header
	raw     []byte
	mmapped bool
}

// Open maps a tile bank read-only and validates its structure. If mmap is
// unavailable it falls back to ReadAt-based loading. The returned file must
// be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < int64(headerSize) || size64 > int64(math.MaxInt) {
		return nil, ErrCorruptFile
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err == nil {
		bf, parseErr := parseFileData(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return bf, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// OpenReaderAt loads and validates a tile bank from a random-access reader
// without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < int64(headerSize) || size > int64(math.MaxInt) {
		return nil, ErrCorruptFile
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// Close releases the file mapping, if any. The bank is invalid afterwards.
func (f *File) Close() error {
	if f == nil || f.raw == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.raw)
	}
	f.raw = nil
	f.Bank = nil
	return err
}

// Create writes bank to path as a tile bank file.
func Create(path string, bank *Bank) error {
	hdr := Header{
		Major:     CurrentMajor,
		Minor:     CurrentMinor,
		TileWords: bank.tileWords,
		TileCount: bank.tileCount,
		FileSize:  uint64(headerSize) + uint64(len(bank.words))*4,
	}
	copy(hdr.Magic[:], MagicTFBK)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeFull(f, structBytes(&hdr)); err != nil {
		_ = f.Close()
		return err
	}
	if err := writeFull(f, wordBytes(bank.words)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func parseFileData(data []byte, mmapped bool) (*File, error) {
	if len(data) < headerSize {
		return nil, ErrCorruptFile
	}
	hdr := *(*Header)(unsafe.Pointer(&data[0]))
	if !hdr.Valid() {
		return nil, ErrInvalidMagic
	}
	if !hdr.Compatible() {
		return nil, ErrUnsupportedMajor
	}
	if hdr.FileSize != uint64(len(data)) {
		return nil, ErrCorruptFile
	}

	payload := uint64(len(data) - headerSize)
	if payload%4 != 0 {
		return nil, ErrCorruptFile
	}
	wordCount := payload / 4
	want := hdr.TileCount * uint64(hdr.TileWords)
	if want/uint64(hdr.TileWords) != hdr.TileCount || want != wordCount {
		return nil, fmt.Errorf("%w: payload holds %d words, layout needs %d", ErrCorruptFile, wordCount, want)
	}

	var words []uint32
	if wordCount > 0 {
		words = unsafe.Slice((*uint32)(unsafe.Pointer(&data[headerSize])), wordCount)
	}
	bank := &Bank{
		words:     words,
		tileWords: hdr.TileWords,
		tileCount: hdr.TileCount,
	}
	return &File{Bank: bank, Header: hdr, raw: data, mmapped: mmapped}, nil
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func structBytes[T any](p *T) []byte {
	n := int(unsafe.Sizeof(*p))
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

func wordBytes(s []uint32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}

func writeFull(f *os.File, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

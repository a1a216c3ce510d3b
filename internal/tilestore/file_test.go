package tilestore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileRoundTrip(t *testing.T) {
	bank, err := NewBank(3, 8)
	if err != nil {
		t.Fatal(err)
	}
	for i := range bank.words {
		bank.words[i] = uint32(i * 3)
	}

	path := filepath.Join(t.TempDir(), "bank.tfbk")
	if err := Create(path, bank); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if f.Header.TileWords != 8 || f.Header.TileCount != 3 {
		t.Errorf("header layout %dx%d, want 3x8", f.Header.TileCount, f.Header.TileWords)
	}
	if f.Bank.Words() != 24 {
		t.Fatalf("bank holds %d words, want 24", f.Bank.Words())
	}
	for i := 0; i < 24; i++ {
		if got := f.Bank.Range(i, 1)[0]; got != uint32(i*3) {
			t.Fatalf("word %d: got %d, want %d", i, got, i*3)
		}
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.tfbk")
	junk := make([]byte, 64)
	copy(junk, "NOPE")
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("got %v, want ErrInvalidMagic", err)
	}
}

func TestOpenRejectsTruncatedPayload(t *testing.T) {
	bank, _ := NewBank(2, 8)
	path := filepath.Join(t.TempDir(), "bank.tfbk")
	if err := Create(path, bank); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-8], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("got %v, want ErrCorruptFile", err)
	}
}

func TestOpenReaderAt(t *testing.T) {
	bank, _ := NewBank(2, 4)
	for i := range bank.words {
		bank.words[i] = 0xA0 + uint32(i)
	}
	path := filepath.Join(t.TempDir(), "bank.tfbk")
	if err := Create(path, bank); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	f, err := OpenReaderAt(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if f.Bank.Range(7, 1)[0] != 0xA7 {
		t.Errorf("word 7 = %#x, want 0xa7", f.Bank.Range(7, 1)[0])
	}
}

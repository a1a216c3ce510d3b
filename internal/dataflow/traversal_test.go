package dataflow

import (
	"reflect"
	"testing"
)

func TestWalkBlockRowMajor(t *testing.T) {
	// 2x3 block in a 10-wide tile grid starting at tile 25: columns step by
	// 1, rows by 10.
	var got []uint32
	walkBlock(25, 1, 10, 3, 2, func(id uint32) { got = append(got, id) })

	want := []uint32{25, 26, 27, 35, 36, 37}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWalkBlockStridedColumns(t *testing.T) {
	// Column-major storage expressed through strides: columns step by 4,
	// rows by 1.
	var got []uint32
	walkBlock(0, 4, 1, 2, 2, func(id uint32) { got = append(got, id) })

	want := []uint32{0, 4, 1, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBlockStartsCoverEveryBlockOnce(t *testing.T) {
	cfg := ReaderConfig{
		A: Operand{
			StartTile: 0, NextBlockStride: 2, BatchStride: 12,
			BlockW: 2, BlockH: 1, BlockTiles: 2,
		},
		B: Operand{
			StartTile: 100, NextBlockStride: 8, BatchStride: 16,
			BlockW: 1, BlockH: 2, BlockTiles: 2,
		},
		NumBlocks: 3,
		Batch:     2,
	}

	type visit struct {
		batch, block   int
		startA, startB uint32
	}
	var got []visit
	cfg.blockStarts(func(batch, block int, a, b uint32) {
		got = append(got, visit{batch, block, a, b})
	})

	want := []visit{
		{0, 0, 0, 100}, {0, 1, 2, 108}, {0, 2, 4, 116},
		{1, 0, 12, 116}, {1, 1, 14, 124}, {1, 2, 16, 132},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBroadcastBPinsStartAcrossBatches(t *testing.T) {
	cfg := ReaderConfig{
		A:         Operand{BlockW: 1, BlockH: 1, BlockTiles: 1, BatchStride: 4},
		B:         Operand{BlockW: 1, BlockH: 1, BlockTiles: 1, BatchStride: 9, StartTile: 50},
		NumBlocks: 1,
		Batch:     3,
	}

	collect := func(broadcast bool) []uint32 {
		cfg.BroadcastB = broadcast
		var starts []uint32
		cfg.blockStarts(func(_, _ int, _, b uint32) { starts = append(starts, b) })
		return starts
	}

	if got := collect(true); !reflect.DeepEqual(got, []uint32{50, 50, 50}) {
		t.Errorf("broadcast: got %v, want [50 50 50]", got)
	}
	if got := collect(false); !reflect.DeepEqual(got, []uint32{50, 59, 68}) {
		t.Errorf("no broadcast: got %v, want [50 59 68]", got)
	}
}

func TestSubblockStartsOrder(t *testing.T) {
	cfg := WriterConfig{
		Out: OutOperand{
			StartTile:           0,
			NextSubblockStrideW: 2,
			NextSubblockStrideH: 8,
			SubblockW:           2, SubblockH: 1, SubblockTiles: 2,
			NumSubblocksW: 2, NumSubblocksH: 2,
			BatchStride: 16,
		},
		Batch: 2,
	}

	var got []uint32
	cfg.subblockStarts(func(_, _, _ int, start uint32) { got = append(got, start) })

	want := []uint32{0, 2, 8, 10, 16, 18, 24, 26}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

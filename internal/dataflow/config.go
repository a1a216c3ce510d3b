// Package dataflow implements the strided traversal engine and the reader
// and writer pipelines that move matrix tiles between a tile bank and the
// staging pool for the blocked matmul compute stage.
package dataflow

import (
	"errors"
	"fmt"

	"github.com/samcharles93/tileflow/internal/tilestore"
	"github.com/samcharles93/tileflow/pkg/mxfp4"
)

// Operand describes one read operand's placement and block geometry. All
// strides are tile-index deltas: StrideW advances one column, StrideH one
// row, NextBlockStride the start of the next block, BatchStride the start of
// the next batch.
type Operand struct {
	Accessor tilestore.Accessor

	StartTile       uint32
	StrideW         uint32
	StrideH         uint32
	NextBlockStride uint32

	BlockW     uint32
	BlockH     uint32
	BlockTiles uint32

	BatchStride uint32

	// Compact marks the operand as stored in the shared-exponent format;
	// the reader decodes each tile in place after its transfer completes.
	Compact bool
}

func (op *Operand) validate(name string) error {
	if op.BlockW == 0 || op.BlockH == 0 {
		return fmt.Errorf("dataflow: %s block shape %dx%d must be nonzero", name, op.BlockH, op.BlockW)
	}
	if op.BlockTiles != op.BlockW*op.BlockH {
		return fmt.Errorf("dataflow: %s block tile count %d does not match shape %dx%d", name, op.BlockTiles, op.BlockH, op.BlockW)
	}
	if op.Compact && op.Accessor.TileWords()%mxfp4.GroupSize != 0 {
		return fmt.Errorf("dataflow: %s compact tile size %d is not a multiple of %d", name, op.Accessor.TileWords(), mxfp4.GroupSize)
	}
	return nil
}

// ReaderConfig drives one reader pass: per batch and block, operand A and
// operand B blocks are staged together for the compute stage.
type ReaderConfig struct {
	A Operand
	B Operand

	NumBlocks uint32
	Batch     uint32

	// BroadcastB reuses operand B's first batch across all batches: its
	// start offset does not advance by BatchStride.
	BroadcastB bool
}

func (c *ReaderConfig) validate() error {
	if c.NumBlocks == 0 || c.Batch == 0 {
		return fmt.Errorf("dataflow: block count %d and batch count %d must be nonzero", c.NumBlocks, c.Batch)
	}
	if err := c.A.validate("operand A"); err != nil {
		return err
	}
	return c.B.validate("operand B")
}

// OutOperand describes the write operand. The output block is traversed at
// subblock granularity, matching the compute stage's finer output tiling:
// batches iterate subblock rows, subblock columns, then tiles row-major
// within each subblock.
type OutOperand struct {
	Accessor tilestore.Accessor

	StartTile           uint32
	StrideW             uint32
	StrideH             uint32
	NextSubblockStrideW uint32
	NextSubblockStrideH uint32

	SubblockW     uint32
	SubblockH     uint32
	SubblockTiles uint32
	NumSubblocksW uint32
	NumSubblocksH uint32

	BatchStride uint32

	Compact bool
}

func (op *OutOperand) validate() error {
	if op.SubblockW == 0 || op.SubblockH == 0 {
		return fmt.Errorf("dataflow: subblock shape %dx%d must be nonzero", op.SubblockH, op.SubblockW)
	}
	if op.SubblockTiles != op.SubblockW*op.SubblockH {
		return fmt.Errorf("dataflow: subblock tile count %d does not match shape %dx%d", op.SubblockTiles, op.SubblockH, op.SubblockW)
	}
	if op.NumSubblocksW == 0 || op.NumSubblocksH == 0 {
		return fmt.Errorf("dataflow: subblock grid %dx%d must be nonzero", op.NumSubblocksH, op.NumSubblocksW)
	}
	if op.Compact && op.Accessor.TileWords()%mxfp4.GroupSize != 0 {
		return fmt.Errorf("dataflow: compact tile size %d is not a multiple of %d", op.Accessor.TileWords(), mxfp4.GroupSize)
	}
	return nil
}

// WriterConfig drives one writer pass over the output operand.
type WriterConfig struct {
	Out   OutOperand
	Batch uint32
}

func (c *WriterConfig) validate() error {
	if c.Batch == 0 {
		return errors.New("dataflow: batch count must be nonzero")
	}
	return c.Out.validate()
}

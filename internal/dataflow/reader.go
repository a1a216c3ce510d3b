package dataflow

import (
	"fmt"

	"github.com/samcharles93/tileflow/internal/logger"
	"github.com/samcharles93/tileflow/internal/staging"
	"github.com/samcharles93/tileflow/internal/tilestore"
	"github.com/samcharles93/tileflow/internal/trace"
	"github.com/samcharles93/tileflow/pkg/mxfp4"
)

// Reader fills the staging pools for both read operands. Per block it
// reserves a slot range per operand, issues one asynchronous transfer per
// tile in traversal order, decodes compact tiles in place as their transfers
// complete, waits for the block's transfers at a barrier, and releases both
// ranges to the compute stage.
type Reader struct {
	cfg    ReaderConfig
	engine tilestore.Engine
	inA    *staging.Buffer
	inB    *staging.Buffer

	// Log and Trace may be replaced before Run.
	Log   logger.Logger
	Trace trace.Tracer
}

// NewReader validates the configuration against the staging pools and
// returns a ready pipeline.
func NewReader(cfg ReaderConfig, engine tilestore.Engine, inA, inB *staging.Buffer) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("dataflow: nil transfer engine")
	}
	if err := checkPool("operand A", inA, cfg.A.Accessor.TileWords(), cfg.A.BlockTiles); err != nil {
		return nil, err
	}
	if err := checkPool("operand B", inB, cfg.B.Accessor.TileWords(), cfg.B.BlockTiles); err != nil {
		return nil, err
	}
	return &Reader{
		cfg:    cfg,
		engine: engine,
		inA:    inA,
		inB:    inB,
		Log:    logger.Default(),
		Trace:  trace.Nop{},
	}, nil
}

func checkPool(name string, buf *staging.Buffer, tileWords int, blockTiles uint32) error {
	if buf == nil {
		return fmt.Errorf("dataflow: nil staging pool for %s", name)
	}
	if buf.SlotWords() != tileWords {
		return fmt.Errorf("dataflow: %s slot width %d does not match tile size %d", name, buf.SlotWords(), tileWords)
	}
	if buf.Slots()%int(blockTiles) != 0 {
		return fmt.Errorf("dataflow: %s pool capacity %d is not a multiple of the block tile count %d", name, buf.Slots(), blockTiles)
	}
	return nil
}

// Run executes the full batch/block traversal. It blocks on staging
// reservations and transfer barriers and returns once every block has been
// released to the compute stage.
func (r *Reader) Run() {
	c := &r.cfg
	r.Log.Debug("reader pass start",
		"batches", c.Batch, "blocks", c.NumBlocks,
		"block_a", fmt.Sprintf("%dx%d", c.A.BlockH, c.A.BlockW),
		"block_b", fmt.Sprintf("%dx%d", c.B.BlockH, c.B.BlockW),
		"broadcast_b", c.BroadcastB)

	c.blockStarts(func(batch, block int, startA, startB uint32) {
		wordsA := r.inA.ReserveBack(int(c.A.BlockTiles))
		r.Trace.Event(trace.Event{Stage: "reader", Kind: trace.KindReserve, Operand: "in0", Slots: int(c.A.BlockTiles), Batch: batch, Block: block})
		wordsB := r.inB.ReserveBack(int(c.B.BlockTiles))
		r.Trace.Event(trace.Event{Stage: "reader", Kind: trace.KindReserve, Operand: "in1", Slots: int(c.B.BlockTiles), Batch: batch, Block: block})

		r.issueBlock(&c.A, "in0", startA, wordsA, batch, block)
		r.issueBlock(&c.B, "in1", startB, wordsB, batch, block)

		r.engine.Barrier()
		r.Trace.Event(trace.Event{Stage: "reader", Kind: trace.KindBarrier, Batch: batch, Block: block})

		r.inA.PushBack(int(c.A.BlockTiles))
		r.Trace.Event(trace.Event{Stage: "reader", Kind: trace.KindPush, Operand: "in0", Slots: int(c.A.BlockTiles), Batch: batch, Block: block})
		r.inB.PushBack(int(c.B.BlockTiles))
		r.Trace.Event(trace.Event{Stage: "reader", Kind: trace.KindPush, Operand: "in1", Slots: int(c.B.BlockTiles), Batch: batch, Block: block})
	})

	r.Log.Debug("reader pass done", "batches", c.Batch, "blocks", c.NumBlocks)
}

// issueBlock issues one read per tile of the block into consecutive slots.
// Compact tiles decode in place on the transfer worker as soon as their copy
// lands; full-precision tiles need no completion hook.
func (r *Reader) issueBlock(op *Operand, name string, start uint32, words []uint32, batch, block int) {
	tileWords := op.Accessor.TileWords()
	slot := 0
	walkBlock(start, op.StrideW, op.StrideH, op.BlockW, op.BlockH, func(id uint32) {
		dst := words[slot*tileWords : (slot+1)*tileWords]
		slot++

		var after func()
		if op.Compact {
			after = func() { mxfp4.DecodeTile(dst, tileWords) }
		}
		r.engine.Read(op.Accessor, id, dst, after)
		r.Trace.Event(trace.Event{Stage: "reader", Kind: trace.KindRead, Operand: name, Tile: id, Words: tileWords, Batch: batch, Block: block})
	})
}

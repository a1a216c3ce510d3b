package dataflow

import (
	"fmt"

	"github.com/samcharles93/tileflow/internal/logger"
	"github.com/samcharles93/tileflow/internal/staging"
	"github.com/samcharles93/tileflow/internal/tilestore"
	"github.com/samcharles93/tileflow/internal/trace"
	"github.com/samcharles93/tileflow/pkg/mxfp4"
)

// Writer drains the output staging pool. Per subblock it waits for the
// compute stage to fill the corresponding slots, encodes each tile in place
// when the output is compact, issues the transfers, waits at a barrier, and
// releases the slots back to the compute stage.
type Writer struct {
	cfg    WriterConfig
	engine tilestore.Engine
	out    *staging.Buffer

	// Log and Trace may be replaced before Run.
	Log   logger.Logger
	Trace trace.Tracer
}

// NewWriter validates the configuration against the staging pool and
// returns a ready pipeline.
func NewWriter(cfg WriterConfig, engine tilestore.Engine, out *staging.Buffer) (*Writer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("dataflow: nil transfer engine")
	}
	if err := checkPool("output", out, cfg.Out.Accessor.TileWords(), cfg.Out.SubblockTiles); err != nil {
		return nil, err
	}
	return &Writer{
		cfg:    cfg,
		engine: engine,
		out:    out,
		Log:    logger.Default(),
		Trace:  trace.Nop{},
	}, nil
}

// Run executes the full batch/subblock traversal, blocking until every
// result tile has been written back to the store.
func (w *Writer) Run() {
	c := &w.cfg
	op := &c.Out
	w.Log.Debug("writer pass start",
		"batches", c.Batch,
		"subblocks", fmt.Sprintf("%dx%d", op.NumSubblocksH, op.NumSubblocksW),
		"subblock", fmt.Sprintf("%dx%d", op.SubblockH, op.SubblockW),
		"compact", op.Compact)

	tileWords := op.Accessor.TileWords()
	c.subblockStarts(func(batch, sbh, sbw int, start uint32) {
		words := w.out.WaitFront(int(op.SubblockTiles))
		w.Trace.Event(trace.Event{Stage: "writer", Kind: trace.KindWait, Operand: "out", Slots: int(op.SubblockTiles), Batch: batch, Block: sbh*int(op.NumSubblocksW) + sbw})

		slot := 0
		walkBlock(start, op.StrideW, op.StrideH, op.SubblockW, op.SubblockH, func(id uint32) {
			src := words[slot*tileWords : (slot+1)*tileWords]
			slot++

			if op.Compact {
				n := mxfp4.EncodeTile(src, tileWords)
				src = src[:n]
			}
			w.engine.Write(op.Accessor, id, src)
			w.Trace.Event(trace.Event{Stage: "writer", Kind: trace.KindWrite, Operand: "out", Tile: id, Words: len(src), Batch: batch})
		})

		w.engine.Barrier()
		w.Trace.Event(trace.Event{Stage: "writer", Kind: trace.KindBarrier, Batch: batch})

		w.out.PopFront(int(op.SubblockTiles))
		w.Trace.Event(trace.Event{Stage: "writer", Kind: trace.KindPop, Operand: "out", Slots: int(op.SubblockTiles), Batch: batch})
	})

	w.Log.Debug("writer pass done", "batches", c.Batch)
}

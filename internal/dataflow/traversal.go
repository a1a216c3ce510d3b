package dataflow

// walkBlock visits the tile ids of one block row-major: within a row ids
// advance by strideW, rows advance by strideH from the row start. The order
// is the order tiles enter the staging pool, which the compute stage
// assumes; callers must not reorder or skip.
func walkBlock(start, strideW, strideH, w, h uint32, visit func(id uint32)) {
	rowStart := start
	for y := uint32(0); y < h; y++ {
		id := rowStart
		for x := uint32(0); x < w; x++ {
			visit(id)
			id += strideW
		}
		rowStart += strideH
	}
}

// blockStarts visits the per-block starting tile ids of one reader pass:
// blocks advance by NextBlockStride within a batch, batches advance the
// operand start offsets by their batch strides, with operand B pinned to its
// first batch when BroadcastB is set.
func (c *ReaderConfig) blockStarts(visit func(batch, block int, startA, startB uint32)) {
	startA := c.A.StartTile
	startB := c.B.StartTile
	for b := uint32(0); b < c.Batch; b++ {
		curA := startA
		curB := startB
		for blk := uint32(0); blk < c.NumBlocks; blk++ {
			visit(int(b), int(blk), curA, curB)
			curA += c.A.NextBlockStride
			curB += c.B.NextBlockStride
		}
		startA += c.A.BatchStride
		if !c.BroadcastB {
			startB += c.B.BatchStride
		}
	}
}

// subblockStarts visits the starting tile ids of the output subblocks:
// subblock rows advance by NextSubblockStrideH, subblock columns by
// NextSubblockStrideW, batches by BatchStride.
func (c *WriterConfig) subblockStarts(visit func(batch, sbh, sbw int, start uint32)) {
	start := c.Out.StartTile
	for b := uint32(0); b < c.Batch; b++ {
		sbhStart := start
		for sbh := uint32(0); sbh < c.Out.NumSubblocksH; sbh++ {
			sbwStart := sbhStart
			for sbw := uint32(0); sbw < c.Out.NumSubblocksW; sbw++ {
				visit(int(b), int(sbh), int(sbw), sbwStart)
				sbwStart += c.Out.NextSubblockStrideW
			}
			sbhStart += c.Out.NextSubblockStrideH
		}
		start += c.Out.BatchStride
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/tileflow/internal/dataflow"
	"github.com/samcharles93/tileflow/internal/logger"
	"github.com/samcharles93/tileflow/internal/staging"
	"github.com/samcharles93/tileflow/internal/tilestore"
	"github.com/samcharles93/tileflow/internal/trace"
)

var workers int64

// jobOperand is the YAML form of one read operand.
type jobOperand struct {
	Bank            string `yaml:"bank"`
	StartTile       uint32 `yaml:"start_tile"`
	StrideW         uint32 `yaml:"stride_w"`
	StrideH         uint32 `yaml:"stride_h"`
	NextBlockStride uint32 `yaml:"next_block_stride"`
	BlockW          uint32 `yaml:"block_w"`
	BlockH          uint32 `yaml:"block_h"`
	BatchStride     uint32 `yaml:"batch_stride"`
	Compact         bool   `yaml:"compact"`
}

type jobOutput struct {
	Bank            string `yaml:"bank"`
	TileCount       int    `yaml:"tile_count"`
	StartTile       uint32 `yaml:"start_tile"`
	StrideW         uint32 `yaml:"stride_w"`
	StrideH         uint32 `yaml:"stride_h"`
	SubblockStrideW uint32 `yaml:"subblock_stride_w"`
	SubblockStrideH uint32 `yaml:"subblock_stride_h"`
	SubblockW       uint32 `yaml:"subblock_w"`
	SubblockH       uint32 `yaml:"subblock_h"`
	NumSubblocksW   uint32 `yaml:"num_subblocks_w"`
	NumSubblocksH   uint32 `yaml:"num_subblocks_h"`
	BatchStride     uint32 `yaml:"batch_stride"`
	Compact         bool   `yaml:"compact"`
}

// jobSpec describes one dataflow pass. The compute stage is stubbed with a
// loopback that forwards operand A tiles to the output in arrival order,
// which exercises the full traversal, staging, and codec path.
type jobSpec struct {
	TileWords int `yaml:"tile_words"`

	Reader struct {
		A          jobOperand `yaml:"a"`
		B          jobOperand `yaml:"b"`
		NumBlocks  uint32     `yaml:"num_blocks"`
		Batch      uint32     `yaml:"batch"`
		BroadcastB bool       `yaml:"broadcast_b"`
	} `yaml:"reader"`

	Writer struct {
		Out   jobOutput `yaml:"out"`
		Batch uint32    `yaml:"batch"`
	} `yaml:"writer"`

	// StagingBlocks sets how many blocks each staging pool holds in flight.
	StagingBlocks int `yaml:"staging_blocks"`
}

func runCmd() *cli.Command {
	var (
		jobPath   string
		tracePath string
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Execute a dataflow pass described by a job file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "job",
				Aliases:     []string{"j"},
				Usage:       "path to job YAML",
				Destination: &jobPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "trace",
				Usage:       "write a JSON-lines event trace to this file",
				Destination: &tracePath,
			},
			&cli.Int64Flag{
				Name:        "workers",
				Usage:       "transfer engine workers per pipeline",
				Value:       4,
				Destination: &workers,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			data, err := os.ReadFile(jobPath)
			if err != nil {
				return err
			}
			var job jobSpec
			if err := yaml.Unmarshal(data, &job); err != nil {
				return fmt.Errorf("parse job: %w", err)
			}
			return runJob(log, &job, tracePath)
		},
	}
}

func runJob(log logger.Logger, job *jobSpec, tracePath string) error {
	if job.TileWords <= 0 {
		return fmt.Errorf("job: tile_words must be positive, got %d", job.TileWords)
	}
	if job.StagingBlocks <= 0 {
		job.StagingBlocks = 2
	}

	bankA, err := tilestore.Open(job.Reader.A.Bank)
	if err != nil {
		return fmt.Errorf("open operand A bank: %w", err)
	}
	defer func() { _ = bankA.Close() }()
	bankB, err := tilestore.Open(job.Reader.B.Bank)
	if err != nil {
		return fmt.Errorf("open operand B bank: %w", err)
	}
	defer func() { _ = bankB.Close() }()

	if job.Writer.Out.TileCount <= 0 {
		return fmt.Errorf("job: output tile_count must be positive, got %d", job.Writer.Out.TileCount)
	}
	outBank, err := tilestore.NewBank(job.Writer.Out.TileCount, job.TileWords)
	if err != nil {
		return err
	}

	rcfg, wcfg, err := buildConfigs(job, bankA.Bank, bankB.Bank, outBank)
	if err != nil {
		return err
	}

	totalA := int(rcfg.Batch) * int(rcfg.NumBlocks) * int(rcfg.A.BlockTiles)
	totalB := int(rcfg.Batch) * int(rcfg.NumBlocks) * int(rcfg.B.BlockTiles)
	totalOut := int(wcfg.Batch) * int(wcfg.Out.NumSubblocksH) * int(wcfg.Out.NumSubblocksW) * int(wcfg.Out.SubblockTiles)
	if totalA != totalOut {
		return fmt.Errorf("job: loopback needs matching tile totals, operand A stages %d and output drains %d", totalA, totalOut)
	}

	inA, err := staging.New(int(rcfg.A.BlockTiles)*job.StagingBlocks, job.TileWords)
	if err != nil {
		return err
	}
	inB, err := staging.New(int(rcfg.B.BlockTiles)*job.StagingBlocks, job.TileWords)
	if err != nil {
		return err
	}
	out, err := staging.New(int(wcfg.Out.SubblockTiles)*job.StagingBlocks, job.TileWords)
	if err != nil {
		return err
	}

	var tracer trace.Tracer = trace.Nop{}
	var traceW *trace.Writer
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		traceW = trace.NewWriter(f)
		tracer = traceW
		log.Info("tracing run", "run", traceW.Run(), "path", tracePath)
	}

	readEng := tilestore.NewAsyncEngine(int(workers))
	defer readEng.Close()
	writeEng := tilestore.NewAsyncEngine(int(workers))
	defer writeEng.Close()

	reader, err := dataflow.NewReader(*rcfg, readEng, inA, inB)
	if err != nil {
		return err
	}
	reader.Log = log
	reader.Trace = tracer
	writer, err := dataflow.NewWriter(*wcfg, writeEng, out)
	if err != nil {
		return err
	}
	writer.Log = log
	writer.Trace = tracer

	log.Info("starting dataflow pass",
		"tiles_in", totalA+totalB, "tiles_out", totalOut,
		"batches", rcfg.Batch, "blocks", rcfg.NumBlocks)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		reader.Run()
	}()
	go func() {
		// Drain operand B: the loopback stub has no matmul to feed.
		defer wg.Done()
		for i := 0; i < totalB; i++ {
			inB.WaitFront(1)
			inB.PopFront(1)
		}
	}()
	go func() {
		// Loopback compute stub: forward operand A tiles to the output.
		defer wg.Done()
		for i := 0; i < totalA; i++ {
			src := inA.WaitFront(1)
			dst := out.ReserveBack(1)
			copy(dst, src)
			out.PushBack(1)
			inA.PopFront(1)
		}
	}()
	writer.Run()
	wg.Wait()

	if err := tilestore.Create(job.Writer.Out.Bank, outBank); err != nil {
		return fmt.Errorf("write output bank: %w", err)
	}
	if traceW != nil {
		if err := traceW.Err(); err != nil {
			return err
		}
	}
	log.Info("dataflow pass complete", "output", job.Writer.Out.Bank)
	return nil
}

func buildConfigs(job *jobSpec, bankA, bankB, outBank *tilestore.Bank) (*dataflow.ReaderConfig, *dataflow.WriterConfig, error) {
	accA, err := tilestore.NewAccessor(bankA, 0, job.TileWords)
	if err != nil {
		return nil, nil, err
	}
	accB, err := tilestore.NewAccessor(bankB, 0, job.TileWords)
	if err != nil {
		return nil, nil, err
	}
	accOut, err := tilestore.NewAccessor(outBank, 0, job.TileWords)
	if err != nil {
		return nil, nil, err
	}

	mkOperand := func(acc tilestore.Accessor, op *jobOperand) dataflow.Operand {
		return dataflow.Operand{
			Accessor:        acc,
			StartTile:       op.StartTile,
			StrideW:         op.StrideW,
			StrideH:         op.StrideH,
			NextBlockStride: op.NextBlockStride,
			BlockW:          op.BlockW,
			BlockH:          op.BlockH,
			BlockTiles:      op.BlockW * op.BlockH,
			BatchStride:     op.BatchStride,
			Compact:         op.Compact,
		}
	}

	rcfg := &dataflow.ReaderConfig{
		A:          mkOperand(accA, &job.Reader.A),
		B:          mkOperand(accB, &job.Reader.B),
		NumBlocks:  job.Reader.NumBlocks,
		Batch:      job.Reader.Batch,
		BroadcastB: job.Reader.BroadcastB,
	}

	o := &job.Writer.Out
	wcfg := &dataflow.WriterConfig{
		Out: dataflow.OutOperand{
			Accessor:            accOut,
			StartTile:           o.StartTile,
			StrideW:             o.StrideW,
			StrideH:             o.StrideH,
			NextSubblockStrideW: o.SubblockStrideW,
			NextSubblockStrideH: o.SubblockStrideH,
			SubblockW:           o.SubblockW,
			SubblockH:           o.SubblockH,
			SubblockTiles:       o.SubblockW * o.SubblockH,
			NumSubblocksW:       o.NumSubblocksW,
			NumSubblocksH:       o.NumSubblocksH,
			BatchStride:         o.BatchStride,
			Compact:             o.Compact,
		},
		Batch: job.Writer.Batch,
	}
	return rcfg, wcfg, nil
}

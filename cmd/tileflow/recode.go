package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tileflow/internal/logger"
	"github.com/samcharles93/tileflow/internal/tilestore"
	"github.com/samcharles93/tileflow/pkg/mxfp4"
)

func encodeCmd() *cli.Command {
	var (
		inPath  string
		outPath string
	)

	return &cli.Command{
		Name:  "encode",
		Usage: "Pack a full-precision tile bank into the shared-exponent format",
		Flags: recodeFlags(&inPath, &outPath),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return recodeBank(ctx, inPath, outPath, true)
		},
	}
}

func decodeCmd() *cli.Command {
	var (
		inPath  string
		outPath string
	)

	return &cli.Command{
		Name:  "decode",
		Usage: "Expand a shared-exponent tile bank to full precision",
		Flags: recodeFlags(&inPath, &outPath),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return recodeBank(ctx, inPath, outPath, false)
		},
	}
}

func recodeFlags(in, out *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "in",
			Aliases:     []string{"i"},
			Usage:       "input .tfbk bank",
			Destination: in,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output .tfbk bank",
			Destination: out,
			Required:    true,
		},
	}
}

// recodeBank rewrites every tile of a bank through the codec. Tile word
// geometry is preserved: a packed tile occupies the leading words of its
// slot, matching how compact tiles live in the tensor store.
func recodeBank(ctx context.Context, inPath, outPath string, encode bool) error {
	log := logger.FromContext(ctx)

	f, err := tilestore.Open(inPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	tileWords := f.Bank.TileWords()
	tileCount := f.Bank.TileCount()
	if tileWords%mxfp4.GroupSize != 0 {
		return fmt.Errorf("bank tile size %d is not a multiple of %d", tileWords, mxfp4.GroupSize)
	}

	outBank, err := tilestore.NewBank(tileCount, tileWords)
	if err != nil {
		return err
	}

	packedWords := mxfp4.PackedWords(tileWords)
	for t := 0; t < tileCount; t++ {
		src := f.Bank.Range(t*tileWords, tileWords)
		dst := outBank.Range(t*tileWords, tileWords)
		if encode {
			mxfp4.Encode(dst, src, tileWords)
		} else {
			mxfp4.Decode(dst, src[:packedWords], tileWords)
		}
	}

	if err := tilestore.Create(outPath, outBank); err != nil {
		return err
	}
	op := "decoded"
	if encode {
		op = "encoded"
	}
	log.Info("bank recoded", "op", op, "tiles", tileCount, "tile_words", tileWords, "out", outPath)
	return nil
}

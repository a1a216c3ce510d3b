package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tileflow/internal/tilestore"
	"github.com/samcharles93/tileflow/pkg/mxfp4"
)

func inspectCmd() *cli.Command {
	var (
		bankPath string
		asJSON   bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a .tfbk tile bank",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bank",
				Aliases:     []string{"b"},
				Usage:       "path to .tfbk file",
				Destination: &bankPath,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit machine-readable output",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := tilestore.Open(bankPath)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			hdr := f.Header
			if asJSON {
				out := map[string]any{
					"version":    fmt.Sprintf("%d.%d", hdr.Major, hdr.Minor),
					"tile_words": hdr.TileWords,
					"tile_count": hdr.TileCount,
					"file_size":  hdr.FileSize,
				}
				if hdr.TileWords%mxfp4.GroupSize == 0 {
					out["packed_tile_words"] = mxfp4.PackedWords(int(hdr.TileWords))
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Printf("bank:        %s\n", bankPath)
			fmt.Printf("version:     %d.%d\n", hdr.Major, hdr.Minor)
			fmt.Printf("tile words:  %d (%d bytes)\n", hdr.TileWords, hdr.TileWords*4)
			fmt.Printf("tile count:  %d\n", hdr.TileCount)
			fmt.Printf("file size:   %d bytes\n", hdr.FileSize)
			if hdr.TileWords%mxfp4.GroupSize == 0 {
				fmt.Printf("packed tile: %d words\n", mxfp4.PackedWords(int(hdr.TileWords)))
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/samcharles93/pointernet/internal/dataset"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/urfave/cli/v3"
)

func genDataCmd() *cli.Command {
	var (
		task string
		n    int
		seed int64
		out  string
	)
	opts := dataset.DefaultGenOptions()

	return &cli.Command{
		Name:  "gen-data",
		Usage: "Generate a synthetic pointer task as JSON Lines",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "task", Usage: "task to generate (sort, copy)", Value: "sort", Destination: &task},
			&cli.IntFlag{Name: "n", Usage: "number of examples", Value: 1000, Destination: &n},
			&cli.IntFlag{Name: "min-len", Usage: "shortest input sequence", Value: opts.MinLen, Destination: &opts.MinLen},
			&cli.IntFlag{Name: "max-len", Usage: "longest input sequence", Value: opts.MaxLen, Destination: &opts.MaxLen},
			&cli.IntFlag{Name: "vocab", Usage: "input tokens are drawn below this id", Value: opts.Vocab, Destination: &opts.Vocab},
			&cli.IntFlag{Name: "first-token", Usage: "smallest input token id", Value: opts.FirstToken, Destination: &opts.FirstToken},
			&cli.IntFlag{Name: "end-token", Usage: "id emitted after the last pointer step", Value: opts.EndToken, Destination: &opts.EndToken},
			&cli.Int64Flag{Name: "seed", Usage: "random seed (0 = time based)", Destination: &seed},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout)", Destination: &out},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			examples, err := dataset.Generate(task, n, opts, rand.New(rand.NewSource(seed)))
			if err != nil {
				return exitf("generate: %v", err)
			}
			if out == "" {
				if err := dataset.Write(os.Stdout, examples); err != nil {
					return exitf("write: %v", err)
				}
				return nil
			}
			if err := dataset.WriteFile(out, examples); err != nil {
				return exitf("write %s: %v", out, err)
			}
			log.Info("wrote dataset", "path", out, "task", task, "examples", len(examples), "seed", seed)
			return nil
		},
	}
}

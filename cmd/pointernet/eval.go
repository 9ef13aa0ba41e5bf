package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samcharles93/pointernet/internal/checkpoint"
	"github.com/samcharles93/pointernet/internal/dataset"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/samcharles93/pointernet/internal/logits"
	"github.com/samcharles93/pointernet/internal/pointer"
	"github.com/samcharles93/pointernet/internal/trainer"
	"github.com/urfave/cli/v3"
)

func evalCmd() *cli.Command {
	var (
		data      string
		batchSize int
		seed      int64
	)

	return &cli.Command{
		Name:  "eval",
		Usage: "Report loss and token accuracy of a checkpoint on a dataset",
		Flags: []cli.Flag{
			modelFlag(),
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "evaluation set (.jsonl)", Required: true, Destination: &data},
			&cli.IntFlag{Name: "batch-size", Usage: "examples per batch", Value: 32, Destination: &batchSize},
			&cli.Int64Flag{Name: "seed", Usage: "seed for the generate/copy switch", Value: 1, Destination: &seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			path, err := resolveModelPath(modelPath, stdinReader, os.Stderr)
			if err != nil {
				return exitf("resolve model: %v", err)
			}
			net, _, err := checkpoint.Load(path, pointer.WithLogger(log), pointer.WithSource(logits.NewSource(seed)))
			if err != nil {
				return exitf("load checkpoint: %v", err)
			}
			examples, err := dataset.LoadFile(data)
			if err != nil {
				return exitf("load dataset: %v", err)
			}

			loss, err := trainer.New(net, trainer.Options{BatchSize: batchSize}, log).Evaluate(ctx, examples)
			if err != nil {
				return exitf("evaluate: %v", err)
			}
			acc, err := tokenAccuracy(net, examples)
			if err != nil {
				return exitf("decode: %v", err)
			}
			return printEval(os.Stdout, len(examples), loss, acc)
		},
	}
}

// tokenAccuracy decodes every input and compares the emitted tokens with the
// tokens the targets denote, over the overlap of max_len and target length.
func tokenAccuracy(net *pointer.Network, examples []dataset.Example) (float64, error) {
	var hit, total int
	for _, ex := range examples {
		out, err := net.PredictBatch([][]int{ex.Input})
		if err != nil {
			return 0, err
		}
		for t, tok := range out[0] {
			if t >= len(ex.Target) {
				break
			}
			want := ex.Target[t]
			if ex.Gen[t] == 0 {
				want = ex.Input[want]
			}
			if tok == want {
				hit++
			}
			total++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(hit) / float64(total), nil
}

func printEval(w io.Writer, n int, loss, acc float64) error {
	_, err := fmt.Fprintf(w, "examples:  %d\nloss:      %.6f\naccuracy:  %.4f\n", n, loss, acc)
	return err
}

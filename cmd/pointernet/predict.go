package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samcharles93/pointernet/internal/checkpoint"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/samcharles93/pointernet/internal/logits"
	"github.com/samcharles93/pointernet/internal/pointer"
	"github.com/urfave/cli/v3"
)

func predictCmd() *cli.Command {
	var (
		input string
		seed  int64
	)

	return &cli.Command{
		Name:  "predict",
		Usage: "Decode token sequences with a trained checkpoint",
		Flags: []cli.Flag{
			modelFlag(),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       `token ids, e.g. "3 1 4"; separate sequences with ';'. Reads stdin when unset`,
				Destination: &input,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "seed for the generate/copy switch (0 = time based)",
				Destination: &seed,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			path, err := resolveModelPath(modelPath, stdinReader, os.Stderr)
			if err != nil {
				return exitf("resolve model: %v", err)
			}
			opts := []pointer.Option{pointer.WithLogger(log)}
			if seed != 0 {
				opts = append(opts, pointer.WithSource(logits.NewSource(seed)))
			}
			net, ck, err := checkpoint.Load(path, opts...)
			if err != nil {
				return exitf("load checkpoint: %v", err)
			}
			log.Debug("loaded checkpoint", "path", path, "id", ck.ID, "max_len", net.Config().MaxLen)

			if input != "" {
				batch, err := parseBatch(input)
				if err != nil {
					return exitf("%v", err)
				}
				return predictAndPrint(os.Stdout, net, batch)
			}

			for {
				line, err := readInteractiveLine("> ")
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return exitf("read input: %v", err)
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}
				batch, err := parseBatch(line)
				if err != nil {
					_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				if err := predictAndPrint(os.Stdout, net, batch); err != nil {
					_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
				}
			}
		},
	}
}

// parseBatch parses "3 1 4; 2 7 1" into sequences. Commas and whitespace
// both separate tokens.
func parseBatch(s string) ([][]int, error) {
	var batch [][]int
	for i, part := range strings.Split(s, ";") {
		fields := strings.FieldsFunc(part, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) == 0 {
			continue
		}
		seq := make([]int, len(fields))
		for j, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("sequence %d: invalid token %q", i+1, f)
			}
			seq[j] = v
		}
		batch = append(batch, seq)
	}
	if len(batch) == 0 {
		return nil, errors.New("no tokens in input")
	}
	return batch, nil
}

// predictAndPrint decodes each sequence on its own so inputs may differ in
// length, printing one line of output tokens per input.
func predictAndPrint(w io.Writer, net *pointer.Network, batch [][]int) error {
	for _, seq := range batch {
		out, err := net.PredictBatch([][]int{seq})
		if err != nil {
			return exitf("predict %v: %v", seq, err)
		}
		_, _ = fmt.Fprintln(w, formatTokens(out[0]))
	}
	return nil
}

func formatTokens(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = strconv.Itoa(t)
	}
	return strings.Join(parts, " ")
}

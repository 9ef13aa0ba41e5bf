package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samcharles93/pointernet/internal/checkpoint"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func inspectCmd() *cli.Command {
	var (
		showParams bool
		showConfig bool
		filter     string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a checkpoint",
		Flags: []cli.Flag{
			modelFlag(),
			&cli.BoolFlag{Name: "params", Usage: "list every parameter tensor", Destination: &showParams},
			&cli.BoolFlag{Name: "show-config", Usage: "print the model config as YAML", Destination: &showConfig},
			&cli.StringFlag{Name: "filter", Usage: "substring filter for --params", Destination: &filter},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := resolveModelPath(modelPath, stdinReader, os.Stderr)
			if err != nil {
				return exitf("resolve model: %v", err)
			}
			net, ck, err := checkpoint.Load(path)
			if err != nil {
				return exitf("load checkpoint: %v", err)
			}

			w := os.Stdout
			_, _ = fmt.Fprintf(w, "checkpoint: %s\n", path)
			_, _ = fmt.Fprintf(w, "id:         %s\n", ck.ID)
			_, _ = fmt.Fprintf(w, "created:    %s\n", ck.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			if ck.Version != "" {
				_, _ = fmt.Fprintf(w, "version:    %s\n", ck.Version)
			}
			for _, k := range sortedMeta(ck.Meta) {
				_, _ = fmt.Fprintf(w, "%-11s %g\n", k+":", ck.Meta[k])
			}

			cfg := net.Config()
			_, _ = fmt.Fprintf(w, "\nunits:      enc=%d dec=%d att=%d switch=%d\n", cfg.EncUnits, cfg.DecUnits, cfg.AttUnits, cfg.SwitchUnits)
			_, _ = fmt.Fprintf(w, "vocab:      %d (embeddings %dx%d)\n", cfg.VocSize, cfg.Vocab(), cfg.EmbeddingDim)
			_, _ = fmt.Fprintf(w, "max_len:    %d\n", cfg.MaxLen)

			counts := net.Parameters().Count()
			total := 0
			_, _ = fmt.Fprintln(w, "\nparameters:")
			for _, name := range []string{"encoder", "decoder", "attention", "switch"} {
				_, _ = fmt.Fprintf(w, "  %-10s %d\n", name, counts[name])
				total += counts[name]
			}
			_, _ = fmt.Fprintf(w, "  %-10s %d\n", "total", total)

			if showConfig {
				if err := printYAML(w, cfg); err != nil {
					return err
				}
			}
			if showParams {
				printParams(w, ck, filter)
			}
			return nil
		},
	}
}

func printYAML(w io.Writer, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "\nconfig:\n%s", indent(string(b), "  "))
	return nil
}

func printParams(w io.Writer, ck *checkpoint.Checkpoint, filter string) {
	names := make([]string, 0, len(ck.Params))
	for name := range ck.Params {
		if filter == "" || strings.Contains(name, filter) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	_, _ = fmt.Fprintln(w, "\ntensors:")
	for _, name := range names {
		t := ck.Params[name]
		_, _ = fmt.Fprintf(w, "  %-22s %4d x %-4d\n", name, t.Rows, t.Cols)
	}
}

func sortedMeta(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}

// Package dataset reads and writes pointer-task examples as JSON Lines and
// groups them into rectangular training batches.
package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/samcharles93/pointernet/internal/pointer"
)

// Example is one line of a dataset file. Gen[t] != 0 marks Target[t] as a
// vocabulary id; zero marks it as a position in Input.
type Example struct {
	Input  []int `json:"input"`
	Target []int `json:"target"`
	Gen    []int `json:"gen"`
}

// Validate checks e against a network built from cfg.
func (e Example) Validate(cfg pointer.Config) error {
	return cfg.CheckBatch(e.batch())
}

func (e Example) batch() pointer.Batch {
	return pointer.Batch{
		Inputs:  [][]int{e.Input},
		Targets: [][]int{e.Target},
		Gen:     [][]int{e.Gen},
	}
}

const maxLineSize = 4 << 20

// Load parses JSON Lines from r. Blank lines are skipped.
func Load(r io.Reader) ([]Example, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var out []Example
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ex Example
		if err := json.Unmarshal(raw, &ex); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return out, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	examples, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return examples, nil
}

// Write encodes examples as JSON Lines.
func Write(w io.Writer, examples []Example) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteFile writes examples to path, replacing any existing file.
func WriteFile(path string, examples []Example) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, examples); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Validate checks every example against a network built from cfg, including
// input ids against the embedding table, and reports the first failure by
// index.
func Validate(examples []Example, cfg pointer.Config) error {
	if len(examples) == 0 {
		return fmt.Errorf("dataset is empty")
	}
	for i, ex := range examples {
		if err := ex.Validate(cfg); err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
	}
	return nil
}

type shape struct{ input, target int }

// Batches groups examples of equal input and target length into batches of
// at most size examples. Examples are shuffled within each group and the
// batch order is shuffled; a nil rng keeps file order.
func Batches(examples []Example, size int, rng *rand.Rand) []pointer.Batch {
	if size <= 0 {
		size = 1
	}
	groups := make(map[shape][]Example)
	var keys []shape
	for _, ex := range examples {
		k := shape{len(ex.Input), len(ex.Target)}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], ex)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].input != keys[j].input {
			return keys[i].input < keys[j].input
		}
		return keys[i].target < keys[j].target
	})

	var out []pointer.Batch
	for _, k := range keys {
		group := groups[k]
		if rng != nil {
			rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		}
		for start := 0; start < len(group); start += size {
			end := min(start+size, len(group))
			out = append(out, collate(group[start:end]))
		}
	}
	if rng != nil {
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

func collate(examples []Example) pointer.Batch {
	b := pointer.Batch{
		Inputs:  make([][]int, len(examples)),
		Targets: make([][]int, len(examples)),
		Gen:     make([][]int, len(examples)),
	}
	for i, ex := range examples {
		b.Inputs[i] = ex.Input
		b.Targets[i] = ex.Target
		b.Gen[i] = ex.Gen
	}
	return b
}

// Split shuffles examples and holds out frac of them for validation.
func Split(examples []Example, frac float64, rng *rand.Rand) (train, valid []Example) {
	shuffled := append([]Example(nil), examples...)
	if rng != nil {
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	}
	n := int(float64(len(shuffled)) * frac)
	n = max(0, min(n, len(shuffled)))
	return shuffled[n:], shuffled[:n]
}

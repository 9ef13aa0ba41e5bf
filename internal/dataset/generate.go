package dataset

import (
	"fmt"
	"math/rand"
	"sort"
)

// Tasks lists the synthetic tasks Generate understands.
var Tasks = []string{"sort", "copy"}

// GenOptions controls synthetic data. Input tokens are drawn from
// [FirstToken, Vocab).
type GenOptions struct {
	MinLen     int
	MaxLen     int
	Vocab      int
	FirstToken int
	EndToken   int
}

// DefaultGenOptions matches pointer.DefaultConfig: ids 0 and 1 are the start
// and end tokens.
func DefaultGenOptions() GenOptions {
	return GenOptions{
		MinLen:     3,
		MaxLen:     8,
		Vocab:      32,
		FirstToken: 2,
		EndToken:   1,
	}
}

func (o GenOptions) validate() error {
	switch {
	case o.MinLen <= 0 || o.MaxLen < o.MinLen:
		return fmt.Errorf("invalid length range [%d, %d]", o.MinLen, o.MaxLen)
	case o.FirstToken < 0 || o.FirstToken >= o.Vocab:
		return fmt.Errorf("first token %d outside vocabulary of %d", o.FirstToken, o.Vocab)
	case o.EndToken < 0 || o.EndToken >= o.Vocab:
		return fmt.Errorf("end token %d outside vocabulary of %d", o.EndToken, o.Vocab)
	}
	return nil
}

// Generate produces n examples of task:
//
//	sort: point at input positions in ascending token order, then emit the end token.
//	copy: point at every input position in order, then emit the end token.
func Generate(task string, n int, opts GenOptions, rng *rand.Rand) ([]Example, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	var target func([]int) []int
	switch task {
	case "sort":
		target = sortPositions
	case "copy":
		target = copyPositions
	default:
		return nil, fmt.Errorf("unknown task %q (want one of %v)", task, Tasks)
	}

	out := make([]Example, n)
	for i := range out {
		length := opts.MinLen + rng.Intn(opts.MaxLen-opts.MinLen+1)
		input := make([]int, length)
		for j := range input {
			input[j] = opts.FirstToken + rng.Intn(opts.Vocab-opts.FirstToken)
		}
		positions := target(input)
		ex := Example{
			Input:  input,
			Target: append(positions, opts.EndToken),
			Gen:    make([]int, len(positions)+1),
		}
		ex.Gen[len(positions)] = 1
		out[i] = ex
	}
	return out, nil
}

func sortPositions(input []int) []int {
	pos := copyPositions(input)
	sort.SliceStable(pos, func(a, b int) bool { return input[pos[a]] < input[pos[b]] })
	return pos
}

func copyPositions(input []int) []int {
	pos := make([]int, len(input))
	for i := range pos {
		pos[i] = i
	}
	return pos
}

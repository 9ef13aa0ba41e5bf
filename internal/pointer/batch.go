package pointer

import "github.com/pkg/errors"

// Batch is one teacher-forced training batch. Inputs is (batch, seq_len);
// Targets and Gen are (batch, target_len). Gen[i][t] != 0 means Targets[i][t]
// is a fixed-vocabulary id; zero means it is a position in Inputs[i].
type Batch struct {
	Inputs  [][]int `json:"inputs"`
	Targets [][]int `json:"targets"`
	Gen     [][]int `json:"gen"`
}

// Len returns the number of examples.
func (b Batch) Len() int { return len(b.Inputs) }

// TargetLen returns the number of decoding steps.
func (b Batch) TargetLen() int {
	if len(b.Targets) == 0 {
		return 0
	}
	return len(b.Targets[0])
}

// Validate checks alignment and that every target fits its branch.
func (b Batch) Validate(vocSize int) error {
	if err := validateInputs(b.Inputs); err != nil {
		return err
	}
	n := len(b.Inputs)
	if len(b.Targets) != n || len(b.Gen) != n {
		return errors.Wrapf(ErrBatchMisaligned, "inputs %d, targets %d, gen %d", n, len(b.Targets), len(b.Gen))
	}
	steps := len(b.Targets[0])
	if steps == 0 {
		return errors.Wrap(ErrBatchMisaligned, "empty targets")
	}
	seqLen := len(b.Inputs[0])
	for i := range b.Targets {
		if len(b.Targets[i]) != steps || len(b.Gen[i]) != steps {
			return errors.Wrapf(ErrBatchMisaligned, "example %d: %d targets and %d flags, want %d", i, len(b.Targets[i]), len(b.Gen[i]), steps)
		}
		for t, y := range b.Targets[i] {
			limit := vocSize
			if b.Gen[i][t] == 0 {
				limit = seqLen
			}
			if y < 0 || y >= limit {
				return errors.Wrapf(ErrTargetOutOfRange, "example %d step %d: %d not in [0,%d)", i, t, y, limit)
			}
		}
	}
	return nil
}

func validateInputs(x [][]int) error {
	if len(x) == 0 {
		return errors.Wrap(ErrBatchMisaligned, "empty batch")
	}
	seqLen := len(x[0])
	if seqLen == 0 {
		return errors.Wrap(ErrBatchMisaligned, "empty input sequence")
	}
	for i, row := range x {
		if len(row) != seqLen {
			return errors.Wrapf(ErrBatchMisaligned, "input %d has length %d, want %d", i, len(row), seqLen)
		}
	}
	return nil
}

// column returns x[:, j].
func column(x [][]int, j int) []int {
	out := make([]int, len(x))
	for i := range x {
		out[i] = x[i][j]
	}
	return out
}

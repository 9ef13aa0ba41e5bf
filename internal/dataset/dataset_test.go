package dataset

import (
	"bytes"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/pointernet/internal/pointer"
)

func TestLoad(t *testing.T) {
	t.Parallel()
	in := `{"input":[3,4,5],"target":[0,1],"gen":[0,1]}

{"input":[2,2],"target":[1],"gen":[0]}
`
	got, err := Load(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d examples, want 2", len(got))
	}
	if got[0].Input[2] != 5 || got[0].Gen[1] != 1 || got[1].Target[0] != 1 {
		t.Fatalf("unexpected examples: %+v", got)
	}
}

func TestLoadReportsLine(t *testing.T) {
	t.Parallel()
	in := `{"input":[3],"target":[0],"gen":[0]}
{"input":[3,`
	_, err := Load(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestWriteLoadFile(t *testing.T) {
	t.Parallel()
	want, err := Generate("copy", 5, DefaultGenOptions(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "copy.jsonl")
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d examples, want %d", len(got), len(want))
	}
	for i := range want {
		if !equal(got[i].Input, want[i].Input) || !equal(got[i].Target, want[i].Target) || !equal(got[i].Gen, want[i].Gen) {
			t.Fatalf("example %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestWriteOneLinePerExample(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := Write(&buf, []Example{
		{Input: []int{2}, Target: []int{0}, Gen: []int{0}},
		{Input: []int{3}, Target: []int{0}, Gen: []int{0}},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("got %d lines, want 2", n)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	good := Example{Input: []int{2, 3}, Target: []int{1, 5}, Gen: []int{0, 1}}
	tests := []struct {
		name     string
		examples []Example
		want     error
	}{
		{"valid", []Example{good}, nil},
		{"pointer past input", []Example{good, {Input: []int{2}, Target: []int{1}, Gen: []int{0}}}, pointer.ErrTargetOutOfRange},
		{"vocab id too large", []Example{{Input: []int{2}, Target: []int{9}, Gen: []int{1}}}, pointer.ErrTargetOutOfRange},
		{"flags misaligned", []Example{{Input: []int{2}, Target: []int{0, 0}, Gen: []int{0}}}, pointer.ErrBatchMisaligned},
		{"input outside embeddings", []Example{good, {Input: []int{2, 6}, Target: []int{1}, Gen: []int{1}}}, pointer.ErrTokenOutOfRange},
	}
	cfg := pointer.Config{VocSize: 6}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.examples, cfg)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if err := Validate(nil, cfg); err == nil {
		t.Fatal("expected error for empty dataset")
	}
}

func TestBatchesAreRectangular(t *testing.T) {
	t.Parallel()
	opts := DefaultGenOptions()
	opts.MinLen, opts.MaxLen = 2, 5
	examples, err := Generate("sort", 200, opts, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	batches := Batches(examples, 16, rand.New(rand.NewSource(4)))
	total := 0
	for i, b := range batches {
		if b.Len() == 0 || b.Len() > 16 {
			t.Fatalf("batch %d has %d examples", i, b.Len())
		}
		if err := b.Validate(opts.Vocab); err != nil {
			t.Fatalf("batch %d invalid: %v", i, err)
		}
		total += b.Len()
	}
	if total != len(examples) {
		t.Fatalf("batches cover %d examples, want %d", total, len(examples))
	}
}

func TestBatchesWithoutRNGKeepOrder(t *testing.T) {
	t.Parallel()
	examples := []Example{
		{Input: []int{2, 3}, Target: []int{0}, Gen: []int{0}},
		{Input: []int{4}, Target: []int{0}, Gen: []int{0}},
		{Input: []int{5, 6}, Target: []int{1}, Gen: []int{0}},
	}
	batches := Batches(examples, 8, nil)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0].Inputs[0][0] != 4 {
		t.Fatalf("shorter inputs should come first, got %v", batches[0].Inputs)
	}
	if batches[1].Inputs[0][0] != 2 || batches[1].Inputs[1][0] != 5 {
		t.Fatalf("group order not preserved: %v", batches[1].Inputs)
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()
	examples, err := Generate("copy", 10, DefaultGenOptions(), rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	train, valid := Split(examples, 0.2, rand.New(rand.NewSource(1)))
	if len(train) != 8 || len(valid) != 2 {
		t.Fatalf("split %d/%d, want 8/2", len(train), len(valid))
	}
}

func TestGenerateSort(t *testing.T) {
	t.Parallel()
	opts := DefaultGenOptions()
	examples, err := Generate("sort", 50, opts, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, ex := range examples {
		if len(ex.Input) < opts.MinLen || len(ex.Input) > opts.MaxLen {
			t.Fatalf("example %d length %d outside range", i, len(ex.Input))
		}
		n := len(ex.Input)
		if len(ex.Target) != n+1 || ex.Target[n] != opts.EndToken || ex.Gen[n] != 1 {
			t.Fatalf("example %d does not end with the end token: %+v", i, ex)
		}
		for j := 1; j < n; j++ {
			if ex.Gen[j] != 0 {
				t.Fatalf("example %d step %d should point", i, j)
			}
			if ex.Input[ex.Target[j-1]] > ex.Input[ex.Target[j]] {
				t.Fatalf("example %d not sorted: %+v", i, ex)
			}
		}
		for _, tok := range ex.Input {
			if tok < opts.FirstToken || tok >= opts.Vocab {
				t.Fatalf("example %d token %d outside [%d,%d)", i, tok, opts.FirstToken, opts.Vocab)
			}
		}
	}
}

func TestGenerateCopy(t *testing.T) {
	t.Parallel()
	examples, err := Generate("copy", 3, DefaultGenOptions(), rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, ex := range examples {
		for j := range ex.Input {
			if ex.Target[j] != j {
				t.Fatalf("copy target %v", ex.Target)
			}
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	if _, err := Generate("reverse", 1, DefaultGenOptions(), rng); err == nil {
		t.Fatal("expected unknown task error")
	}
	opts := DefaultGenOptions()
	opts.MaxLen = 1
	if _, err := Generate("copy", 1, opts, rng); err == nil {
		t.Fatal("expected length range error")
	}
	opts = DefaultGenOptions()
	opts.FirstToken = opts.Vocab
	if _, err := Generate("copy", 1, opts, rng); err == nil {
		t.Fatal("expected token range error")
	}
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/samcharles93/pointernet/internal/autodiff"
	"gonum.org/v1/gonum/mat"
)

func TestLinearForwardShape(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	l := NewLinear("proj", 3, 5, rng)
	g := autodiff.NewInferenceGraph()
	x := g.Constant(mat.NewDense(4, 3, nil))
	out := l.Forward(g, x)
	if r, c := out.Dims(); r != 4 || c != 5 {
		t.Fatalf("expected 4x5, got %dx%d", r, c)
	}
	// zero input and zero bias give zero output
	if mat.Sum(out.Value) != 0 {
		t.Fatalf("expected zero output, got %v", mat.Sum(out.Value))
	}
}

func TestLSTMCellStep(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2))
	cell := NewLSTMCell("lstm", 3, 4, rng)
	g := autodiff.NewGraph()
	x := g.Constant(Glorot(rng, 2, 3))
	h, c := cell.ZeroState(g, 2)
	h, c = cell.Step(g, x, h, c)
	if r, cols := h.Dims(); r != 2 || cols != 4 {
		t.Fatalf("hidden: expected 2x4, got %dx%d", r, cols)
	}
	if r, cols := c.Dims(); r != 2 || cols != 4 {
		t.Fatalf("cell: expected 2x4, got %dx%d", r, cols)
	}
	for i := 0; i < 2; i++ {
		for _, v := range h.Row(i) {
			if math.Abs(v) >= 1 {
				t.Fatalf("hidden state must lie in (-1,1), got %v", v)
			}
		}
	}

	if err := g.Backward(g.Sum(h)); err != nil {
		t.Fatalf("backward: %v", err)
	}
	for _, p := range cell.Parameters() {
		if p.Grad == nil {
			t.Fatalf("parameter %s received no gradient", p.Name)
		}
	}
}

func TestLSTMForgetBias(t *testing.T) {
	t.Parallel()

	cell := NewLSTMCell("lstm", 2, 3, rand.New(rand.NewSource(3)))
	for j := 0; j < 12; j++ {
		want := 0.0
		if j >= 3 && j < 6 {
			want = 1
		}
		if got := cell.B.At(0, j); got != want {
			t.Fatalf("bias[%d]: got %v want %v", j, got, want)
		}
	}
}

func TestAdamMinimisesQuadratic(t *testing.T) {
	t.Parallel()

	x := autodiff.NewVariable("x", mat.NewDense(1, 2, []float64{3, -2}))
	opt := NewAdam(0.1)
	for range 300 {
		g := autodiff.NewGraph()
		loss := g.Sum(g.Mul(x, x))
		if err := g.Backward(loss); err != nil {
			t.Fatalf("backward: %v", err)
		}
		opt.Step([]*autodiff.Node{x})
	}
	for j := 0; j < 2; j++ {
		if v := x.At(0, j); math.Abs(v) > 0.05 {
			t.Fatalf("x[%d] = %v, expected near zero", j, v)
		}
	}
	if opt.Steps() != 300 {
		t.Fatalf("expected 300 steps, got %d", opt.Steps())
	}
	if x.Grad.At(0, 0) != 0 {
		t.Fatal("Step should clear gradients")
	}
}

func TestSGDStep(t *testing.T) {
	t.Parallel()

	x := autodiff.NewVariable("x", mat.NewDense(1, 1, []float64{1}))
	g := autodiff.NewGraph()
	if err := g.Backward(g.Sum(g.Scale(x, 2))); err != nil {
		t.Fatalf("backward: %v", err)
	}
	SGD{LearningRate: 0.25}.Step([]*autodiff.Node{x})
	if got := x.At(0, 0); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestClipGradNorm(t *testing.T) {
	t.Parallel()

	a := autodiff.NewVariable("a", mat.NewDense(1, 2, nil))
	a.Grad = mat.NewDense(1, 2, []float64{3, 4})

	if norm := ClipGradNorm([]*autodiff.Node{a}, 10); math.Abs(norm-5) > 1e-12 {
		t.Fatalf("expected norm 5, got %v", norm)
	}
	if a.Grad.At(0, 0) != 3 {
		t.Fatal("gradient under the limit must not change")
	}

	ClipGradNorm([]*autodiff.Node{a}, 1)
	if got := GradNorm([]*autodiff.Node{a}); math.Abs(got-1) > 1e-5 {
		t.Fatalf("expected clipped norm 1, got %v", got)
	}
}

func TestEmbeddingLookup(t *testing.T) {
	t.Parallel()

	emb, err := EmbeddingFromRows([][]float64{{0, 0}, {1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("EmbeddingFromRows: %v", err)
	}
	if emb.Vocab() != 3 || emb.Dim() != 2 {
		t.Fatalf("unexpected dims %dx%d", emb.Vocab(), emb.Dim())
	}
	g := autodiff.NewGraph()
	out := emb.Lookup(g, []int{2, 1})
	if out.At(0, 1) != 4 || out.At(1, 0) != 1 {
		t.Fatalf("unexpected lookup rows %v %v", out.Row(0), out.Row(1))
	}
	if out.RequiresGrad() {
		t.Fatal("embedding lookups must not require gradients")
	}

	err = autodiff.Safe(func() error {
		emb.Lookup(g, []int{3})
		return nil
	})
	if !errors.Is(err, mat.ErrIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestEmbeddingFromRowsRagged(t *testing.T) {
	t.Parallel()

	if _, err := EmbeddingFromRows([][]float64{{1, 2}, {3}}); err == nil {
		t.Fatal("expected error for ragged rows")
	}
	if _, err := EmbeddingFromRows(nil); err == nil {
		t.Fatal("expected error for empty table")
	}
}

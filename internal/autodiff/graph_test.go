package autodiff

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	return mat.NewDense(r, c, data)
}

// checkGradient compares the analytic gradient of f with respect to x
// against central finite differences.
func checkGradient(t *testing.T, name string, x *Node, f func(g *Graph) *Node) {
	t.Helper()

	x.ZeroGrad()
	g := NewGraph()
	if err := g.Backward(f(g)); err != nil {
		t.Fatalf("%s: backward: %v", name, err)
	}
	analytic := mat.DenseCopyOf(x.Grad)

	const eps = 1e-6
	r, c := x.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			orig := x.Value.At(i, j)
			x.Value.Set(i, j, orig+eps)
			plus := f(NewInferenceGraph()).Scalar()
			x.Value.Set(i, j, orig-eps)
			minus := f(NewInferenceGraph()).Scalar()
			x.Value.Set(i, j, orig)

			numeric := (plus - minus) / (2 * eps)
			got := analytic.At(i, j)
			if math.Abs(numeric-got) > 1e-5*math.Max(1, math.Abs(numeric)) {
				t.Fatalf("%s: grad[%d,%d]: analytic %.8f, numeric %.8f", name, i, j, got, numeric)
			}
		}
	}
}

func TestGradients(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	a := NewVariable("a", randDense(rng, 3, 4))
	b := NewVariable("b", randDense(rng, 4, 2))
	row := NewVariable("row", randDense(rng, 1, 4))
	s := NewVariable("s", randDense(rng, 3, 1))
	w := NewConstant(randDense(rng, 3, 4))
	// weighted sum so every output element gets a distinct upstream gradient
	weigh := func(g *Graph, n *Node) *Node {
		r, c := n.Dims()
		return g.Sum(g.Mul(n, g.Constant(randDense(rand.New(rand.NewSource(int64(r*10+c))), r, c))))
	}

	cases := []struct {
		name string
		x    *Node
		f    func(g *Graph) *Node
	}{
		{"matmul/a", a, func(g *Graph) *Node { return weigh(g, g.MatMul(a, b)) }},
		{"matmul/b", b, func(g *Graph) *Node { return weigh(g, g.MatMul(a, b)) }},
		{"addrow/row", row, func(g *Graph) *Node { return weigh(g, g.AddRow(a, row)) }},
		{"sub", a, func(g *Graph) *Node { return weigh(g, g.Sub(w, a)) }},
		{"mul", a, func(g *Graph) *Node { return weigh(g, g.Mul(a, a)) }},
		{"oneminus", a, func(g *Graph) *Node { return weigh(g, g.OneMinus(a)) }},
		{"scale", a, func(g *Graph) *Node { return weigh(g, g.Scale(a, -2.5)) }},
		{"sigmoid", a, func(g *Graph) *Node { return weigh(g, g.Sigmoid(a)) }},
		{"tanh", a, func(g *Graph) *Node { return weigh(g, g.Tanh(a)) }},
		{"softmax", a, func(g *Graph) *Node { return weigh(g, g.Softmax(a)) }},
		{"logsoftmax", a, func(g *Graph) *Node { return weigh(g, g.LogSoftmax(a)) }},
		{"concat", a, func(g *Graph) *Node { return weigh(g, g.Concat(a, w, a)) }},
		{"slicecols", a, func(g *Graph) *Node { return weigh(g, g.SliceCols(a, 1, 3)) }},
		{"scalerows/a", a, func(g *Graph) *Node { return weigh(g, g.ScaleRows(a, s)) }},
		{"scalerows/s", s, func(g *Graph) *Node { return weigh(g, g.ScaleRows(a, s)) }},
		{"pick", a, func(g *Graph) *Node { return weigh(g, g.Pick(a, []int{3, 0, 2})) }},
		{"rows", a, func(g *Graph) *Node { return weigh(g, g.Rows(a, []int{2, 2, 0, 1})) }},
	}
	for _, tc := range cases {
		checkGradient(t, tc.name, tc.x, tc.f)
	}
}

func TestBackwardRequiresScalar(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	a := NewVariable("a", mat.NewDense(2, 2, nil))
	err := g.Backward(g.Scale(a, 2))
	if !errors.Is(err, ErrNotScalar) {
		t.Fatalf("expected ErrNotScalar, got %v", err)
	}
}

func TestBackwardWithoutVariables(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	c := g.Constant(mat.NewDense(1, 1, []float64{3}))
	if err := g.Backward(g.Sum(c)); !errors.Is(err, ErrNoGradient) {
		t.Fatalf("expected ErrNoGradient, got %v", err)
	}
}

func TestInferenceGraphRecordsNothing(t *testing.T) {
	t.Parallel()

	g := NewInferenceGraph()
	a := NewVariable("a", mat.NewDense(1, 2, []float64{1, 2}))
	out := g.Sum(g.Tanh(a))
	if g.Len() != 0 {
		t.Fatalf("expected empty tape, got %d", g.Len())
	}
	if out.RequiresGrad() {
		t.Fatal("inference result should not require grad")
	}
}

func TestGradientsAccumulateAcrossPasses(t *testing.T) {
	t.Parallel()

	a := NewVariable("a", mat.NewDense(1, 1, []float64{2}))
	for range 3 {
		g := NewGraph()
		if err := g.Backward(g.Sum(g.Scale(a, 3))); err != nil {
			t.Fatalf("backward: %v", err)
		}
	}
	if got := a.Grad.At(0, 0); got != 9 {
		t.Fatalf("expected accumulated grad 9, got %v", got)
	}
	a.ZeroGrad()
	if got := a.Grad.At(0, 0); got != 0 {
		t.Fatalf("expected zeroed grad, got %v", got)
	}
}

func TestSafeRecoversShapeErrors(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	a := NewConstant(mat.NewDense(2, 3, nil))
	b := NewConstant(mat.NewDense(2, 3, nil))
	err := Safe(func() error {
		g.MatMul(a, b)
		return nil
	})
	if !errors.Is(err, mat.ErrShape) {
		t.Fatalf("expected mat.ErrShape, got %v", err)
	}

	err = Safe(func() error {
		g.Pick(a, []int{0, 5})
		return nil
	})
	if !errors.Is(err, mat.ErrIndexOutOfRange) {
		t.Fatalf("expected mat.ErrIndexOutOfRange, got %v", err)
	}
}

func TestSafeRepanicsOtherValues(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r != "boom" {
			t.Fatalf("expected re-panic with boom, got %v", r)
		}
	}()
	_ = Safe(func() error { panic("boom") })
}

// Package nn provides the trainable building blocks used by the pointer
// network: dense projections, LSTM cells and embedding tables, all expressed
// as operations on an autodiff.Graph.
package nn

import (
	"math"
	"math/rand"

	"github.com/samcharles93/pointernet/internal/autodiff"
	"gonum.org/v1/gonum/mat"
)

// Glorot returns a rows x cols matrix drawn uniformly from the Glorot range.
func Glorot(rng *rand.Rand, rows, cols int) *mat.Dense {
	limit := math.Sqrt(6 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return mat.NewDense(rows, cols, data)
}

// Linear is an affine projection x*W + b.
type Linear struct {
	W *autodiff.Node
	B *autodiff.Node
}

// NewLinear creates a projection from in to out units with a zero bias.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	return &Linear{
		W: autodiff.NewVariable(name+".w", Glorot(rng, in, out)),
		B: autodiff.NewVariable(name+".b", mat.NewDense(1, out, nil)),
	}
}

// Forward projects the batch x (rows are examples).
func (l *Linear) Forward(g *autodiff.Graph, x *autodiff.Node) *autodiff.Node {
	return g.AddRow(g.MatMul(x, l.W), l.B)
}

// Parameters returns the trainable weights.
func (l *Linear) Parameters() []*autodiff.Node {
	return []*autodiff.Node{l.W, l.B}
}

// LSTMCell is a single LSTM step with fused gate weights laid out as
// [input | forget | output | candidate].
type LSTMCell struct {
	Hidden int

	W *autodiff.Node // in x 4H
	U *autodiff.Node // H x 4H
	B *autodiff.Node // 1 x 4H
}

// NewLSTMCell creates a cell mapping in-sized inputs to hidden units. The
// forget gate bias starts at one.
func NewLSTMCell(name string, in, hidden int, rng *rand.Rand) *LSTMCell {
	bias := mat.NewDense(1, 4*hidden, nil)
	for j := hidden; j < 2*hidden; j++ {
		bias.Set(0, j, 1)
	}
	return &LSTMCell{
		Hidden: hidden,
		W:      autodiff.NewVariable(name+".w", Glorot(rng, in, 4*hidden)),
		U:      autodiff.NewVariable(name+".u", Glorot(rng, hidden, 4*hidden)),
		B:      autodiff.NewVariable(name+".b", bias),
	}
}

// Step advances the cell by one timestep and returns the new hidden and
// cell states.
func (c *LSTMCell) Step(g *autodiff.Graph, x, h, cell *autodiff.Node) (*autodiff.Node, *autodiff.Node) {
	gates := g.AddRow(g.Add(g.MatMul(x, c.W), g.MatMul(h, c.U)), c.B)
	H := c.Hidden
	in := g.Sigmoid(g.SliceCols(gates, 0, H))
	forget := g.Sigmoid(g.SliceCols(gates, H, 2*H))
	out := g.Sigmoid(g.SliceCols(gates, 2*H, 3*H))
	cand := g.Tanh(g.SliceCols(gates, 3*H, 4*H))

	nextCell := g.Add(g.Mul(forget, cell), g.Mul(in, cand))
	nextH := g.Mul(out, g.Tanh(nextCell))
	return nextH, nextCell
}

// ZeroState returns zero hidden and cell states for a batch.
func (c *LSTMCell) ZeroState(g *autodiff.Graph, batch int) (*autodiff.Node, *autodiff.Node) {
	return g.Constant(mat.NewDense(batch, c.Hidden, nil)), g.Constant(mat.NewDense(batch, c.Hidden, nil))
}

// Parameters returns the trainable weights.
func (c *LSTMCell) Parameters() []*autodiff.Node {
	return []*autodiff.Node{c.W, c.U, c.B}
}

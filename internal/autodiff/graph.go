// Package autodiff implements a small reverse-mode gradient tape over
// gonum dense matrices.
//
// A Graph records every operation whose result depends on a variable. Calling
// Backward on a scalar node walks the tape in reverse creation order, which is
// always a valid topological order because an operation can only consume
// nodes that already exist. Variables are long-lived leaves (model
// parameters) whose gradients accumulate across Backward calls until they
// are zeroed by the optimizer.
//
// Operations panic with an *OpError on shape or index violations, the same
// way gonum itself panics with mat.Error values. Entry points recover both
// with Safe.
package autodiff

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNotScalar is returned when Backward is called on a node that is not 1x1.
var ErrNotScalar = errors.New("autodiff: backward requires a 1x1 node")

// ErrNoGradient is returned when Backward is called on a node that does not
// depend on any variable.
var ErrNoGradient = errors.New("autodiff: node does not depend on any variable")

// Node is a matrix value in a computation with an optional gradient.
type Node struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense

	requiresGrad bool
	backward     func()
}

// NewVariable wraps value as a trainable leaf. Gradients flow into it.
func NewVariable(name string, value *mat.Dense) *Node {
	return &Node{Name: name, Value: value, requiresGrad: true}
}

// NewConstant wraps value as a leaf that never receives gradients.
func NewConstant(value *mat.Dense) *Node {
	return &Node{Value: value}
}

// RequiresGrad reports whether gradients flow into n.
func (n *Node) RequiresGrad() bool { return n.requiresGrad }

// Dims returns the number of rows and columns of the value.
func (n *Node) Dims() (int, int) { return n.Value.Dims() }

// At returns the value element at (i, j).
func (n *Node) At(i, j int) float64 { return n.Value.At(i, j) }

// Row returns a copy of row i of the value.
func (n *Node) Row(i int) []float64 {
	_, c := n.Value.Dims()
	out := make([]float64, c)
	copy(out, n.Value.RawRowView(i))
	return out
}

// Scalar returns the single element of a 1x1 node.
func (n *Node) Scalar() float64 {
	r, c := n.Value.Dims()
	if r != 1 || c != 1 {
		panic(&OpError{Op: "scalar", Err: mat.ErrShape})
	}
	return n.Value.At(0, 0)
}

// ZeroGrad clears the accumulated gradient.
func (n *Node) ZeroGrad() {
	if n.Grad != nil {
		n.Grad.Zero()
	}
}

// grad returns the gradient buffer, allocating it on first use. It returns
// nil for nodes that do not require gradients.
func (n *Node) grad() *mat.Dense {
	if !n.requiresGrad {
		return nil
	}
	if n.Grad == nil {
		r, c := n.Value.Dims()
		n.Grad = mat.NewDense(r, c, nil)
	}
	return n.Grad
}

func (n *Node) accumulate(d mat.Matrix) {
	g := n.grad()
	if g == nil {
		return
	}
	g.Add(g, d)
}

// Graph records operations for a single forward/backward pass.
type Graph struct {
	tape   []*Node
	noGrad bool
}

// NewGraph returns a graph that records operations for backpropagation.
func NewGraph() *Graph {
	return &Graph{}
}

// NewInferenceGraph returns a graph that records nothing. Results never
// require gradients, so variables are only read.
func NewInferenceGraph() *Graph {
	return &Graph{noGrad: true}
}

// Len returns the number of recorded operations.
func (g *Graph) Len() int { return len(g.tape) }

// Constant wraps value as a non-trainable node.
func (g *Graph) Constant(value *mat.Dense) *Node {
	return NewConstant(value)
}

func (g *Graph) record(value *mat.Dense, backward func(out *Node), inputs ...*Node) *Node {
	out := &Node{Value: value}
	if g.noGrad {
		return out
	}
	for _, in := range inputs {
		if in.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	if out.requiresGrad {
		out.backward = func() { backward(out) }
		g.tape = append(g.tape, out)
	}
	return out
}

// Backward propagates the gradient of the scalar loss through the tape into
// every variable it depends on.
func (g *Graph) Backward(loss *Node) error {
	r, c := loss.Dims()
	if r != 1 || c != 1 {
		return errors.Wrapf(ErrNotScalar, "got %dx%d", r, c)
	}
	if !loss.requiresGrad {
		return ErrNoGradient
	}
	loss.grad().Set(0, 0, 1)
	for i := len(g.tape) - 1; i >= 0; i-- {
		n := g.tape[i]
		if n.Grad == nil {
			continue
		}
		n.backward()
	}
	g.tape = nil
	return nil
}

// OpError describes a shape or index violation inside an operation.
type OpError struct {
	Op  string
	Err error
	Msg string
}

func (e *OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("autodiff: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("autodiff: %s: %v: %s", e.Op, e.Err, e.Msg)
}

func (e *OpError) Unwrap() error { return e.Err }

// Safe runs fn and converts numeric panics (gonum mat.Error or *OpError)
// into returned errors. Any other panic is re-raised.
func Safe(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch e := r.(type) {
		case *OpError:
			err = e
		case mat.Error:
			err = e
		default:
			panic(r)
		}
	}()
	return fn()
}

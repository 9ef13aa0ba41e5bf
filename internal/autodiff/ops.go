package autodiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

func shapeErr(op string, format string, args ...any) *OpError {
	return &OpError{Op: op, Err: mat.ErrShape, Msg: fmt.Sprintf(format, args...)}
}

func sameShape(op string, a, b *Node) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(shapeErr(op, "%dx%d vs %dx%d", ar, ac, br, bc))
	}
}

// MatMul returns a*b.
func (g *Graph) MatMul(a, b *Node) *Node {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(shapeErr("matmul", "%dx%d * %dx%d", ar, ac, br, bc))
	}
	var v mat.Dense
	v.Mul(a.Value, b.Value)
	return g.record(&v, func(out *Node) {
		if a.requiresGrad {
			var da mat.Dense
			da.Mul(out.Grad, b.Value.T())
			a.accumulate(&da)
		}
		if b.requiresGrad {
			var db mat.Dense
			db.Mul(a.Value.T(), out.Grad)
			b.accumulate(&db)
		}
	}, a, b)
}

// Add returns a+b for equally shaped nodes.
func (g *Graph) Add(a, b *Node) *Node {
	sameShape("add", a, b)
	var v mat.Dense
	v.Add(a.Value, b.Value)
	return g.record(&v, func(out *Node) {
		a.accumulate(out.Grad)
		b.accumulate(out.Grad)
	}, a, b)
}

// Sub returns a-b for equally shaped nodes.
func (g *Graph) Sub(a, b *Node) *Node {
	sameShape("sub", a, b)
	var v mat.Dense
	v.Sub(a.Value, b.Value)
	return g.record(&v, func(out *Node) {
		a.accumulate(out.Grad)
		if b.requiresGrad {
			var db mat.Dense
			db.Scale(-1, out.Grad)
			b.accumulate(&db)
		}
	}, a, b)
}

// Mul returns the element-wise product of a and b.
func (g *Graph) Mul(a, b *Node) *Node {
	sameShape("mul", a, b)
	var v mat.Dense
	v.MulElem(a.Value, b.Value)
	return g.record(&v, func(out *Node) {
		if a.requiresGrad {
			var da mat.Dense
			da.MulElem(out.Grad, b.Value)
			a.accumulate(&da)
		}
		if b.requiresGrad {
			var db mat.Dense
			db.MulElem(out.Grad, a.Value)
			b.accumulate(&db)
		}
	}, a, b)
}

// AddRow adds the 1xC row vector to every row of the RxC node a.
func (g *Graph) AddRow(a, row *Node) *Node {
	r, c := a.Dims()
	rr, rc := row.Dims()
	if rr != 1 || rc != c {
		panic(shapeErr("addrow", "%dx%d + %dx%d", r, c, rr, rc))
	}
	v := mat.DenseCopyOf(a.Value)
	bias := row.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		dst := v.RawRowView(i)
		for j := range dst {
			dst[j] += bias[j]
		}
	}
	return g.record(v, func(out *Node) {
		a.accumulate(out.Grad)
		if gr := row.grad(); gr != nil {
			dst := gr.RawRowView(0)
			for i := 0; i < r; i++ {
				src := out.Grad.RawRowView(i)
				for j := range dst {
					dst[j] += src[j]
				}
			}
		}
	}, a, row)
}

// Scale returns f*a.
func (g *Graph) Scale(a *Node, f float64) *Node {
	var v mat.Dense
	v.Scale(f, a.Value)
	return g.record(&v, func(out *Node) {
		var da mat.Dense
		da.Scale(f, out.Grad)
		a.accumulate(&da)
	}, a)
}

// OneMinus returns 1-a element-wise.
func (g *Graph) OneMinus(a *Node) *Node {
	var v mat.Dense
	v.Apply(func(_, _ int, x float64) float64 { return 1 - x }, a.Value)
	return g.record(&v, func(out *Node) {
		var da mat.Dense
		da.Scale(-1, out.Grad)
		a.accumulate(&da)
	}, a)
}

// Sigmoid applies the logistic function element-wise.
func (g *Graph) Sigmoid(a *Node) *Node {
	var v mat.Dense
	v.Apply(func(_, _ int, x float64) float64 { return sigmoid(x) }, a.Value)
	return g.record(&v, func(out *Node) {
		var da mat.Dense
		da.Apply(func(i, j int, y float64) float64 {
			return out.Grad.At(i, j) * y * (1 - y)
		}, out.Value)
		a.accumulate(&da)
	}, a)
}

// Tanh applies the hyperbolic tangent element-wise.
func (g *Graph) Tanh(a *Node) *Node {
	var v mat.Dense
	v.Apply(func(_, _ int, x float64) float64 { return math.Tanh(x) }, a.Value)
	return g.record(&v, func(out *Node) {
		var da mat.Dense
		da.Apply(func(i, j int, y float64) float64 {
			return out.Grad.At(i, j) * (1 - y*y)
		}, out.Value)
		a.accumulate(&da)
	}, a)
}

// Softmax normalises every row of a into a probability distribution.
func (g *Graph) Softmax(a *Node) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		softmaxRow(v.RawRowView(i), a.Value.RawRowView(i))
	}
	return g.record(v, func(out *Node) {
		da := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			y := out.Value.RawRowView(i)
			gy := out.Grad.RawRowView(i)
			var dot float64
			for j := range y {
				dot += gy[j] * y[j]
			}
			dst := da.RawRowView(i)
			for j := range y {
				dst[j] = y[j] * (gy[j] - dot)
			}
		}
		a.accumulate(da)
	}, a)
}

// LogSoftmax returns the row-wise log of the softmax of a.
func (g *Graph) LogSoftmax(a *Node) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := a.Value.RawRowView(i)
		lse := logSumExp(src)
		dst := v.RawRowView(i)
		for j, x := range src {
			dst[j] = x - lse
		}
	}
	return g.record(v, func(out *Node) {
		da := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			y := out.Value.RawRowView(i)
			gy := out.Grad.RawRowView(i)
			var sum float64
			for _, x := range gy {
				sum += x
			}
			dst := da.RawRowView(i)
			for j := range y {
				dst[j] = gy[j] - math.Exp(y[j])*sum
			}
		}
		a.accumulate(da)
	}, a)
}

// Concat joins nodes with equal row counts along the column axis.
func (g *Graph) Concat(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		panic(shapeErr("concat", "no inputs"))
	}
	r, _ := nodes[0].Dims()
	total := 0
	for _, n := range nodes {
		nr, nc := n.Dims()
		if nr != r {
			panic(shapeErr("concat", "row mismatch %d vs %d", nr, r))
		}
		total += nc
	}
	v := mat.NewDense(r, total, nil)
	off := 0
	for _, n := range nodes {
		_, nc := n.Dims()
		v.Slice(0, r, off, off+nc).(*mat.Dense).Copy(n.Value)
		off += nc
	}
	return g.record(v, func(out *Node) {
		off := 0
		for _, n := range nodes {
			_, nc := n.Dims()
			if n.requiresGrad {
				n.accumulate(out.Grad.Slice(0, r, off, off+nc))
			}
			off += nc
		}
	}, nodes...)
}

// SliceCols returns columns [from, to) of a.
func (g *Graph) SliceCols(a *Node, from, to int) *Node {
	r, c := a.Dims()
	if from < 0 || to > c || from >= to {
		panic(shapeErr("slicecols", "[%d,%d) of %d columns", from, to, c))
	}
	v := mat.DenseCopyOf(a.Value.Slice(0, r, from, to))
	return g.record(v, func(out *Node) {
		if ga := a.grad(); ga != nil {
			dst := ga.Slice(0, r, from, to).(*mat.Dense)
			dst.Add(dst, out.Grad)
		}
	}, a)
}

// Column returns column j of a as an Rx1 node.
func (g *Graph) Column(a *Node, j int) *Node {
	return g.SliceCols(a, j, j+1)
}

// ScaleRows multiplies row i of the RxC node a by s[i], where s is Rx1.
func (g *Graph) ScaleRows(a, s *Node) *Node {
	r, c := a.Dims()
	sr, sc := s.Dims()
	if sr != r || sc != 1 {
		panic(shapeErr("scalerows", "%dx%d by %dx%d", r, c, sr, sc))
	}
	v := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		f := s.Value.At(i, 0)
		src := a.Value.RawRowView(i)
		dst := v.RawRowView(i)
		for j := range src {
			dst[j] = src[j] * f
		}
	}
	return g.record(v, func(out *Node) {
		ga := a.grad()
		gs := s.grad()
		for i := 0; i < r; i++ {
			gy := out.Grad.RawRowView(i)
			if ga != nil {
				f := s.Value.At(i, 0)
				dst := ga.RawRowView(i)
				for j := range gy {
					dst[j] += gy[j] * f
				}
			}
			if gs != nil {
				src := a.Value.RawRowView(i)
				var dot float64
				for j := range gy {
					dot += gy[j] * src[j]
				}
				gs.Set(i, 0, gs.At(i, 0)+dot)
			}
		}
	}, a, s)
}

// Pick selects a[i, idx[i]] for every row and returns an Rx1 node.
func (g *Graph) Pick(a *Node, idx []int) *Node {
	r, c := a.Dims()
	if len(idx) != r {
		panic(shapeErr("pick", "%d indices for %d rows", len(idx), r))
	}
	v := mat.NewDense(r, 1, nil)
	for i, j := range idx {
		if j < 0 || j >= c {
			panic(&OpError{Op: "pick", Err: mat.ErrIndexOutOfRange, Msg: fmt.Sprintf("row %d index %d of %d", i, j, c)})
		}
		v.Set(i, 0, a.Value.At(i, j))
	}
	return g.record(v, func(out *Node) {
		ga := a.grad()
		for i, j := range idx {
			ga.Set(i, j, ga.At(i, j)+out.Grad.At(i, 0))
		}
	}, a)
}

// Rows gathers rows ids of table into a len(ids)xC node.
func (g *Graph) Rows(table *Node, ids []int) *Node {
	tr, tc := table.Dims()
	if len(ids) == 0 {
		panic(shapeErr("rows", "no ids"))
	}
	v := mat.NewDense(len(ids), tc, nil)
	for i, id := range ids {
		if id < 0 || id >= tr {
			panic(&OpError{Op: "rows", Err: mat.ErrIndexOutOfRange, Msg: fmt.Sprintf("id %d of %d", id, tr)})
		}
		copy(v.RawRowView(i), table.Value.RawRowView(id))
	}
	return g.record(v, func(out *Node) {
		gt := table.grad()
		for i, id := range ids {
			dst := gt.RawRowView(id)
			for j, x := range out.Grad.RawRowView(i) {
				dst[j] += x
			}
		}
	}, table)
}

// Sum reduces a to a 1x1 node.
func (g *Graph) Sum(a *Node) *Node {
	v := mat.NewDense(1, 1, []float64{mat.Sum(a.Value)})
	return g.record(v, func(out *Node) {
		ga := a.grad()
		d := out.Grad.At(0, 0)
		r, c := ga.Dims()
		for i := 0; i < r; i++ {
			row := ga.RawRowView(i)
			for j := 0; j < c; j++ {
				row[j] += d
			}
		}
	}, a)
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func logSumExp(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	if math.IsInf(m, -1) {
		return m
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - m)
	}
	return m + math.Log(sum)
}

func softmaxRow(dst, src []float64) {
	m := math.Inf(-1)
	for _, x := range src {
		if x > m {
			m = x
		}
	}
	var sum float64
	for j, x := range src {
		e := math.Exp(x - m)
		dst[j] = e
		sum += e
	}
	for j := range dst {
		dst[j] /= sum
	}
}

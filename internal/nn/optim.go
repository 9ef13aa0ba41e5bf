package nn

import (
	"math"

	"github.com/samcharles93/pointernet/internal/autodiff"
	"gonum.org/v1/gonum/mat"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	Step(params []*autodiff.Node)
}

// Adam implements the Adam update rule. Moment buffers are keyed by
// parameter, so the same optimizer must always see the same parameters.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
	m map[*autodiff.Node]*mat.Dense
	v map[*autodiff.Node]*mat.Dense
}

// NewAdam returns an Adam optimizer with the usual defaults for everything
// but the learning rate.
func NewAdam(lr float64) *Adam {
	if lr <= 0 {
		lr = 0.001
	}
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make(map[*autodiff.Node]*mat.Dense),
		v:            make(map[*autodiff.Node]*mat.Dense),
	}
}

// Steps returns the number of updates applied so far.
func (o *Adam) Steps() int { return o.t }

// Step applies one update and clears the gradients.
func (o *Adam) Step(params []*autodiff.Node) {
	o.t++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.t))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		r, c := p.Dims()
		m, ok := o.m[p]
		if !ok {
			m = mat.NewDense(r, c, nil)
			o.m[p] = m
			o.v[p] = mat.NewDense(r, c, nil)
		}
		v := o.v[p]
		for i := 0; i < r; i++ {
			gr := p.Grad.RawRowView(i)
			mr := m.RawRowView(i)
			vr := v.RawRowView(i)
			pr := p.Value.RawRowView(i)
			for j := 0; j < c; j++ {
				mr[j] = o.Beta1*mr[j] + (1-o.Beta1)*gr[j]
				vr[j] = o.Beta2*vr[j] + (1-o.Beta2)*gr[j]*gr[j]
				pr[j] -= o.LearningRate * (mr[j] / bc1) / (math.Sqrt(vr[j]/bc2) + o.Epsilon)
			}
		}
		p.ZeroGrad()
	}
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	LearningRate float64
}

// Step applies one update and clears the gradients.
func (o SGD) Step(params []*autodiff.Node) {
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		var d mat.Dense
		d.Scale(o.LearningRate, p.Grad)
		p.Value.Sub(p.Value, &d)
		p.ZeroGrad()
	}
}

// GradNorm returns the global L2 norm of the gradients.
func GradNorm(params []*autodiff.Node) float64 {
	var sq float64
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		n := mat.Norm(p.Grad, 2)
		sq += n * n
	}
	return math.Sqrt(sq)
}

// ClipGradNorm rescales gradients so their global norm is at most limit and
// returns the norm before clipping.
func ClipGradNorm(params []*autodiff.Node, limit float64) float64 {
	norm := GradNorm(params)
	if limit <= 0 || norm <= limit {
		return norm
	}
	f := limit / (norm + 1e-6)
	for _, p := range params {
		if p.Grad != nil {
			p.Grad.Scale(f, p.Grad)
		}
	}
	return norm
}

// ZeroGrad clears every gradient.
func ZeroGrad(params []*autodiff.Node) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

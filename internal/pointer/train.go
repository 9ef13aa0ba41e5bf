package pointer

import (
	"github.com/samcharles93/pointernet/internal/autodiff"
	"github.com/samcharles93/pointernet/internal/nn"
	"gonum.org/v1/gonum/mat"
)

// TrainBatch computes the teacher-forced mixed loss for b, backpropagates it
// and applies one optimizer step over every component's parameters. It
// returns the loss measured before the update. On error the parameters are
// left untouched.
func (n *Network) TrainBatch(b Batch) (float64, error) {
	if n.embeddings == nil {
		return 0, ErrEmbeddingsNotSet
	}
	if err := n.cfg.CheckBatch(b); err != nil {
		return 0, err
	}

	params := n.Parameters().All()
	var loss float64
	err := autodiff.Safe(func() error {
		g := autodiff.NewGraph()
		out := n.forwardLoss(g, b)
		loss = out.Scalar()
		return g.Backward(out)
	})
	if err != nil {
		nn.ZeroGrad(params)
		return 0, err
	}

	norm := nn.ClipGradNorm(params, n.cfg.ClipNorm)
	n.optimizer.Step(params)
	n.log.Debug("train batch", "loss", loss, "grad_norm", norm, "batch", b.Len(), "steps", b.TargetLen())
	return loss, nil
}

// Loss evaluates the training objective for b without updating parameters.
func (n *Network) Loss(b Batch) (float64, error) {
	if n.embeddings == nil {
		return 0, ErrEmbeddingsNotSet
	}
	if err := n.cfg.CheckBatch(b); err != nil {
		return 0, err
	}
	var loss float64
	err := autodiff.Safe(func() error {
		loss = n.forwardLoss(autodiff.NewInferenceGraph(), b).Scalar()
		return nil
	})
	return loss, err
}

// forwardLoss runs the teacher-forced recurrence and returns the mixed loss
// averaged over target steps.
func (n *Network) forwardLoss(g *autodiff.Graph, b Batch) *autodiff.Node {
	r := n.begin(g, b.Inputs)
	tokens := n.startTokens(b.Len())
	steps := b.TargetLen()

	var total *autodiff.Node
	for t := 0; t < steps; t++ {
		var out stepOutput
		r, out = n.advance(g, r, tokens)

		y := column(b.Targets, t)
		gen := column(b.Gen, t)
		step := mixedLoss(g, gen, y, out.decoded, out.pointer, out.switchP)
		if total == nil {
			total = step
		} else {
			total = g.Add(total, step)
		}

		tokens = n.teacherTokens(b.Inputs, y, gen)
	}
	return g.Scale(total, 1/float64(steps))
}

// mixedLoss is the negated batch sum of pointer[i][y] + (1 - s) for pointer
// steps (gen == 0) and decoded[i][y] + s for generated steps.
func mixedLoss(g *autodiff.Graph, gen, y []int, decoded, pointer, switchP *autodiff.Node) *autodiff.Node {
	batch := len(y)
	ptrIdx := make([]int, batch)
	genIdx := make([]int, batch)
	ptrMask := mat.NewDense(batch, 1, nil)
	genMask := mat.NewDense(batch, 1, nil)
	for i, target := range y {
		if gen[i] == 0 {
			ptrIdx[i] = target
			ptrMask.Set(i, 0, 1)
		} else {
			genIdx[i] = target
			genMask.Set(i, 0, 1)
		}
	}

	ptrTerm := g.Add(g.Pick(pointer, ptrIdx), g.OneMinus(switchP))
	genTerm := g.Add(g.Pick(decoded, genIdx), switchP)
	selected := g.Add(
		g.Mul(ptrTerm, g.Constant(ptrMask)),
		g.Mul(genTerm, g.Constant(genMask)),
	)
	return g.Scale(g.Sum(selected), -1)
}

// teacherTokens returns the next decoder inputs: the ground truth y of the
// step. With FeedPointedToken, pointer steps feed the input token at y.
func (n *Network) teacherTokens(x [][]int, y, gen []int) []int {
	tokens := make([]int, len(y))
	copy(tokens, y)
	if !n.cfg.FeedPointedToken {
		return tokens
	}
	for i, target := range y {
		if gen[i] == 0 {
			tokens[i] = x[i][target]
		}
	}
	return tokens
}

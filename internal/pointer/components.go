package pointer

import (
	"math/rand"

	"github.com/samcharles93/pointernet/internal/autodiff"
	"github.com/samcharles93/pointernet/internal/nn"
)

// Encoder runs an LSTM over the embedded input sequence.
type Encoder struct {
	Cell *nn.LSTMCell
}

// EncoderOutput holds one hidden state per input position and the final
// (hidden, cell) pair.
type EncoderOutput struct {
	States []*autodiff.Node
	H1, H2 *autodiff.Node
}

func newEncoder(cfg Config, rng *rand.Rand) *Encoder {
	return &Encoder{Cell: nn.NewLSTMCell("encoder.lstm", cfg.EmbeddingDim, cfg.EncUnits, rng)}
}

// Forward consumes one batch x dim node per input position.
func (e *Encoder) Forward(g *autodiff.Graph, steps []*autodiff.Node) EncoderOutput {
	batch, _ := steps[0].Dims()
	h, c := e.Cell.ZeroState(g, batch)
	states := make([]*autodiff.Node, len(steps))
	for t, x := range steps {
		h, c = e.Cell.Step(g, x, h, c)
		states[t] = h
	}
	return EncoderOutput{States: states, H1: h, H2: c}
}

func (e *Encoder) Parameters() []*autodiff.Node { return e.Cell.Parameters() }

// Decoder is an LSTM cell fed [embedding; context] followed by a projection
// onto the fixed vocabulary.
type Decoder struct {
	Cell *nn.LSTMCell
	Out  *nn.Linear
}

func newDecoder(cfg Config, rng *rand.Rand) *Decoder {
	return &Decoder{
		Cell: nn.NewLSTMCell("decoder.lstm", cfg.EmbeddingDim+cfg.EncUnits, cfg.DecUnits, rng),
		Out:  nn.NewLinear("decoder.out", cfg.DecUnits, cfg.VocSize, rng),
	}
}

// Step returns the decoded state, the next state pair and the vocabulary
// log-distribution.
func (d *Decoder) Step(g *autodiff.Graph, emb, ctx, h1, h2 *autodiff.Node) (state, nextH1, nextH2, decoded *autodiff.Node) {
	nextH1, nextH2 = d.Cell.Step(g, g.Concat(emb, ctx), h1, h2)
	decoded = g.LogSoftmax(d.Out.Forward(g, nextH1))
	return nextH1, nextH1, nextH2, decoded
}

func (d *Decoder) Parameters() []*autodiff.Node {
	return append(d.Cell.Parameters(), d.Out.Parameters()...)
}

// Attention is additive attention: score_j = v . tanh(W1 e_j + W2 d).
type Attention struct {
	Keys  *nn.Linear
	Query *autodiff.Node
	V     *autodiff.Node
}

// Memory is the encoder output prepared for repeated attention steps. Keys
// are projected once per batch.
type Memory struct {
	States []*autodiff.Node
	keys   []*autodiff.Node
}

func newAttention(cfg Config, rng *rand.Rand) *Attention {
	return &Attention{
		Keys:  nn.NewLinear("attention.keys", cfg.EncUnits, cfg.AttUnits, rng),
		Query: autodiff.NewVariable("attention.query", nn.Glorot(rng, cfg.DecUnits, cfg.AttUnits)),
		V:     autodiff.NewVariable("attention.v", nn.Glorot(rng, cfg.AttUnits, 1)),
	}
}

// Prepare projects the encoder states into attention keys.
func (a *Attention) Prepare(g *autodiff.Graph, states []*autodiff.Node) *Memory {
	keys := make([]*autodiff.Node, len(states))
	for j, s := range states {
		keys[j] = a.Keys.Forward(g, s)
	}
	return &Memory{States: states, keys: keys}
}

// Step returns the context vector and the log-distribution over input
// positions for the decoder state dec.
func (a *Attention) Step(g *autodiff.Graph, mem *Memory, dec *autodiff.Node) (ctx, pointer *autodiff.Node) {
	q := g.MatMul(dec, a.Query)
	scores := make([]*autodiff.Node, len(mem.keys))
	for j, k := range mem.keys {
		scores[j] = g.MatMul(g.Tanh(g.Add(k, q)), a.V)
	}
	scoreRow := g.Concat(scores...)
	weights := g.Softmax(scoreRow)
	for j, s := range mem.States {
		term := g.ScaleRows(s, g.Column(weights, j))
		if ctx == nil {
			ctx = term
		} else {
			ctx = g.Add(ctx, term)
		}
	}
	return ctx, g.LogSoftmax(scoreRow)
}

func (a *Attention) Parameters() []*autodiff.Node {
	return append(a.Keys.Parameters(), a.Query, a.V)
}

// Switch scores the preference for generating from the fixed vocabulary
// over copying from the input.
type Switch struct {
	Hidden *nn.Linear
	Out    *nn.Linear
}

func newSwitch(cfg Config, rng *rand.Rand) *Switch {
	return &Switch{
		Hidden: nn.NewLinear("switch.hidden", cfg.DecUnits+cfg.EncUnits, cfg.SwitchUnits, rng),
		Out:    nn.NewLinear("switch.out", cfg.SwitchUnits, 1, rng),
	}
}

// Forward returns a batch x 1 probability in [0,1].
func (s *Switch) Forward(g *autodiff.Graph, h, ctx *autodiff.Node) *autodiff.Node {
	hidden := g.Tanh(s.Hidden.Forward(g, g.Concat(h, ctx)))
	return g.Sigmoid(s.Out.Forward(g, hidden))
}

func (s *Switch) Parameters() []*autodiff.Node {
	return append(s.Hidden.Parameters(), s.Out.Parameters()...)
}

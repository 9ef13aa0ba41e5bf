// Package pointer implements a pointer-generator sequence model: an LSTM
// encoder-decoder whose decoder, at every step, either emits a token from a
// fixed vocabulary or copies a token from the input by pointing at one of
// its positions.
//
// Training is teacher-forced with an additive mixed loss; inference is
// free-running with a stochastic switch between the two branches.
package pointer

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/samcharles93/pointernet/internal/autodiff"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/samcharles93/pointernet/internal/logits"
	"github.com/samcharles93/pointernet/internal/nn"
)

// Embedder maps a batch of token ids to a len(ids) x Dim() node.
type Embedder interface {
	Dim() int
	Lookup(g *autodiff.Graph, ids []int) *autodiff.Node
}

// Network owns the encoder, decoder, attention and switch and drives the
// per-timestep recurrence. It is not safe for concurrent use.
type Network struct {
	cfg Config

	encoder   *Encoder
	decoder   *Decoder
	attention *Attention
	switcher  *Switch

	embeddings Embedder
	optimizer  nn.Optimizer
	src        logits.Source
	log        logger.Logger
}

// Option configures a Network.
type Option func(*Network)

// WithSource sets the uniform source behind the decode-time switch.
func WithSource(src logits.Source) Option {
	return func(n *Network) { n.src = src }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(n *Network) { n.log = log }
}

// WithOptimizer replaces the default Adam optimizer.
func WithOptimizer(opt nn.Optimizer) Option {
	return func(n *Network) { n.optimizer = opt }
}

// New builds a network with weights initialised from cfg.Seed. Embeddings
// must be injected with SetEmbeddings before use.
func New(cfg Config, opts ...Option) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := &Network{
		cfg:       cfg,
		encoder:   newEncoder(cfg, rng),
		decoder:   newDecoder(cfg, rng),
		attention: newAttention(cfg, rng),
		switcher:  newSwitch(cfg, rng),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.optimizer == nil {
		n.optimizer = nn.NewAdam(cfg.LearningRate)
	}
	if n.src == nil {
		n.src = logits.TimeSource()
	}
	if n.log == nil {
		n.log = logger.Discard()
	}
	return n, nil
}

// Config returns the configuration the network was built with.
func (n *Network) Config() Config { return n.cfg }

// SetEmbeddings injects the embedding provider.
func (n *Network) SetEmbeddings(e Embedder) error {
	if e == nil {
		return errors.New("nil embedder")
	}
	if e.Dim() != n.cfg.EmbeddingDim {
		return errors.Wrapf(ErrInvalidConfig, "embedding dim %d, network expects %d", e.Dim(), n.cfg.EmbeddingDim)
	}
	n.embeddings = e
	return nil
}

// Embeddings returns the injected provider, or nil.
func (n *Network) Embeddings() Embedder { return n.embeddings }

// SetOptimizer replaces the optimizer used by TrainBatch.
func (n *Network) SetOptimizer(opt nn.Optimizer) { n.optimizer = opt }

// SetSource replaces the decode-time random source.
func (n *Network) SetSource(src logits.Source) { n.src = src }

// ParamSet groups the trainable parameters of the four components so they
// can be handed to one optimizer step.
type ParamSet struct {
	Encoder   []*autodiff.Node
	Decoder   []*autodiff.Node
	Attention []*autodiff.Node
	Switch    []*autodiff.Node
}

// All flattens the set in component order.
func (p ParamSet) All() []*autodiff.Node {
	out := make([]*autodiff.Node, 0, len(p.Encoder)+len(p.Decoder)+len(p.Attention)+len(p.Switch))
	out = append(out, p.Encoder...)
	out = append(out, p.Decoder...)
	out = append(out, p.Attention...)
	return append(out, p.Switch...)
}

// Count returns the number of scalar weights per component.
func (p ParamSet) Count() map[string]int {
	count := func(ps []*autodiff.Node) int {
		total := 0
		for _, n := range ps {
			r, c := n.Dims()
			total += r * c
		}
		return total
	}
	return map[string]int{
		"encoder":   count(p.Encoder),
		"decoder":   count(p.Decoder),
		"attention": count(p.Attention),
		"switch":    count(p.Switch),
	}
}

// Parameters returns the trainable parameters of every component.
func (n *Network) Parameters() ParamSet {
	return ParamSet{
		Encoder:   n.encoder.Parameters(),
		Decoder:   n.decoder.Parameters(),
		Attention: n.attention.Parameters(),
		Switch:    n.switcher.Parameters(),
	}
}

// recurrence is the state threaded through decoding steps.
type recurrence struct {
	mem    *Memory
	h1, h2 *autodiff.Node
	ctx    *autodiff.Node
}

// stepOutput is what one decoding step produces.
type stepOutput struct {
	decoded *autodiff.Node // batch x voc_size log-probabilities
	pointer *autodiff.Node // batch x seq_len log-probabilities
	switchP *autodiff.Node // batch x 1
}

// begin embeds x once, runs the encoder and seeds the context with h1.
func (n *Network) begin(g *autodiff.Graph, x [][]int) recurrence {
	steps := make([]*autodiff.Node, len(x[0]))
	for j := range steps {
		steps[j] = n.embeddings.Lookup(g, column(x, j))
	}
	enc := n.encoder.Forward(g, steps)
	return recurrence{
		mem: n.attention.Prepare(g, enc.States),
		h1:  enc.H1,
		h2:  enc.H2,
		ctx: enc.H1,
	}
}

// advance runs decoder, attention and switch for one timestep.
func (n *Network) advance(g *autodiff.Graph, r recurrence, tokens []int) (recurrence, stepOutput) {
	emb := n.embeddings.Lookup(g, tokens)
	state, h1, h2, decoded := n.decoder.Step(g, emb, r.ctx, r.h1, r.h2)
	ctx, ptr := n.attention.Step(g, r.mem, state)
	sw := n.switcher.Forward(g, h1, ctx)
	next := recurrence{mem: r.mem, h1: h1, h2: h2, ctx: ctx}
	return next, stepOutput{decoded: decoded, pointer: ptr, switchP: sw}
}

func (n *Network) startTokens(batch int) []int {
	tokens := make([]int, batch)
	for i := range tokens {
		tokens[i] = n.cfg.StartToken
	}
	return tokens
}

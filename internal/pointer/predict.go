package pointer

import (
	"github.com/samcharles93/pointernet/internal/autodiff"
	"github.com/samcharles93/pointernet/internal/logits"
)

// PredictBatch decodes max_len tokens for every input sequence. Each step
// feeds the previous prediction back into the decoder. Decoding never stops
// early on the end token.
func (n *Network) PredictBatch(x [][]int) ([][]int, error) {
	if n.embeddings == nil {
		return nil, ErrEmbeddingsNotSet
	}
	if err := validateInputs(x); err != nil {
		return nil, err
	}

	out := make([][]int, len(x))
	for i := range out {
		out[i] = make([]int, 0, n.cfg.MaxLen)
	}
	err := autodiff.Safe(func() error {
		g := autodiff.NewInferenceGraph()
		r := n.begin(g, x)
		tokens := n.startTokens(len(x))
		for t := 0; t < n.cfg.MaxLen; t++ {
			var step stepOutput
			r, step = n.advance(g, r, tokens)
			tokens = n.DecodeNextWord(
				columnValues(step.switchP),
				rows(step.decoded),
				x,
				rows(step.pointer),
			)
			for i, tok := range tokens {
				out[i] = append(out[i], tok)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeNextWord picks one token per example. A uniform sample u is drawn
// per example; if switchProbs[i] >= u the token is the vocabulary argmax,
// otherwise it is the input token at the pointer argmax.
func (n *Network) DecodeNextWord(switchProbs []float64, decoded [][]float64, inputs [][]int, pointer [][]float64) []int {
	tokens := make([]int, len(switchProbs))
	for i, p := range switchProbs {
		if logits.Generate(n.src, p) {
			tokens[i] = n.FixedVocabDecode(decoded[i])
		} else {
			tokens[i] = n.PointerGreedySearch(pointer[i], inputs[i])
		}
	}
	return tokens
}

// PointerGreedySearch returns the input token at the most probable
// position, not the position itself.
func (n *Network) PointerGreedySearch(probs []float64, inputs []int) int {
	return inputs[logits.Argmax(probs)]
}

// FixedVocabDecode returns the most probable vocabulary id.
func (n *Network) FixedVocabDecode(probs []float64) int {
	return logits.Argmax(probs)
}

func rows(a *autodiff.Node) [][]float64 {
	r, _ := a.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = a.Row(i)
	}
	return out
}

func columnValues(a *autodiff.Node) []float64 {
	r, _ := a.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = a.At(i, 0)
	}
	return out
}

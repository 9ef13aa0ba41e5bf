package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/samcharles93/pointernet/internal/autodiff"
	"gonum.org/v1/gonum/mat"
)

// Embedding is a lookup table mapping token ids to dense rows. The table is
// a constant: lookups never receive gradients.
type Embedding struct {
	Table *mat.Dense
	table *autodiff.Node
}

// NewEmbedding creates a vocab x dim table with small random values.
func NewEmbedding(vocab, dim int, rng *rand.Rand) *Embedding {
	data := make([]float64, vocab*dim)
	for i := range data {
		data[i] = rng.NormFloat64() * 0.1
	}
	return EmbeddingFromMatrix(mat.NewDense(vocab, dim, data))
}

// EmbeddingFromMatrix wraps an existing table.
func EmbeddingFromMatrix(table *mat.Dense) *Embedding {
	return &Embedding{Table: table, table: autodiff.NewConstant(table)}
}

// EmbeddingFromRows builds a table from row slices of equal length.
func EmbeddingFromRows(rows [][]float64) (*Embedding, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("nn: empty embedding table")
	}
	dim := len(rows[0])
	data := make([]float64, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, errors.Errorf("nn: embedding row %d has %d values, want %d", i, len(r), dim)
		}
		data = append(data, r...)
	}
	return EmbeddingFromMatrix(mat.NewDense(len(rows), dim, data)), nil
}

// Vocab returns the number of rows in the table.
func (e *Embedding) Vocab() int {
	r, _ := e.Table.Dims()
	return r
}

// Dim returns the embedding width.
func (e *Embedding) Dim() int {
	_, c := e.Table.Dims()
	return c
}

// Lookup returns a len(ids) x Dim node. Out-of-range ids panic with an
// *autodiff.OpError.
func (e *Embedding) Lookup(g *autodiff.Graph, ids []int) *autodiff.Node {
	return g.Rows(e.table, ids)
}

// RowsCopy returns the table as row slices.
func (e *Embedding) RowsCopy() [][]float64 {
	r, c := e.Table.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		copy(out[i], e.Table.RawRowView(i))
	}
	return out
}

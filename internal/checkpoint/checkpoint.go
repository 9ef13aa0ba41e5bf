// Package checkpoint saves and restores trained networks as JSON documents.
package checkpoint

import (
	"bufio"
	"io"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samcharles93/pointernet/internal/nn"
	"github.com/samcharles93/pointernet/internal/pointer"
	"github.com/samcharles93/pointernet/internal/version"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownParam is returned when a checkpoint names a parameter the
	// network does not have.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrMissingParam is returned when a network parameter is absent from
	// the checkpoint.
	ErrMissingParam = errors.New("missing parameter")
	// ErrShapeMismatch is returned when a stored tensor has the wrong shape.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNoEmbeddings is returned when saving a network whose embeddings
	// cannot be exported.
	ErrNoEmbeddings = errors.New("embeddings not exportable")
)

// Tensor is a row-major matrix.
type Tensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// Checkpoint is the serialized form of a network. Optimizer state is not
// stored; training resumes with fresh moments.
type Checkpoint struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Version    string            `json:"version"`
	Config     pointer.Config    `json:"config"`
	Embeddings [][]float64       `json:"embeddings"`
	Params     map[string]Tensor `json:"params"`
	// Meta carries free-form training facts such as epoch and loss.
	Meta map[string]float64 `json:"meta,omitempty"`
}

type rowExporter interface {
	RowsCopy() [][]float64
}

// Capture snapshots n. The embeddings must expose their table.
func Capture(n *pointer.Network) (*Checkpoint, error) {
	exp, ok := n.Embeddings().(rowExporter)
	if !ok {
		return nil, ErrNoEmbeddings
	}
	params := n.Parameters().All()
	ck := &Checkpoint{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Version:    version.String(),
		Config:     n.Config(),
		Embeddings: exp.RowsCopy(),
		Params:     make(map[string]Tensor, len(params)),
	}
	for _, p := range params {
		r, c := p.Dims()
		data := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, p.Row(i)...)
		}
		ck.Params[p.Name] = Tensor{Rows: r, Cols: c, Data: data}
	}
	return ck, nil
}

// Restore builds a network from ck and injects its embeddings.
func (ck *Checkpoint) Restore(opts ...pointer.Option) (*pointer.Network, error) {
	n, err := pointer.New(ck.Config, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint config")
	}
	emb, err := nn.EmbeddingFromRows(ck.Embeddings)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint embeddings")
	}
	if err := n.SetEmbeddings(emb); err != nil {
		return nil, err
	}

	params := n.Parameters().All()
	byName := make(map[string]bool, len(params))
	for _, p := range params {
		byName[p.Name] = true
		t, ok := ck.Params[p.Name]
		if !ok {
			return nil, errors.Wrap(ErrMissingParam, p.Name)
		}
		r, c := p.Dims()
		if t.Rows != r || t.Cols != c || len(t.Data) != r*c {
			return nil, errors.Wrapf(ErrShapeMismatch, "%s: stored %dx%d (%d values), want %dx%d", p.Name, t.Rows, t.Cols, len(t.Data), r, c)
		}
		p.Value.Copy(mat.NewDense(r, c, t.Data))
	}
	for _, name := range sortedKeys(ck.Params) {
		if !byName[name] {
			return nil, errors.Wrap(ErrUnknownParam, name)
		}
	}
	return n, nil
}

// Write encodes ck as indented JSON.
func (ck *Checkpoint) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(ck), "encode checkpoint")
}

// Read decodes a checkpoint.
func Read(r io.Reader) (*Checkpoint, error) {
	var ck Checkpoint
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&ck); err != nil {
		return nil, errors.Wrap(err, "decode checkpoint")
	}
	return &ck, nil
}

// Save captures n and writes it to path through a temporary file so a crash
// never leaves a truncated checkpoint.
func Save(path string, n *pointer.Network, meta map[string]float64) (*Checkpoint, error) {
	ck, err := Capture(n)
	if err != nil {
		return nil, err
	}
	ck.Meta = meta
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}
	if err := ck.Write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, err
	}
	return ck, nil
}

// Load reads the checkpoint at path and restores its network.
func Load(path string, opts ...pointer.Option) (*pointer.Network, *Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	ck, err := Read(f)
	if err != nil {
		return nil, nil, errors.Wrap(err, path)
	}
	n, err := ck.Restore(opts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, path)
	}
	return n, ck, nil
}

func sortedKeys(m map[string]Tensor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package pointer

import (
	"github.com/pkg/errors"
)

// Config sizes the network and its training step.
type Config struct {
	EncUnits    int `yaml:"enc_units" json:"enc_units"`
	DecUnits    int `yaml:"dec_units" json:"dec_units"`
	AttUnits    int `yaml:"att_units" json:"att_units"`
	SwitchUnits int `yaml:"switch_units" json:"switch_units"`

	// VocSize is the size of the fixed output vocabulary.
	VocSize int `yaml:"voc_size" json:"voc_size"`
	// EmbeddingDim is the width of the injected embeddings.
	EmbeddingDim int `yaml:"embedding_dim" json:"embedding_dim"`
	// EmbeddingVocab is the number of ids the embedding table covers. Input
	// tokens and generated tokens share this id space, so it is at least
	// VocSize. Zero means VocSize.
	EmbeddingVocab int `yaml:"embedding_vocab" json:"embedding_vocab"`

	MaxLen     int `yaml:"max_len" json:"max_len"`
	StartToken int `yaml:"start_token" json:"start_token"`
	EndToken   int `yaml:"end_token" json:"end_token"`

	// FeedPointedToken makes teacher forcing feed X[i][y] after pointer
	// steps instead of the position y itself.
	FeedPointedToken bool `yaml:"feed_pointed_token" json:"feed_pointed_token"`

	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	ClipNorm     float64 `yaml:"clip_norm" json:"clip_norm"`
	Seed         int64   `yaml:"seed" json:"seed"`
}

// DefaultConfig returns a small network suitable for toy pointer tasks.
func DefaultConfig() Config {
	return Config{
		EncUnits:     64,
		DecUnits:     64,
		AttUnits:     32,
		SwitchUnits:  16,
		VocSize:      32,
		EmbeddingDim: 32,
		MaxLen:       10,
		StartToken:   0,
		EndToken:     1,
		LearningRate: 0.001,
		ClipNorm:     5,
		Seed:         1,
	}
}

// Vocab returns the embedding id space size.
func (c Config) Vocab() int {
	if c.EmbeddingVocab == 0 {
		return c.VocSize
	}
	return c.EmbeddingVocab
}

// CheckBatch validates b for a network built from c: alignment and target
// ranges, every input id inside the embedding table, and every token the
// teacher-forced recurrence will embed.
func (c Config) CheckBatch(b Batch) error {
	if err := b.Validate(c.VocSize); err != nil {
		return err
	}
	voc := c.Vocab()
	for i, row := range b.Inputs {
		for j, tok := range row {
			if tok < 0 || tok >= voc {
				return errors.Wrapf(ErrTokenOutOfRange, "example %d input %d: %d not in [0,%d)", i, j, tok, voc)
			}
		}
	}
	if c.FeedPointedToken {
		return nil
	}
	for i := range b.Targets {
		for t, y := range b.Targets[i] {
			if b.Gen[i][t] == 0 && y >= voc {
				return errors.Wrapf(ErrTokenOutOfRange, "example %d step %d: position %d is fed back as a token but the embedding table has %d ids", i, t, y, voc)
			}
		}
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"enc_units", c.EncUnits},
		{"dec_units", c.DecUnits},
		{"att_units", c.AttUnits},
		{"switch_units", c.SwitchUnits},
		{"voc_size", c.VocSize},
		{"embedding_dim", c.EmbeddingDim},
		{"max_len", c.MaxLen},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "%s must be positive, got %d", p.name, p.v)
		}
	}
	if c.DecUnits != c.EncUnits {
		return errors.Wrapf(ErrInvalidConfig, "dec_units (%d) must equal enc_units (%d)", c.DecUnits, c.EncUnits)
	}
	if c.EmbeddingVocab != 0 && c.EmbeddingVocab < c.VocSize {
		return errors.Wrapf(ErrInvalidConfig, "embedding_vocab (%d) must be at least voc_size (%d)", c.EmbeddingVocab, c.VocSize)
	}
	if c.StartToken < 0 || c.StartToken >= c.VocSize {
		return errors.Wrapf(ErrInvalidConfig, "start_token %d outside vocabulary of %d", c.StartToken, c.VocSize)
	}
	if c.EndToken < 0 || c.EndToken >= c.VocSize {
		return errors.Wrapf(ErrInvalidConfig, "end_token %d outside vocabulary of %d", c.EndToken, c.VocSize)
	}
	if c.LearningRate < 0 || c.ClipNorm < 0 {
		return errors.Wrap(ErrInvalidConfig, "learning_rate and clip_norm must not be negative")
	}
	return nil
}

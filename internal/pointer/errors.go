package pointer

import "github.com/pkg/errors"

var (
	// ErrEmbeddingsNotSet is returned by every forward entry point until
	// SetEmbeddings has been called.
	ErrEmbeddingsNotSet = errors.New("embeddings not set")

	// ErrBatchMisaligned is returned when inputs, targets and generation
	// flags disagree on batch size or rows are ragged.
	ErrBatchMisaligned = errors.New("batch misaligned")

	// ErrTargetOutOfRange is returned when a target id does not fit the
	// branch its generation flag selects.
	ErrTargetOutOfRange = errors.New("target out of range")

	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrTokenOutOfRange is returned when a token the network would embed
	// lies outside the embedding table.
	ErrTokenOutOfRange = errors.New("token out of range")
)

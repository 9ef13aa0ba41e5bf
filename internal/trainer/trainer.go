// Package trainer runs epochs of teacher-forced training over a dataset.
package trainer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/samcharles93/pointernet/internal/dataset"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/samcharles93/pointernet/internal/pointer"
)

// Options controls a training run.
type Options struct {
	Epochs    int
	BatchSize int
	// Seed drives the per-epoch shuffle.
	Seed int64
}

// EpochStats summarises one epoch.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	ValidLoss float64
	HasValid  bool
	Batches   int
	Duration  time.Duration
}

// EpochFunc is called after every epoch. Returning an error stops training.
type EpochFunc func(ctx context.Context, stats EpochStats) error

// Trainer drives a network through a dataset.
type Trainer struct {
	net     *pointer.Network
	opts    Options
	log     logger.Logger
	onEpoch EpochFunc
}

// New returns a Trainer for net. A nil log discards output.
func New(net *pointer.Network, opts Options, log logger.Logger) *Trainer {
	if log == nil {
		log = logger.Discard()
	}
	return &Trainer{net: net, opts: opts, log: log}
}

// OnEpoch registers fn to run after every epoch.
func (t *Trainer) OnEpoch(fn EpochFunc) { t.onEpoch = fn }

// Run trains for the configured number of epochs. Cancellation is checked
// between batches; the partially trained network stays usable.
func (t *Trainer) Run(ctx context.Context, train, valid []dataset.Example) ([]EpochStats, error) {
	if t.opts.Epochs <= 0 || t.opts.BatchSize <= 0 {
		return nil, fmt.Errorf("epochs and batch size must be positive, got %d and %d", t.opts.Epochs, t.opts.BatchSize)
	}
	cfg := t.net.Config()
	if err := dataset.Validate(train, cfg); err != nil {
		return nil, fmt.Errorf("training set: %w", err)
	}
	if len(valid) > 0 {
		if err := dataset.Validate(valid, cfg); err != nil {
			return nil, fmt.Errorf("validation set: %w", err)
		}
	}

	rng := rand.New(rand.NewSource(t.opts.Seed))
	validBatches := dataset.Batches(valid, t.opts.BatchSize, nil)
	history := make([]EpochStats, 0, t.opts.Epochs)

	for epoch := 1; epoch <= t.opts.Epochs; epoch++ {
		start := time.Now()
		batches := dataset.Batches(train, t.opts.BatchSize, rng)
		var sum float64
		var seen int
		for i, b := range batches {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			loss, err := t.net.TrainBatch(b)
			if err != nil {
				return history, fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
			}
			sum += loss * float64(b.Len())
			seen += b.Len()
		}

		stats := EpochStats{
			Epoch:     epoch,
			TrainLoss: sum / float64(seen),
			Batches:   len(batches),
		}
		if len(validBatches) > 0 {
			vl, err := t.evaluate(ctx, validBatches)
			if err != nil {
				return history, err
			}
			stats.ValidLoss, stats.HasValid = vl, true
		}
		stats.Duration = time.Since(start)
		history = append(history, stats)

		args := []any{"epoch", epoch, "loss", stats.TrainLoss, "batches", stats.Batches, "duration", stats.Duration.Round(time.Millisecond)}
		if stats.HasValid {
			args = append(args, "valid_loss", stats.ValidLoss)
		}
		t.log.Info("epoch complete", args...)

		if t.onEpoch != nil {
			if err := t.onEpoch(ctx, stats); err != nil {
				return history, err
			}
		}
	}
	return history, nil
}

// Evaluate returns the example-weighted mean loss over examples.
func (t *Trainer) Evaluate(ctx context.Context, examples []dataset.Example) (float64, error) {
	if err := dataset.Validate(examples, t.net.Config()); err != nil {
		return 0, err
	}
	return t.evaluate(ctx, dataset.Batches(examples, t.opts.BatchSize, nil))
}

func (t *Trainer) evaluate(ctx context.Context, batches []pointer.Batch) (float64, error) {
	var sum float64
	var seen int
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		loss, err := t.net.Loss(b)
		if err != nil {
			return 0, err
		}
		sum += loss * float64(b.Len())
		seen += b.Len()
	}
	return sum / float64(seen), nil
}

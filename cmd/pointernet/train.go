package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"

	"github.com/samcharles93/pointernet/internal/checkpoint"
	"github.com/samcharles93/pointernet/internal/dataset"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/samcharles93/pointernet/internal/nn"
	"github.com/samcharles93/pointernet/internal/pointer"
	"github.com/samcharles93/pointernet/internal/trainer"
	"github.com/urfave/cli/v3"
)

func trainCmd() *cli.Command {
	var (
		s         trainSettings
		resume    string
		optimizer string
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a model on a JSON Lines dataset and write a checkpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "training set (.jsonl)", Destination: &s.data},
			&cli.StringFlag{Name: "valid", Usage: "validation set (.jsonl)", Destination: &s.valid},
			&cli.Float64Flag{Name: "valid-split", Usage: "hold out this fraction of --data for validation when --valid is unset", Destination: &s.validSplit},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "checkpoint output path", Destination: &s.out},
			&cli.IntFlag{Name: "epochs", Usage: "number of epochs", Destination: &s.epochs},
			&cli.IntFlag{Name: "batch-size", Usage: "examples per batch", Destination: &s.batchSize},
			&cli.IntFlag{Name: "save-every", Usage: "also checkpoint every n epochs (0 = only at the end)", Destination: &s.saveEvery},
			&cli.Int64Flag{Name: "seed", Usage: "seed for weights, embeddings and shuffling", Destination: &s.seed},
			&cli.Float64Flag{Name: "lr", Usage: "learning rate", Destination: &s.lr},
			&cli.StringFlag{Name: "optimizer", Usage: "adam or sgd", Value: "adam", Destination: &optimizer},
			&cli.StringFlag{Name: "resume", Usage: "continue training from a checkpoint", Destination: &resume},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg := fileConfig
			applyTrainConfig(cmd, &cfg, &s)
			if err := cfg.Validate(); err != nil {
				return exitf("config: %v", err)
			}
			if s.data == "" {
				return exitf("--data is required (or set train.data in the config file)")
			}

			train, err := dataset.LoadFile(s.data)
			if err != nil {
				return exitf("load training set: %v", err)
			}
			var valid []dataset.Example
			switch {
			case s.valid != "":
				if valid, err = dataset.LoadFile(s.valid); err != nil {
					return exitf("load validation set: %v", err)
				}
			case s.validSplit > 0 && s.validSplit < 1:
				train, valid = dataset.Split(train, s.validSplit, rand.New(rand.NewSource(s.seed)))
			}

			var net *pointer.Network
			if resume != "" {
				net, _, err = checkpoint.Load(resume, pointer.WithLogger(log))
				if err != nil {
					return exitf("resume: %v", err)
				}
				log.Info("resuming from checkpoint", "path", resume)
			} else {
				net, err = pointer.New(cfg.Model, pointer.WithLogger(log))
				if err != nil {
					return exitf("build network: %v", err)
				}
				emb := nn.NewEmbedding(cfg.Model.Vocab(), cfg.Model.EmbeddingDim, rand.New(rand.NewSource(s.seed+1)))
				if err := net.SetEmbeddings(emb); err != nil {
					return exitf("embeddings: %v", err)
				}
			}
			lr := net.Config().LearningRate
			if cmd.IsSet("lr") {
				lr = s.lr
			}
			opt, err := newOptimizer(optimizer, lr)
			if err != nil {
				return exitf("%v", err)
			}
			net.SetOptimizer(opt)

			log.Info("training",
				"optimizer", optimizer,
				"lr", lr,
				"examples", len(train),
				"valid", len(valid),
				"epochs", s.epochs,
				"batch_size", s.batchSize,
				"parameters", net.Parameters().Count(),
			)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			tr := trainer.New(net, trainer.Options{Epochs: s.epochs, BatchSize: s.batchSize, Seed: s.seed}, log)
			tr.OnEpoch(func(ctx context.Context, st trainer.EpochStats) error {
				if s.saveEvery <= 0 || st.Epoch%s.saveEvery != 0 || st.Epoch == s.epochs {
					return nil
				}
				ck, err := checkpoint.Save(s.out, net, epochMeta(st))
				if err != nil {
					return err
				}
				log.Info("saved checkpoint", "path", s.out, "id", ck.ID, "epoch", st.Epoch)
				return nil
			})

			history, err := tr.Run(ctx, train, valid)
			switch {
			case errors.Is(err, context.Canceled):
				log.Warn("training interrupted", "completed_epochs", len(history))
			case err != nil:
				return exitf("train: %v", err)
			}
			if len(history) == 0 {
				return exitf("no epoch completed; checkpoint not written")
			}

			ck, err := checkpoint.Save(s.out, net, epochMeta(history[len(history)-1]))
			if err != nil {
				return exitf("save checkpoint: %v", err)
			}
			log.Info("saved checkpoint", "path", s.out, "id", ck.ID, "epochs", len(history))
			return nil
		},
	}
}

func newOptimizer(name string, lr float64) (nn.Optimizer, error) {
	switch strings.ToLower(name) {
	case "", "adam":
		return nn.NewAdam(lr), nil
	case "sgd":
		return nn.SGD{LearningRate: lr}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q (want adam or sgd)", name)
	}
}

func epochMeta(st trainer.EpochStats) map[string]float64 {
	meta := map[string]float64{
		"epoch":      float64(st.Epoch),
		"train_loss": st.TrainLoss,
	}
	if st.HasValid {
		meta["valid_loss"] = st.ValidLoss
	}
	return meta
}

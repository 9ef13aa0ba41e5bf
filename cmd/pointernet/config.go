package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samcharles93/pointernet/internal/config"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/urfave/cli/v3"
)

// fileConfig is the loaded config file (or defaults). Populated by setup.
var fileConfig = config.Default()

// setup loads the config file and installs the logger on the context.
// Explicit flags win over file values.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return ctx, err
	}
	fileConfig = cfg

	if cfg.Log.Level != "" && !cmd.IsSet("log-level") {
		logLevel = cfg.Log.Level
	}
	if cfg.Log.Format != "" && !cmd.IsSet("log-format") {
		logFormat = cfg.Log.Format
	}
	level := logLevel
	if debug {
		level = "debug"
	}
	log, err := logger.Setup(os.Stderr, level, logFormat)
	if err != nil {
		return ctx, err
	}
	if configPath != "" {
		log.Debug("loaded config", "path", configPath)
	}
	return logger.WithContext(ctx, log), nil
}

// trainSettings collects the train command flags.
type trainSettings struct {
	data       string
	valid      string
	out        string
	epochs     int
	batchSize  int
	saveEvery  int
	seed       int64
	lr         float64
	validSplit float64
}

// applyTrainConfig applies config file defaults to train flags that were
// not explicitly set, and flag values onto the model config.
func applyTrainConfig(c *cli.Command, cfg *config.File, s *trainSettings) {
	if cfg.Train.Data != "" && !c.IsSet("data") {
		s.data = cfg.Train.Data
	}
	if cfg.Train.Valid != "" && !c.IsSet("valid") {
		s.valid = cfg.Train.Valid
	}
	if cfg.Train.Out != "" && !c.IsSet("out") {
		s.out = cfg.Train.Out
	}
	if !c.IsSet("epochs") {
		s.epochs = cfg.Train.Epochs
	}
	if !c.IsSet("batch-size") {
		s.batchSize = cfg.Train.BatchSize
	}
	if !c.IsSet("save-every") {
		s.saveEvery = cfg.Train.SaveEvery
	}

	cfg.Train.Data, cfg.Train.Valid, cfg.Train.Out = s.data, s.valid, s.out
	cfg.Train.Epochs, cfg.Train.BatchSize, cfg.Train.SaveEvery = s.epochs, s.batchSize, s.saveEvery
	if c.IsSet("seed") {
		cfg.Model.Seed = s.seed
	} else {
		s.seed = cfg.Model.Seed
	}
	if c.IsSet("lr") {
		cfg.Model.LearningRate = s.lr
	}
}

// applyServeConfig applies config file defaults to serve flags.
func applyServeConfig(c *cli.Command, cfg config.File, addr *string, limit *float64, burst *int) {
	if cfg.Server.Address != "" && !c.IsSet("addr") {
		*addr = cfg.Server.Address
	}
	if !c.IsSet("rate") {
		*limit = cfg.Server.Rate
	}
	if !c.IsSet("burst") {
		*burst = cfg.Server.Burst
	}
}

func exitf(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf("error: "+format, args...), 1)
}

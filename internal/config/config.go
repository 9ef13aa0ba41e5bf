// Package config loads the pointernet configuration file
// (~/.config/pointernet/config.yaml).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/pointernet/internal/pointer"
	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration. Fields missing from the file keep the
// values from Default.
type File struct {
	Model  pointer.Config `yaml:"model"`
	Train  Train          `yaml:"train"`
	Server Server         `yaml:"server"`
	Log    Log            `yaml:"log"`
}

// Train holds the training loop settings.
type Train struct {
	Data      string `yaml:"data"`
	Valid     string `yaml:"valid"`
	Out       string `yaml:"out"`
	Epochs    int    `yaml:"epochs"`
	BatchSize int    `yaml:"batch_size"`
	// SaveEvery writes a checkpoint every n epochs; zero saves only at the end.
	SaveEvery int `yaml:"save_every"`
}

// Server holds the REST API settings.
type Server struct {
	Address string `yaml:"address"`
	// Rate is the sustained request rate per second; zero disables limiting.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() File {
	return File{
		Model: pointer.DefaultConfig(),
		Train: Train{
			Out:       "pointernet.ckpt.json",
			Epochs:    10,
			BatchSize: 32,
		},
		Server: Server{
			Address: "127.0.0.1:8080",
			Rate:    20,
			Burst:   40,
		},
		Log: Log{
			Level:  "info",
			Format: "pretty",
		},
	}
}

// DefaultPath returns the per-user config location, or "" when the user
// config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pointernet", "config.yaml")
}

// Load reads path over Default. An empty path falls back to DefaultPath, and
// a missing default file is not an error. A missing explicit path is.
func Load(path string) (File, error) {
	cfg := Default()
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return File{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys.
func Parse(data []byte, cfg *File) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks every section.
func (f File) Validate() error {
	if err := f.Model.Validate(); err != nil {
		return err
	}
	if f.Train.Epochs <= 0 {
		return fmt.Errorf("train.epochs must be positive, got %d", f.Train.Epochs)
	}
	if f.Train.BatchSize <= 0 {
		return fmt.Errorf("train.batch_size must be positive, got %d", f.Train.BatchSize)
	}
	if f.Train.SaveEvery < 0 {
		return fmt.Errorf("train.save_every must not be negative, got %d", f.Train.SaveEvery)
	}
	if f.Server.Rate < 0 {
		return fmt.Errorf("server.rate must not be negative, got %g", f.Server.Rate)
	}
	if f.Server.Rate > 0 && f.Server.Burst <= 0 {
		return fmt.Errorf("server.burst must be positive when rate limiting, got %d", f.Server.Burst)
	}
	return nil
}

// Marshal renders cfg as YAML.
func (f File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/pointernet/internal/pointer"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
model:
  enc_units: 16
  dec_units: 16
  voc_size: 12
train:
  epochs: 3
server:
  address: ":9000"
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.EncUnits != 16 || cfg.Model.DecUnits != 16 || cfg.Model.VocSize != 12 {
		t.Fatalf("model section not applied: %+v", cfg.Model)
	}
	if cfg.Model.AttUnits != pointer.DefaultConfig().AttUnits {
		t.Fatalf("att_units lost its default: %d", cfg.Model.AttUnits)
	}
	if cfg.Train.Epochs != 3 || cfg.Train.BatchSize != Default().Train.BatchSize {
		t.Fatalf("train section wrong: %+v", cfg.Train)
	}
	if cfg.Server.Address != ":9000" || cfg.Server.Rate != Default().Server.Rate {
		t.Fatalf("server section wrong: %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "pretty" {
		t.Fatalf("log section wrong: %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := Parse([]byte("train:\n  epoch: 3\n"), &cfg); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := Parse([]byte("  \n"), &cfg); err != nil {
		t.Fatalf("Parse empty: %v", err)
	}
	if cfg.Train.Epochs != Default().Train.Epochs {
		t.Fatal("empty document changed defaults")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()
	want := Default()
	want.Model.ClipNorm = 2.5
	want.Server.Burst = 7
	data, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got File
	if err := Parse(data, &got); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*File)
	}{
		{"zero epochs", func(f *File) { f.Train.Epochs = 0 }},
		{"zero batch", func(f *File) { f.Train.BatchSize = 0 }},
		{"negative save every", func(f *File) { f.Train.SaveEvery = -1 }},
		{"negative rate", func(f *File) { f.Server.Rate = -1 }},
		{"rate without burst", func(f *File) { f.Server.Burst = 0 }},
		{"bad model", func(f *File) { f.Model.DecUnits = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := Default()
			tt.mutate(&f)
			if err := f.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

package main

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/samcharles93/pointernet/internal/logits"
	"github.com/samcharles93/pointernet/internal/nn"
	"github.com/samcharles93/pointernet/internal/pointer"
)

func TestParseBatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    [][]int
		wantErr bool
	}{
		{"3 1 4", [][]int{{3, 1, 4}}, false},
		{"3,1,4; 2 7", [][]int{{3, 1, 4}, {2, 7}}, false},
		{"  5\t6 ;; ", [][]int{{5, 6}}, false},
		{"3 x", nil, true},
		{"-1", nil, true},
		{" ; ", nil, true},
	}
	for _, tt := range tests {
		got, err := parseBatch(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseBatch(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseBatch(%q): %v", tt.in, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("parseBatch(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if formatTokens(got[i]) != formatTokens(tt.want[i]) {
				t.Fatalf("parseBatch(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestPredictAndPrint(t *testing.T) {
	t.Parallel()
	cfg := pointer.DefaultConfig()
	cfg.EncUnits, cfg.DecUnits, cfg.AttUnits, cfg.SwitchUnits = 4, 4, 3, 2
	cfg.VocSize, cfg.EmbeddingDim, cfg.MaxLen = 8, 3, 5
	net, err := pointer.New(cfg, pointer.WithSource(logits.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.SetEmbeddings(nn.NewEmbedding(cfg.Vocab(), cfg.EmbeddingDim, rand.New(rand.NewSource(1)))); err != nil {
		t.Fatalf("SetEmbeddings: %v", err)
	}

	var buf bytes.Buffer
	if err := predictAndPrint(&buf, net, [][]int{{2, 3}, {4, 5, 6}}); err != nil {
		t.Fatalf("predictAndPrint: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	for _, l := range lines {
		if n := len(strings.Fields(l)); n != cfg.MaxLen {
			t.Fatalf("line %q has %d tokens, want %d", l, n, cfg.MaxLen)
		}
	}
	if err := predictAndPrint(&buf, net, [][]int{{99}}); err == nil {
		t.Fatal("expected error for token outside the embedding table")
	}
}

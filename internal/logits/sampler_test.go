package logits

import "testing"

// TestSourceDeterminism ensures that two sources with the same seed produce
// the same draws.
func TestSourceDeterminism(t *testing.T) {
	s1 := NewSource(42)
	s2 := NewSource(42)
	for i := 0; i < 10; i++ {
		a, b := s1.Float64(), s2.Float64()
		if a != b {
			t.Fatalf("draw %d: %v vs %v", i, a, b)
		}
		if a < 0 || a >= 1 {
			t.Fatalf("draw %d out of [0,1): %v", i, a)
		}
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		in   []float64
		want int
	}{
		{[]float64{-1, 5, 3, 7, 2}, 3},
		{[]float64{4}, 0},
		{[]float64{2, 9, 9, 1}, 1},
		{[]float64{-3, -1, -2}, 1},
	}
	for _, tt := range tests {
		if got := Argmax(tt.in); got != tt.want {
			t.Errorf("Argmax(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestArgmaxEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty slice")
		}
	}()
	Argmax(nil)
}

type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

func TestGenerate(t *testing.T) {
	if !Generate(fixed(0.5), 0.5) {
		t.Fatal("p == u must choose generation")
	}
	if Generate(fixed(0.5), 0.49) {
		t.Fatal("p < u must choose pointing")
	}
	if !Generate(fixed(0.999), 1) {
		t.Fatal("p = 1 must always generate")
	}
}

// Package logits holds the decode-time helpers that turn score rows into
// token choices: greedy argmax and the uniform draw behind the
// generate-or-copy switch.
package logits

import (
	"math/rand"
	"time"
)

// Source produces uniform samples in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded source. Two sources with the same seed produce
// identical sequences.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// TimeSource returns a source seeded from the wall clock.
func TimeSource() *rand.Rand {
	return NewSource(time.Now().UnixNano())
}

// Argmax returns the index of the largest value. Ties resolve to the lowest
// index. It panics on an empty slice.
func Argmax(x []float64) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// Generate reports whether the switch chooses the fixed vocabulary for a
// switch probability p against a fresh uniform draw: p >= u.
func Generate(src Source, p float64) bool {
	return p >= src.Float64()
}

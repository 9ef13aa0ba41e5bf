package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/pointernet/internal/logits"
	"github.com/samcharles93/pointernet/internal/pointer"
)

// ModelInfo describes the loaded checkpoint.
type ModelInfo struct {
	CheckpointID string
	Version      string
}

// PredictionService serialises access to a network. Network is not safe for
// concurrent use, so every call holds the service lock.
type PredictionService struct {
	mu       sync.Mutex
	net      *pointer.Network
	info     ModelInfo
	src      logits.Source
	maxBatch int
}

const defaultMaxBatch = 256

func NewPredictionService(net *pointer.Network, info ModelInfo) *PredictionService {
	return &PredictionService{
		net:      net,
		info:     info,
		src:      logits.TimeSource(),
		maxBatch: defaultMaxBatch,
	}
}

// SetMaxBatch limits the number of sequences accepted per request.
func (s *PredictionService) SetMaxBatch(n int) {
	if n > 0 {
		s.maxBatch = n
	}
}

// Predict decodes inputs. A non-nil seed makes the switch draws
// reproducible for this call only.
func (s *PredictionService) Predict(ctx context.Context, inputs [][]int, seed *int64) ([][]int, error) {
	if len(inputs) == 0 {
		return nil, newInvalidRequest("inputs: at least one sequence is required")
	}
	if len(inputs) > s.maxBatch {
		return nil, newInvalidRequest(fmt.Sprintf("inputs: %d sequences exceeds the limit of %d", len(inputs), s.maxBatch))
	}
	for i, row := range inputs {
		if len(row) == 0 {
			return nil, newInvalidRequest(fmt.Sprintf("inputs[%d]: empty sequence", i))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seed != nil {
		s.net.SetSource(logits.NewSource(*seed))
	} else {
		s.net.SetSource(s.src)
	}

	// Ragged batches are decoded per length group, keeping request order.
	out := make([][]int, len(inputs))
	groups := make(map[int][]int)
	var lengths []int
	for i, row := range inputs {
		if _, ok := groups[len(row)]; !ok {
			lengths = append(lengths, len(row))
		}
		groups[len(row)] = append(groups[len(row)], i)
	}
	for _, l := range lengths {
		idx := groups[l]
		batch := make([][]int, len(idx))
		for j, i := range idx {
			batch[j] = inputs[i]
		}
		preds, err := s.net.PredictBatch(batch)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			out[i] = preds[j]
		}
	}
	return out, nil
}

// Model reports the configuration and parameter counts.
func (s *PredictionService) Model() ModelResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := s.net.Parameters().Count()
	total := 0
	for _, c := range counts {
		total += c
	}
	return ModelResponse{
		Object:       "model",
		CheckpointID: s.info.CheckpointID,
		Version:      s.info.Version,
		Config:       s.net.Config(),
		Parameters:   counts,
		Total:        total,
	}
}

func (s *PredictionService) MaxLen() int {
	return s.net.Config().MaxLen
}

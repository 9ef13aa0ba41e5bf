package api

import (
	"sync"
)

// PredictionStore keeps the most recent predictions in memory. When full,
// the oldest entry is evicted.
type PredictionStore struct {
	mu       sync.Mutex
	capacity int
	order    []string
	items    map[string]PredictResponse
}

const defaultStoreCapacity = 1024

func NewPredictionStore(capacity int) *PredictionStore {
	if capacity <= 0 {
		capacity = defaultStoreCapacity
	}
	return &PredictionStore{
		capacity: capacity,
		items:    make(map[string]PredictResponse),
	}
}

func (s *PredictionStore) Put(resp PredictResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.items[resp.ID] = resp
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
}

func (s *PredictionStore) Get(id string) (PredictResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.items[id]
	return resp, ok
}

func (s *PredictionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *PredictionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// DispatchStore keeps dispatch audit records in memory. Results are stored as
// JSON so callers can't mutate them after the fact.
type DispatchStore struct {
	mu   sync.RWMutex
	byID map[string][]byte
}

func NewDispatchStore() *DispatchStore {
	return &DispatchStore{byID: make(map[string][]byte)}
}

func (s *DispatchStore) Save(ctx context.Context, result *domain.DispatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.byID[result.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *DispatchStore) GetByID(ctx context.Context, id string) (*domain.DispatchResult, error) {
	s.mu.RLock()
	data, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	var out domain.DispatchResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

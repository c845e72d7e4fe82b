package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lotline/auction-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu   sync.RWMutex
	lots map[string]*model.Lot
	bids []model.Bid
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lots: make(map[string]*model.Lot),
	}
}

func (s *MemoryStore) CreateLot(_ context.Context, lot *model.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lots[lot.ID]; exists {
		return fmt.Errorf("lot %s already exists", lot.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *lot
	s.lots[lot.ID] = &copy
	return nil
}

func (s *MemoryStore) GetLot(_ context.Context, id string) (*model.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[id]
	if !ok {
		return nil, fmt.Errorf("get lot %s: %w", id, ErrNotFound)
	}
	copy := *lot
	return &copy, nil
}

func (s *MemoryStore) ListActiveLots(_ context.Context) ([]model.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]model.Lot, 0, len(s.lots))
	for _, lot := range s.lots {
		if lot.Status == model.StatusRunning {
			lots = append(lots, *lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		return lots[i].CreatedAt.Before(lots[j].CreatedAt)
	})
	return lots, nil
}

// UpdateLot applies mutate to the stored lot under the write lock, so the
// read-modify-write is atomic with respect to every other store operation.
func (s *MemoryStore) UpdateLot(_ context.Context, id string, mutate func(*model.Lot) error) (*model.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[id]
	if !ok {
		return nil, fmt.Errorf("update lot %s: %w", id, ErrNotFound)
	}

	// Mutate a scratch copy; only publish it back on success.
	scratch := *lot
	if err := mutate(&scratch); err != nil {
		return nil, err
	}
	s.lots[id] = &scratch

	result := scratch
	return &result, nil
}

func (s *MemoryStore) InsertBid(_ context.Context, bid *model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bids = append(s.bids, *bid)
	return nil
}

func (s *MemoryStore) ListBidsForLot(_ context.Context, lotID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bid
	// Bids are appended in commit order, so walking backwards yields
	// newest-first without re-sorting.
	for i := len(s.bids) - 1; i >= 0; i-- {
		if s.bids[i].LotID == lotID {
			result = append(result, s.bids[i])
		}
	}
	return result, nil
}

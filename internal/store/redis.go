package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lotline/auction-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for lot lookups. Writes go to the primary store and invalidate the
// cache; reads check Redis first then fall back to the primary.
//
// Lot mutations and bid inserts always invalidate, so a cached lot is never
// staler than the TTL and never survives a price change.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateLot(ctx context.Context, lot *model.Lot) error {
	if err := s.primary.CreateLot(ctx, lot); err != nil {
		return err
	}
	s.cacheLot(ctx, lot)
	return nil
}

func (s *CachedStore) UpdateLot(ctx context.Context, id string, mutate func(*model.Lot) error) (*model.Lot, error) {
	lot, err := s.primary.UpdateLot(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, lotKey(id))
	return lot, nil
}

func (s *CachedStore) InsertBid(ctx context.Context, bid *model.Bid) error {
	if err := s.primary.InsertBid(ctx, bid); err != nil {
		return err
	}
	s.rdb.Del(ctx, bidsKey(bid.LotID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetLot(ctx context.Context, id string) (*model.Lot, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, lotKey(id)).Bytes()
	if err == nil {
		var lot model.Lot
		if json.Unmarshal(data, &lot) == nil {
			return &lot, nil
		}
	}

	// Cache miss: read from primary.
	lot, err := s.primary.GetLot(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheLot(ctx, lot)
	return lot, nil
}

func (s *CachedStore) ListBidsForLot(ctx context.Context, lotID string) ([]model.Bid, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, bidsKey(lotID)).Bytes()
	if err == nil {
		var bids []model.Bid
		if json.Unmarshal(data, &bids) == nil {
			return bids, nil
		}
	}

	// Cache miss.
	bids, err := s.primary.ListBidsForLot(ctx, lotID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(bids); err == nil {
		s.rdb.Set(ctx, bidsKey(lotID), data, s.ttl)
	}
	return bids, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListActiveLots(ctx context.Context) ([]model.Lot, error) {
	return s.primary.ListActiveLots(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheLot(ctx context.Context, lot *model.Lot) {
	if data, err := json.Marshal(lot); err == nil {
		s.rdb.Set(ctx, lotKey(lot.ID), data, s.ttl)
	}
}

func lotKey(id string) string  { return fmt.Sprintf("lot:%s", id) }
func bidsKey(id string) string { return fmt.Sprintf("bids:%s", id) }

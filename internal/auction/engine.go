package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotline/auction-engine/internal/metrics"
	"github.com/lotline/auction-engine/internal/model"
	"github.com/lotline/auction-engine/internal/store"
)

// Engine applies bids and lifecycle transitions against lots. It is the only
// writer of a lot's price and status. Mutations to one lot are serialized
// through a per-lot mutex; unrelated lots never contend.
//
// Broadcasts are emitted after the store commit and while the lot's mutex is
// still held, so subscribers observe events in commit order and each commit
// produces exactly one broadcast attempt.
type Engine struct {
	store store.Store
	hub   *Hub // optional; nil disables broadcasting

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an engine over the given store. Pass nil for hub if
// broadcasting is not needed.
func NewEngine(st store.Store, hub *Hub) *Engine {
	return &Engine{
		store: st,
		hub:   hub,
		locks: make(map[string]*sync.Mutex),
	}
}

// lotLock returns the mutex serializing mutations for one lot, creating it
// on first use. Locks are retained for the process lifetime; the table is
// bounded by the number of lots ever touched.
func (e *Engine) lotLock(lotID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[lotID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[lotID] = lock
	}
	return lock
}

// CreateLot persists a new lot with current price equal to start price.
func (e *Engine) CreateLot(ctx context.Context, title, description string, startPrice decimal.Decimal) (*model.Lot, error) {
	lot := &model.Lot{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  description,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		Status:       model.StatusRunning,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.store.CreateLot(ctx, lot); err != nil {
		return nil, err
	}
	metrics.ActiveLots.Inc()

	slog.Info("lot created",
		"lot_id", lot.ID,
		"title", lot.Title,
		"start_price", lot.StartPrice.String(),
	)
	return lot, nil
}

// GetLot retrieves a lot by ID.
func (e *Engine) GetLot(ctx context.Context, lotID string) (*model.Lot, error) {
	lot, err := e.store.GetLot(ctx, lotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return lot, nil
}

// ActiveLots returns all lots still accepting bids.
func (e *Engine) ActiveLots(ctx context.Context) ([]model.Lot, error) {
	return e.store.ListActiveLots(ctx)
}

// BidsForLot returns a lot's bid history, newest first.
func (e *Engine) BidsForLot(ctx context.Context, lotID string) ([]model.Bid, error) {
	if _, err := e.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	return e.store.ListBidsForLot(ctx, lotID)
}

// PlaceBid validates and applies a bid against a lot.
//
// Fails with ErrLotNotFound, ErrAuctionClosed, or ErrBidTooLow (strict:
// a bid equal to the current price is rejected). On success the lot's
// current price becomes the bid amount, an immutable bid record is
// appended, and a bid_placed event is broadcast to the lot's subscribers.
func (e *Engine) PlaceBid(ctx context.Context, lotID, bidder string, amount decimal.Decimal) (*model.Bid, error) {
	lock := e.lotLock(lotID)
	lock.Lock()
	defer lock.Unlock()

	var prevPrice decimal.Decimal
	_, err := e.store.UpdateLot(ctx, lotID, func(l *model.Lot) error {
		if !l.Running() {
			return ErrAuctionClosed
		}
		if amount.LessThanOrEqual(l.CurrentPrice) {
			return fmt.Errorf("%w: current price is %s", ErrBidTooLow, l.CurrentPrice)
		}
		prevPrice = l.CurrentPrice
		l.CurrentPrice = amount
		return nil
	})
	if err != nil {
		countBidRejection(err)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}

	bid := &model.Bid{
		ID:        uuid.New().String(),
		LotID:     lotID,
		Bidder:    bidder,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.store.InsertBid(ctx, bid); err != nil {
		// Price moved but the bid record failed: roll the price back so no
		// price change is visible without a matching bid. The per-lot lock
		// is still held, so nothing raced in between.
		if _, revertErr := e.store.UpdateLot(ctx, lotID, func(l *model.Lot) error {
			l.CurrentPrice = prevPrice
			return nil
		}); revertErr != nil {
			slog.Error("failed to revert price after bid insert failure",
				"lot_id", lotID, "err", revertErr)
		}
		return nil, fmt.Errorf("record bid: %w", err)
	}

	metrics.BidsAccepted.Inc()
	slog.Info("bid accepted",
		"lot_id", lotID,
		"bid_id", bid.ID,
		"bidder", bidder,
		"amount", amount.String(),
		"previous_price", prevPrice.String(),
	)

	// Broadcast after commit, exactly once, still under the lot lock so
	// subscribers see bids in commit order.
	if e.hub != nil {
		e.hub.Publish(lotID, Event{
			Type:   EventBidPlaced,
			LotID:  lotID,
			Bidder: bidder,
			Amount: amount.String(),
		})
	}

	return bid, nil
}

// EndLot transitions a lot from running to ended exactly once, broadcasts
// lot_ended to its subscribers, then tears down the lot's subscriber set.
// A second call fails with ErrAlreadyEnded.
func (e *Engine) EndLot(ctx context.Context, lotID string) (*model.Lot, error) {
	lock := e.lotLock(lotID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	lot, err := e.store.UpdateLot(ctx, lotID, func(l *model.Lot) error {
		if !l.Running() {
			return ErrAlreadyEnded
		}
		l.Status = model.StatusEnded
		l.EndedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}

	metrics.ActiveLots.Dec()
	slog.Info("lot ended",
		"lot_id", lotID,
		"final_price", lot.CurrentPrice.String(),
	)

	// Best-effort terminal broadcast: one delivery pass, no retry, then the
	// whole subscriber set is reclaimed.
	if e.hub != nil {
		e.hub.Publish(lotID, Event{
			Type:    EventLotEnded,
			LotID:   lotID,
			Message: "Auction has ended for this lot",
		})
		e.hub.CloseLot(lotID)
	}

	return lot, nil
}

func countBidRejection(err error) {
	switch {
	case errors.Is(err, ErrBidTooLow):
		metrics.BidRejections.WithLabelValues("bid_too_low").Inc()
	case errors.Is(err, ErrAuctionClosed):
		metrics.BidRejections.WithLabelValues("auction_closed").Inc()
	case errors.Is(err, store.ErrNotFound):
		metrics.BidRejections.WithLabelValues("not_found").Inc()
	}
}

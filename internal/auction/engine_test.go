package auction_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lotline/auction-engine/internal/auction"
	"github.com/lotline/auction-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEngine creates an engine over an in-memory store with no hub.
func newTestEngine(t *testing.T) (*auction.Engine, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return auction.NewEngine(ms, nil), ms
}

// seedLot creates a running lot through the engine.
func seedLot(t *testing.T, engine *auction.Engine, startPrice float64) string {
	t.Helper()
	lot, err := engine.CreateLot(context.Background(), "Antique clock", "", d(startPrice))
	if err != nil {
		t.Fatalf("failed to seed lot: %v", err)
	}
	return lot.ID
}

// --- CreateLot ---

func TestCreateLot_InitialState(t *testing.T) {
	engine, _ := newTestEngine(t)

	lot, err := engine.CreateLot(context.Background(), "Painting", "oil on canvas", d(250))
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}

	if lot.ID == "" {
		t.Error("expected non-empty lot id")
	}
	if !lot.CurrentPrice.Equal(lot.StartPrice) {
		t.Errorf("current price should equal start price, got %s vs %s", lot.CurrentPrice, lot.StartPrice)
	}
	if !lot.Running() {
		t.Errorf("new lot should be running, got %s", lot.Status)
	}
	if lot.EndedAt != nil {
		t.Error("new lot should have no ended_at")
	}
	if lot.CreatedAt.IsZero() {
		t.Error("expected non-zero created_at")
	}
}

// --- PlaceBid ---

func TestPlaceBid_AcceptsHigherBid(t *testing.T) {
	engine, _ := newTestEngine(t)
	lotID := seedLot(t, engine, 100)

	bid, err := engine.PlaceBid(context.Background(), lotID, "alice", d(150))
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}

	if bid.ID == "" {
		t.Error("expected non-empty bid id")
	}
	if bid.LotID != lotID {
		t.Errorf("expected lot_id=%s, got %s", lotID, bid.LotID)
	}
	if bid.CreatedAt.IsZero() {
		t.Error("expected non-zero bid timestamp")
	}

	lot, _ := engine.GetLot(context.Background(), lotID)
	if !lot.CurrentPrice.Equal(d(150)) {
		t.Errorf("current price should be 150, got %s", lot.CurrentPrice)
	}
}

func TestPlaceBid_EqualToCurrentPriceRejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	lotID := seedLot(t, engine, 100)

	_, err := engine.PlaceBid(context.Background(), lotID, "alice", d(100))
	if !errors.Is(err, auction.ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow for bid equal to current price, got %v", err)
	}

	lot, _ := engine.GetLot(context.Background(), lotID)
	if !lot.CurrentPrice.Equal(d(100)) {
		t.Errorf("rejected bid must not change price, got %s", lot.CurrentPrice)
	}
}

func TestPlaceBid_LowerThanCurrentPriceRejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	lotID := seedLot(t, engine, 100)

	if _, err := engine.PlaceBid(context.Background(), lotID, "alice", d(150)); err != nil {
		t.Fatalf("place bid: %v", err)
	}

	_, err := engine.PlaceBid(context.Background(), lotID, "bob", d(120))
	if !errors.Is(err, auction.ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow, got %v", err)
	}
}

func TestPlaceBid_UnknownLot(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.PlaceBid(context.Background(), "missing", "alice", d(100))
	if !errors.Is(err, auction.ErrLotNotFound) {
		t.Fatalf("expected ErrLotNotFound, got %v", err)
	}
}

func TestPlaceBid_AfterEndRejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	lotID := seedLot(t, engine, 100)

	if _, err := engine.PlaceBid(context.Background(), lotID, "alice", d(150)); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if _, err := engine.EndLot(context.Background(), lotID); err != nil {
		t.Fatalf("end lot: %v", err)
	}

	_, err := engine.PlaceBid(context.Background(), lotID, "bob", d(500))
	if !errors.Is(err, auction.ErrAuctionClosed) {
		t.Fatalf("expected ErrAuctionClosed, got %v", err)
	}

	lot, _ := engine.GetLot(context.Background(), lotID)
	if !lot.CurrentPrice.Equal(d(150)) {
		t.Errorf("price must not change after lot ended, got %s", lot.CurrentPrice)
	}
}

func TestPlaceBid_PriceMonotonic(t *testing.T) {
	engine, ms := newTestEngine(t)
	lotID := seedLot(t, engine, 10)

	amounts := []float64{15, 12, 20, 20, 25}
	for _, amt := range amounts {
		engine.PlaceBid(context.Background(), lotID, "alice", d(amt))
	}

	bids, err := ms.ListBidsForLot(context.Background(), lotID)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != 3 {
		t.Fatalf("expected 3 accepted bids (15, 20, 25), got %d", len(bids))
	}

	// Bids are newest-first; walking backwards must yield strictly
	// increasing amounts.
	for i := len(bids) - 1; i > 0; i-- {
		if !bids[i-1].Amount.GreaterThan(bids[i].Amount) {
			t.Errorf("bid amounts not strictly increasing: %s then %s",
				bids[i].Amount, bids[i-1].Amount)
		}
	}

	lot, _ := engine.GetLot(context.Background(), lotID)
	if !lot.CurrentPrice.Equal(d(25)) {
		t.Errorf("final price should be 25, got %s", lot.CurrentPrice)
	}
}

func TestPlaceBid_ConcurrentBidsResolveSerially(t *testing.T) {
	engine, ms := newTestEngine(t)
	lotID := seedLot(t, engine, 100)

	const bidders = 20
	var wg sync.WaitGroup
	errs := make([]error, bidders)

	// Concurrent bids of 101..120. Whichever lands first raises the floor
	// for the rest; the highest amount always clears.
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.PlaceBid(context.Background(), lotID, "bidder", d(float64(101+i)))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for i, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, auction.ErrBidTooLow):
			// Lost the race to a higher or earlier bid.
		default:
			t.Errorf("bid %d: unexpected error %v", i, err)
		}
	}
	if accepted == 0 {
		t.Fatal("expected at least one accepted bid")
	}

	bids, _ := ms.ListBidsForLot(context.Background(), lotID)
	if len(bids) != accepted {
		t.Errorf("every accepted bid must be recorded: %d accepted, %d stored", accepted, len(bids))
	}

	// The maximum submitted amount exceeds every possible intermediate
	// price, so it must have been accepted and must be the final price.
	lot, _ := engine.GetLot(context.Background(), lotID)
	if !lot.CurrentPrice.Equal(d(120)) {
		t.Errorf("final price should be 120, got %s", lot.CurrentPrice)
	}

	// Committed history is strictly increasing in commit order.
	for i := len(bids) - 1; i > 0; i-- {
		if !bids[i-1].Amount.GreaterThan(bids[i].Amount) {
			t.Errorf("committed amounts not strictly increasing: %s then %s",
				bids[i].Amount, bids[i-1].Amount)
		}
	}
}

// --- EndLot ---

func TestEndLot_TransitionsOnce(t *testing.T) {
	engine, _ := newTestEngine(t)
	lotID := seedLot(t, engine, 100)

	lot, err := engine.EndLot(context.Background(), lotID)
	if err != nil {
		t.Fatalf("end lot: %v", err)
	}
	if lot.Running() {
		t.Errorf("lot should be ended, got %s", lot.Status)
	}
	if lot.EndedAt == nil || lot.EndedAt.IsZero() {
		t.Error("expected ended_at to be set")
	}

	_, err = engine.EndLot(context.Background(), lotID)
	if !errors.Is(err, auction.ErrAlreadyEnded) {
		t.Fatalf("second end should fail with ErrAlreadyEnded, got %v", err)
	}
}

func TestEndLot_UnknownLot(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.EndLot(context.Background(), "missing")
	if !errors.Is(err, auction.ErrLotNotFound) {
		t.Fatalf("expected ErrLotNotFound, got %v", err)
	}
}

// --- Queries ---

func TestBidsForLot_NewestFirst(t *testing.T) {
	engine, _ := newTestEngine(t)
	lotID := seedLot(t, engine, 10)

	for _, amt := range []float64{20, 30, 40} {
		if _, err := engine.PlaceBid(context.Background(), lotID, "alice", d(amt)); err != nil {
			t.Fatalf("place bid %v: %v", amt, err)
		}
	}

	bids, err := engine.BidsForLot(context.Background(), lotID)
	if err != nil {
		t.Fatalf("bids for lot: %v", err)
	}
	if len(bids) != 3 {
		t.Fatalf("expected 3 bids, got %d", len(bids))
	}
	if !bids[0].Amount.Equal(d(40)) {
		t.Errorf("expected newest bid first, got %s", bids[0].Amount)
	}
}

func TestBidsForLot_UnknownLot(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.BidsForLot(context.Background(), "missing")
	if !errors.Is(err, auction.ErrLotNotFound) {
		t.Fatalf("expected ErrLotNotFound, got %v", err)
	}
}

func TestActiveLots_ExcludesEnded(t *testing.T) {
	engine, _ := newTestEngine(t)
	running := seedLot(t, engine, 100)
	ended := seedLot(t, engine, 200)

	if _, err := engine.EndLot(context.Background(), ended); err != nil {
		t.Fatalf("end lot: %v", err)
	}

	lots, err := engine.ActiveLots(context.Background())
	if err != nil {
		t.Fatalf("active lots: %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("expected 1 active lot, got %d", len(lots))
	}
	if lots[0].ID != running {
		t.Errorf("expected lot %s, got %s", running, lots[0].ID)
	}
}

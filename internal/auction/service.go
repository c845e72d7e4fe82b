package auction

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lotline/auction-engine/internal/model"
)

// Input bounds, enforced at the HTTP boundary.
const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	maxBidderLen      = 100
)

// Service exposes the auction engine over HTTP and WebSocket.
type Service struct {
	engine *Engine
	hub    *Hub
}

// NewService creates the HTTP/WS layer over an engine and hub.
func NewService(engine *Engine, hub *Hub) *Service {
	return &Service{engine: engine, hub: hub}
}

// --- Request types ---

// CreateLotRequest is the JSON body for POST /lots.
type CreateLotRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	StartPrice  decimal.Decimal `json:"start_price"`
}

// PlaceBidRequest is the JSON body for POST /lots/{lotID}/bids.
type PlaceBidRequest struct {
	Bidder string          `json:"bidder"`
	Amount decimal.Decimal `json:"amount"`
}

// --- HTTP Handlers ---

// CreateLot handles POST /lots
func (s *Service) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req CreateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeError(w, "title must be 1-200 characters", http.StatusBadRequest)
		return
	}
	if len(req.Description) > maxDescriptionLen {
		writeError(w, "description must be at most 1000 characters", http.StatusBadRequest)
		return
	}
	if req.StartPrice.LessThanOrEqual(decimal.Zero) {
		writeError(w, "start_price must be positive", http.StatusBadRequest)
		return
	}

	lot, err := s.engine.CreateLot(r.Context(), req.Title, req.Description, req.StartPrice)
	if err != nil {
		writeError(w, "failed to create lot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lot)
}

// GetLot handles GET /lots/{lotID}
func (s *Service) GetLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	lot, err := s.engine.GetLot(r.Context(), lotID)
	if err != nil {
		writeError(w, "lot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lot)
}

// ListActiveLots handles GET /lots
func (s *Service) ListActiveLots(w http.ResponseWriter, r *http.Request) {
	lots, err := s.engine.ActiveLots(r.Context())
	if err != nil {
		writeError(w, "failed to list lots", http.StatusInternalServerError)
		return
	}
	if lots == nil {
		lots = []model.Lot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lots)
}

// PlaceBid handles POST /lots/{lotID}/bids
func (s *Service) PlaceBid(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	var req PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Bidder == "" || len(req.Bidder) > maxBidderLen {
		writeError(w, "bidder must be 1-100 characters", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	bid, err := s.engine.PlaceBid(r.Context(), lotID, req.Bidder, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrLotNotFound):
			writeError(w, "lot not found", http.StatusNotFound)
		case errors.Is(err, ErrBidTooLow):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrAuctionClosed):
			writeError(w, "lot is no longer accepting bids", http.StatusConflict)
		default:
			writeError(w, "failed to place bid", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bid)
}

// GetLotBids handles GET /lots/{lotID}/bids
// Returns the lot's bid history, newest first.
func (s *Service) GetLotBids(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	bids, err := s.engine.BidsForLot(r.Context(), lotID)
	if err != nil {
		if errors.Is(err, ErrLotNotFound) {
			writeError(w, "lot not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to list bids", http.StatusInternalServerError)
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bids)
}

// EndLot handles POST /lots/{lotID}/end
func (s *Service) EndLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	lot, err := s.engine.EndLot(r.Context(), lotID)
	if err != nil {
		switch {
		case errors.Is(err, ErrLotNotFound):
			writeError(w, "lot not found", http.StatusNotFound)
		case errors.Is(err, ErrAlreadyEnded):
			writeError(w, "lot already ended", http.StatusConflict)
		default:
			writeError(w, "failed to end lot", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lot)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

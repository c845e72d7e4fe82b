// Package store defines the persistence interface for the auction engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/lotline/auction-engine/internal/model"
)

// ErrNotFound is returned when a lot does not exist.
var ErrNotFound = errors.New("store: lot not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Lot operations ---

	// CreateLot persists a new lot.
	CreateLot(ctx context.Context, lot *model.Lot) error

	// GetLot retrieves a lot by its ID.
	GetLot(ctx context.Context, id string) (*model.Lot, error)

	// ListActiveLots returns all lots still accepting bids.
	ListActiveLots(ctx context.Context) ([]model.Lot, error)

	// UpdateLot applies mutate to the lot's current state and persists the
	// result in one atomic step. The mutation either commits fully or leaves
	// the lot unchanged; a mutate error aborts without writing.
	UpdateLot(ctx context.Context, id string, mutate func(*model.Lot) error) (*model.Lot, error)

	// --- Immutable bid history ---

	// InsertBid appends an immutable bid record.
	InsertBid(ctx context.Context, bid *model.Bid) error

	// ListBidsForLot returns all bids for a lot, newest first.
	ListBidsForLot(ctx context.Context, lotID string) ([]model.Bid, error)
}

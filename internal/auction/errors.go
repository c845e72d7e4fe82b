package auction

import "errors"

// Business-rule outcomes. These are expected failures surfaced to callers as
// structured errors, never panics.
var (
	// ErrLotNotFound is returned when no lot exists for the given ID.
	ErrLotNotFound = errors.New("auction: lot not found")

	// ErrBidTooLow is returned when a bid does not exceed the lot's current
	// price. A bid equal to the current price is rejected.
	ErrBidTooLow = errors.New("auction: bid must exceed current price")

	// ErrAuctionClosed is returned when a bid is placed on an ended lot.
	ErrAuctionClosed = errors.New("auction: lot has ended")

	// ErrAlreadyEnded is returned when EndLot is called on an ended lot.
	// Ending a lot twice is an observable failure, not a silent success.
	ErrAlreadyEnded = errors.New("auction: lot already ended")
)

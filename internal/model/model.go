// Package model defines the core domain types shared across the auction engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot lifecycle statuses.
const (
	StatusRunning = "running"
	StatusEnded   = "ended"
)

// Lot represents one auction item. CurrentPrice only moves through accepted
// bids and is non-decreasing; Status transitions running→ended exactly once.
type Lot struct {
	ID           string          `json:"id" db:"id"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description,omitempty" db:"description"`
	StartPrice   decimal.Decimal `json:"start_price" db:"start_price"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	Status       string          `json:"status" db:"status"` // "running" or "ended"
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty" db:"ended_at"`
}

// Running reports whether the lot still accepts bids.
func (l *Lot) Running() bool {
	return l.Status == StatusRunning
}

// Bid is an immutable record of an accepted offer against a lot.
// Once created, bids are never modified or deleted.
type Bid struct {
	ID        string          `json:"id" db:"id"`
	LotID     string          `json:"lot_id" db:"lot_id"`
	Bidder    string          `json:"bidder" db:"bidder"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

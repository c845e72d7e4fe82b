package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lotline/auction-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateLot(ctx context.Context, lot *model.Lot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lots (id, title, description, start_price, current_price, status, created_at, ended_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)`,
		lot.ID, lot.Title, lot.Description,
		lot.StartPrice.String(), lot.CurrentPrice.String(),
		lot.Status, lot.CreatedAt, lot.EndedAt,
	)
	return err
}

func (s *PostgresStore) GetLot(ctx context.Context, id string) (*model.Lot, error) {
	lot, err := scanLot(s.pool.QueryRow(ctx,
		`SELECT id, title, description,
		        start_price::TEXT, current_price::TEXT,
		        status, created_at, ended_at
		 FROM lots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get lot %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get lot %s: %w", id, err)
	}
	return lot, nil
}

func (s *PostgresStore) ListActiveLots(ctx context.Context) ([]model.Lot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description,
		        start_price::TEXT, current_price::TEXT,
		        status, created_at, ended_at
		 FROM lots WHERE status = $1 ORDER BY created_at`, model.StatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []model.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, *lot)
	}
	return lots, rows.Err()
}

// UpdateLot runs mutate inside a transaction holding a row lock on the lot,
// so concurrent updates to the same lot serialize at the database and the
// closure always sees the latest committed price/status.
func (s *PostgresStore) UpdateLot(ctx context.Context, id string, mutate func(*model.Lot) error) (*model.Lot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update lot %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	lot, err := scanLot(tx.QueryRow(ctx,
		`SELECT id, title, description,
		        start_price::TEXT, current_price::TEXT,
		        status, created_at, ended_at
		 FROM lots WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update lot %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update lot %s: %w", id, err)
	}

	if err := mutate(lot); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE lots
		 SET current_price = $2::NUMERIC, status = $3, ended_at = $4
		 WHERE id = $1`,
		id, lot.CurrentPrice.String(), lot.Status, lot.EndedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update lot %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update lot %s: %w", id, err)
	}
	return lot, nil
}

func (s *PostgresStore) InsertBid(ctx context.Context, bid *model.Bid) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bids (id, lot_id, bidder, amount, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
		bid.ID, bid.LotID, bid.Bidder, bid.Amount.String(), bid.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListBidsForLot(ctx context.Context, lotID string) ([]model.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lot_id, bidder, amount::TEXT, created_at
		 FROM bids WHERE lot_id = $1 ORDER BY created_at DESC`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		var amountS string
		if err := rows.Scan(&b.ID, &b.LotID, &b.Bidder, &amountS, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Amount, _ = decimal.NewFromString(amountS)
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// pgxRow covers both pgx.Row and pgx.Rows for lot scanning.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanLot(row pgxRow) (*model.Lot, error) {
	var lot model.Lot
	var startS, currentS string
	var endedAt *time.Time

	if err := row.Scan(&lot.ID, &lot.Title, &lot.Description,
		&startS, &currentS,
		&lot.Status, &lot.CreatedAt, &endedAt); err != nil {
		return nil, err
	}

	lot.StartPrice, _ = decimal.NewFromString(startS)
	lot.CurrentPrice, _ = decimal.NewFromString(currentS)
	lot.EndedAt = endedAt
	return &lot, nil
}

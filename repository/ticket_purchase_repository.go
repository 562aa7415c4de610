package repository

import (
	"context"
	"fmt"

	"megayield/database"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// TicketPurchaseRepository implements the TicketPurchaseRepository interface
type TicketPurchaseRepository struct {
	q queryable
}

// NewTicketPurchaseRepository creates a new ticket purchase repository
func NewTicketPurchaseRepository(db *database.DB) *TicketPurchaseRepository {
	return &TicketPurchaseRepository{q: db.Pool}
}

// newTicketPurchaseRepositoryWithTx creates a new ticket purchase repository with a transaction
func newTicketPurchaseRepositoryWithTx(tx queryable) *TicketPurchaseRepository {
	return &TicketPurchaseRepository{q: tx}
}

// Create records a purchase
func (r *TicketPurchaseRepository) Create(ctx context.Context, purchase *models.TicketPurchase) error {
	query := `
		INSERT INTO ticket_purchases
		(day_index, buyer, tickets, total_cost, referrer, referral_share, jackpot_delta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		purchase.DayIndex,
		purchase.Buyer.Hex(),
		purchase.Tickets,
		purchase.TotalCost,
		nullableAddress(purchase.Referrer),
		purchase.ReferralShare,
		purchase.JackpotDelta,
	).Scan(&purchase.ID, &purchase.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record ticket purchase for %s: %w", purchase.Buyer.Hex(), err)
	}
	return nil
}

// GetByDay returns all purchases of a day, oldest first
func (r *TicketPurchaseRepository) GetByDay(ctx context.Context, dayIndex int64) ([]*models.TicketPurchase, error) {
	query := `
		SELECT id, day_index, buyer, tickets, total_cost, referrer, referral_share, jackpot_delta, created_at
		FROM ticket_purchases
		WHERE day_index = $1
		ORDER BY id ASC
	`

	rows, err := r.q.Query(ctx, query, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases of day %d: %w", dayIndex, err)
	}
	return collectPurchases(rows)
}

// GetByBuyer returns a buyer's most recent purchases
func (r *TicketPurchaseRepository) GetByBuyer(ctx context.Context, buyer common.Address, limit int) ([]*models.TicketPurchase, error) {
	query := `
		SELECT id, day_index, buyer, tickets, total_cost, referrer, referral_share, jackpot_delta, created_at
		FROM ticket_purchases
		WHERE buyer = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, buyer.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases of %s: %w", buyer.Hex(), err)
	}
	return collectPurchases(rows)
}

func collectPurchases(rows pgx.Rows) ([]*models.TicketPurchase, error) {
	defer rows.Close()

	var purchases []*models.TicketPurchase
	for rows.Next() {
		var p models.TicketPurchase
		var buyer string
		var referrer *string
		err := rows.Scan(
			&p.ID,
			&p.DayIndex,
			&buyer,
			&p.Tickets,
			&p.TotalCost,
			&referrer,
			&p.ReferralShare,
			&p.JackpotDelta,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket purchase: %w", err)
		}
		p.Buyer = common.HexToAddress(buyer)
		p.Referrer = addressPtr(referrer)
		purchases = append(purchases, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket purchases: %w", err)
	}

	return purchases, nil
}

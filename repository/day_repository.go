package repository

import (
	"context"
	"fmt"

	"megayield/database"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// DayRepository implements the DayRepository interface
type DayRepository struct {
	q queryable
}

// NewDayRepository creates a new day repository
func NewDayRepository(db *database.DB) *DayRepository {
	return &DayRepository{q: db.Pool}
}

// newDayRepositoryWithTx creates a new day repository with a transaction
func newDayRepositoryWithTx(tx queryable) *DayRepository {
	return &DayRepository{q: tx}
}

const dayColumns = `day_index, jackpot, carried_in, drawn, winner, winner_index,
		       random_value, prize_amount, opened_at, drawn_at`

// Get retrieves a day by index
func (r *DayRepository) Get(ctx context.Context, dayIndex int64) (*models.LotteryDay, error) {
	query := `SELECT ` + dayColumns + ` FROM lottery_days WHERE day_index = $1`

	day, err := scanDay(r.q.QueryRow(ctx, query, dayIndex))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lottery day %d: %w", dayIndex, err)
	}
	return day, nil
}

// GetForUpdate retrieves a day by index with a row lock
func (r *DayRepository) GetForUpdate(ctx context.Context, dayIndex int64) (*models.LotteryDay, error) {
	query := `SELECT ` + dayColumns + ` FROM lottery_days WHERE day_index = $1 FOR UPDATE`

	day, err := scanDay(r.q.QueryRow(ctx, query, dayIndex))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lottery day %d for update: %w", dayIndex, err)
	}
	return day, nil
}

// Create inserts a new day record
func (r *DayRepository) Create(ctx context.Context, day *models.LotteryDay) error {
	query := `
		INSERT INTO lottery_days (day_index, jackpot, carried_in)
		VALUES ($1, $2, $3)
		RETURNING opened_at
	`

	err := r.q.QueryRow(ctx, query, day.DayIndex, day.Jackpot, day.CarriedIn).Scan(&day.OpenedAt)
	if err != nil {
		return fmt.Errorf("failed to create lottery day %d: %w", day.DayIndex, err)
	}
	return nil
}

// IncrementJackpot adds delta to the day's jackpot
func (r *DayRepository) IncrementJackpot(ctx context.Context, dayIndex int64, delta int64) (int64, error) {
	query := `
		UPDATE lottery_days
		SET jackpot = jackpot + $2
		WHERE day_index = $1
		RETURNING jackpot
	`

	var jackpot int64
	err := r.q.QueryRow(ctx, query, dayIndex, delta).Scan(&jackpot)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("lottery day %d not found", dayIndex)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment jackpot of day %d: %w", dayIndex, err)
	}
	return jackpot, nil
}

// Update persists jackpot and settlement fields
func (r *DayRepository) Update(ctx context.Context, day *models.LotteryDay) error {
	query := `
		UPDATE lottery_days
		SET jackpot = $2,
		    drawn = $3,
		    winner = $4,
		    winner_index = $5,
		    random_value = $6,
		    prize_amount = $7,
		    drawn_at = $8
		WHERE day_index = $1
	`

	result, err := r.q.Exec(ctx, query,
		day.DayIndex,
		day.Jackpot,
		day.Drawn,
		nullableAddress(day.Winner),
		day.WinnerIndex,
		nullableHash(day.RandomValue),
		day.PrizeAmount,
		day.DrawnAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update lottery day %d: %w", day.DayIndex, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("lottery day %d not found", day.DayIndex)
	}
	return nil
}

// AddBuyer adds a buyer to the day's unique set or bumps their ticket count
func (r *DayRepository) AddBuyer(ctx context.Context, dayIndex int64, buyer common.Address, tickets int64) (bool, error) {
	// Positions are assigned densely from 0 in first-purchase order; callers hold
	// the settings lock so MAX(position) cannot race.
	query := `
		INSERT INTO lottery_day_buyers (day_index, position, buyer, tickets)
		VALUES (
			$1,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM lottery_day_buyers WHERE day_index = $1),
			$2,
			$3
		)
		ON CONFLICT (day_index, buyer)
		DO UPDATE SET tickets = lottery_day_buyers.tickets + EXCLUDED.tickets
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.q.QueryRow(ctx, query, dayIndex, buyer.Hex(), tickets).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to add buyer %s to day %d: %w", buyer.Hex(), dayIndex, err)
	}
	return inserted, nil
}

// GetBuyers returns the day's unique buyers in first-purchase order
func (r *DayRepository) GetBuyers(ctx context.Context, dayIndex int64) ([]*models.DayBuyer, error) {
	query := `
		SELECT day_index, position, buyer, tickets, first_purchase_at
		FROM lottery_day_buyers
		WHERE day_index = $1
		ORDER BY position ASC
	`

	rows, err := r.q.Query(ctx, query, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query buyers of day %d: %w", dayIndex, err)
	}
	defer rows.Close()

	var buyers []*models.DayBuyer
	for rows.Next() {
		var b models.DayBuyer
		var buyer string
		if err := rows.Scan(&b.DayIndex, &b.Position, &buyer, &b.Tickets, &b.FirstPurchaseAt); err != nil {
			return nil, fmt.Errorf("failed to scan buyer: %w", err)
		}
		b.Buyer = common.HexToAddress(buyer)
		buyers = append(buyers, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buyers: %w", err)
	}

	return buyers, nil
}

// CountBuyers returns the size of the day's unique buyer set
func (r *DayRepository) CountBuyers(ctx context.Context, dayIndex int64) (int, error) {
	query := `SELECT COUNT(*) FROM lottery_day_buyers WHERE day_index = $1`

	var count int
	if err := r.q.QueryRow(ctx, query, dayIndex).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count buyers of day %d: %w", dayIndex, err)
	}
	return count, nil
}

// ClearBuyers empties the day's unique buyer set
func (r *DayRepository) ClearBuyers(ctx context.Context, dayIndex int64) error {
	query := `DELETE FROM lottery_day_buyers WHERE day_index = $1`

	if _, err := r.q.Exec(ctx, query, dayIndex); err != nil {
		return fmt.Errorf("failed to clear buyers of day %d: %w", dayIndex, err)
	}
	return nil
}

func scanDay(row pgx.Row) (*models.LotteryDay, error) {
	var day models.LotteryDay
	var winner, randomValue *string
	err := row.Scan(
		&day.DayIndex,
		&day.Jackpot,
		&day.CarriedIn,
		&day.Drawn,
		&winner,
		&day.WinnerIndex,
		&randomValue,
		&day.PrizeAmount,
		&day.OpenedAt,
		&day.DrawnAt,
	)
	if err != nil {
		return nil, err
	}
	day.Winner = addressPtr(winner)
	day.RandomValue = hashPtr(randomValue)
	return &day, nil
}

package repository

import (
	"context"
	"fmt"

	"megayield/database"
	"megayield/models"
	"megayield/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// VestingRepository implements the VestingRepository interface
type VestingRepository struct {
	q queryable
}

// NewVestingRepository creates a new vesting repository
func NewVestingRepository(db *database.DB) *VestingRepository {
	return &VestingRepository{q: db.Pool}
}

// newVestingRepositoryWithTx creates a new vesting repository with a transaction
func newVestingRepositoryWithTx(tx queryable) *VestingRepository {
	return &VestingRepository{q: tx}
}

const vestingColumns = `id, winner, day_index, total_amount, monthly_amount, installments_paid,
		       total_claimed, last_claim_time, created_at`

// Create inserts a new position
func (r *VestingRepository) Create(ctx context.Context, position *models.VestingPosition) error {
	query := `
		INSERT INTO vesting_positions
		(winner, day_index, total_amount, monthly_amount, installments_paid, total_claimed, last_claim_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		position.Winner.Hex(),
		position.DayIndex,
		position.TotalAmount,
		position.MonthlyAmount,
		position.InstallmentsPaid,
		position.TotalClaimed,
		position.LastClaimTime,
	).Scan(&position.ID, &position.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("day %d already has a vesting position: %w", position.DayIndex, service.ErrVestingAlreadyConfigured)
	}
	if err != nil {
		return fmt.Errorf("failed to create vesting position for day %d: %w", position.DayIndex, err)
	}
	return nil
}

// GetByID retrieves a position
func (r *VestingRepository) GetByID(ctx context.Context, id int64) (*models.VestingPosition, error) {
	query := `SELECT ` + vestingColumns + ` FROM vesting_positions WHERE id = $1`

	position, err := scanVestingPosition(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vesting position %d: %w", id, err)
	}
	return position, nil
}

// GetByIDForUpdate retrieves a position with a row lock
func (r *VestingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.VestingPosition, error) {
	query := `SELECT ` + vestingColumns + ` FROM vesting_positions WHERE id = $1 FOR UPDATE`

	position, err := scanVestingPosition(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vesting position %d for update: %w", id, err)
	}
	return position, nil
}

// GetByDay retrieves the position funded by a day's jackpot
func (r *VestingRepository) GetByDay(ctx context.Context, dayIndex int64) (*models.VestingPosition, error) {
	query := `SELECT ` + vestingColumns + ` FROM vesting_positions WHERE day_index = $1`

	position, err := scanVestingPosition(r.q.QueryRow(ctx, query, dayIndex))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vesting position for day %d: %w", dayIndex, err)
	}
	return position, nil
}

// GetByWinner lists a winner's positions, newest first
func (r *VestingRepository) GetByWinner(ctx context.Context, winner common.Address) ([]*models.VestingPosition, error) {
	query := `SELECT ` + vestingColumns + `
		FROM vesting_positions
		WHERE winner = $1
		ORDER BY id DESC`

	rows, err := r.q.Query(ctx, query, winner.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to query vesting positions of %s: %w", winner.Hex(), err)
	}
	defer rows.Close()

	var positions []*models.VestingPosition
	for rows.Next() {
		position, err := scanVestingPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vesting position: %w", err)
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vesting positions: %w", err)
	}

	return positions, nil
}

// Update persists the claim counters of a position
func (r *VestingRepository) Update(ctx context.Context, position *models.VestingPosition) error {
	query := `
		UPDATE vesting_positions
		SET installments_paid = $2,
		    total_claimed = $3,
		    last_claim_time = $4
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query,
		position.ID,
		position.InstallmentsPaid,
		position.TotalClaimed,
		position.LastClaimTime,
	)
	if err != nil {
		return fmt.Errorf("failed to update vesting position %d: %w", position.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("vesting position %d not found", position.ID)
	}
	return nil
}

// CreateClaim records a paid installment
func (r *VestingRepository) CreateClaim(ctx context.Context, claim *models.VestingClaim) error {
	query := `
		INSERT INTO vesting_claims (position_id, winner, installment_index, amount, claimed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		claim.PositionID,
		claim.Winner.Hex(),
		claim.InstallmentIndex,
		claim.Amount,
		claim.ClaimedAt,
	).Scan(&claim.ID)
	if err != nil {
		return fmt.Errorf("failed to record installment %d of position %d: %w", claim.InstallmentIndex, claim.PositionID, err)
	}
	return nil
}

// GetClaims lists the claims of a position in installment order
func (r *VestingRepository) GetClaims(ctx context.Context, positionID int64) ([]*models.VestingClaim, error) {
	query := `
		SELECT id, position_id, winner, installment_index, amount, claimed_at
		FROM vesting_claims
		WHERE position_id = $1
		ORDER BY installment_index ASC
	`

	rows, err := r.q.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims of position %d: %w", positionID, err)
	}
	defer rows.Close()

	var claims []*models.VestingClaim
	for rows.Next() {
		var c models.VestingClaim
		var winner string
		if err := rows.Scan(&c.ID, &c.PositionID, &winner, &c.InstallmentIndex, &c.Amount, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vesting claim: %w", err)
		}
		c.Winner = common.HexToAddress(winner)
		claims = append(claims, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vesting claims: %w", err)
	}

	return claims, nil
}

func scanVestingPosition(row pgx.Row) (*models.VestingPosition, error) {
	var p models.VestingPosition
	var winner string
	err := row.Scan(
		&p.ID,
		&winner,
		&p.DayIndex,
		&p.TotalAmount,
		&p.MonthlyAmount,
		&p.InstallmentsPaid,
		&p.TotalClaimed,
		&p.LastClaimTime,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Winner = common.HexToAddress(winner)
	return &p, nil
}

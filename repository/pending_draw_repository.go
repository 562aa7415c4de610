package repository

import (
	"context"
	"fmt"
	"time"

	"megayield/database"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// PendingDrawRepository implements the PendingDrawRepository interface.
// Request ids are stored in a BIGINT column with their uint64 bits preserved.
type PendingDrawRepository struct {
	q queryable
}

// NewPendingDrawRepository creates a new pending draw repository
func NewPendingDrawRepository(db *database.DB) *PendingDrawRepository {
	return &PendingDrawRepository{q: db.Pool}
}

// newPendingDrawRepositoryWithTx creates a new pending draw repository with a transaction
func newPendingDrawRepositoryWithTx(tx queryable) *PendingDrawRepository {
	return &PendingDrawRepository{q: tx}
}

const pendingDrawColumns = `request_id, day_index, status, caller_entropy, fee_paid, requested_at, resolved_at`

// Create stores a new pending request
func (r *PendingDrawRepository) Create(ctx context.Context, draw *models.PendingDraw) error {
	query := `
		INSERT INTO pending_draws (request_id, day_index, status, caller_entropy, fee_paid, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.Exec(ctx, query,
		int64(draw.RequestID),
		draw.DayIndex,
		draw.Status,
		draw.CallerEntropy.Hex(),
		draw.FeePaid,
		draw.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pending draw %d for day %d: %w", draw.RequestID, draw.DayIndex, err)
	}
	return nil
}

// GetByRequestID retrieves a request by oracle id
func (r *PendingDrawRepository) GetByRequestID(ctx context.Context, requestID uint64) (*models.PendingDraw, error) {
	query := `SELECT ` + pendingDrawColumns + ` FROM pending_draws WHERE request_id = $1`

	draw, err := scanPendingDraw(r.q.QueryRow(ctx, query, int64(requestID)))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending draw %d: %w", requestID, err)
	}
	return draw, nil
}

// GetByRequestIDForUpdate retrieves a request by oracle id with a row lock
func (r *PendingDrawRepository) GetByRequestIDForUpdate(ctx context.Context, requestID uint64) (*models.PendingDraw, error) {
	query := `SELECT ` + pendingDrawColumns + ` FROM pending_draws WHERE request_id = $1 FOR UPDATE`

	draw, err := scanPendingDraw(r.q.QueryRow(ctx, query, int64(requestID)))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending draw %d for update: %w", requestID, err)
	}
	return draw, nil
}

// GetActiveForDay returns the pending request for a day
func (r *PendingDrawRepository) GetActiveForDay(ctx context.Context, dayIndex int64) (*models.PendingDraw, error) {
	query := `SELECT ` + pendingDrawColumns + `
		FROM pending_draws
		WHERE day_index = $1 AND status = 'pending'`

	draw, err := scanPendingDraw(r.q.QueryRow(ctx, query, dayIndex))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active draw for day %d: %w", dayIndex, err)
	}
	return draw, nil
}

// UpdateStatus resolves a pending request
func (r *PendingDrawRepository) UpdateStatus(ctx context.Context, requestID uint64, status models.PendingDrawStatus, resolvedAt time.Time) error {
	query := `
		UPDATE pending_draws
		SET status = $2, resolved_at = $3
		WHERE request_id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, int64(requestID), status, resolvedAt)
	if err != nil {
		return fmt.Errorf("failed to update pending draw %d: %w", requestID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("pending draw %d is not pending", requestID)
	}
	return nil
}

// ExpireForDay marks every pending request of a day as expired
func (r *PendingDrawRepository) ExpireForDay(ctx context.Context, dayIndex int64, at time.Time) (int64, error) {
	query := `
		UPDATE pending_draws
		SET status = 'expired', resolved_at = $2
		WHERE day_index = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, dayIndex, at)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending draws of day %d: %w", dayIndex, err)
	}
	return result.RowsAffected(), nil
}

func scanPendingDraw(row pgx.Row) (*models.PendingDraw, error) {
	var draw models.PendingDraw
	var requestID int64
	var entropy string
	err := row.Scan(
		&requestID,
		&draw.DayIndex,
		&draw.Status,
		&entropy,
		&draw.FeePaid,
		&draw.RequestedAt,
		&draw.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	draw.RequestID = uint64(requestID)
	draw.CallerEntropy = common.HexToHash(entropy)
	return &draw, nil
}

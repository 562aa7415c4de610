package repository

import (
	"context"
	"fmt"

	"megayield/database"
	"megayield/models"
	"megayield/service"

	"github.com/jackc/pgx/v5"
)

// VaultRepository implements the VaultRepository interface
type VaultRepository struct {
	q queryable
}

// NewVaultRepository creates a new vault repository
func NewVaultRepository(db *database.DB) *VaultRepository {
	return &VaultRepository{q: db.Pool}
}

// newVaultRepositoryWithTx creates a new vault repository with a transaction
func newVaultRepositoryWithTx(tx queryable) *VaultRepository {
	return &VaultRepository{q: tx}
}

// Deposit adds principal to a position's vault account, creating it if needed
func (r *VaultRepository) Deposit(ctx context.Context, positionID int64, amount int64) error {
	query := `
		INSERT INTO vault_positions (position_id, principal, balance)
		VALUES ($1, $2, $2)
		ON CONFLICT (position_id)
		DO UPDATE SET principal = vault_positions.principal + EXCLUDED.principal,
		              balance = vault_positions.balance + EXCLUDED.balance,
		              updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, positionID, amount); err != nil {
		return fmt.Errorf("failed to deposit %d into vault for position %d: %w", amount, positionID, err)
	}
	return nil
}

// Withdraw removes amount from a position's balance
func (r *VaultRepository) Withdraw(ctx context.Context, positionID int64, amount int64) error {
	query := `
		UPDATE vault_positions
		SET balance = balance - $2,
		    withdrawn_total = withdrawn_total + $2,
		    updated_at = NOW()
		WHERE position_id = $1 AND balance >= $2
	`

	result, err := r.q.Exec(ctx, query, positionID, amount)
	if err != nil {
		return fmt.Errorf("failed to withdraw %d from vault for position %d: %w", amount, positionID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("position %d cannot cover %d: %w", positionID, amount, service.ErrVaultInsufficientFunds)
	}
	return nil
}

// Get retrieves a position's vault account
func (r *VaultRepository) Get(ctx context.Context, positionID int64) (*models.VaultPosition, error) {
	query := `
		SELECT position_id, principal, balance, accrued_yield, withdrawn_total, updated_at
		FROM vault_positions
		WHERE position_id = $1
	`

	var v models.VaultPosition
	err := r.q.QueryRow(ctx, query, positionID).Scan(
		&v.PositionID,
		&v.Principal,
		&v.Balance,
		&v.AccruedYield,
		&v.WithdrawnTotal,
		&v.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault position %d: %w", positionID, err)
	}
	return &v, nil
}

// GetOpen returns every vault account with a positive balance
func (r *VaultRepository) GetOpen(ctx context.Context) ([]*models.VaultPosition, error) {
	query := `
		SELECT position_id, principal, balance, accrued_yield, withdrawn_total, updated_at
		FROM vault_positions
		WHERE balance > 0
		ORDER BY position_id ASC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open vault positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.VaultPosition
	for rows.Next() {
		var v models.VaultPosition
		if err := rows.Scan(&v.PositionID, &v.Principal, &v.Balance, &v.AccruedYield, &v.WithdrawnTotal, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vault position: %w", err)
		}
		positions = append(positions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault positions: %w", err)
	}

	return positions, nil
}

// AccrueYield grows a position's balance by amount
func (r *VaultRepository) AccrueYield(ctx context.Context, positionID int64, amount int64) error {
	query := `
		UPDATE vault_positions
		SET balance = balance + $2,
		    accrued_yield = accrued_yield + $2,
		    updated_at = NOW()
		WHERE position_id = $1
	`

	result, err := r.q.Exec(ctx, query, positionID, amount)
	if err != nil {
		return fmt.Errorf("failed to accrue yield for position %d: %w", positionID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("vault position %d not found", positionID)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"megayield/database"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// SettingsRepository implements the SettingsRepository interface
type SettingsRepository struct {
	q queryable
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{q: db.Pool}
}

// newSettingsRepositoryWithTx creates a new settings repository with a transaction
func newSettingsRepositoryWithTx(tx queryable) *SettingsRepository {
	return &SettingsRepository{q: tx}
}

// GetOrCreateForUpdate locks the settings row, creating it on first use
func (r *SettingsRepository) GetOrCreateForUpdate(ctx context.Context, defaultTicketPrice int64) (*models.LotterySettings, error) {
	insert := `
		INSERT INTO lottery_settings (id, current_day, ticket_price)
		VALUES (1, 0, $1)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, insert, defaultTicketPrice); err != nil {
		return nil, fmt.Errorf("failed to initialize lottery settings: %w", err)
	}

	query := `
		SELECT current_day, ticket_price, vesting_address, updated_at
		FROM lottery_settings
		WHERE id = 1
		FOR UPDATE
	`

	settings, err := scanSettings(r.q.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to lock lottery settings: %w", err)
	}
	return settings, nil
}

// Get returns the settings without locking
func (r *SettingsRepository) Get(ctx context.Context) (*models.LotterySettings, error) {
	query := `
		SELECT current_day, ticket_price, vesting_address, updated_at
		FROM lottery_settings
		WHERE id = 1
	`

	settings, err := scanSettings(r.q.QueryRow(ctx, query))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lottery settings: %w", err)
	}
	return settings, nil
}

// UpdateCurrentDay moves the current day pointer
func (r *SettingsRepository) UpdateCurrentDay(ctx context.Context, dayIndex int64) error {
	query := `
		UPDATE lottery_settings
		SET current_day = $1, updated_at = NOW()
		WHERE id = 1
	`

	result, err := r.q.Exec(ctx, query, dayIndex)
	if err != nil {
		return fmt.Errorf("failed to update current day to %d: %w", dayIndex, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("lottery settings not initialized")
	}
	return nil
}

// UpdateTicketPrice sets the price of one ticket
func (r *SettingsRepository) UpdateTicketPrice(ctx context.Context, price int64) error {
	query := `
		UPDATE lottery_settings
		SET ticket_price = $1, updated_at = NOW()
		WHERE id = 1
	`

	result, err := r.q.Exec(ctx, query, price)
	if err != nil {
		return fmt.Errorf("failed to update ticket price: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("lottery settings not initialized")
	}
	return nil
}

// SetVestingAddress stores the vesting address only if none is set
func (r *SettingsRepository) SetVestingAddress(ctx context.Context, address common.Address) (bool, error) {
	query := `
		UPDATE lottery_settings
		SET vesting_address = $1, updated_at = NOW()
		WHERE id = 1 AND vesting_address IS NULL
	`

	result, err := r.q.Exec(ctx, query, address.Hex())
	if err != nil {
		return false, fmt.Errorf("failed to set vesting address: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func scanSettings(row pgx.Row) (*models.LotterySettings, error) {
	var settings models.LotterySettings
	var vesting *string
	if err := row.Scan(
		&settings.CurrentDay,
		&settings.TicketPrice,
		&vesting,
		&settings.UpdatedAt,
	); err != nil {
		return nil, err
	}
	settings.VestingAddress = addressPtr(vesting)
	return &settings, nil
}

// BootstrapSettings creates the settings row on first start and returns it
func BootstrapSettings(ctx context.Context, db *database.DB, defaultTicketPrice int64) (*models.LotterySettings, error) {
	var settings *models.LotterySettings
	err := db.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		settings, err = newSettingsRepositoryWithTx(tx).GetOrCreateForUpdate(ctx, defaultTicketPrice)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

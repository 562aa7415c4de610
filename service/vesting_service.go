package service

import (
	"context"
	"fmt"
	"time"

	"megayield/events"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// VestingManager is the vesting ledger. Settlement initializes positions through
// VestingLedger inside its own unit of work; winners claim through VestingService.
type VestingManager struct {
	uowFactory UnitOfWorkFactory
	vault      YieldVault
	custody    common.Address
	now        func() time.Time
}

// NewVestingManager creates a vesting ledger whose funds sit at custody until deposited in vault
func NewVestingManager(uowFactory UnitOfWorkFactory, vault YieldVault, custody common.Address) *VestingManager {
	return &VestingManager{
		uowFactory: uowFactory,
		vault:      vault,
		custody:    custody,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for claim gating
func (m *VestingManager) SetClock(now func() time.Time) {
	m.now = now
}

// CustodyAddress returns the account that receives vesting funds at settlement
func (m *VestingManager) CustodyAddress() common.Address {
	return m.custody
}

// Initialize creates a position for a drawn day and deposits its funds in the vault
func (m *VestingManager) Initialize(ctx context.Context, uow UnitOfWork, winner common.Address, dayIndex int64, totalAmount int64) (*models.VestingPosition, error) {
	if totalAmount <= 0 {
		return nil, fmt.Errorf("vesting total must be positive: %w", ErrInvalidAmount)
	}

	positions := uow.VestingRepository()
	existing, err := positions.GetByDay(ctx, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing position: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("day %d already vests as position %d: %w", dayIndex, existing.ID, ErrVestingAlreadyConfigured)
	}

	position := &models.VestingPosition{
		Winner:        winner,
		DayIndex:      dayIndex,
		TotalAmount:   totalAmount,
		MonthlyAmount: totalAmount / models.VestingInstallments,
		LastClaimTime: m.now(),
	}
	if err := positions.Create(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to create vesting position: %w", err)
	}

	if err := m.vault.Deposit(ctx, uow, position.ID, totalAmount); err != nil {
		return nil, fmt.Errorf("failed to deposit vesting funds: %w", err)
	}

	log.WithFields(log.Fields{
		"positionID": position.ID,
		"winner":     winner.Hex(),
		"dayIndex":   dayIndex,
		"total":      totalAmount,
		"monthly":    position.MonthlyAmount,
	}).Info("Vesting position initialized")

	return position, nil
}

// Claim pays the next due installment. The last installment drains the vault
// balance, so any rounding remainder and accrued yield go to the winner.
func (m *VestingManager) Claim(ctx context.Context, caller common.Address, positionID int64) (*models.VestingClaim, error) {
	uow := m.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	positions := uow.VestingRepository()
	position, err := positions.GetByIDForUpdate(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vesting position: %w", err)
	}
	if position == nil {
		return nil, fmt.Errorf("position %d: %w", positionID, ErrPositionNotFound)
	}
	if caller != position.Winner {
		return nil, fmt.Errorf("%s does not own position %d: %w", caller.Hex(), positionID, ErrUnauthorizedCaller)
	}
	if position.IsExhausted() {
		return nil, fmt.Errorf("position %d: %w", positionID, ErrScheduleExhausted)
	}

	now := m.now()
	if !position.CanClaimAt(now) {
		return nil, fmt.Errorf("next installment of position %d is due at %s: %w",
			positionID, position.NextClaimTime().Format(time.RFC3339), ErrClaimTooSoon)
	}

	// Funds move vault to custody, then custody to winner
	if err := uow.TokenRepository().LockAccounts(ctx, m.vault.Address(), m.custody, position.Winner); err != nil {
		return nil, fmt.Errorf("failed to lock claim accounts: %w", err)
	}

	amount := position.MonthlyAmount
	if position.IsFinalInstallment() {
		amount, err = m.vault.WithdrawAll(ctx, uow, positionID, m.custody)
	} else {
		err = m.vault.Withdraw(ctx, uow, positionID, amount, m.custody)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw installment: %w", err)
	}

	if err := uow.TokenRepository().Transfer(ctx, m.custody, position.Winner, amount, models.TransferKindVestingClaim); err != nil {
		return nil, fmt.Errorf("failed to pay installment: %w", err)
	}

	position.InstallmentsPaid++
	position.TotalClaimed += amount
	position.LastClaimTime = now
	if err := positions.Update(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to update vesting position: %w", err)
	}

	claim := &models.VestingClaim{
		PositionID:       positionID,
		Winner:           position.Winner,
		InstallmentIndex: position.InstallmentsPaid,
		Amount:           amount,
		ClaimedAt:        now,
	}
	if err := positions.CreateClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to record claim: %w", err)
	}

	uow.EventBus().Publish(events.VestingClaimedEvent{
		Winner:           position.Winner,
		PositionID:       positionID,
		InstallmentIndex: claim.InstallmentIndex,
		Amount:           amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"positionID":  positionID,
		"winner":      position.Winner.Hex(),
		"installment": claim.InstallmentIndex,
		"amount":      amount,
	}).Info("Vesting installment claimed")

	return claim, nil
}

// GetPosition returns a position
func (m *VestingManager) GetPosition(ctx context.Context, positionID int64) (*models.VestingPosition, error) {
	uow := m.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	position, err := uow.VestingRepository().GetByID(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vesting position: %w", err)
	}
	if position == nil {
		return nil, fmt.Errorf("position %d: %w", positionID, ErrPositionNotFound)
	}
	return position, nil
}

// ListPositions returns every position owned by winner
func (m *VestingManager) ListPositions(ctx context.Context, winner common.Address) ([]*models.VestingPosition, error) {
	uow := m.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	positions, err := uow.VestingRepository().GetByWinner(ctx, winner)
	if err != nil {
		return nil, fmt.Errorf("failed to list vesting positions: %w", err)
	}
	return positions, nil
}

// Schedule returns the remaining schedule of a position
func (m *VestingManager) Schedule(ctx context.Context, positionID int64) (*models.VestingSchedule, error) {
	uow := m.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	position, err := uow.VestingRepository().GetByID(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vesting position: %w", err)
	}
	if position == nil {
		return nil, fmt.Errorf("position %d: %w", positionID, ErrPositionNotFound)
	}

	balance, err := m.vault.Balance(ctx, uow, positionID)
	if err != nil {
		return nil, err
	}

	schedule := &models.VestingSchedule{
		Position:              position,
		VaultBalance:          balance,
		RemainingInstallments: position.RemainingInstallments(),
	}
	if !position.IsExhausted() {
		next := position.NextClaimTime()
		schedule.NextClaimAt = &next
	}
	return schedule, nil
}

// VaultBalance returns the vault balance backing a position
func (m *VestingManager) VaultBalance(ctx context.Context, positionID int64) (int64, error) {
	uow := m.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return m.vault.Balance(ctx, uow, positionID)
}

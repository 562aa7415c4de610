package service

import (
	"context"
	"fmt"

	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
)

// PooledYieldVault keeps every vesting position's deposit in one custody account
// and tracks each position's share in vault_positions
type PooledYieldVault struct {
	vaultAddress     common.Address
	depositorAddress common.Address
}

// NewPooledYieldVault creates a vault holding funds at vaultAddress, fed from depositorAddress
func NewPooledYieldVault(vaultAddress, depositorAddress common.Address) *PooledYieldVault {
	return &PooledYieldVault{
		vaultAddress:     vaultAddress,
		depositorAddress: depositorAddress,
	}
}

// Deposit moves amount from the depositor into the vault for a position
func (v *PooledYieldVault) Deposit(ctx context.Context, uow UnitOfWork, positionID int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit must be positive: %w", ErrInvalidAmount)
	}

	if err := uow.TokenRepository().Transfer(ctx, v.depositorAddress, v.vaultAddress, amount, models.TransferKindVaultDeposit); err != nil {
		return fmt.Errorf("failed to move deposit into vault: %w", err)
	}
	if err := uow.VaultRepository().Deposit(ctx, positionID, amount); err != nil {
		return fmt.Errorf("failed to credit vault position: %w", err)
	}
	return nil
}

// Withdraw moves amount out of the vault to recipient
func (v *PooledYieldVault) Withdraw(ctx context.Context, uow UnitOfWork, positionID int64, amount int64, recipient common.Address) error {
	if amount < 0 {
		return fmt.Errorf("withdrawal cannot be negative: %w", ErrInvalidAmount)
	}

	if err := uow.VaultRepository().Withdraw(ctx, positionID, amount); err != nil {
		return fmt.Errorf("failed to debit vault position: %w", err)
	}
	if err := uow.TokenRepository().Transfer(ctx, v.vaultAddress, recipient, amount, models.TransferKindVaultWithdrawal); err != nil {
		return fmt.Errorf("failed to move withdrawal out of vault: %w", err)
	}
	return nil
}

// WithdrawAll moves a position's whole balance to recipient
func (v *PooledYieldVault) WithdrawAll(ctx context.Context, uow UnitOfWork, positionID int64, recipient common.Address) (int64, error) {
	balance, err := v.Balance(ctx, uow, positionID)
	if err != nil {
		return 0, err
	}
	if err := v.Withdraw(ctx, uow, positionID, balance, recipient); err != nil {
		return 0, err
	}
	return balance, nil
}

// Balance returns a position's vault balance
func (v *PooledYieldVault) Balance(ctx context.Context, uow UnitOfWork, positionID int64) (int64, error) {
	account, err := uow.VaultRepository().Get(ctx, positionID)
	if err != nil {
		return 0, fmt.Errorf("failed to get vault position: %w", err)
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

// Address returns the custody account holding vault funds
func (v *PooledYieldVault) Address() common.Address {
	return v.vaultAddress
}

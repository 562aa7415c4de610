package service

import (
	"context"
	"fmt"

	"megayield/config"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type tokenService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
}

// NewTokenService creates a new token service
func NewTokenService(uowFactory UnitOfWorkFactory, cfg *config.Config) TokenService {
	return &tokenService{
		uowFactory: uowFactory,
		cfg:        cfg,
	}
}

func (s *tokenService) Account(ctx context.Context, address common.Address) (*models.TokenAccount, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	balance, err := uow.TokenRepository().BalanceOf(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &models.TokenAccount{
		Address: address,
		Balance: balance,
		Display: models.FormatAmount(balance),
	}, nil
}

func (s *tokenService) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	allowance, err := uow.TokenRepository().Allowance(ctx, owner, spender)
	if err != nil {
		return 0, fmt.Errorf("failed to get allowance: %w", err)
	}
	return allowance, nil
}

func (s *tokenService) Approve(ctx context.Context, owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("allowance cannot be negative: %w", ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	if err := uow.TokenRepository().Approve(ctx, owner, spender, amount); err != nil {
		return fmt.Errorf("failed to approve: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"amount":  amount,
	}).Debug("Allowance set")
	return nil
}

func (s *tokenService) Faucet(ctx context.Context, to common.Address, amount int64) error {
	if s.cfg.IsProduction() {
		return ErrFaucetDisabled
	}
	if amount <= 0 {
		return fmt.Errorf("faucet amount must be positive: %w", ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	if err := uow.TokenRepository().Mint(ctx, to, amount, models.TransferKindMint); err != nil {
		return fmt.Errorf("failed to mint: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"to":     to.Hex(),
		"amount": models.FormatAmount(amount),
	}).Info("Faucet minted tokens")
	return nil
}

func (s *tokenService) History(ctx context.Context, address common.Address, limit int) ([]*models.TokenTransfer, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	transfers, err := uow.TokenRepository().GetTransfers(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfers: %w", err)
	}
	return transfers, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"megayield/config"
	"megayield/events"
	"megayield/models"

	log "github.com/sirupsen/logrus"
)

type yieldService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
}

// NewYieldService creates a new yield service
func NewYieldService(uowFactory UnitOfWorkFactory, cfg *config.Config) YieldService {
	return &yieldService{
		uowFactory: uowFactory,
		cfg:        cfg,
	}
}

// RunDailyAccrual grows every open vault position by one day of yield and mints the
// matching tokens into the vault custody account
func (s *yieldService) RunDailyAccrual(ctx context.Context, date time.Time) (*models.YieldRun, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	existing, err := uow.YieldRunRepository().GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing yield run: %w", err)
	}
	if existing != nil {
		log.WithField("runDate", existing.RunDate.Format("2006-01-02")).Debug("Yield already accrued for date")
		return existing, nil
	}

	positions, err := uow.VaultRepository().GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open vault positions: %w", err)
	}

	var total, maxYield int64
	affected := 0
	for _, position := range positions {
		yield := position.YieldFor(s.cfg.VaultAPYBps)
		if yield <= 0 {
			continue
		}

		if err := uow.VaultRepository().AccrueYield(ctx, position.PositionID, yield); err != nil {
			return nil, fmt.Errorf("failed to accrue yield: %w", err)
		}
		if err := uow.TokenRepository().Mint(ctx, s.cfg.VaultAddress, yield, models.TransferKindYieldAccrual); err != nil {
			return nil, fmt.Errorf("failed to mint yield: %w", err)
		}

		total += yield
		affected++
		if yield > maxYield {
			maxYield = yield
		}
	}

	run := &models.YieldRun{
		RunDate:           date,
		TotalYieldAccrued: total,
		PositionsAffected: affected,
		ExecutionSummary: map[string]interface{}{
			"apy_bps":        s.cfg.VaultAPYBps,
			"positions_open": len(positions),
			"max_yield":      maxYield,
			"vault_address":  s.cfg.VaultAddress.Hex(),
		},
	}
	if err := uow.YieldRunRepository().Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record yield run: %w", err)
	}

	uow.EventBus().Publish(events.YieldAccruedEvent{
		RunDate:           run.RunDate.Format("2006-01-02"),
		TotalYieldAccrued: total,
		PositionsAffected: affected,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"runDate":   run.RunDate.Format("2006-01-02"),
		"total":     models.FormatAmount(total),
		"positions": affected,
	}).Info("Daily vault yield accrued")

	return run, nil
}

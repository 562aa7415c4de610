package repository

import (
	"context"
	"errors"
	"fmt"

	"megayield/database"
	"megayield/events"
	"megayield/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	settingsRepo     service.SettingsRepository
	dayRepo          service.DayRepository
	pendingDrawRepo  service.PendingDrawRepository
	purchaseRepo     service.TicketPurchaseRepository
	vestingRepo      service.VestingRepository
	vaultRepo        service.VaultRepository
	tokenRepo        service.TokenRepository
	yieldRunRepo     service.YieldRunRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.settingsRepo = newSettingsRepositoryWithTx(tx)
	u.dayRepo = newDayRepositoryWithTx(tx)
	u.pendingDrawRepo = newPendingDrawRepositoryWithTx(tx)
	u.purchaseRepo = newTicketPurchaseRepositoryWithTx(tx)
	u.vestingRepo = newVestingRepositoryWithTx(tx)
	u.vaultRepo = newVaultRepositoryWithTx(tx)
	u.tokenRepo = newTokenRepositoryWithTx(tx)
	u.yieldRunRepo = newYieldRunRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Events only leave the unit of work once the data they describe is durable
	if u.transactionalBus != nil {
		if err := u.transactionalBus.Flush(u.ctx); err != nil {
			log.WithError(err).Error("Failed to flush events after commit")
		}
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// SettingsRepository returns the settings repository for this unit of work
func (u *unitOfWork) SettingsRepository() service.SettingsRepository {
	if u.settingsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.settingsRepo
}

// DayRepository returns the day repository for this unit of work
func (u *unitOfWork) DayRepository() service.DayRepository {
	if u.dayRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.dayRepo
}

// PendingDrawRepository returns the pending draw repository for this unit of work
func (u *unitOfWork) PendingDrawRepository() service.PendingDrawRepository {
	if u.pendingDrawRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.pendingDrawRepo
}

// TicketPurchaseRepository returns the ticket purchase repository for this unit of work
func (u *unitOfWork) TicketPurchaseRepository() service.TicketPurchaseRepository {
	if u.purchaseRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.purchaseRepo
}

// VestingRepository returns the vesting repository for this unit of work
func (u *unitOfWork) VestingRepository() service.VestingRepository {
	if u.vestingRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.vestingRepo
}

// VaultRepository returns the vault repository for this unit of work
func (u *unitOfWork) VaultRepository() service.VaultRepository {
	if u.vaultRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.vaultRepo
}

// TokenRepository returns the token repository for this unit of work
func (u *unitOfWork) TokenRepository() service.TokenRepository {
	if u.tokenRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.tokenRepo
}

// YieldRunRepository returns the yield run repository for this unit of work
func (u *unitOfWork) YieldRunRepository() service.YieldRunRepository {
	if u.yieldRunRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.yieldRunRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}

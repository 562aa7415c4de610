package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"megayield/events"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var vaultAddr = common.HexToAddress("0x000000000000000000000000000000000000a017")

type vestingFixture struct {
	ctx       context.Context
	now       time.Time
	custody   common.Address
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	positions *MockVestingRepository
	tokens    *MockTokenRepository
	bus       *MockEventPublisher
	vault     *MockYieldVault
	manager   *VestingManager
}

func newVestingFixture() *vestingFixture {
	f := &vestingFixture{
		ctx:       context.Background(),
		now:       time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		custody:   common.HexToAddress("0x0000000000000000000000000000000000007e57"),
		factory:   new(MockUnitOfWorkFactory),
		uow:       new(MockUnitOfWork),
		positions: new(MockVestingRepository),
		tokens:    new(MockTokenRepository),
		bus:       new(MockEventPublisher),
		vault:     new(MockYieldVault),
	}
	f.uow.SetRepositories(f.positions, f.tokens, f.bus)
	f.manager = NewVestingManager(f.factory, f.vault, f.custody)
	f.manager.SetClock(func() time.Time { return f.now })
	return f
}

func (f *vestingFixture) expectUnitOfWork() {
	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", f.ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
}

// position returns a 2,975,000 position with paid installments already claimed
func (f *vestingFixture) position(paid int, lastClaim time.Time) *models.VestingPosition {
	return &models.VestingPosition{
		ID:               11,
		Winner:           buyerB,
		DayIndex:         testDay,
		TotalAmount:      2_975_000,
		MonthlyAmount:    24_791,
		InstallmentsPaid: paid,
		TotalClaimed:     int64(paid) * 24_791,
		LastClaimTime:    lastClaim,
	}
}

func TestVestingManager_Initialize(t *testing.T) {
	f := newVestingFixture()

	f.positions.On("GetByDay", f.ctx, testDay).Return(nil, nil)
	f.positions.On("Create", f.ctx, mock.MatchedBy(func(p *models.VestingPosition) bool {
		return p.Winner == buyerB &&
			p.TotalAmount == 2_975_000 &&
			p.MonthlyAmount == 24_791 &&
			p.InstallmentsPaid == 0 &&
			p.LastClaimTime.Equal(f.now)
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.VestingPosition).ID = 11
	})
	f.vault.On("Deposit", f.ctx, f.uow, int64(11), int64(2_975_000)).Return(nil)

	position, err := f.manager.Initialize(f.ctx, f.uow, buyerB, testDay, 2_975_000)

	require.NoError(t, err)
	assert.Equal(t, int64(11), position.ID)
	assert.Equal(t, f.custody, f.manager.CustodyAddress())
	f.positions.AssertExpectations(t)
	f.vault.AssertExpectations(t)
}

func TestVestingManager_Initialize_OncePerDay(t *testing.T) {
	f := newVestingFixture()
	f.positions.On("GetByDay", f.ctx, testDay).Return(f.position(0, f.now), nil)

	_, err := f.manager.Initialize(f.ctx, f.uow, buyerB, testDay, 2_975_000)

	assert.ErrorIs(t, err, ErrVestingAlreadyConfigured)
	f.positions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.vault.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVestingManager_Initialize_RejectsEmptyAmount(t *testing.T) {
	f := newVestingFixture()

	_, err := f.manager.Initialize(f.ctx, f.uow, buyerB, testDay, 0)

	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestVestingManager_Claim_FirstInstallment(t *testing.T) {
	f := newVestingFixture()
	f.expectUnitOfWork()
	f.uow.On("Commit").Return(nil)

	f.positions.On("GetByIDForUpdate", f.ctx, int64(11)).Return(f.position(0, f.now.Add(-models.ClaimInterval)), nil)
	f.vault.On("Withdraw", f.ctx, f.uow, int64(11), int64(24_791), f.custody).Return(nil)
	f.vault.On("Address").Return(vaultAddr)
	f.tokens.On("LockAccounts", f.ctx, []common.Address{vaultAddr, f.custody, buyerB}).Return(nil)
	f.tokens.On("Transfer", f.ctx, f.custody, buyerB, int64(24_791), models.TransferKindVestingClaim).Return(nil)
	f.positions.On("Update", f.ctx, mock.MatchedBy(func(p *models.VestingPosition) bool {
		return p.InstallmentsPaid == 1 && p.TotalClaimed == 24_791 && p.LastClaimTime.Equal(f.now)
	})).Return(nil)
	f.positions.On("CreateClaim", f.ctx, mock.MatchedBy(func(c *models.VestingClaim) bool {
		return c.PositionID == 11 && c.InstallmentIndex == 1 && c.Amount == 24_791
	})).Return(nil)
	f.bus.On("Publish", events.VestingClaimedEvent{
		Winner:           buyerB,
		PositionID:       11,
		InstallmentIndex: 1,
		Amount:           24_791,
	}).Return()

	claim, err := f.manager.Claim(f.ctx, buyerB, 11)

	require.NoError(t, err)
	assert.Equal(t, int64(24_791), claim.Amount)
	assert.Equal(t, 1, claim.InstallmentIndex)
	f.vault.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
	f.positions.AssertExpectations(t)
	f.bus.AssertExpectations(t)
}

func TestVestingManager_Claim_FinalInstallmentDrainsVault(t *testing.T) {
	f := newVestingFixture()
	f.expectUnitOfWork()
	f.uow.On("Commit").Return(nil)

	f.positions.On("GetByIDForUpdate", f.ctx, int64(11)).Return(f.position(119, f.now.Add(-45*24*time.Hour)), nil)
	// 2,975,000 - 119 * 24,791 leaves 24,871 in the vault
	f.vault.On("WithdrawAll", f.ctx, f.uow, int64(11), f.custody).Return(int64(24_871), nil)
	f.vault.On("Address").Return(vaultAddr)
	f.tokens.On("LockAccounts", f.ctx, []common.Address{vaultAddr, f.custody, buyerB}).Return(nil)
	f.tokens.On("Transfer", f.ctx, f.custody, buyerB, int64(24_871), models.TransferKindVestingClaim).Return(nil)
	f.positions.On("Update", f.ctx, mock.MatchedBy(func(p *models.VestingPosition) bool {
		return p.InstallmentsPaid == 120 && p.TotalClaimed == 2_975_000 && p.IsExhausted()
	})).Return(nil)
	f.positions.On("CreateClaim", f.ctx, mock.Anything).Return(nil)
	f.bus.On("Publish", mock.Anything).Return()

	claim, err := f.manager.Claim(f.ctx, buyerB, 11)

	require.NoError(t, err)
	assert.Equal(t, int64(24_871), claim.Amount)
	assert.Equal(t, 120, claim.InstallmentIndex)
	f.vault.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.positions.AssertExpectations(t)
}

func TestVestingManager_Claim_Rejections(t *testing.T) {
	testCases := []struct {
		name     string
		caller   common.Address
		position func(f *vestingFixture) *models.VestingPosition
		wantErr  error
	}{
		{
			name:     "position not found",
			caller:   buyerB,
			position: func(f *vestingFixture) *models.VestingPosition { return nil },
			wantErr:  ErrPositionNotFound,
		},
		{
			name:     "not the winner",
			caller:   buyerA,
			position: func(f *vestingFixture) *models.VestingPosition { return f.position(0, f.now.Add(-models.ClaimInterval)) },
			wantErr:  ErrUnauthorizedCaller,
		},
		{
			name:     "one second early",
			caller:   buyerB,
			position: func(f *vestingFixture) *models.VestingPosition { return f.position(3, f.now.Add(-models.ClaimInterval+time.Second)) },
			wantErr:  ErrClaimTooSoon,
		},
		{
			name:     "right after settlement",
			caller:   buyerB,
			position: func(f *vestingFixture) *models.VestingPosition { return f.position(0, f.now) },
			wantErr:  ErrClaimTooSoon,
		},
		{
			name:     "schedule exhausted",
			caller:   buyerB,
			position: func(f *vestingFixture) *models.VestingPosition { return f.position(120, f.now.Add(-365*24*time.Hour)) },
			wantErr:  ErrScheduleExhausted,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newVestingFixture()
			f.expectUnitOfWork()
			position := tc.position(f)
			if position == nil {
				f.positions.On("GetByIDForUpdate", f.ctx, int64(11)).Return(nil, nil)
			} else {
				f.positions.On("GetByIDForUpdate", f.ctx, int64(11)).Return(position, nil)
			}

			_, err := f.manager.Claim(f.ctx, tc.caller, 11)

			assert.ErrorIs(t, err, tc.wantErr)
			f.uow.AssertNotCalled(t, "Commit")
			f.tokens.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestVestingManager_Claim_VaultFailureRollsBack(t *testing.T) {
	f := newVestingFixture()
	f.expectUnitOfWork()

	f.positions.On("GetByIDForUpdate", f.ctx, int64(11)).Return(f.position(5, f.now.Add(-models.ClaimInterval)), nil)
	f.vault.On("Address").Return(vaultAddr)
	f.tokens.On("LockAccounts", f.ctx, []common.Address{vaultAddr, f.custody, buyerB}).Return(nil)
	f.vault.On("Withdraw", f.ctx, f.uow, int64(11), int64(24_791), f.custody).
		Return(fmt.Errorf("position 11 cannot cover: %w", ErrVaultInsufficientFunds))

	_, err := f.manager.Claim(f.ctx, buyerB, 11)

	assert.ErrorIs(t, err, ErrVaultInsufficientFunds)
	f.uow.AssertCalled(t, "Rollback")
	f.uow.AssertNotCalled(t, "Commit")
	f.positions.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.bus.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestVestingManager_Schedule(t *testing.T) {
	f := newVestingFixture()
	f.expectUnitOfWork()

	lastClaim := f.now.Add(-10 * 24 * time.Hour)
	f.positions.On("GetByID", f.ctx, int64(11)).Return(f.position(4, lastClaim), nil)
	f.vault.On("Balance", f.ctx, f.uow, int64(11)).Return(int64(2_900_000), nil)

	schedule, err := f.manager.Schedule(f.ctx, 11)

	require.NoError(t, err)
	assert.Equal(t, 116, schedule.RemainingInstallments)
	assert.Equal(t, int64(2_900_000), schedule.VaultBalance)
	require.NotNil(t, schedule.NextClaimAt)
	assert.True(t, schedule.NextClaimAt.Equal(lastClaim.Add(models.ClaimInterval)))
}

func TestVestingManager_GetPosition_NotFound(t *testing.T) {
	f := newVestingFixture()
	f.expectUnitOfWork()
	f.positions.On("GetByID", f.ctx, int64(404)).Return(nil, nil)

	_, err := f.manager.GetPosition(f.ctx, 404)

	assert.ErrorIs(t, err, ErrPositionNotFound)
}

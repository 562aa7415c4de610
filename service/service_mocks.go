package service

import (
	"context"
	"time"

	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockLotteryService is a mock implementation of LotteryService
type MockLotteryService struct {
	mock.Mock
}

func (m *MockLotteryService) BuyTicket(ctx context.Context, buyer common.Address, tickets int64, referrer common.Address) (*models.TicketPurchase, error) {
	args := m.Called(ctx, buyer, tickets, referrer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TicketPurchase), args.Error(1)
}

func (m *MockLotteryService) RequestDraw(ctx context.Context, caller common.Address, callerEntropy common.Hash, fee int64) (*models.PendingDraw, error) {
	args := m.Called(ctx, caller, callerEntropy, fee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingDraw), args.Error(1)
}

func (m *MockLotteryService) OnRandomValue(ctx context.Context, caller common.Address, requestID uint64, randomValue common.Hash) (*models.DrawResult, error) {
	args := m.Called(ctx, caller, requestID, randomValue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrawResult), args.Error(1)
}

func (m *MockLotteryService) CurrentDayInfo(ctx context.Context) (*models.DayInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DayInfo), args.Error(1)
}

func (m *MockLotteryService) GetDay(ctx context.Context, dayIndex int64) (*models.LotteryDay, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LotteryDay), args.Error(1)
}

func (m *MockLotteryService) GetBuyers(ctx context.Context, dayIndex int64) ([]*models.DayBuyer, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DayBuyer), args.Error(1)
}

func (m *MockLotteryService) GetPendingDraw(ctx context.Context, requestID uint64) (*models.PendingDraw, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingDraw), args.Error(1)
}

func (m *MockLotteryService) RequiredFee(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLotteryService) SetVestingContract(ctx context.Context, caller common.Address, address common.Address) error {
	args := m.Called(ctx, caller, address)
	return args.Error(0)
}

func (m *MockLotteryService) SetTicketPrice(ctx context.Context, caller common.Address, price int64) error {
	args := m.Called(ctx, caller, price)
	return args.Error(0)
}

func (m *MockLotteryService) EmergencyWithdraw(ctx context.Context, caller common.Address, to common.Address, amount int64) error {
	args := m.Called(ctx, caller, to, amount)
	return args.Error(0)
}

// MockVestingService is a mock implementation of VestingService
type MockVestingService struct {
	mock.Mock
}

func (m *MockVestingService) Claim(ctx context.Context, caller common.Address, positionID int64) (*models.VestingClaim, error) {
	args := m.Called(ctx, caller, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VestingClaim), args.Error(1)
}

func (m *MockVestingService) GetPosition(ctx context.Context, positionID int64) (*models.VestingPosition, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VestingPosition), args.Error(1)
}

func (m *MockVestingService) ListPositions(ctx context.Context, winner common.Address) ([]*models.VestingPosition, error) {
	args := m.Called(ctx, winner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VestingPosition), args.Error(1)
}

func (m *MockVestingService) Schedule(ctx context.Context, positionID int64) (*models.VestingSchedule, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VestingSchedule), args.Error(1)
}

func (m *MockVestingService) VaultBalance(ctx context.Context, positionID int64) (int64, error) {
	args := m.Called(ctx, positionID)
	return args.Get(0).(int64), args.Error(1)
}

// MockTokenService is a mock implementation of TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Account(ctx context.Context, address common.Address) (*models.TokenAccount, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenAccount), args.Error(1)
}

func (m *MockTokenService) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	args := m.Called(ctx, owner, spender)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenService) Approve(ctx context.Context, owner, spender common.Address, amount int64) error {
	args := m.Called(ctx, owner, spender, amount)
	return args.Error(0)
}

func (m *MockTokenService) Faucet(ctx context.Context, to common.Address, amount int64) error {
	args := m.Called(ctx, to, amount)
	return args.Error(0)
}

func (m *MockTokenService) History(ctx context.Context, address common.Address, limit int) ([]*models.TokenTransfer, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TokenTransfer), args.Error(1)
}

// MockYieldService is a mock implementation of YieldService
type MockYieldService struct {
	mock.Mock
}

func (m *MockYieldService) RunDailyAccrual(ctx context.Context, date time.Time) (*models.YieldRun, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.YieldRun), args.Error(1)
}

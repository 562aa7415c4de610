package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"megayield/config"
	"megayield/events"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	buyerA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyerB   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	buyerC   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	referrer = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

// 2025-01-01 is day 20089 with a unix epoch and 24h days
const testDay = int64(20089)

type lotteryFixture struct {
	ctx       context.Context
	now       time.Time
	cfg       *config.Config
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	settings  *MockSettingsRepository
	days      *MockDayRepository
	pending   *MockPendingDrawRepository
	purchases *MockTicketPurchaseRepository
	tokens    *MockTokenRepository
	bus       *MockEventPublisher
	oracle    *MockRandomnessPort
	ledger    *MockVestingLedger
	service   LotteryService
}

func newLotteryFixture() *lotteryFixture {
	f := &lotteryFixture{
		ctx:       context.Background(),
		now:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		cfg:       config.NewTestConfig(),
		factory:   new(MockUnitOfWorkFactory),
		uow:       new(MockUnitOfWork),
		settings:  new(MockSettingsRepository),
		days:      new(MockDayRepository),
		pending:   new(MockPendingDrawRepository),
		purchases: new(MockTicketPurchaseRepository),
		tokens:    new(MockTokenRepository),
		bus:       new(MockEventPublisher),
		oracle:    new(MockRandomnessPort),
		ledger:    new(MockVestingLedger),
	}
	f.uow.SetRepositories(f.settings, f.days, f.pending, f.purchases, f.tokens, f.bus)
	f.service = NewLotteryServiceWithClock(f.factory, f.oracle, f.ledger, f.cfg, func() time.Time { return f.now })
	return f
}

// expectUnitOfWork sets up a transaction that may or may not be committed
func (f *lotteryFixture) expectUnitOfWork() {
	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", f.ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
}

func (f *lotteryFixture) expectSettings(settings *models.LotterySettings) {
	f.settings.On("GetOrCreateForUpdate", f.ctx, f.cfg.TicketPrice).Return(settings, nil)
}

func (f *lotteryFixture) configuredSettings() *models.LotterySettings {
	vesting := f.cfg.VestingAddress
	return &models.LotterySettings{
		CurrentDay:     testDay,
		TicketPrice:    f.cfg.TicketPrice,
		VestingAddress: &vesting,
	}
}

// capturePublished records every event published to the unit of work's bus
func (f *lotteryFixture) capturePublished() *[]events.Event {
	published := &[]events.Event{}
	f.bus.On("Publish", mock.Anything).Run(func(args mock.Arguments) {
		*published = append(*published, args.Get(0).(events.Event))
	}).Return()
	return published
}

func TestLotteryService_BuyTicket_WithReferrer(t *testing.T) {
	f := newLotteryFixture()
	f.expectUnitOfWork()
	f.uow.On("Commit").Return(nil)
	f.expectSettings(f.configuredSettings())

	lottery := f.cfg.LotteryAddress
	f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay}, nil)
	f.tokens.On("TransferFrom", f.ctx, lottery, buyerA, lottery, int64(2_000_000), models.TransferKindTicketPurchase).Return(nil)
	f.tokens.On("Transfer", f.ctx, lottery, referrer, int64(600_000), models.TransferKindReferralPayout).Return(nil)
	f.days.On("IncrementJackpot", f.ctx, testDay, int64(1_400_000)).Return(int64(1_400_000), nil)
	f.days.On("AddBuyer", f.ctx, testDay, buyerA, int64(2)).Return(true, nil)
	f.purchases.On("Create", f.ctx, mock.MatchedBy(func(p *models.TicketPurchase) bool {
		return p.Buyer == buyerA &&
			p.Tickets == 2 &&
			p.TotalCost == 2_000_000 &&
			p.ReferralShare == 600_000 &&
			p.JackpotDelta == 1_400_000 &&
			p.Referrer != nil && *p.Referrer == referrer
	})).Return(nil)
	published := f.capturePublished()

	purchase, err := f.service.BuyTicket(f.ctx, buyerA, 2, referrer)

	require.NoError(t, err)
	assert.True(t, purchase.NewBuyer)
	assert.Equal(t, testDay, purchase.DayIndex)
	require.Len(t, *published, 1)
	event := (*published)[0].(events.TicketPurchasedEvent)
	assert.Equal(t, buyerA, event.Buyer)
	assert.Equal(t, int64(2), event.Amount)
	assert.Equal(t, referrer, *event.Referrer)
	assert.Equal(t, int64(1_400_000), event.JackpotAfter)

	f.factory.AssertExpectations(t)
	f.uow.AssertExpectations(t)
	f.days.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
	f.purchases.AssertExpectations(t)
}

func TestLotteryService_BuyTicket_InvalidReferrers(t *testing.T) {
	testCases := []struct {
		name     string
		referrer common.Address
	}{
		{"self referral", buyerA},
		{"no referrer", common.Address{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLotteryFixture()
			f.expectUnitOfWork()
			f.uow.On("Commit").Return(nil)
			f.expectSettings(f.configuredSettings())

			lottery := f.cfg.LotteryAddress
			f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 5_000_000}, nil)
			f.tokens.On("TransferFrom", f.ctx, lottery, buyerA, lottery, int64(1_000_000), models.TransferKindTicketPurchase).Return(nil)
			f.days.On("IncrementJackpot", f.ctx, testDay, int64(1_000_000)).Return(int64(6_000_000), nil)
			f.days.On("AddBuyer", f.ctx, testDay, buyerA, int64(1)).Return(false, nil)
			f.purchases.On("Create", f.ctx, mock.MatchedBy(func(p *models.TicketPurchase) bool {
				return p.ReferralShare == 0 && p.JackpotDelta == 1_000_000 && p.Referrer == nil
			})).Return(nil)
			f.capturePublished()

			purchase, err := f.service.BuyTicket(f.ctx, buyerA, 1, tc.referrer)

			require.NoError(t, err)
			assert.False(t, purchase.NewBuyer)
			f.tokens.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.days.AssertExpectations(t)
		})
	}
}

func TestLotteryService_BuyTicket_InvalidTicketCount(t *testing.T) {
	f := newLotteryFixture()

	_, err := f.service.BuyTicket(f.ctx, buyerA, 0, common.Address{})

	assert.ErrorIs(t, err, ErrInvalidAmount)
	f.factory.AssertNotCalled(t, "Create")
}

func TestLotteryService_BuyTicket_VestingNotConfigured(t *testing.T) {
	f := newLotteryFixture()
	f.expectUnitOfWork()
	f.expectSettings(&models.LotterySettings{CurrentDay: testDay, TicketPrice: f.cfg.TicketPrice})

	_, err := f.service.BuyTicket(f.ctx, buyerA, 1, common.Address{})

	assert.ErrorIs(t, err, ErrVestingNotConfigured)
	f.uow.AssertNotCalled(t, "Commit")
	f.tokens.AssertNotCalled(t, "TransferFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLotteryService_BuyTicket_InsufficientAllowanceRollsBack(t *testing.T) {
	f := newLotteryFixture()
	f.expectUnitOfWork()
	f.expectSettings(f.configuredSettings())

	lottery := f.cfg.LotteryAddress
	f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay}, nil)
	f.tokens.On("TransferFrom", f.ctx, lottery, buyerA, lottery, int64(3_000_000), models.TransferKindTicketPurchase).
		Return(fmt.Errorf("buyer has not approved: %w", ErrInsufficientAllowance))

	_, err := f.service.BuyTicket(f.ctx, buyerA, 3, referrer)

	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	f.uow.AssertCalled(t, "Rollback")
	f.uow.AssertNotCalled(t, "Commit")
	f.days.AssertNotCalled(t, "IncrementJackpot", mock.Anything, mock.Anything, mock.Anything)
	f.bus.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestLotteryService_BuyTicket_RollsOverWithCarry(t *testing.T) {
	f := newLotteryFixture()
	f.expectUnitOfWork()
	f.uow.On("Commit").Return(nil)

	settings := f.configuredSettings()
	settings.CurrentDay = testDay - 1
	f.expectSettings(settings)

	previous := &models.LotteryDay{DayIndex: testDay - 1, Jackpot: 500_000}
	f.days.On("GetForUpdate", f.ctx, testDay-1).Return(previous, nil)
	f.days.On("Update", f.ctx, mock.MatchedBy(func(d *models.LotteryDay) bool {
		return d.DayIndex == testDay-1 && d.Jackpot == 0
	})).Return(nil)
	f.pending.On("ExpireForDay", f.ctx, testDay-1, f.now).Return(int64(1), nil)
	f.days.On("Create", f.ctx, mock.MatchedBy(func(d *models.LotteryDay) bool {
		return d.DayIndex == testDay && d.Jackpot == 500_000 && d.CarriedIn == 500_000
	})).Return(nil)
	f.settings.On("UpdateCurrentDay", f.ctx, testDay).Return(nil)

	lottery := f.cfg.LotteryAddress
	f.tokens.On("TransferFrom", f.ctx, lottery, buyerB, lottery, int64(1_000_000), models.TransferKindTicketPurchase).Return(nil)
	f.days.On("IncrementJackpot", f.ctx, testDay, int64(1_000_000)).Return(int64(1_500_000), nil)
	f.days.On("AddBuyer", f.ctx, testDay, buyerB, int64(1)).Return(true, nil)
	f.purchases.On("Create", f.ctx, mock.Anything).Return(nil)
	published := f.capturePublished()

	purchase, err := f.service.BuyTicket(f.ctx, buyerB, 1, common.Address{})

	require.NoError(t, err)
	assert.Equal(t, testDay, purchase.DayIndex)
	assert.Equal(t, testDay, settings.CurrentDay)
	require.Len(t, *published, 1)
	assert.Equal(t, int64(1_500_000), (*published)[0].(events.TicketPurchasedEvent).JackpotAfter)
	f.days.AssertExpectations(t)
	f.pending.AssertExpectations(t)
	f.settings.AssertExpectations(t)
}

func TestLotteryService_RequestDraw(t *testing.T) {
	entropy := common.HexToHash("0xfeed")
	fee := int64(100)

	t.Run("operator only", func(t *testing.T) {
		f := newLotteryFixture()

		_, err := f.service.RequestDraw(f.ctx, buyerA, entropy, fee)

		assert.ErrorIs(t, err, ErrUnauthorizedCaller)
		f.factory.AssertNotCalled(t, "Create")
	})

	t.Run("no tickets", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())
		f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay}, nil)
		f.days.On("CountBuyers", f.ctx, testDay).Return(0, nil)

		_, err := f.service.RequestDraw(f.ctx, f.cfg.OperatorAddress, entropy, fee)

		assert.ErrorIs(t, err, ErrNoTicketsForDay)
		f.oracle.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already drawn", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())
		f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Drawn: true}, nil)

		_, err := f.service.RequestDraw(f.ctx, f.cfg.OperatorAddress, entropy, fee)

		assert.ErrorIs(t, err, ErrAlreadyDrawnForDay)
	})

	t.Run("request still pending", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())
		f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 1_000_000}, nil)
		f.days.On("CountBuyers", f.ctx, testDay).Return(1, nil)
		f.pending.On("GetActiveForDay", f.ctx, testDay).Return(&models.PendingDraw{
			RequestID:   7,
			DayIndex:    testDay,
			Status:      models.PendingDrawStatusPending,
			RequestedAt: f.now.Add(-10 * time.Minute),
		}, nil)

		_, err := f.service.RequestDraw(f.ctx, f.cfg.OperatorAddress, entropy, fee)

		assert.ErrorIs(t, err, ErrDrawRequestPending)
		f.oracle.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale request is expired and replaced", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.uow.On("Commit").Return(nil)
		f.expectSettings(f.configuredSettings())
		f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 1_000_000}, nil)
		f.days.On("CountBuyers", f.ctx, testDay).Return(1, nil)
		f.pending.On("GetActiveForDay", f.ctx, testDay).Return(&models.PendingDraw{
			RequestID:   7,
			DayIndex:    testDay,
			Status:      models.PendingDrawStatusPending,
			RequestedAt: f.now.Add(-f.cfg.DrawRequestTimeout),
		}, nil)
		f.pending.On("UpdateStatus", f.ctx, uint64(7), models.PendingDrawStatusExpired, f.now).Return(nil)
		f.oracle.On("Request", f.ctx, entropy, fee).Return(uint64(8), nil)
		f.pending.On("Create", f.ctx, mock.MatchedBy(func(d *models.PendingDraw) bool {
			return d.RequestID == 8 && d.DayIndex == testDay && d.IsPending()
		})).Return(nil)
		published := f.capturePublished()

		draw, err := f.service.RequestDraw(f.ctx, f.cfg.OperatorAddress, entropy, fee)

		require.NoError(t, err)
		assert.Equal(t, uint64(8), draw.RequestID)
		require.Len(t, *published, 1)
		assert.Equal(t, events.RandomNumberRequestedEvent{RequestID: 8, DayIndex: testDay}, (*published)[0])
		f.pending.AssertExpectations(t)
	})

	t.Run("oracle failure rolls back", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())
		f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 1_000_000}, nil)
		f.days.On("CountBuyers", f.ctx, testDay).Return(2, nil)
		f.pending.On("GetActiveForDay", f.ctx, testDay).Return(nil, nil)
		f.oracle.On("Request", f.ctx, entropy, int64(1)).Return(uint64(0), fmt.Errorf("fee too low: %w", ErrInsufficientFee))

		_, err := f.service.RequestDraw(f.ctx, f.cfg.OperatorAddress, entropy, 1)

		assert.ErrorIs(t, err, ErrInsufficientFee)
		f.uow.AssertNotCalled(t, "Commit")
		f.pending.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestLotteryService_RequestDraw_ReportsUnrecordedRequest(t *testing.T) {
	entropy := common.HexToHash("0xfeed")
	fee := int64(100)

	testCases := []struct {
		name      string
		createErr error
		commitErr error
	}{
		{name: "store fails", createErr: errors.New("unique violation")},
		{name: "commit fails", commitErr: errors.New("connection reset")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hook := logtest.NewGlobal()
			defer hook.Reset()

			f := newLotteryFixture()
			f.expectUnitOfWork()
			f.expectSettings(f.configuredSettings())
			f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 1_000_000}, nil)
			f.days.On("CountBuyers", f.ctx, testDay).Return(1, nil)
			f.pending.On("GetActiveForDay", f.ctx, testDay).Return(nil, nil)
			f.oracle.On("Request", f.ctx, entropy, fee).Return(uint64(31), nil)
			f.pending.On("Create", f.ctx, mock.Anything).Return(tc.createErr)
			if tc.createErr == nil {
				f.bus.On("Publish", mock.Anything).Return()
				f.uow.On("Commit").Return(tc.commitErr)
			}

			_, err := f.service.RequestDraw(f.ctx, f.cfg.OperatorAddress, entropy, fee)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "request 31")
			f.oracle.AssertCalled(t, "Request", f.ctx, entropy, fee)

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.ErrorLevel, entry.Level)
			assert.Equal(t, uint64(31), entry.Data["requestID"])
			assert.Equal(t, fee, entry.Data["feePaid"])
		})
	}
}

func TestLotteryService_OnRandomValue_SettlesDay(t *testing.T) {
	f := newLotteryFixture()
	f.expectUnitOfWork()
	f.uow.On("Commit").Return(nil)
	settings := f.configuredSettings()
	f.expectSettings(settings)

	provider := f.cfg.OracleProviderAddress
	f.oracle.On("Provider").Return(provider)
	f.pending.On("GetByRequestIDForUpdate", f.ctx, uint64(42)).Return(&models.PendingDraw{
		RequestID: 42,
		DayIndex:  testDay,
		Status:    models.PendingDrawStatusPending,
	}, nil)
	f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 3_000_000}, nil)
	f.days.On("GetBuyers", f.ctx, testDay).Return([]*models.DayBuyer{
		{DayIndex: testDay, Position: 1, Buyer: buyerA, Tickets: 1},
		{DayIndex: testDay, Position: 2, Buyer: buyerB, Tickets: 1},
		{DayIndex: testDay, Position: 3, Buyer: buyerC, Tickets: 1},
	}, nil)

	lottery := f.cfg.LotteryAddress
	f.tokens.On("LockAccounts", f.ctx, []common.Address{lottery, buyerB, *settings.VestingAddress, f.cfg.VaultAddress}).Return(nil)
	f.tokens.On("Transfer", f.ctx, lottery, buyerB, int64(25_000), models.TransferKindFirstPayment).Return(nil)
	f.tokens.On("Transfer", f.ctx, lottery, *settings.VestingAddress, int64(2_975_000), models.TransferKindVestingFunding).Return(nil)
	f.ledger.On("Initialize", f.ctx, f.uow, buyerB, testDay, int64(2_975_000)).Return(&models.VestingPosition{
		ID:            11,
		Winner:        buyerB,
		DayIndex:      testDay,
		TotalAmount:   2_975_000,
		MonthlyAmount: 24_791,
	}, nil)
	f.days.On("Update", f.ctx, mock.MatchedBy(func(d *models.LotteryDay) bool {
		return d.Drawn && d.Jackpot == 0 && d.PrizeAmount == 3_000_000 && *d.Winner == buyerB && *d.WinnerIndex == 1
	})).Return(nil)
	f.days.On("ClearBuyers", f.ctx, testDay).Return(nil)
	f.pending.On("UpdateStatus", f.ctx, uint64(42), models.PendingDrawStatusFulfilled, f.now).Return(nil)
	published := f.capturePublished()

	result, err := f.service.OnRandomValue(f.ctx, provider, 42, common.BigToHash(big.NewInt(7)))

	require.NoError(t, err)
	assert.Equal(t, buyerB, result.Winner)
	assert.Equal(t, int64(1), result.WinnerIndex)
	assert.Equal(t, 3, result.BuyerCount)
	assert.Equal(t, int64(25_000), result.FirstPayment)
	assert.Equal(t, int64(2_975_000), result.VestingAmount)
	assert.Equal(t, int64(24_791), result.MonthlyAmount)
	assert.Equal(t, int64(11), result.VestingPositionID)

	require.Len(t, *published, 3)
	assert.Equal(t, events.WinnerDrawnEvent{DayIndex: testDay, Winner: buyerB, JackpotAmount: 3_000_000}, (*published)[0])
	assert.Equal(t, events.FirstPaymentClaimedEvent{Winner: buyerB, Amount: 25_000}, (*published)[1])
	assert.Equal(t, events.VestingInitializedEvent{
		Winner:        buyerB,
		PositionID:    11,
		TotalAmount:   2_975_000,
		MonthlyAmount: 24_791,
	}, (*published)[2])

	f.tokens.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.days.AssertExpectations(t)
	f.pending.AssertExpectations(t)
}

func TestLotteryService_OnRandomValue_Rejections(t *testing.T) {
	randomValue := common.BigToHash(big.NewInt(7))

	t.Run("unregistered provider", func(t *testing.T) {
		f := newLotteryFixture()
		f.oracle.On("Provider").Return(f.cfg.OracleProviderAddress)

		_, err := f.service.OnRandomValue(f.ctx, buyerA, 42, randomValue)

		assert.ErrorIs(t, err, ErrUnauthorizedCallback)
		f.factory.AssertNotCalled(t, "Create")
	})

	t.Run("unknown request", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())
		f.oracle.On("Provider").Return(f.cfg.OracleProviderAddress)
		f.pending.On("GetByRequestIDForUpdate", f.ctx, uint64(99)).Return(nil, nil)

		_, err := f.service.OnRandomValue(f.ctx, f.cfg.OracleProviderAddress, 99, randomValue)

		assert.ErrorIs(t, err, ErrUnknownRequestID)
		f.uow.AssertNotCalled(t, "Commit")
	})

	t.Run("request already consumed", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())
		f.oracle.On("Provider").Return(f.cfg.OracleProviderAddress)
		f.pending.On("GetByRequestIDForUpdate", f.ctx, uint64(42)).Return(&models.PendingDraw{
			RequestID: 42,
			DayIndex:  testDay,
			Status:    models.PendingDrawStatusFulfilled,
		}, nil)

		_, err := f.service.OnRandomValue(f.ctx, f.cfg.OracleProviderAddress, 42, randomValue)

		assert.ErrorIs(t, err, ErrUnknownRequestID)
		f.days.AssertNotCalled(t, "GetForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("day already drawn", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())
		f.oracle.On("Provider").Return(f.cfg.OracleProviderAddress)
		f.pending.On("GetByRequestIDForUpdate", f.ctx, uint64(42)).Return(&models.PendingDraw{
			RequestID: 42,
			DayIndex:  testDay,
			Status:    models.PendingDrawStatusPending,
		}, nil)
		f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Drawn: true}, nil)

		_, err := f.service.OnRandomValue(f.ctx, f.cfg.OracleProviderAddress, 42, randomValue)

		assert.ErrorIs(t, err, ErrAlreadyDrawnForDay)
	})

	t.Run("failed vesting transfer publishes nothing", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		settings := f.configuredSettings()
		f.expectSettings(settings)
		f.oracle.On("Provider").Return(f.cfg.OracleProviderAddress)
		f.pending.On("GetByRequestIDForUpdate", f.ctx, uint64(42)).Return(&models.PendingDraw{
			RequestID: 42,
			DayIndex:  testDay,
			Status:    models.PendingDrawStatusPending,
		}, nil)
		f.days.On("GetForUpdate", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 1_200_000}, nil)
		f.days.On("GetBuyers", f.ctx, testDay).Return([]*models.DayBuyer{{DayIndex: testDay, Position: 1, Buyer: buyerA}}, nil)

		lottery := f.cfg.LotteryAddress
		f.tokens.On("LockAccounts", f.ctx, mock.Anything).Return(nil)
		f.tokens.On("Transfer", f.ctx, lottery, buyerA, int64(10_000), models.TransferKindFirstPayment).Return(nil)
		f.tokens.On("Transfer", f.ctx, lottery, *settings.VestingAddress, int64(1_190_000), models.TransferKindVestingFunding).
			Return(fmt.Errorf("lottery cannot cover: %w", ErrInsufficientBalance))

		_, err := f.service.OnRandomValue(f.ctx, f.cfg.OracleProviderAddress, 42, randomValue)

		assert.ErrorIs(t, err, ErrInsufficientBalance)
		f.uow.AssertCalled(t, "Rollback")
		f.uow.AssertNotCalled(t, "Commit")
		f.bus.AssertNotCalled(t, "Publish", mock.Anything)
		f.ledger.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLotteryService_SetVestingContract(t *testing.T) {
	t.Run("owner only", func(t *testing.T) {
		f := newLotteryFixture()

		err := f.service.SetVestingContract(f.ctx, buyerA, f.cfg.VestingAddress)

		assert.ErrorIs(t, err, ErrUnauthorizedCaller)
	})

	t.Run("only once", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(f.configuredSettings())

		err := f.service.SetVestingContract(f.ctx, f.cfg.OwnerAddress, f.cfg.VestingAddress)

		assert.ErrorIs(t, err, ErrVestingAlreadyConfigured)
	})

	t.Run("must be the vesting ledger", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.expectSettings(&models.LotterySettings{CurrentDay: testDay, TicketPrice: f.cfg.TicketPrice})
		f.ledger.On("CustodyAddress").Return(f.cfg.VestingAddress)

		err := f.service.SetVestingContract(f.ctx, f.cfg.OwnerAddress, buyerC)

		assert.ErrorIs(t, err, ErrInvalidVestingAddress)
		f.settings.AssertNotCalled(t, "SetVestingAddress", mock.Anything, mock.Anything)
	})

	t.Run("configures the ledger", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.uow.On("Commit").Return(nil)
		f.expectSettings(&models.LotterySettings{CurrentDay: testDay, TicketPrice: f.cfg.TicketPrice})
		f.ledger.On("CustodyAddress").Return(f.cfg.VestingAddress)
		f.settings.On("SetVestingAddress", f.ctx, f.cfg.VestingAddress).Return(true, nil)

		err := f.service.SetVestingContract(f.ctx, f.cfg.OwnerAddress, f.cfg.VestingAddress)

		require.NoError(t, err)
		f.settings.AssertExpectations(t)
		f.uow.AssertExpectations(t)
	})
}

func TestLotteryService_SetTicketPrice(t *testing.T) {
	f := newLotteryFixture()

	err := f.service.SetTicketPrice(f.ctx, f.cfg.OwnerAddress, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = f.service.SetTicketPrice(f.ctx, f.cfg.OperatorAddress, 2_000_000)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)

	f.expectUnitOfWork()
	f.uow.On("Commit").Return(nil)
	f.expectSettings(f.configuredSettings())
	f.settings.On("UpdateTicketPrice", f.ctx, int64(2_000_000)).Return(nil)

	err = f.service.SetTicketPrice(f.ctx, f.cfg.OwnerAddress, 2_000_000)

	require.NoError(t, err)
	f.settings.AssertExpectations(t)
}

func TestLotteryService_EmergencyWithdraw(t *testing.T) {
	f := newLotteryFixture()

	err := f.service.EmergencyWithdraw(f.ctx, buyerA, buyerA, 100)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)

	err = f.service.EmergencyWithdraw(f.ctx, f.cfg.OwnerAddress, common.Address{}, 100)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	f.expectUnitOfWork()
	f.uow.On("Commit").Return(nil)
	f.expectSettings(f.configuredSettings())
	f.tokens.On("Transfer", f.ctx, f.cfg.LotteryAddress, buyerC, int64(750_000), models.TransferKindEmergencyWithdraw).Return(nil)

	err = f.service.EmergencyWithdraw(f.ctx, f.cfg.OwnerAddress, buyerC, 750_000)

	require.NoError(t, err)
	f.tokens.AssertExpectations(t)
}

func TestLotteryService_CurrentDayInfo(t *testing.T) {
	t.Run("request pending", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		f.settings.On("Get", f.ctx).Return(f.configuredSettings(), nil)
		f.days.On("Get", f.ctx, testDay).Return(&models.LotteryDay{DayIndex: testDay, Jackpot: 2_100_000}, nil)
		f.days.On("CountBuyers", f.ctx, testDay).Return(2, nil)
		f.pending.On("GetActiveForDay", f.ctx, testDay).Return(&models.PendingDraw{RequestID: 5, Status: models.PendingDrawStatusPending}, nil)

		info, err := f.service.CurrentDayInfo(f.ctx)

		require.NoError(t, err)
		assert.Equal(t, testDay, info.CurrentDay)
		assert.Equal(t, int64(2_100_000), info.Jackpot)
		assert.Equal(t, 2, info.TicketCount)
		assert.Equal(t, models.DayStateRequestPending, info.State)
		require.NotNil(t, info.PendingRequestID)
		assert.Equal(t, uint64(5), *info.PendingRequestID)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), info.StartTime)
		assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), info.EndTime)
	})

	t.Run("stale day projects the carry", func(t *testing.T) {
		f := newLotteryFixture()
		f.expectUnitOfWork()
		settings := f.configuredSettings()
		settings.CurrentDay = testDay - 3
		f.settings.On("Get", f.ctx).Return(settings, nil)
		f.days.On("Get", f.ctx, testDay-3).Return(&models.LotteryDay{DayIndex: testDay - 3, Jackpot: 900_000}, nil)

		info, err := f.service.CurrentDayInfo(f.ctx)

		require.NoError(t, err)
		assert.Equal(t, testDay, info.CurrentDay)
		assert.Equal(t, int64(900_000), info.Jackpot)
		assert.Equal(t, 0, info.TicketCount)
		assert.Equal(t, models.DayStateOpen, info.State)
		f.days.AssertNotCalled(t, "CountBuyers", mock.Anything, mock.Anything)
	})
}

func TestLotteryService_BeginFailure(t *testing.T) {
	f := newLotteryFixture()
	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", f.ctx).Return(errors.New("connection refused"))

	_, err := f.service.BuyTicket(f.ctx, buyerA, 1, common.Address{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}

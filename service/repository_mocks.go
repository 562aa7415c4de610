package service

import (
	"context"
	"time"

	"megayield/events"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetOrCreateForUpdate(ctx context.Context, defaultTicketPrice int64) (*models.LotterySettings, error) {
	args := m.Called(ctx, defaultTicketPrice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LotterySettings), args.Error(1)
}

func (m *MockSettingsRepository) Get(ctx context.Context) (*models.LotterySettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LotterySettings), args.Error(1)
}

func (m *MockSettingsRepository) UpdateCurrentDay(ctx context.Context, dayIndex int64) error {
	args := m.Called(ctx, dayIndex)
	return args.Error(0)
}

func (m *MockSettingsRepository) UpdateTicketPrice(ctx context.Context, price int64) error {
	args := m.Called(ctx, price)
	return args.Error(0)
}

func (m *MockSettingsRepository) SetVestingAddress(ctx context.Context, address common.Address) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

// MockDayRepository is a mock implementation of DayRepository
type MockDayRepository struct {
	mock.Mock
}

func (m *MockDayRepository) Get(ctx context.Context, dayIndex int64) (*models.LotteryDay, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LotteryDay), args.Error(1)
}

func (m *MockDayRepository) GetForUpdate(ctx context.Context, dayIndex int64) (*models.LotteryDay, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LotteryDay), args.Error(1)
}

func (m *MockDayRepository) Create(ctx context.Context, day *models.LotteryDay) error {
	args := m.Called(ctx, day)
	return args.Error(0)
}

func (m *MockDayRepository) IncrementJackpot(ctx context.Context, dayIndex int64, delta int64) (int64, error) {
	args := m.Called(ctx, dayIndex, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDayRepository) Update(ctx context.Context, day *models.LotteryDay) error {
	args := m.Called(ctx, day)
	return args.Error(0)
}

func (m *MockDayRepository) AddBuyer(ctx context.Context, dayIndex int64, buyer common.Address, tickets int64) (bool, error) {
	args := m.Called(ctx, dayIndex, buyer, tickets)
	return args.Bool(0), args.Error(1)
}

func (m *MockDayRepository) GetBuyers(ctx context.Context, dayIndex int64) ([]*models.DayBuyer, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DayBuyer), args.Error(1)
}

func (m *MockDayRepository) CountBuyers(ctx context.Context, dayIndex int64) (int, error) {
	args := m.Called(ctx, dayIndex)
	return args.Int(0), args.Error(1)
}

func (m *MockDayRepository) ClearBuyers(ctx context.Context, dayIndex int64) error {
	args := m.Called(ctx, dayIndex)
	return args.Error(0)
}

// MockPendingDrawRepository is a mock implementation of PendingDrawRepository
type MockPendingDrawRepository struct {
	mock.Mock
}

func (m *MockPendingDrawRepository) Create(ctx context.Context, draw *models.PendingDraw) error {
	args := m.Called(ctx, draw)
	return args.Error(0)
}

func (m *MockPendingDrawRepository) GetByRequestID(ctx context.Context, requestID uint64) (*models.PendingDraw, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingDraw), args.Error(1)
}

func (m *MockPendingDrawRepository) GetByRequestIDForUpdate(ctx context.Context, requestID uint64) (*models.PendingDraw, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingDraw), args.Error(1)
}

func (m *MockPendingDrawRepository) GetActiveForDay(ctx context.Context, dayIndex int64) (*models.PendingDraw, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingDraw), args.Error(1)
}

func (m *MockPendingDrawRepository) UpdateStatus(ctx context.Context, requestID uint64, status models.PendingDrawStatus, resolvedAt time.Time) error {
	args := m.Called(ctx, requestID, status, resolvedAt)
	return args.Error(0)
}

func (m *MockPendingDrawRepository) ExpireForDay(ctx context.Context, dayIndex int64, at time.Time) (int64, error) {
	args := m.Called(ctx, dayIndex, at)
	return args.Get(0).(int64), args.Error(1)
}

// MockTicketPurchaseRepository is a mock implementation of TicketPurchaseRepository
type MockTicketPurchaseRepository struct {
	mock.Mock
}

func (m *MockTicketPurchaseRepository) Create(ctx context.Context, purchase *models.TicketPurchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockTicketPurchaseRepository) GetByDay(ctx context.Context, dayIndex int64) ([]*models.TicketPurchase, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TicketPurchase), args.Error(1)
}

func (m *MockTicketPurchaseRepository) GetByBuyer(ctx context.Context, buyer common.Address, limit int) ([]*models.TicketPurchase, error) {
	args := m.Called(ctx, buyer, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TicketPurchase), args.Error(1)
}

// MockVestingRepository is a mock implementation of VestingRepository
type MockVestingRepository struct {
	mock.Mock
}

func (m *MockVestingRepository) Create(ctx context.Context, position *models.VestingPosition) error {
	args := m.Called(ctx, position)
	return args.Error(0)
}

func (m *MockVestingRepository) GetByID(ctx context.Context, id int64) (*models.VestingPosition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VestingPosition), args.Error(1)
}

func (m *MockVestingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.VestingPosition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VestingPosition), args.Error(1)
}

func (m *MockVestingRepository) GetByDay(ctx context.Context, dayIndex int64) (*models.VestingPosition, error) {
	args := m.Called(ctx, dayIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VestingPosition), args.Error(1)
}

func (m *MockVestingRepository) GetByWinner(ctx context.Context, winner common.Address) ([]*models.VestingPosition, error) {
	args := m.Called(ctx, winner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VestingPosition), args.Error(1)
}

func (m *MockVestingRepository) Update(ctx context.Context, position *models.VestingPosition) error {
	args := m.Called(ctx, position)
	return args.Error(0)
}

func (m *MockVestingRepository) CreateClaim(ctx context.Context, claim *models.VestingClaim) error {
	args := m.Called(ctx, claim)
	return args.Error(0)
}

func (m *MockVestingRepository) GetClaims(ctx context.Context, positionID int64) ([]*models.VestingClaim, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VestingClaim), args.Error(1)
}

// MockVaultRepository is a mock implementation of VaultRepository
type MockVaultRepository struct {
	mock.Mock
}

func (m *MockVaultRepository) Deposit(ctx context.Context, positionID int64, amount int64) error {
	args := m.Called(ctx, positionID, amount)
	return args.Error(0)
}

func (m *MockVaultRepository) Withdraw(ctx context.Context, positionID int64, amount int64) error {
	args := m.Called(ctx, positionID, amount)
	return args.Error(0)
}

func (m *MockVaultRepository) Get(ctx context.Context, positionID int64) (*models.VaultPosition, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultPosition), args.Error(1)
}

func (m *MockVaultRepository) GetOpen(ctx context.Context) ([]*models.VaultPosition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VaultPosition), args.Error(1)
}

func (m *MockVaultRepository) AccrueYield(ctx context.Context, positionID int64, amount int64) error {
	args := m.Called(ctx, positionID, amount)
	return args.Error(0)
}

// MockTokenRepository is a mock implementation of TokenRepository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) BalanceOf(ctx context.Context, address common.Address) (int64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepository) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	args := m.Called(ctx, owner, spender)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepository) Approve(ctx context.Context, owner, spender common.Address, amount int64) error {
	args := m.Called(ctx, owner, spender, amount)
	return args.Error(0)
}

func (m *MockTokenRepository) LockAccounts(ctx context.Context, addresses ...common.Address) error {
	args := m.Called(ctx, addresses)
	return args.Error(0)
}

func (m *MockTokenRepository) Transfer(ctx context.Context, from, to common.Address, amount int64, kind models.TransferKind) error {
	args := m.Called(ctx, from, to, amount, kind)
	return args.Error(0)
}

func (m *MockTokenRepository) TransferFrom(ctx context.Context, spender, from, to common.Address, amount int64, kind models.TransferKind) error {
	args := m.Called(ctx, spender, from, to, amount, kind)
	return args.Error(0)
}

func (m *MockTokenRepository) Mint(ctx context.Context, to common.Address, amount int64, kind models.TransferKind) error {
	args := m.Called(ctx, to, amount, kind)
	return args.Error(0)
}

func (m *MockTokenRepository) GetTransfers(ctx context.Context, address common.Address, limit int) ([]*models.TokenTransfer, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TokenTransfer), args.Error(1)
}

// MockYieldRunRepository is a mock implementation of YieldRunRepository
type MockYieldRunRepository struct {
	mock.Mock
}

func (m *MockYieldRunRepository) GetByDate(ctx context.Context, date time.Time) (*models.YieldRun, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.YieldRun), args.Error(1)
}

func (m *MockYieldRunRepository) Create(ctx context.Context, run *models.YieldRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockYieldRunRepository) GetLatest(ctx context.Context) (*models.YieldRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.YieldRun), args.Error(1)
}

// MockRandomnessPort is a mock implementation of RandomnessPort
type MockRandomnessPort struct {
	mock.Mock
}

func (m *MockRandomnessPort) RequiredFee(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRandomnessPort) Request(ctx context.Context, callerEntropy common.Hash, fee int64) (uint64, error) {
	args := m.Called(ctx, callerEntropy, fee)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRandomnessPort) Provider() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

func (m *MockRandomnessPort) OnCallback(handler RandomnessCallback) {
	m.Called(handler)
}

// MockVestingLedger is a mock implementation of VestingLedger
type MockVestingLedger struct {
	mock.Mock
}

func (m *MockVestingLedger) Initialize(ctx context.Context, uow UnitOfWork, winner common.Address, dayIndex int64, totalAmount int64) (*models.VestingPosition, error) {
	args := m.Called(ctx, uow, winner, dayIndex, totalAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VestingPosition), args.Error(1)
}

func (m *MockVestingLedger) CustodyAddress() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// MockYieldVault is a mock implementation of YieldVault
type MockYieldVault struct {
	mock.Mock
}

func (m *MockYieldVault) Deposit(ctx context.Context, uow UnitOfWork, positionID int64, amount int64) error {
	args := m.Called(ctx, uow, positionID, amount)
	return args.Error(0)
}

func (m *MockYieldVault) Withdraw(ctx context.Context, uow UnitOfWork, positionID int64, amount int64, recipient common.Address) error {
	args := m.Called(ctx, uow, positionID, amount, recipient)
	return args.Error(0)
}

func (m *MockYieldVault) WithdrawAll(ctx context.Context, uow UnitOfWork, positionID int64, recipient common.Address) (int64, error) {
	args := m.Called(ctx, uow, positionID, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockYieldVault) Balance(ctx context.Context, uow UnitOfWork, positionID int64) (int64, error) {
	args := m.Called(ctx, uow, positionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockYieldVault) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Begin, Commit and Rollback
// are recorded; repository getters return whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock

	settingsRepo    SettingsRepository
	dayRepo         DayRepository
	pendingDrawRepo PendingDrawRepository
	purchaseRepo    TicketPurchaseRepository
	vestingRepo     VestingRepository
	vaultRepo       VaultRepository
	tokenRepo       TokenRepository
	yieldRunRepo    YieldRunRepository
	eventBus        EventPublisher
}

// SetRepositories installs mock repositories by type
func (m *MockUnitOfWork) SetRepositories(repos ...interface{}) {
	for _, repo := range repos {
		switch r := repo.(type) {
		case *MockSettingsRepository:
			m.settingsRepo = r
		case *MockDayRepository:
			m.dayRepo = r
		case *MockPendingDrawRepository:
			m.pendingDrawRepo = r
		case *MockTicketPurchaseRepository:
			m.purchaseRepo = r
		case *MockVestingRepository:
			m.vestingRepo = r
		case *MockVaultRepository:
			m.vaultRepo = r
		case *MockTokenRepository:
			m.tokenRepo = r
		case *MockYieldRunRepository:
			m.yieldRunRepo = r
		case *MockEventPublisher:
			m.eventBus = r
		default:
			panic("unsupported mock repository type")
		}
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) SettingsRepository() SettingsRepository             { return m.settingsRepo }
func (m *MockUnitOfWork) DayRepository() DayRepository                       { return m.dayRepo }
func (m *MockUnitOfWork) PendingDrawRepository() PendingDrawRepository       { return m.pendingDrawRepo }
func (m *MockUnitOfWork) TicketPurchaseRepository() TicketPurchaseRepository { return m.purchaseRepo }
func (m *MockUnitOfWork) VestingRepository() VestingRepository               { return m.vestingRepo }
func (m *MockUnitOfWork) VaultRepository() VaultRepository                   { return m.vaultRepo }
func (m *MockUnitOfWork) TokenRepository() TokenRepository                   { return m.tokenRepo }
func (m *MockUnitOfWork) YieldRunRepository() YieldRunRepository             { return m.yieldRunRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                           { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

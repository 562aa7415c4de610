package service

import (
	"context"
	"time"

	"megayield/events"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
)

// SettingsRepository defines the interface for the lottery settings singleton
type SettingsRepository interface {
	// GetOrCreateForUpdate locks the settings row, creating it with the given ticket price on first use
	GetOrCreateForUpdate(ctx context.Context, defaultTicketPrice int64) (*models.LotterySettings, error)

	// Get returns the settings without locking, nil if they were never created
	Get(ctx context.Context) (*models.LotterySettings, error)

	// UpdateCurrentDay moves the current day pointer
	UpdateCurrentDay(ctx context.Context, dayIndex int64) error

	// UpdateTicketPrice sets the price of one ticket
	UpdateTicketPrice(ctx context.Context, price int64) error

	// SetVestingAddress stores the vesting address if none is set yet.
	// Returns false if an address was already configured.
	SetVestingAddress(ctx context.Context, address common.Address) (bool, error)
}

// DayRepository defines the interface for lottery day data access
type DayRepository interface {
	// Get retrieves a day by index
	Get(ctx context.Context, dayIndex int64) (*models.LotteryDay, error)

	// GetForUpdate retrieves a day by index with a row lock
	GetForUpdate(ctx context.Context, dayIndex int64) (*models.LotteryDay, error)

	// Create inserts a new day record
	Create(ctx context.Context, day *models.LotteryDay) error

	// IncrementJackpot adds delta to the day's jackpot and returns the new jackpot
	IncrementJackpot(ctx context.Context, dayIndex int64, delta int64) (int64, error)

	// Update persists jackpot and settlement fields
	Update(ctx context.Context, day *models.LotteryDay) error

	// AddBuyer adds a buyer to the day's unique set or bumps their ticket count.
	// Returns true if the buyer was not in the set before.
	AddBuyer(ctx context.Context, dayIndex int64, buyer common.Address, tickets int64) (bool, error)

	// GetBuyers returns the day's unique buyers in first-purchase order
	GetBuyers(ctx context.Context, dayIndex int64) ([]*models.DayBuyer, error)

	// CountBuyers returns the size of the day's unique buyer set
	CountBuyers(ctx context.Context, dayIndex int64) (int, error)

	// ClearBuyers empties the day's unique buyer set
	ClearBuyers(ctx context.Context, dayIndex int64) error
}

// PendingDrawRepository defines the interface for randomness request bookkeeping
type PendingDrawRepository interface {
	// Create stores a new pending request
	Create(ctx context.Context, draw *models.PendingDraw) error

	// GetByRequestID retrieves a request by oracle id
	GetByRequestID(ctx context.Context, requestID uint64) (*models.PendingDraw, error)

	// GetByRequestIDForUpdate retrieves a request by oracle id with a row lock
	GetByRequestIDForUpdate(ctx context.Context, requestID uint64) (*models.PendingDraw, error)

	// GetActiveForDay returns the pending request for a day, nil if there is none
	GetActiveForDay(ctx context.Context, dayIndex int64) (*models.PendingDraw, error)

	// UpdateStatus resolves a pending request
	UpdateStatus(ctx context.Context, requestID uint64, status models.PendingDrawStatus, resolvedAt time.Time) error

	// ExpireForDay marks every pending request of a day as expired and returns how many were expired
	ExpireForDay(ctx context.Context, dayIndex int64, at time.Time) (int64, error)
}

// TicketPurchaseRepository defines the interface for the purchase audit trail
type TicketPurchaseRepository interface {
	// Create records a purchase
	Create(ctx context.Context, purchase *models.TicketPurchase) error

	// GetByDay returns all purchases of a day, oldest first
	GetByDay(ctx context.Context, dayIndex int64) ([]*models.TicketPurchase, error)

	// GetByBuyer returns a buyer's most recent purchases
	GetByBuyer(ctx context.Context, buyer common.Address, limit int) ([]*models.TicketPurchase, error)
}

// VestingRepository defines the interface for vesting positions and their claims
type VestingRepository interface {
	// Create inserts a new position. Fails with ErrVestingAlreadyConfigured if the day already has one.
	Create(ctx context.Context, position *models.VestingPosition) error

	// GetByID retrieves a position
	GetByID(ctx context.Context, id int64) (*models.VestingPosition, error)

	// GetByIDForUpdate retrieves a position with a row lock
	GetByIDForUpdate(ctx context.Context, id int64) (*models.VestingPosition, error)

	// GetByDay retrieves the position funded by a day's jackpot
	GetByDay(ctx context.Context, dayIndex int64) (*models.VestingPosition, error)

	// GetByWinner lists a winner's positions, newest first
	GetByWinner(ctx context.Context, winner common.Address) ([]*models.VestingPosition, error)

	// Update persists the claim counters of a position
	Update(ctx context.Context, position *models.VestingPosition) error

	// CreateClaim records a paid installment
	CreateClaim(ctx context.Context, claim *models.VestingClaim) error

	// GetClaims lists the claims of a position in installment order
	GetClaims(ctx context.Context, positionID int64) ([]*models.VestingClaim, error)
}

// VaultRepository defines the interface for yield vault accounting
type VaultRepository interface {
	// Deposit adds principal to a position's vault account, creating it if needed
	Deposit(ctx context.Context, positionID int64, amount int64) error

	// Withdraw removes amount from a position's balance. Fails with ErrVaultInsufficientFunds.
	Withdraw(ctx context.Context, positionID int64, amount int64) error

	// Get retrieves a position's vault account, nil if it has none
	Get(ctx context.Context, positionID int64) (*models.VaultPosition, error)

	// GetOpen returns every vault account with a positive balance
	GetOpen(ctx context.Context) ([]*models.VaultPosition, error)

	// AccrueYield grows a position's balance by amount
	AccrueYield(ctx context.Context, positionID int64, amount int64) error
}

// TokenRepository defines the interface for the stable-unit token ledger
type TokenRepository interface {
	// BalanceOf returns an address's balance, 0 for unknown addresses
	BalanceOf(ctx context.Context, address common.Address) (int64, error)

	// Allowance returns how much spender may move on behalf of owner
	Allowance(ctx context.Context, owner, spender common.Address) (int64, error)

	// Approve sets the allowance of spender over owner's tokens
	Approve(ctx context.Context, owner, spender common.Address, amount int64) error

	// LockAccounts row-locks accounts in a fixed global order. Multi-transfer operations call it
	// with every account they touch before the first transfer.
	LockAccounts(ctx context.Context, addresses ...common.Address) error

	// Transfer moves tokens. Fails with ErrInsufficientBalance.
	Transfer(ctx context.Context, from, to common.Address, amount int64, kind models.TransferKind) error

	// TransferFrom moves tokens using spender's allowance.
	// Fails with ErrInsufficientAllowance or ErrInsufficientBalance.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount int64, kind models.TransferKind) error

	// Mint creates tokens out of thin air
	Mint(ctx context.Context, to common.Address, amount int64, kind models.TransferKind) error

	// GetTransfers lists the most recent transfers touching an address
	GetTransfers(ctx context.Context, address common.Address, limit int) ([]*models.TokenTransfer, error)
}

// YieldRunRepository defines the interface for daily yield run tracking
type YieldRunRepository interface {
	// GetByDate checks if a yield run exists for a specific date
	GetByDate(ctx context.Context, date time.Time) (*models.YieldRun, error)

	// Create records a completed yield run
	Create(ctx context.Context, run *models.YieldRun) error

	// GetLatest returns the most recent yield run
	GetLatest(ctx context.Context) (*models.YieldRun, error)
}

// RandomnessCallback is the inbound entry point a randomness provider calls with its result
type RandomnessCallback func(ctx context.Context, provider common.Address, requestID uint64, randomValue common.Hash) error

// RandomnessPort defines the interface to the external randomness oracle
type RandomnessPort interface {
	// RequiredFee returns the fee the oracle currently charges per request
	RequiredFee(ctx context.Context) (int64, error)

	// Request asks for a random value and returns the oracle's request id.
	// The value arrives later through the registered callback.
	Request(ctx context.Context, callerEntropy common.Hash, fee int64) (uint64, error)

	// Provider returns the identity callbacks must come from
	Provider() common.Address

	// OnCallback registers the handler results are delivered to
	OnCallback(handler RandomnessCallback)
}

// YieldVault defines the interface for the interest-bearing deposit backing vesting positions.
// Every call runs inside the caller's unit of work.
type YieldVault interface {
	// Deposit moves amount from the vesting custody account into the vault for a position
	Deposit(ctx context.Context, uow UnitOfWork, positionID int64, amount int64) error

	// Withdraw moves amount out of the vault to recipient
	Withdraw(ctx context.Context, uow UnitOfWork, positionID int64, amount int64, recipient common.Address) error

	// WithdrawAll moves a position's whole vault balance to recipient and returns it
	WithdrawAll(ctx context.Context, uow UnitOfWork, positionID int64, recipient common.Address) (int64, error)

	// Balance returns a position's vault balance, principal plus accrued yield
	Balance(ctx context.Context, uow UnitOfWork, positionID int64) (int64, error)

	// Address returns the custody account holding vault funds
	Address() common.Address
}

// VestingLedger defines the settlement-side interface of the vesting schedule
type VestingLedger interface {
	// Initialize creates a position for a drawn day and funds it in the vault.
	// Runs inside the settlement's unit of work.
	Initialize(ctx context.Context, uow UnitOfWork, winner common.Address, dayIndex int64, totalAmount int64) (*models.VestingPosition, error)

	// CustodyAddress returns the account that receives vesting funds at settlement
	CustodyAddress() common.Address
}

// VestingService defines the interface for winner-facing vesting operations
type VestingService interface {
	// Claim pays the next due installment of a position to its winner
	Claim(ctx context.Context, caller common.Address, positionID int64) (*models.VestingClaim, error)

	// GetPosition returns a position, ErrPositionNotFound if it does not exist
	GetPosition(ctx context.Context, positionID int64) (*models.VestingPosition, error)

	// ListPositions returns every position owned by winner
	ListPositions(ctx context.Context, winner common.Address) ([]*models.VestingPosition, error)

	// Schedule returns the remaining schedule of a position
	Schedule(ctx context.Context, positionID int64) (*models.VestingSchedule, error)

	// VaultBalance returns the vault balance backing a position
	VaultBalance(ctx context.Context, positionID int64) (int64, error)
}

// LotteryService defines the interface for the daily lottery
type LotteryService interface {
	// BuyTicket buys tickets for the current day, paying the referral share if referrer is valid
	BuyTicket(ctx context.Context, buyer common.Address, tickets int64, referrer common.Address) (*models.TicketPurchase, error)

	// RequestDraw asks the oracle for the current day's random value. Operator only.
	RequestDraw(ctx context.Context, caller common.Address, callerEntropy common.Hash, fee int64) (*models.PendingDraw, error)

	// OnRandomValue settles the day a request was made for. Callable only by the oracle provider.
	OnRandomValue(ctx context.Context, caller common.Address, requestID uint64, randomValue common.Hash) (*models.DrawResult, error)

	// CurrentDayInfo returns the state of the current day as of now
	CurrentDayInfo(ctx context.Context) (*models.DayInfo, error)

	// GetDay returns a stored day, nil if it was never materialized
	GetDay(ctx context.Context, dayIndex int64) (*models.LotteryDay, error)

	// GetBuyers returns a day's unique buyers
	GetBuyers(ctx context.Context, dayIndex int64) ([]*models.DayBuyer, error)

	// GetPendingDraw returns a randomness request by id, ErrUnknownRequestID if there is none
	GetPendingDraw(ctx context.Context, requestID uint64) (*models.PendingDraw, error)

	// RequiredFee returns the oracle fee a draw request must carry
	RequiredFee(ctx context.Context) (int64, error)

	// SetVestingContract wires the vesting ledger in. Owner only, exactly once.
	SetVestingContract(ctx context.Context, caller common.Address, address common.Address) error

	// SetTicketPrice changes the ticket price. Owner only.
	SetTicketPrice(ctx context.Context, caller common.Address, price int64) error

	// EmergencyWithdraw moves custody tokens out of the lottery account. Owner only.
	EmergencyWithdraw(ctx context.Context, caller common.Address, to common.Address, amount int64) error
}

// TokenService defines the interface for stable-unit token operations exposed to users
type TokenService interface {
	// Account returns an address's balance view
	Account(ctx context.Context, address common.Address) (*models.TokenAccount, error)

	// Allowance returns how much spender may move on behalf of owner
	Allowance(ctx context.Context, owner, spender common.Address) (int64, error)

	// Approve sets spender's allowance over owner's tokens
	Approve(ctx context.Context, owner, spender common.Address, amount int64) error

	// Faucet mints test tokens. Disabled in production.
	Faucet(ctx context.Context, to common.Address, amount int64) error

	// History lists recent transfers touching an address
	History(ctx context.Context, address common.Address, limit int) ([]*models.TokenTransfer, error)
}

// YieldService defines the interface for the daily vault accrual
type YieldService interface {
	// RunDailyAccrual accrues one day of yield for every open vault position.
	// Returns the existing run if one was already recorded for the date.
	RunDailyAccrual(ctx context.Context, date time.Time) (*models.YieldRun, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	SettingsRepository() SettingsRepository
	DayRepository() DayRepository
	PendingDrawRepository() PendingDrawRepository
	TicketPurchaseRepository() TicketPurchaseRepository
	VestingRepository() VestingRepository
	VaultRepository() VaultRepository
	TokenRepository() TokenRepository
	YieldRunRepository() YieldRunRepository

	// Event bus getter
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}

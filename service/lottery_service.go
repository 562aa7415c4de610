package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"megayield/config"
	"megayield/events"
	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type lotteryService struct {
	uowFactory UnitOfWorkFactory
	oracle     RandomnessPort
	ledger     VestingLedger
	cfg        *config.Config
	now        func() time.Time
}

// NewLotteryService creates a new lottery service
func NewLotteryService(uowFactory UnitOfWorkFactory, oracle RandomnessPort, ledger VestingLedger, cfg *config.Config) LotteryService {
	return NewLotteryServiceWithClock(uowFactory, oracle, ledger, cfg, func() time.Time { return time.Now().UTC() })
}

// NewLotteryServiceWithClock creates a lottery service that reads the time from now
func NewLotteryServiceWithClock(uowFactory UnitOfWorkFactory, oracle RandomnessPort, ledger VestingLedger, cfg *config.Config, now func() time.Time) LotteryService {
	return &lotteryService{
		uowFactory: uowFactory,
		oracle:     oracle,
		ledger:     ledger,
		cfg:        cfg,
		now:        now,
	}
}

func (s *lotteryService) BuyTicket(ctx context.Context, buyer common.Address, tickets int64, referrer common.Address) (*models.TicketPurchase, error) {
	if tickets <= 0 {
		return nil, fmt.Errorf("ticket count must be positive: %w", ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.SettingsRepository().GetOrCreateForUpdate(ctx, s.cfg.TicketPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to lock lottery settings: %w", err)
	}
	if !settings.IsVestingConfigured() {
		return nil, ErrVestingNotConfigured
	}

	now := s.now()
	day, err := s.rollDay(ctx, uow, settings, now)
	if err != nil {
		return nil, err
	}

	if tickets > math.MaxInt64/settings.TicketPrice {
		return nil, fmt.Errorf("%d tickets overflow the purchase total: %w", tickets, ErrInvalidAmount)
	}
	totalCost := settings.TicketPrice * tickets

	tokens := uow.TokenRepository()
	lottery := s.cfg.LotteryAddress
	if err := tokens.TransferFrom(ctx, lottery, buyer, lottery, totalCost, models.TransferKindTicketPurchase); err != nil {
		return nil, fmt.Errorf("failed to collect ticket payment: %w", err)
	}

	hasReferrer := models.IsValidReferrer(buyer, referrer)
	split := models.SplitPurchase(totalCost, hasReferrer)

	var referrerPtr *common.Address
	if hasReferrer {
		referrerPtr = &referrer
		if err := tokens.Transfer(ctx, lottery, referrer, split.ReferralShare, models.TransferKindReferralPayout); err != nil {
			return nil, fmt.Errorf("failed to pay referral share: %w", err)
		}
	}

	jackpot, err := uow.DayRepository().IncrementJackpot(ctx, day.DayIndex, split.JackpotDelta)
	if err != nil {
		return nil, fmt.Errorf("failed to grow jackpot: %w", err)
	}

	isNew, err := uow.DayRepository().AddBuyer(ctx, day.DayIndex, buyer, tickets)
	if err != nil {
		return nil, fmt.Errorf("failed to register buyer: %w", err)
	}

	purchase := &models.TicketPurchase{
		DayIndex:      day.DayIndex,
		Buyer:         buyer,
		Tickets:       tickets,
		TotalCost:     totalCost,
		Referrer:      referrerPtr,
		ReferralShare: split.ReferralShare,
		JackpotDelta:  split.JackpotDelta,
		NewBuyer:      isNew,
	}
	if err := uow.TicketPurchaseRepository().Create(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	uow.EventBus().Publish(events.TicketPurchasedEvent{
		Buyer:        buyer,
		Amount:       tickets,
		Referrer:     referrerPtr,
		DayIndex:     day.DayIndex,
		TotalCost:    totalCost,
		JackpotAfter: jackpot,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"buyer":         buyer.Hex(),
		"tickets":       tickets,
		"totalCost":     totalCost,
		"referralShare": split.ReferralShare,
		"dayIndex":      day.DayIndex,
		"jackpot":       jackpot,
	}).Info("Tickets purchased")

	return purchase, nil
}

func (s *lotteryService) RequestDraw(ctx context.Context, caller common.Address, callerEntropy common.Hash, fee int64) (*models.PendingDraw, error) {
	if caller != s.cfg.OperatorAddress {
		return nil, fmt.Errorf("%s is not the operator: %w", caller.Hex(), ErrUnauthorizedCaller)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.SettingsRepository().GetOrCreateForUpdate(ctx, s.cfg.TicketPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to lock lottery settings: %w", err)
	}

	now := s.now()
	day, err := s.rollDay(ctx, uow, settings, now)
	if err != nil {
		return nil, err
	}

	if day.Drawn {
		return nil, fmt.Errorf("day %d: %w", day.DayIndex, ErrAlreadyDrawnForDay)
	}

	buyerCount, err := uow.DayRepository().CountBuyers(ctx, day.DayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to count buyers: %w", err)
	}
	if !day.CanAcceptDraw(buyerCount) {
		return nil, fmt.Errorf("day %d: %w", day.DayIndex, ErrNoTicketsForDay)
	}

	pending := uow.PendingDrawRepository()
	active, err := pending.GetActiveForDay(ctx, day.DayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to check for an active request: %w", err)
	}
	if active != nil {
		if !active.IsStale(now, s.cfg.DrawRequestTimeout) {
			return nil, fmt.Errorf("request %d for day %d is still waiting: %w", active.RequestID, day.DayIndex, ErrDrawRequestPending)
		}
		if err := pending.UpdateStatus(ctx, active.RequestID, models.PendingDrawStatusExpired, now); err != nil {
			return nil, fmt.Errorf("failed to expire stale request: %w", err)
		}
		log.WithFields(log.Fields{
			"requestID":   active.RequestID,
			"dayIndex":    day.DayIndex,
			"requestedAt": active.RequestedAt,
		}).Warn("Expired stale randomness request")
	}

	requestID, err := s.oracle.Request(ctx, callerEntropy, fee)
	if err != nil {
		return nil, fmt.Errorf("failed to request random value: %w", err)
	}

	draw := &models.PendingDraw{
		RequestID:     requestID,
		DayIndex:      day.DayIndex,
		Status:        models.PendingDrawStatusPending,
		CallerEntropy: callerEntropy,
		FeePaid:       fee,
		RequestedAt:   now,
	}
	if err := pending.Create(ctx, draw); err != nil {
		logOrphanedRequest(draw, err)
		return nil, fmt.Errorf("failed to store pending draw for request %d: %w", requestID, err)
	}

	uow.EventBus().Publish(events.RandomNumberRequestedEvent{
		RequestID: requestID,
		DayIndex:  day.DayIndex,
	})

	if err := uow.Commit(); err != nil {
		logOrphanedRequest(draw, err)
		return nil, fmt.Errorf("failed to commit request %d: %w", requestID, err)
	}

	log.WithFields(log.Fields{
		"requestID":  requestID,
		"dayIndex":   day.DayIndex,
		"jackpot":    day.Jackpot,
		"buyerCount": buyerCount,
	}).Info("Randomness requested")

	return draw, nil
}

// logOrphanedRequest reports an oracle request whose fee is spent but that was never recorded.
// Its callback will be rejected as an unknown request id.
func logOrphanedRequest(draw *models.PendingDraw, err error) {
	log.WithFields(log.Fields{
		"requestID":     draw.RequestID,
		"dayIndex":      draw.DayIndex,
		"feePaid":       draw.FeePaid,
		"callerEntropy": draw.CallerEntropy.Hex(),
	}).WithError(err).Error("Randomness request was sent but not recorded; reconcile with the provider")
}

func (s *lotteryService) OnRandomValue(ctx context.Context, caller common.Address, requestID uint64, randomValue common.Hash) (*models.DrawResult, error) {
	if caller != s.oracle.Provider() {
		log.WithFields(log.Fields{
			"caller":    caller.Hex(),
			"requestID": requestID,
		}).Warn("Rejected callback from unregistered provider")
		return nil, ErrUnauthorizedCallback
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.SettingsRepository().GetOrCreateForUpdate(ctx, s.cfg.TicketPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to lock lottery settings: %w", err)
	}

	pending := uow.PendingDrawRepository()
	draw, err := pending.GetByRequestIDForUpdate(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending draw: %w", err)
	}
	if draw == nil || !draw.IsPending() {
		log.WithField("requestID", requestID).Warn("Rejected callback for unknown or consumed request")
		return nil, fmt.Errorf("request %d: %w", requestID, ErrUnknownRequestID)
	}

	days := uow.DayRepository()
	day, err := days.GetForUpdate(ctx, draw.DayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get lottery day: %w", err)
	}
	if day == nil {
		return nil, fmt.Errorf("request %d points at missing day %d: %w", requestID, draw.DayIndex, ErrUnknownRequestID)
	}
	if day.Drawn {
		return nil, fmt.Errorf("day %d: %w", day.DayIndex, ErrAlreadyDrawnForDay)
	}

	buyers, err := days.GetBuyers(ctx, day.DayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyers: %w", err)
	}
	if !day.CanAcceptDraw(len(buyers)) {
		return nil, fmt.Errorf("day %d: %w", day.DayIndex, ErrNoTicketsForDay)
	}
	if !settings.IsVestingConfigured() {
		return nil, ErrVestingNotConfigured
	}

	winnerIndex := models.WinnerIndex(randomValue, len(buyers))
	winner := buyers[winnerIndex].Buyer
	split := models.SplitJackpot(day.Jackpot)

	tokens := uow.TokenRepository()
	lottery := s.cfg.LotteryAddress
	// Funds move lottery to winner and custody, then custody to vault
	if err := tokens.LockAccounts(ctx, lottery, winner, *settings.VestingAddress, s.cfg.VaultAddress); err != nil {
		return nil, fmt.Errorf("failed to lock settlement accounts: %w", err)
	}
	if err := tokens.Transfer(ctx, lottery, winner, split.FirstPayment, models.TransferKindFirstPayment); err != nil {
		return nil, fmt.Errorf("failed to pay first installment: %w", err)
	}
	if err := tokens.Transfer(ctx, lottery, *settings.VestingAddress, split.VestingAmount, models.TransferKindVestingFunding); err != nil {
		return nil, fmt.Errorf("failed to fund vesting: %w", err)
	}

	position, err := s.ledger.Initialize(ctx, uow, winner, day.DayIndex, split.VestingAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vesting: %w", err)
	}

	now := s.now()
	day.MarkDrawn(winner, winnerIndex, randomValue, now)
	if err := days.Update(ctx, day); err != nil {
		return nil, fmt.Errorf("failed to mark day drawn: %w", err)
	}
	if err := days.ClearBuyers(ctx, day.DayIndex); err != nil {
		return nil, fmt.Errorf("failed to clear buyers: %w", err)
	}
	if err := pending.UpdateStatus(ctx, requestID, models.PendingDrawStatusFulfilled, now); err != nil {
		return nil, fmt.Errorf("failed to consume pending draw: %w", err)
	}

	bus := uow.EventBus()
	bus.Publish(events.WinnerDrawnEvent{
		DayIndex:      day.DayIndex,
		Winner:        winner,
		JackpotAmount: split.Jackpot,
	})
	bus.Publish(events.FirstPaymentClaimedEvent{
		Winner: winner,
		Amount: split.FirstPayment,
	})
	bus.Publish(events.VestingInitializedEvent{
		Winner:        winner,
		PositionID:    position.ID,
		TotalAmount:   position.TotalAmount,
		MonthlyAmount: position.MonthlyAmount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"requestID":    requestID,
		"dayIndex":     day.DayIndex,
		"winner":       winner.Hex(),
		"winnerIndex":  winnerIndex,
		"buyerCount":   len(buyers),
		"jackpot":      split.Jackpot,
		"firstPayment": split.FirstPayment,
		"positionID":   position.ID,
	}).Info("Winner drawn")

	return &models.DrawResult{
		DayIndex:          day.DayIndex,
		RequestID:         requestID,
		Winner:            winner,
		WinnerIndex:       winnerIndex,
		BuyerCount:        len(buyers),
		Jackpot:           split.Jackpot,
		FirstPayment:      split.FirstPayment,
		VestingAmount:     split.VestingAmount,
		MonthlyAmount:     position.MonthlyAmount,
		VestingPositionID: position.ID,
	}, nil
}

// rollDay returns the current day record, locked, opening a new day when the clock
// has passed the stored one. The previous day's remaining jackpot moves into the new
// day and its outstanding requests are expired. Days nobody touched are never created.
func (s *lotteryService) rollDay(ctx context.Context, uow UnitOfWork, settings *models.LotterySettings, now time.Time) (*models.LotteryDay, error) {
	days := uow.DayRepository()
	today := DayIndexAt(now, s.cfg.DayEpoch, s.cfg.DayLength)

	if today <= settings.CurrentDay {
		day, err := days.GetForUpdate(ctx, settings.CurrentDay)
		if err != nil {
			return nil, fmt.Errorf("failed to get current day: %w", err)
		}
		if day != nil {
			return day, nil
		}
		day = &models.LotteryDay{DayIndex: settings.CurrentDay}
		if err := days.Create(ctx, day); err != nil {
			return nil, fmt.Errorf("failed to open day: %w", err)
		}
		return day, nil
	}

	var carried int64
	previous, err := days.GetForUpdate(ctx, settings.CurrentDay)
	if err != nil {
		return nil, fmt.Errorf("failed to get previous day: %w", err)
	}
	if previous != nil {
		carried = previous.Jackpot
		if carried > 0 {
			previous.Jackpot = 0
			if err := days.Update(ctx, previous); err != nil {
				return nil, fmt.Errorf("failed to close previous day: %w", err)
			}
		}
		expired, err := uow.PendingDrawRepository().ExpireForDay(ctx, previous.DayIndex, now)
		if err != nil {
			return nil, fmt.Errorf("failed to expire requests of previous day: %w", err)
		}
		if expired > 0 {
			log.WithFields(log.Fields{
				"dayIndex": previous.DayIndex,
				"expired":  expired,
			}).Warn("Expired unanswered randomness requests at rollover")
		}
	}

	day := &models.LotteryDay{
		DayIndex:  today,
		Jackpot:   carried,
		CarriedIn: carried,
	}
	if err := days.Create(ctx, day); err != nil {
		return nil, fmt.Errorf("failed to open day %d: %w", today, err)
	}
	if err := uow.SettingsRepository().UpdateCurrentDay(ctx, today); err != nil {
		return nil, fmt.Errorf("failed to advance current day: %w", err)
	}

	log.WithFields(log.Fields{
		"previousDay": settings.CurrentDay,
		"dayIndex":    today,
		"carriedIn":   carried,
	}).Info("Lottery day rolled over")

	settings.CurrentDay = today
	return day, nil
}

func (s *lotteryService) CurrentDayInfo(ctx context.Context) (*models.DayInfo, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.SettingsRepository().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get lottery settings: %w", err)
	}
	if settings == nil {
		settings = &models.LotterySettings{TicketPrice: s.cfg.TicketPrice}
	}

	now := s.now()
	today := DayIndexAt(now, s.cfg.DayEpoch, s.cfg.DayLength)
	if today < settings.CurrentDay {
		today = settings.CurrentDay
	}

	info := &models.DayInfo{
		CurrentDay:  today,
		StartTime:   DayStart(today, s.cfg.DayEpoch, s.cfg.DayLength),
		EndTime:     DayStart(today+1, s.cfg.DayEpoch, s.cfg.DayLength),
		TicketPrice: settings.TicketPrice,
		State:       models.DayStateOpen,
	}

	stored, err := uow.DayRepository().Get(ctx, settings.CurrentDay)
	if err != nil {
		return nil, fmt.Errorf("failed to get current day: %w", err)
	}
	if stored == nil {
		return info, nil
	}

	// Not rolled yet: project the carry-over the next purchase will perform
	if today > settings.CurrentDay {
		info.Jackpot = stored.Jackpot
		return info, nil
	}

	count, err := uow.DayRepository().CountBuyers(ctx, stored.DayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to count buyers: %w", err)
	}
	info.Jackpot = stored.Jackpot
	info.TicketCount = count
	info.Drawn = stored.Drawn

	switch {
	case stored.Drawn:
		info.State = models.DayStateDrawn
	default:
		active, err := uow.PendingDrawRepository().GetActiveForDay(ctx, stored.DayIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to get active request: %w", err)
		}
		if active != nil {
			info.State = models.DayStateRequestPending
			info.PendingRequestID = &active.RequestID
		}
	}

	return info, nil
}

func (s *lotteryService) GetDay(ctx context.Context, dayIndex int64) (*models.LotteryDay, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	day, err := uow.DayRepository().Get(ctx, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get day %d: %w", dayIndex, err)
	}
	return day, nil
}

func (s *lotteryService) GetBuyers(ctx context.Context, dayIndex int64) ([]*models.DayBuyer, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	buyers, err := uow.DayRepository().GetBuyers(ctx, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyers of day %d: %w", dayIndex, err)
	}
	return buyers, nil
}

func (s *lotteryService) GetPendingDraw(ctx context.Context, requestID uint64) (*models.PendingDraw, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	draw, err := uow.PendingDrawRepository().GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request %d: %w", requestID, err)
	}
	if draw == nil {
		return nil, fmt.Errorf("request %d: %w", requestID, ErrUnknownRequestID)
	}
	return draw, nil
}

func (s *lotteryService) RequiredFee(ctx context.Context) (int64, error) {
	fee, err := s.oracle.RequiredFee(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get oracle fee: %w", err)
	}
	return fee, nil
}

func (s *lotteryService) SetVestingContract(ctx context.Context, caller common.Address, address common.Address) error {
	if caller != s.cfg.OwnerAddress {
		return fmt.Errorf("%s is not the owner: %w", caller.Hex(), ErrUnauthorizedCaller)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.SettingsRepository().GetOrCreateForUpdate(ctx, s.cfg.TicketPrice)
	if err != nil {
		return fmt.Errorf("failed to lock lottery settings: %w", err)
	}
	if settings.IsVestingConfigured() {
		return ErrVestingAlreadyConfigured
	}
	if address != s.ledger.CustodyAddress() {
		return fmt.Errorf("%s is not the vesting ledger: %w", address.Hex(), ErrInvalidVestingAddress)
	}

	set, err := uow.SettingsRepository().SetVestingAddress(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to store vesting address: %w", err)
	}
	if !set {
		return ErrVestingAlreadyConfigured
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("vestingAddress", address.Hex()).Info("Vesting ledger configured")
	return nil
}

func (s *lotteryService) SetTicketPrice(ctx context.Context, caller common.Address, price int64) error {
	if caller != s.cfg.OwnerAddress {
		return fmt.Errorf("%s is not the owner: %w", caller.Hex(), ErrUnauthorizedCaller)
	}
	if price <= 0 {
		return fmt.Errorf("ticket price must be positive: %w", ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.SettingsRepository().GetOrCreateForUpdate(ctx, s.cfg.TicketPrice)
	if err != nil {
		return fmt.Errorf("failed to lock lottery settings: %w", err)
	}
	if err := uow.SettingsRepository().UpdateTicketPrice(ctx, price); err != nil {
		return fmt.Errorf("failed to update ticket price: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"oldPrice": settings.TicketPrice,
		"newPrice": price,
	}).Info("Ticket price updated")
	return nil
}

func (s *lotteryService) EmergencyWithdraw(ctx context.Context, caller common.Address, to common.Address, amount int64) error {
	if caller != s.cfg.OwnerAddress {
		return fmt.Errorf("%s is not the owner: %w", caller.Hex(), ErrUnauthorizedCaller)
	}
	if amount <= 0 || to == (common.Address{}) {
		return fmt.Errorf("withdrawal needs a positive amount and a recipient: %w", ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	if _, err := uow.SettingsRepository().GetOrCreateForUpdate(ctx, s.cfg.TicketPrice); err != nil {
		return fmt.Errorf("failed to lock lottery settings: %w", err)
	}

	if err := uow.TokenRepository().Transfer(ctx, s.cfg.LotteryAddress, to, amount, models.TransferKindEmergencyWithdraw); err != nil {
		return fmt.Errorf("failed to withdraw custody funds: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"to":     to.Hex(),
		"amount": amount,
	}).Warn("Emergency withdrawal executed")
	return nil
}

package events

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeTicketPurchased       EventType = "ticket_purchased"
	EventTypeRandomNumberRequested EventType = "random_number_requested"
	EventTypeWinnerDrawn           EventType = "winner_drawn"
	EventTypeFirstPaymentClaimed   EventType = "first_payment_claimed"
	EventTypeVestingInitialized    EventType = "vesting_initialized"
	EventTypeVestingClaimed        EventType = "vesting_claimed"
	EventTypeYieldAccrued          EventType = "yield_accrued"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// TicketPurchasedEvent is emitted for every successful ticket purchase
type TicketPurchasedEvent struct {
	Buyer        common.Address  `json:"buyer"`
	Amount       int64           `json:"amount"`
	Referrer     *common.Address `json:"referrer,omitempty"`
	DayIndex     int64           `json:"day_index"`
	TotalCost    int64           `json:"total_cost"`
	JackpotAfter int64           `json:"jackpot_after"`
}

func (e TicketPurchasedEvent) Type() EventType {
	return EventTypeTicketPurchased
}

// RandomNumberRequestedEvent is emitted when a draw request reaches the oracle
type RandomNumberRequestedEvent struct {
	RequestID uint64 `json:"request_id"`
	DayIndex  int64  `json:"day_index"`
}

func (e RandomNumberRequestedEvent) Type() EventType {
	return EventTypeRandomNumberRequested
}

// WinnerDrawnEvent is emitted first during settlement
type WinnerDrawnEvent struct {
	DayIndex      int64          `json:"day_index"`
	Winner        common.Address `json:"winner"`
	JackpotAmount int64          `json:"jackpot_amount"`
}

func (e WinnerDrawnEvent) Type() EventType {
	return EventTypeWinnerDrawn
}

// FirstPaymentClaimedEvent is emitted after the immediate payout to the winner
type FirstPaymentClaimedEvent struct {
	Winner common.Address `json:"winner"`
	Amount int64          `json:"amount"`
}

func (e FirstPaymentClaimedEvent) Type() EventType {
	return EventTypeFirstPaymentClaimed
}

// VestingInitializedEvent is emitted once the remainder is locked into a schedule
type VestingInitializedEvent struct {
	Winner        common.Address `json:"winner"`
	PositionID    int64          `json:"position_id"`
	TotalAmount   int64          `json:"total_amount"`
	MonthlyAmount int64          `json:"monthly_amount"`
}

func (e VestingInitializedEvent) Type() EventType {
	return EventTypeVestingInitialized
}

// VestingClaimedEvent is emitted for every paid installment. InstallmentIndex is 1-based.
type VestingClaimedEvent struct {
	Winner           common.Address `json:"winner"`
	PositionID       int64          `json:"position_id"`
	InstallmentIndex int            `json:"installment_index"`
	Amount           int64          `json:"amount"`
}

func (e VestingClaimedEvent) Type() EventType {
	return EventTypeVestingClaimed
}

// YieldAccruedEvent is emitted after a daily vault accrual run
type YieldAccruedEvent struct {
	RunDate           string `json:"run_date"`
	TotalYieldAccrued int64  `json:"total_yield_accrued"`
	PositionsAffected int    `json:"positions_affected"`
}

func (e YieldAccruedEvent) Type() EventType {
	return EventTypeYieldAccrued
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit delivers an event to all registered handlers on the caller's goroutine.
// Handlers see events in emission order; slow handlers must hand off work themselves.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	for i, handler := range handlers {
		b.dispatch(ctx, handler, i, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, handlerIndex int, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"handlerIndex": handlerIndex,
				"panic":        r,
			}).Error("Event handler panicked")
		}
	}()
	h(ctx, event)
}

// AllEventTypes lists every event type the lottery publishes
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeTicketPurchased,
		EventTypeRandomNumberRequested,
		EventTypeWinnerDrawn,
		EventTypeFirstPaymentClaimed,
		EventTypeVestingInitialized,
		EventTypeVestingClaimed,
		EventTypeYieldAccrued,
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the events stashed so far
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Events outlive the request context that committed them
	eventCtx := context.Background()

	for _, ev := range b.pending {
		log.WithFields(log.Fields{
			"eventType": ev.Type(),
		}).Debug("Emitting event to main event bus")
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	log.Debug("All pending events flushed, transactional bus cleared")
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

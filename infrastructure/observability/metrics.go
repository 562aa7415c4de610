package observability

import (
	"context"

	"megayield/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// ─── Lottery ────────────────────────────────────────────────────────────────

// EventsTotal counts committed domain events by type.
var EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: SubsystemLottery,
	Name:      "events_total",
	Help:      "Committed domain events by type.",
}, []string{LabelEventType})

// TicketsSoldTotal counts tickets across all purchases.
var TicketsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: SubsystemLottery,
	Name:      "tickets_sold_total",
	Help:      "Tickets sold across all days.",
})

// ReferredPurchasesTotal counts purchases that paid a referral share.
var ReferredPurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: SubsystemLottery,
	Name:      "referred_purchases_total",
	Help:      "Ticket purchases that paid a referrer.",
})

// CurrentJackpot tracks the jackpot after the latest purchase, reset when a day is drawn.
var CurrentJackpot = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: Namespace,
	Subsystem: SubsystemLottery,
	Name:      "current_jackpot_subunits",
	Help:      "Jackpot of the current day in token subunits.",
})

// JackpotsPaidTotal sums settled jackpots.
var JackpotsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: SubsystemLottery,
	Name:      "jackpots_paid_subunits_total",
	Help:      "Settled jackpots in token subunits.",
})

// ─── Vesting & vault ────────────────────────────────────────────────────────

// VestingClaimedTotal sums paid installments.
var VestingClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: SubsystemVesting,
	Name:      "claimed_subunits_total",
	Help:      "Vesting installments paid in token subunits.",
})

// YieldAccruedTotal sums daily vault accruals.
var YieldAccruedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: SubsystemVault,
	Name:      "yield_accrued_subunits_total",
	Help:      "Yield accrued by the vault in token subunits.",
})

// ─── Oracle ─────────────────────────────────────────────────────────────────

// OracleCallbacksTotal counts callback deliveries by outcome.
var OracleCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: SubsystemOracle,
	Name:      "callbacks_total",
	Help:      "Randomness callbacks by result.",
}, []string{LabelResult})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequestDuration tracks API latency.
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: Namespace,
	Subsystem: SubsystemHTTP,
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route.",
	Buckets:   prometheus.DefBuckets,
}, []string{LabelMethod, LabelRoute, LabelStatus})

// Register updates the lottery metrics from committed events on bus
func Register(bus *events.Bus) {
	bus.SubscribeAll(Record)
	log.Debug("Metrics subscribed to the event bus")
}

// Record updates metrics for a single event
func Record(ctx context.Context, event events.Event) {
	EventsTotal.WithLabelValues(string(event.Type())).Inc()

	switch e := event.(type) {
	case events.TicketPurchasedEvent:
		TicketsSoldTotal.Add(float64(e.Amount))
		if e.Referrer != nil {
			ReferredPurchasesTotal.Inc()
		}
		CurrentJackpot.Set(float64(e.JackpotAfter))
	case events.WinnerDrawnEvent:
		JackpotsPaidTotal.Add(float64(e.JackpotAmount))
		CurrentJackpot.Set(0)
	case events.VestingClaimedEvent:
		VestingClaimedTotal.Add(float64(e.Amount))
	case events.YieldAccruedEvent:
		YieldAccruedTotal.Add(float64(e.TotalYieldAccrued))
	}
}

package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DayState represents where a lottery day is in its draw lifecycle
type DayState string

const (
	DayStateOpen           DayState = "open"
	DayStateRequestPending DayState = "request_pending"
	DayStateDrawn          DayState = "drawn"
)

// LotteryDay is the accumulation record for one day index
type LotteryDay struct {
	DayIndex    int64           `db:"day_index" json:"day_index"`
	Jackpot     int64           `db:"jackpot" json:"jackpot"`
	CarriedIn   int64           `db:"carried_in" json:"carried_in"`
	Drawn       bool            `db:"drawn" json:"drawn"`
	Winner      *common.Address `db:"winner" json:"winner,omitempty"`
	WinnerIndex *int64          `db:"winner_index" json:"winner_index,omitempty"`
	RandomValue *common.Hash    `db:"random_value" json:"random_value,omitempty"`
	PrizeAmount int64           `db:"prize_amount" json:"prize_amount"`
	OpenedAt    time.Time       `db:"opened_at" json:"opened_at"`
	DrawnAt     *time.Time      `db:"drawn_at" json:"drawn_at,omitempty"`
}

// CanAcceptDraw returns true if the day has something to draw and has not been drawn yet
func (d *LotteryDay) CanAcceptDraw(buyerCount int) bool {
	return !d.Drawn && d.Jackpot > 0 && buyerCount > 0
}

// MarkDrawn records the settlement outcome and zeroes the jackpot
func (d *LotteryDay) MarkDrawn(winner common.Address, winnerIndex int64, randomValue common.Hash, at time.Time) {
	d.PrizeAmount = d.Jackpot
	d.Jackpot = 0
	d.Drawn = true
	d.Winner = &winner
	d.WinnerIndex = &winnerIndex
	d.RandomValue = &randomValue
	d.DrawnAt = &at
}

// DayBuyer is one entry of a day's unique buyer set, ordered by first purchase
type DayBuyer struct {
	DayIndex        int64          `db:"day_index" json:"day_index"`
	Position        int64          `db:"position" json:"position"`
	Buyer           common.Address `db:"buyer" json:"buyer"`
	Tickets         int64          `db:"tickets" json:"tickets"`
	FirstPurchaseAt time.Time      `db:"first_purchase_at" json:"first_purchase_at"`
}

// DayInfo is the read model for the current day
type DayInfo struct {
	CurrentDay       int64     `json:"current_day"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Jackpot          int64     `json:"jackpot"`
	TicketCount      int       `json:"ticket_count"`
	TicketPrice      int64     `json:"ticket_price"`
	Drawn            bool      `json:"drawn"`
	State            DayState  `json:"state"`
	PendingRequestID *uint64   `json:"pending_request_id,omitempty"`
}

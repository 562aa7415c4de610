package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingDrawStatus represents the state of a randomness request
type PendingDrawStatus string

const (
	PendingDrawStatusPending   PendingDrawStatus = "pending"
	PendingDrawStatusFulfilled PendingDrawStatus = "fulfilled"
	PendingDrawStatusExpired   PendingDrawStatus = "expired"
)

// PendingDraw maps an oracle request id to the day it was requested for
type PendingDraw struct {
	RequestID     uint64            `db:"request_id" json:"request_id"`
	DayIndex      int64             `db:"day_index" json:"day_index"`
	Status        PendingDrawStatus `db:"status" json:"status"`
	CallerEntropy common.Hash       `db:"caller_entropy" json:"caller_entropy"`
	FeePaid       int64             `db:"fee_paid" json:"fee_paid"`
	RequestedAt   time.Time         `db:"requested_at" json:"requested_at"`
	ResolvedAt    *time.Time        `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsPending returns true if the request is still waiting for its callback
func (p *PendingDraw) IsPending() bool {
	return p.Status == PendingDrawStatusPending
}

// IsStale returns true if the request has been pending for at least the timeout
func (p *PendingDraw) IsStale(now time.Time, timeout time.Duration) bool {
	return p.IsPending() && now.Sub(p.RequestedAt) >= timeout
}

// DrawResult is the outcome of a settled draw
type DrawResult struct {
	DayIndex          int64          `json:"day_index"`
	RequestID         uint64         `json:"request_id"`
	Winner            common.Address `json:"winner"`
	WinnerIndex       int64          `json:"winner_index"`
	BuyerCount        int            `json:"buyer_count"`
	Jackpot           int64          `json:"jackpot"`
	FirstPayment      int64          `json:"first_payment"`
	VestingAmount     int64          `json:"vesting_amount"`
	MonthlyAmount     int64          `json:"monthly_amount"`
	VestingPositionID int64          `json:"vesting_position_id"`
}

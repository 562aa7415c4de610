package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TicketPurchase is the audit record of one buy_ticket call
type TicketPurchase struct {
	ID            int64           `db:"id" json:"id"`
	DayIndex      int64           `db:"day_index" json:"day_index"`
	Buyer         common.Address  `db:"buyer" json:"buyer"`
	Tickets       int64           `db:"tickets" json:"tickets"`
	TotalCost     int64           `db:"total_cost" json:"total_cost"`
	Referrer      *common.Address `db:"referrer" json:"referrer,omitempty"`
	ReferralShare int64           `db:"referral_share" json:"referral_share"`
	JackpotDelta  int64           `db:"jackpot_delta" json:"jackpot_delta"`
	NewBuyer      bool            `db:"-" json:"new_buyer"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

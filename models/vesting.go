package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VestingPosition is one winner's locked payout schedule
type VestingPosition struct {
	ID               int64          `db:"id" json:"id"`
	Winner           common.Address `db:"winner" json:"winner"`
	DayIndex         int64          `db:"day_index" json:"day_index"`
	TotalAmount      int64          `db:"total_amount" json:"total_amount"`
	MonthlyAmount    int64          `db:"monthly_amount" json:"monthly_amount"`
	InstallmentsPaid int            `db:"installments_paid" json:"installments_paid"`
	TotalClaimed     int64          `db:"total_claimed" json:"total_claimed"`
	LastClaimTime    time.Time      `db:"last_claim_time" json:"last_claim_time"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// IsExhausted returns true once every installment has been paid
func (p *VestingPosition) IsExhausted() bool {
	return p.InstallmentsPaid >= VestingInstallments
}

// RemainingInstallments returns how many claims are still due
func (p *VestingPosition) RemainingInstallments() int {
	if p.IsExhausted() {
		return 0
	}
	return VestingInstallments - p.InstallmentsPaid
}

// NextClaimTime returns the earliest time the next claim may be made
func (p *VestingPosition) NextClaimTime() time.Time {
	return p.LastClaimTime.Add(ClaimInterval)
}

// CanClaimAt returns true if an installment is due at the given time
func (p *VestingPosition) CanClaimAt(now time.Time) bool {
	return !p.IsExhausted() && !now.Before(p.NextClaimTime())
}

// IsFinalInstallment returns true if the next claim is the last one
func (p *VestingPosition) IsFinalInstallment() bool {
	return p.InstallmentsPaid == VestingInstallments-1
}

// VestingClaim records one paid installment
type VestingClaim struct {
	ID               int64          `db:"id" json:"id"`
	PositionID       int64          `db:"position_id" json:"position_id"`
	Winner           common.Address `db:"winner" json:"winner"`
	InstallmentIndex int            `db:"installment_index" json:"installment_index"`
	Amount           int64          `db:"amount" json:"amount"`
	ClaimedAt        time.Time      `db:"claimed_at" json:"claimed_at"`
}

// VestingSchedule is the remaining-schedule view of a position
type VestingSchedule struct {
	Position              *VestingPosition `json:"position"`
	VaultBalance          int64            `json:"vault_balance"`
	RemainingInstallments int              `json:"remaining_installments"`
	NextClaimAt           *time.Time       `json:"next_claim_at,omitempty"`
}

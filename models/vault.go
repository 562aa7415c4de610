package models

import (
	"time"
)

// VaultPosition is the yield venue's accounting for one vesting position
type VaultPosition struct {
	PositionID     int64     `db:"position_id" json:"position_id"`
	Principal      int64     `db:"principal" json:"principal"`
	Balance        int64     `db:"balance" json:"balance"`
	AccruedYield   int64     `db:"accrued_yield" json:"accrued_yield"`
	WithdrawnTotal int64     `db:"withdrawn_total" json:"withdrawn_total"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// YieldFor returns one day of yield on the current balance at the given annual rate in basis points
func (v *VaultPosition) YieldFor(apyBps int64) int64 {
	if v.Balance <= 0 || apyBps <= 0 {
		return 0
	}
	return v.Balance * apyBps / 10000 / 365
}

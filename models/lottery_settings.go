package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LotterySettings is the singleton aggregate state of the lottery
type LotterySettings struct {
	CurrentDay     int64           `db:"current_day"`
	TicketPrice    int64           `db:"ticket_price"`
	VestingAddress *common.Address `db:"vesting_address"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// IsVestingConfigured reports whether the vesting collaborator has been wired in
func (s *LotterySettings) IsVestingConfigured() bool {
	return s.VestingAddress != nil
}

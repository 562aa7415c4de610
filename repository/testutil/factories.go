package testutil

import (
	"fmt"
	"time"

	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
)

// Address returns a deterministic test address for n, e.g. Address(1) = 0x...0001
func Address(n int) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x%040x", n))
}

// CreateTestDay creates a day with the given opening jackpot
func CreateTestDay(dayIndex int64, jackpot int64) *models.LotteryDay {
	return &models.LotteryDay{
		DayIndex: dayIndex,
		Jackpot:  jackpot,
	}
}

// CreateTestPendingDraw creates a pending request for a day
func CreateTestPendingDraw(requestID uint64, dayIndex int64) *models.PendingDraw {
	return &models.PendingDraw{
		RequestID:     requestID,
		DayIndex:      dayIndex,
		Status:        models.PendingDrawStatusPending,
		CallerEntropy: common.BigToHash(common.Big1),
		FeePaid:       100_000_000_000_000,
		RequestedAt:   time.Now().UTC(),
	}
}

// CreateTestPurchase creates a purchase without referrer
func CreateTestPurchase(dayIndex int64, buyer common.Address, tickets, price int64) *models.TicketPurchase {
	split := models.SplitPurchase(tickets*price, false)
	return &models.TicketPurchase{
		DayIndex:     dayIndex,
		Buyer:        buyer,
		Tickets:      tickets,
		TotalCost:    split.TotalCost,
		JackpotDelta: split.JackpotDelta,
	}
}

// CreateTestVestingPosition creates a fresh position for a winner
func CreateTestVestingPosition(winner common.Address, dayIndex int64, total int64) *models.VestingPosition {
	return &models.VestingPosition{
		Winner:        winner,
		DayIndex:      dayIndex,
		TotalAmount:   total,
		MonthlyAmount: total / models.VestingInstallments,
		LastClaimTime: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestYieldRun creates a test yield run
func CreateTestYieldRun(runDate time.Time) *models.YieldRun {
	return &models.YieldRun{
		RunDate:           runDate,
		TotalYieldAccrued: 5000,
		PositionsAffected: 10,
		ExecutionSummary: map[string]interface{}{
			"apy_bps":   400,
			"max_yield": 1000,
			"min_yield": 100,
		},
	}
}

// CreateTestYieldRunWithDetails creates a test yield run with specific totals
func CreateTestYieldRunWithDetails(runDate time.Time, total int64, positions int) *models.YieldRun {
	run := CreateTestYieldRun(runDate)
	run.TotalYieldAccrued = total
	run.PositionsAffected = positions
	return run
}

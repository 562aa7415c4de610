package models

import (
	"time"
)

// YieldRun represents a daily vault yield accrual run
type YieldRun struct {
	ID                int64                  `db:"id"`
	RunDate           time.Time              `db:"run_date"`
	TotalYieldAccrued int64                  `db:"total_yield_accrued"`
	PositionsAffected int                    `db:"positions_affected"`
	ExecutionSummary  map[string]interface{} `db:"execution_summary"`
	CreatedAt         time.Time              `db:"created_at"`
}

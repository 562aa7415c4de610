package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"megayield/database"
	"megayield/models"

	"github.com/jackc/pgx/v5"
)

// YieldRunRepository implements the YieldRunRepository interface
type YieldRunRepository struct {
	q queryable
}

// NewYieldRunRepository creates a new yield run repository
func NewYieldRunRepository(db *database.DB) *YieldRunRepository {
	return &YieldRunRepository{q: db.Pool}
}

// newYieldRunRepositoryWithTx creates a new yield run repository with a transaction
func newYieldRunRepositoryWithTx(tx queryable) *YieldRunRepository {
	return &YieldRunRepository{q: tx}
}

// runDate truncates a timestamp to its UTC calendar date
func runDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetByDate checks if a yield run exists for a specific date
func (r *YieldRunRepository) GetByDate(ctx context.Context, date time.Time) (*models.YieldRun, error) {
	dateOnly := runDate(date)

	query := `
		SELECT id, run_date, total_yield_accrued, positions_affected,
		       execution_summary, created_at
		FROM yield_runs
		WHERE run_date = $1
	`

	run, err := scanYieldRun(r.q.QueryRow(ctx, query, dateOnly))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get yield run for date %s: %w", dateOnly.Format("2006-01-02"), err)
	}
	return run, nil
}

// Create creates a new yield run record
func (r *YieldRunRepository) Create(ctx context.Context, run *models.YieldRun) error {
	run.RunDate = runDate(run.RunDate)

	summaryJSON, err := json.Marshal(run.ExecutionSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	query := `
		INSERT INTO yield_runs
		(run_date, total_yield_accrued, positions_affected, execution_summary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		run.RunDate,
		run.TotalYieldAccrued,
		run.PositionsAffected,
		summaryJSON,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create yield run for date %s: %w",
			run.RunDate.Format("2006-01-02"), err)
	}

	return nil
}

// GetLatest returns the most recent yield run
func (r *YieldRunRepository) GetLatest(ctx context.Context) (*models.YieldRun, error) {
	query := `
		SELECT id, run_date, total_yield_accrued, positions_affected,
		       execution_summary, created_at
		FROM yield_runs
		ORDER BY run_date DESC
		LIMIT 1
	`

	run, err := scanYieldRun(r.q.QueryRow(ctx, query))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest yield run: %w", err)
	}
	return run, nil
}

func scanYieldRun(row pgx.Row) (*models.YieldRun, error) {
	var run models.YieldRun
	var summaryJSON []byte

	err := row.Scan(
		&run.ID,
		&run.RunDate,
		&run.TotalYieldAccrued,
		&run.PositionsAffected,
		&summaryJSON,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ExecutionSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution summary: %w", err)
		}
	}
	return &run, nil
}

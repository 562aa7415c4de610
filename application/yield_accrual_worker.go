package application

import (
	"context"
	"time"

	"megayield/service"

	log "github.com/sirupsen/logrus"
)

// YieldAccrualWorker runs the vault's daily yield accrual at a fixed UTC hour
type YieldAccrualWorker struct {
	yield   service.YieldService
	runHour int
	now     func() time.Time
}

// NewYieldAccrualWorker creates a new yield accrual worker
func NewYieldAccrualWorker(yield service.YieldService, runHour int) *YieldAccrualWorker {
	return &YieldAccrualWorker{
		yield:   yield,
		runHour: runHour,
		now:     time.Now,
	}
}

// Start begins the yield accrual worker. The current period is caught up immediately.
func (w *YieldAccrualWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.Infof("Yield accrual worker started, runs at %02d:00 UTC", w.runHour)

		// Catch up if the process was down at the last run time
		w.RunOnce(ctx)

		for {
			waitDuration := service.GetNextRunTime(w.now(), w.runHour).Sub(w.now())
			log.Infof("Yield accrual worker waiting %v until next run", waitDuration)

			select {
			case <-ctx.Done():
				log.Info("Yield accrual worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Yield accrual worker shutting down (stop requested)...")
				return
			case <-time.After(waitDuration):
				w.RunOnce(ctx)
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce accrues yield for the period the current time falls into
func (w *YieldAccrualWorker) RunOnce(ctx context.Context) {
	periodStart := service.GetCurrentPeriodStart(w.now(), w.runHour)
	runDate := time.Date(periodStart.Year(), periodStart.Month(), periodStart.Day(), 0, 0, 0, 0, time.UTC)

	run, err := w.yield.RunDailyAccrual(ctx, runDate)
	if err != nil {
		log.Errorf("Error running daily yield accrual for %s: %v", runDate.Format("2006-01-02"), err)
		return
	}

	log.WithFields(log.Fields{
		"runDate":           runDate.Format("2006-01-02"),
		"totalYieldAccrued": run.TotalYieldAccrued,
		"positionsAffected": run.PositionsAffected,
	}).Info("Yield accrual worker finished run")
}

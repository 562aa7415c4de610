package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"megayield/models"
	"megayield/service"

	"github.com/stretchr/testify/mock"
)

func TestYieldAccrualWorker_RunOnce(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name     string
		now      time.Time
		runHour  int
		wantDate time.Time
	}{
		{
			name:     "after the run hour uses today",
			now:      time.Date(2025, 2, 1, 15, 30, 0, 0, time.UTC),
			runHour:  6,
			wantDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "before the run hour uses yesterday",
			now:      time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC),
			runHour:  6,
			wantDate: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			yield := new(service.MockYieldService)
			worker := NewYieldAccrualWorker(yield, tc.runHour)
			worker.now = func() time.Time { return tc.now }

			yield.On("RunDailyAccrual", ctx, tc.wantDate).Return(&models.YieldRun{RunDate: tc.wantDate}, nil)

			worker.RunOnce(ctx)

			yield.AssertExpectations(t)
		})
	}
}

func TestYieldAccrualWorker_RunOnce_FailureIsLogged(t *testing.T) {
	ctx := context.Background()
	yield := new(service.MockYieldService)
	worker := NewYieldAccrualWorker(yield, 0)
	worker.now = func() time.Time { return time.Date(2025, 2, 1, 1, 0, 0, 0, time.UTC) }

	yield.On("RunDailyAccrual", ctx, mock.Anything).Return(nil, errors.New("deadlock detected"))

	worker.RunOnce(ctx)

	yield.AssertNumberOfCalls(t, "RunDailyAccrual", 1)
}

func TestYieldAccrualWorker_Start_CatchesUpAndStops(t *testing.T) {
	yield := new(service.MockYieldService)
	worker := NewYieldAccrualWorker(yield, 0)
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	yield.On("RunDailyAccrual", ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)).
		Return(&models.YieldRun{}, nil).
		Run(func(mock.Arguments) { close(done) }).
		Once()

	stop := worker.Start(ctx)
	defer stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not catch up on start")
	}
}

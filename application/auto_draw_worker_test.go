package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"megayield/models"
	"megayield/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testOperator = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	testEntropy  = common.HexToHash("0x5eed")
	dayEnd       = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
)

const testFee = int64(100_000_000_000_000)

func newTestAutoDrawWorker(lottery *service.MockLotteryService, now time.Time) *AutoDrawWorker {
	worker := NewAutoDrawWorker(lottery, testOperator, 10*time.Minute)
	worker.now = func() time.Time { return now }
	worker.entropy = func() (common.Hash, error) { return testEntropy, nil }
	return worker
}

func openDay(ticketCount int) *models.DayInfo {
	return &models.DayInfo{
		CurrentDay:  20089,
		StartTime:   dayEnd.Add(-24 * time.Hour),
		EndTime:     dayEnd,
		Jackpot:     int64(ticketCount) * 1_000_000,
		TicketCount: ticketCount,
		State:       models.DayStateOpen,
	}
}

func TestAutoDrawWorker_RunOnce_BeforeWindow(t *testing.T) {
	ctx := context.Background()
	lottery := new(service.MockLotteryService)
	worker := newTestAutoDrawWorker(lottery, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	lottery.On("CurrentDayInfo", ctx).Return(openDay(3), nil)

	next := worker.RunOnce(ctx)

	assert.Equal(t, dayEnd.Add(-10*time.Minute), next)
	lottery.AssertNotCalled(t, "RequestDraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoDrawWorker_RunOnce_RequestsDrawInWindow(t *testing.T) {
	ctx := context.Background()
	lottery := new(service.MockLotteryService)
	now := dayEnd.Add(-5 * time.Minute)
	worker := newTestAutoDrawWorker(lottery, now)

	lottery.On("CurrentDayInfo", ctx).Return(openDay(3), nil)
	lottery.On("RequiredFee", ctx).Return(testFee, nil)
	lottery.On("RequestDraw", ctx, testOperator, testEntropy, testFee).
		Return(&models.PendingDraw{RequestID: 1, DayIndex: 20089}, nil)

	next := worker.RunOnce(ctx)

	assert.Equal(t, now.Add(time.Minute), next)
	lottery.AssertExpectations(t)
}

func TestAutoDrawWorker_RunOnce_SkipsEmptyDay(t *testing.T) {
	ctx := context.Background()
	lottery := new(service.MockLotteryService)
	now := dayEnd.Add(-30 * time.Second)
	worker := newTestAutoDrawWorker(lottery, now)
	lottery.On("CurrentDayInfo", ctx).Return(openDay(0), nil)

	next := worker.RunOnce(ctx)

	assert.Equal(t, dayEnd, next, "polling stops at the end of the day")
	lottery.AssertNotCalled(t, "RequestDraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoDrawWorker_RunOnce_DrawnDayWaitsForNextDay(t *testing.T) {
	ctx := context.Background()
	lottery := new(service.MockLotteryService)
	worker := newTestAutoDrawWorker(lottery, dayEnd.Add(-time.Minute))
	info := openDay(2)
	info.State = models.DayStateDrawn
	lottery.On("CurrentDayInfo", ctx).Return(info, nil)

	assert.Equal(t, dayEnd, worker.RunOnce(ctx))
}

func TestAutoDrawWorker_RunOnce_Failures(t *testing.T) {
	ctx := context.Background()
	now := dayEnd.Add(-5 * time.Minute)

	testCases := []struct {
		name string
		err  error
	}{
		{"request still pending", fmt.Errorf("request 1 is still waiting: %w", service.ErrDrawRequestPending)},
		{"oracle unreachable", errors.New("nats: timeout")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lottery := new(service.MockLotteryService)
			worker := newTestAutoDrawWorker(lottery, now)
			info := openDay(3)
			info.State = models.DayStateRequestPending
			lottery.On("CurrentDayInfo", ctx).Return(info, nil)
			lottery.On("RequiredFee", ctx).Return(testFee, nil)
			lottery.On("RequestDraw", ctx, testOperator, testEntropy, testFee).Return(nil, tc.err)

			assert.Equal(t, now.Add(time.Minute), worker.RunOnce(ctx))
			lottery.AssertExpectations(t)
		})
	}

	t.Run("day info unavailable", func(t *testing.T) {
		lottery := new(service.MockLotteryService)
		worker := newTestAutoDrawWorker(lottery, now)
		lottery.On("CurrentDayInfo", ctx).Return(nil, errors.New("connection refused"))

		assert.Equal(t, now.Add(time.Minute), worker.RunOnce(ctx))
	})
}

func TestAutoDrawWorker_PendingRequestAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	lottery := new(service.MockLotteryService)
	worker := newTestAutoDrawWorker(lottery, dayEnd)
	clock := dayEnd.Add(-10 * time.Minute)
	worker.now = func() time.Time { return clock }

	pending := openDay(3)
	pending.State = models.DayStateRequestPending
	nextDay := &models.DayInfo{
		CurrentDay: 20090,
		StartTime:  dayEnd,
		EndTime:    dayEnd.Add(24 * time.Hour),
		Jackpot:    3_000_000,
		State:      models.DayStateOpen,
	}

	lottery.On("CurrentDayInfo", ctx).Return(openDay(3), nil).Once()
	lottery.On("CurrentDayInfo", ctx).Return(pending, nil).Twice()
	lottery.On("CurrentDayInfo", ctx).Return(nextDay, nil).Once()
	lottery.On("RequiredFee", ctx).Return(testFee, nil)

	var requestedAt []time.Time
	lottery.On("RequestDraw", ctx, testOperator, testEntropy, testFee).
		Run(func(mock.Arguments) { requestedAt = append(requestedAt, clock) }).
		Return(&models.PendingDraw{RequestID: 1, DayIndex: 20089}, nil).Once()
	lottery.On("RequestDraw", ctx, testOperator, testEntropy, testFee).
		Run(func(mock.Arguments) { requestedAt = append(requestedAt, clock) }).
		Return(nil, fmt.Errorf("request 1 is still waiting: %w", service.ErrDrawRequestPending))

	// Opens the window with a request
	clock = worker.RunOnce(ctx)
	assert.Equal(t, dayEnd.Add(-9*time.Minute), clock)

	// Polls while the answer is outstanding
	clock = dayEnd.Add(-30 * time.Second)
	assert.Equal(t, dayEnd, worker.RunOnce(ctx), "polling stops at the end of the day")
	clock = dayEnd.Add(-time.Second)
	assert.Equal(t, dayEnd, worker.RunOnce(ctx))

	// The day ended unanswered: the next purchase expires request 1 and carries the jackpot.
	// The worker must not request for the new day before its own window.
	clock = dayEnd.Add(time.Second)
	assert.Equal(t, nextDay.EndTime.Add(-10*time.Minute), worker.RunOnce(ctx))

	require.Len(t, requestedAt, 3)
	for _, at := range requestedAt {
		assert.True(t, at.Before(dayEnd), "requested at %s", at)
		assert.False(t, at.Before(dayEnd.Add(-10*time.Minute)), "requested at %s", at)
	}
	lottery.AssertExpectations(t)
}

func TestCryptoEntropy(t *testing.T) {
	first, err := CryptoEntropy()
	assert.NoError(t, err)
	second, err := CryptoEntropy()
	assert.NoError(t, err)

	assert.NotEqual(t, common.Hash{}, first)
	assert.NotEqual(t, first, second)
}

package application

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"megayield/models"
	"megayield/service"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// EntropySource produces the caller entropy mixed into each randomness request
type EntropySource func() (common.Hash, error)

// CryptoEntropy reads 32 bytes from crypto/rand
func CryptoEntropy() (common.Hash, error) {
	var entropy common.Hash
	if _, err := rand.Read(entropy[:]); err != nil {
		return common.Hash{}, fmt.Errorf("failed to read entropy: %w", err)
	}
	return entropy, nil
}

// AutoDrawWorker requests the draw for the current day shortly before it ends, acting as the operator
type AutoDrawWorker struct {
	lottery      service.LotteryService
	operator     common.Address
	lead         time.Duration
	pollInterval time.Duration
	entropy      EntropySource
	now          func() time.Time
}

// NewAutoDrawWorker creates a worker that draws lead before the end of every day
func NewAutoDrawWorker(lottery service.LotteryService, operator common.Address, lead time.Duration) *AutoDrawWorker {
	return &AutoDrawWorker{
		lottery:      lottery,
		operator:     operator,
		lead:         lead,
		pollInterval: time.Minute,
		entropy:      CryptoEntropy,
		now:          time.Now,
	}
}

// Start begins the auto draw worker
func (w *AutoDrawWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("lead", w.lead).Info("Auto draw worker started")

		for {
			next := w.RunOnce(ctx)
			waitDuration := next.Sub(w.now())
			if waitDuration < 0 {
				waitDuration = 0
			}

			log.Debugf("Auto draw worker waiting %v", waitDuration)

			select {
			case <-ctx.Done():
				log.Info("Auto draw worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Auto draw worker shutting down (stop requested)...")
				return
			case <-time.After(waitDuration):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce requests a draw if the current day is inside its draw window and returns when to check again
func (w *AutoDrawWorker) RunOnce(ctx context.Context) time.Time {
	now := w.now()

	info, err := w.lottery.CurrentDayInfo(ctx)
	if err != nil {
		log.Errorf("Failed to get current day info: %v", err)
		return now.Add(w.pollInterval)
	}

	drawAt := info.EndTime.Add(-w.lead)
	if now.Before(drawAt) {
		return drawAt
	}

	if info.State == models.DayStateDrawn {
		return info.EndTime
	}

	next := now.Add(w.pollInterval)
	if info.EndTime.Before(next) {
		next = info.EndTime
	}

	if info.TicketCount == 0 {
		return next
	}

	// While a request is pending the lottery refuses until it goes stale, then replaces it
	if err := w.requestDraw(ctx, info); err != nil {
		switch {
		case errors.Is(err, service.ErrDrawRequestPending),
			errors.Is(err, service.ErrNoTicketsForDay),
			errors.Is(err, service.ErrAlreadyDrawnForDay):
			log.WithFields(log.Fields{
				"dayIndex": info.CurrentDay,
				"reason":   err,
			}).Debug("Auto draw skipped")
		default:
			log.Errorf("Auto draw for day %d failed: %v", info.CurrentDay, err)
		}
	}

	return next
}

func (w *AutoDrawWorker) requestDraw(ctx context.Context, info *models.DayInfo) error {
	fee, err := w.lottery.RequiredFee(ctx)
	if err != nil {
		return fmt.Errorf("failed to get oracle fee: %w", err)
	}

	entropy, err := w.entropy()
	if err != nil {
		return err
	}

	draw, err := w.lottery.RequestDraw(ctx, w.operator, entropy, fee)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"dayIndex":    draw.DayIndex,
		"requestID":   draw.RequestID,
		"jackpot":     info.Jackpot,
		"ticketCount": info.TicketCount,
	}).Info("Auto draw requested")
	return nil
}

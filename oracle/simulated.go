package oracle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"megayield/infrastructure/observability"
	"megayield/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

var (
	ErrCallbackAlreadyExecuted = errors.New("callback already executed")
	ErrUnknownSequence         = errors.New("unknown sequence number")
	ErrNoCallbackHandler       = errors.New("no callback handler registered")
)

type simulatedRequest struct {
	entropy  common.Hash
	fee      int64
	executed bool
	timer    *time.Timer
}

// Simulated is an in-process randomness provider for development and tests.
// Requests get increasing sequence numbers starting at 1. Execute derives the
// value and delivers it to the registered callback as the provider.
type Simulated struct {
	provider common.Address
	fee      int64
	secret   common.Hash
	delay    time.Duration

	mu       sync.Mutex
	sequence uint64
	requests map[uint64]*simulatedRequest
	handler  service.RandomnessCallback
	closed   bool
}

// NewSimulated creates a simulated provider. A positive delay executes every
// request automatically that long after it was made; zero leaves execution to Execute.
func NewSimulated(provider common.Address, fee int64, secret common.Hash, delay time.Duration) *Simulated {
	return &Simulated{
		provider: provider,
		fee:      fee,
		secret:   secret,
		delay:    delay,
		requests: make(map[uint64]*simulatedRequest),
	}
}

// DeriveRandomValue mixes the caller entropy with the provider secret and sequence number
func DeriveRandomValue(callerEntropy, secret common.Hash, sequence uint64) common.Hash {
	var seq [32]byte
	binary.BigEndian.PutUint64(seq[24:], sequence)
	return crypto.Keccak256Hash(callerEntropy.Bytes(), secret.Bytes(), seq[:])
}

func (s *Simulated) RequiredFee(ctx context.Context) (int64, error) {
	return s.fee, nil
}

func (s *Simulated) Provider() common.Address {
	return s.provider
}

func (s *Simulated) OnCallback(handler service.RandomnessCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Request records a request and returns its sequence number.
// Delivery never happens on the caller's goroutine.
func (s *Simulated) Request(ctx context.Context, callerEntropy common.Hash, fee int64) (uint64, error) {
	if fee < s.fee {
		return 0, fmt.Errorf("fee %d below required %d: %w", fee, s.fee, service.ErrInsufficientFee)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("simulated oracle is closed")
	}

	s.sequence++
	sequence := s.sequence
	request := &simulatedRequest{entropy: callerEntropy, fee: fee}
	s.requests[sequence] = request

	if s.delay > 0 {
		request.timer = time.AfterFunc(s.delay, func() {
			if err := s.Execute(context.Background(), sequence); err != nil {
				log.WithFields(log.Fields{
					"sequence": sequence,
					"error":    err,
				}).Warn("Scheduled randomness delivery failed")
			}
		})
	}

	log.WithFields(log.Fields{
		"sequence": sequence,
		"fee":      fee,
		"delay":    s.delay,
	}).Debug("Simulated randomness requested")

	return sequence, nil
}

// Execute delivers the value for a sequence number to the registered callback.
// A delivery the callback rejects can be executed again.
func (s *Simulated) Execute(ctx context.Context, sequence uint64) error {
	s.mu.Lock()
	request, ok := s.requests[sequence]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("sequence %d: %w", sequence, ErrUnknownSequence)
	}
	if request.executed {
		s.mu.Unlock()
		return fmt.Errorf("sequence %d: %w", sequence, ErrCallbackAlreadyExecuted)
	}
	handler := s.handler
	if handler == nil {
		s.mu.Unlock()
		return ErrNoCallbackHandler
	}
	request.executed = true
	if request.timer != nil {
		request.timer.Stop()
	}
	value := DeriveRandomValue(request.entropy, s.secret, sequence)
	s.mu.Unlock()

	err := handler(ctx, s.provider, sequence, value)
	recordDelivery(err)
	if err != nil {
		s.mu.Lock()
		request.executed = false
		s.mu.Unlock()
		return fmt.Errorf("callback for sequence %d failed: %w", sequence, err)
	}

	log.WithField("sequence", sequence).Info("Simulated randomness delivered")
	return nil
}

// Close stops every scheduled delivery
func (s *Simulated) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, request := range s.requests {
		if request.timer != nil {
			request.timer.Stop()
		}
	}
}

// recordDelivery counts a callback outcome
func recordDelivery(err error) {
	switch {
	case err == nil:
		observability.OracleCallbacksTotal.WithLabelValues(observability.ResultDelivered).Inc()
	case errors.Is(err, service.ErrUnknownRequestID), errors.Is(err, service.ErrUnauthorizedCallback), errors.Is(err, service.ErrAlreadyDrawnForDay):
		observability.OracleCallbacksTotal.WithLabelValues(observability.ResultRejected).Inc()
	default:
		observability.OracleCallbacksTotal.WithLabelValues(observability.ResultFailed).Inc()
	}
}

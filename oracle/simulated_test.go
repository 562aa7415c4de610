package oracle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"megayield/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testProvider = common.HexToAddress("0x00000000000000000000000000000000000e7709")
	testSecret   = common.HexToHash("0x5ec2e7")
)

const testFee = 100_000_000_000_000

type delivery struct {
	provider  common.Address
	requestID uint64
	value     common.Hash
}

type recordingCallback struct {
	mu         sync.Mutex
	deliveries []delivery
	err        error
}

func (r *recordingCallback) handle(ctx context.Context, provider common.Address, requestID uint64, value common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.deliveries = append(r.deliveries, delivery{provider: provider, requestID: requestID, value: value})
	return nil
}

func (r *recordingCallback) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func TestSimulated_Request(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(testProvider, testFee, testSecret, 0)

	t.Run("sequence numbers start at one", func(t *testing.T) {
		first, err := sim.Request(ctx, common.HexToHash("0x01"), testFee)
		require.NoError(t, err)
		second, err := sim.Request(ctx, common.HexToHash("0x02"), testFee*2)
		require.NoError(t, err)

		assert.Equal(t, uint64(1), first)
		assert.Equal(t, uint64(2), second)
	})

	t.Run("fee below the required fee", func(t *testing.T) {
		_, err := sim.Request(ctx, common.Hash{}, testFee-1)
		assert.ErrorIs(t, err, service.ErrInsufficientFee)
	})

	fee, err := sim.RequiredFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(testFee), fee)
	assert.Equal(t, testProvider, sim.Provider())
}

func TestSimulated_Execute(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(testProvider, testFee, testSecret, 0)
	callback := &recordingCallback{}
	sim.OnCallback(callback.handle)

	entropy := common.HexToHash("0x5eed")
	sequence, err := sim.Request(ctx, entropy, testFee)
	require.NoError(t, err)

	require.NoError(t, sim.Execute(ctx, sequence))
	require.Len(t, callback.deliveries, 1)
	assert.Equal(t, testProvider, callback.deliveries[0].provider)
	assert.Equal(t, sequence, callback.deliveries[0].requestID)
	assert.Equal(t, DeriveRandomValue(entropy, testSecret, sequence), callback.deliveries[0].value)

	t.Run("replay is refused", func(t *testing.T) {
		err := sim.Execute(ctx, sequence)
		assert.ErrorIs(t, err, ErrCallbackAlreadyExecuted)
		assert.Len(t, callback.deliveries, 1)
	})

	t.Run("unknown sequence", func(t *testing.T) {
		err := sim.Execute(ctx, 99)
		assert.ErrorIs(t, err, ErrUnknownSequence)
	})
}

func TestSimulated_Execute_RejectedCallbackCanRetry(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(testProvider, testFee, testSecret, 0)
	callback := &recordingCallback{err: fmt.Errorf("request 1: %w", service.ErrUnknownRequestID)}
	sim.OnCallback(callback.handle)

	sequence, err := sim.Request(ctx, common.Hash{}, testFee)
	require.NoError(t, err)

	err = sim.Execute(ctx, sequence)
	assert.ErrorIs(t, err, service.ErrUnknownRequestID)

	callback.err = nil
	require.NoError(t, sim.Execute(ctx, sequence))
	assert.Equal(t, 1, callback.count())
}

func TestSimulated_Execute_NoHandler(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(testProvider, testFee, testSecret, 0)
	sequence, err := sim.Request(ctx, common.Hash{}, testFee)
	require.NoError(t, err)

	assert.ErrorIs(t, sim.Execute(ctx, sequence), ErrNoCallbackHandler)
}

func TestSimulated_DelayedDelivery(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(testProvider, testFee, testSecret, 20*time.Millisecond)
	defer sim.Close()
	callback := &recordingCallback{}
	sim.OnCallback(callback.handle)

	_, err := sim.Request(ctx, common.HexToHash("0xabc"), testFee)
	require.NoError(t, err)
	assert.Zero(t, callback.count(), "delivery must not happen inside Request")

	assert.Eventually(t, func() bool { return callback.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDeriveRandomValue_DependsOnEveryInput(t *testing.T) {
	entropy := common.HexToHash("0x01")
	base := DeriveRandomValue(entropy, testSecret, 1)

	assert.Equal(t, base, DeriveRandomValue(entropy, testSecret, 1))
	assert.NotEqual(t, base, DeriveRandomValue(common.HexToHash("0x02"), testSecret, 1))
	assert.NotEqual(t, base, DeriveRandomValue(entropy, common.HexToHash("0x03"), 1))
	assert.NotEqual(t, base, DeriveRandomValue(entropy, testSecret, 2))
}

package models

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSplitPurchase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		totalCost    int64
		hasReferrer  bool
		wantReferral int64
		wantJackpot  int64
	}{
		{
			name:         "no referrer keeps everything in the jackpot",
			totalCost:    1_000_000,
			hasReferrer:  false,
			wantReferral: 0,
			wantJackpot:  1_000_000,
		},
		{
			name:         "referrer gets 30 percent",
			totalCost:    1_000_000,
			hasReferrer:  true,
			wantReferral: 300_000,
			wantJackpot:  700_000,
		},
		{
			name:         "truncation remainder stays with the jackpot",
			totalCost:    7,
			hasReferrer:  true,
			wantReferral: 2,
			wantJackpot:  5,
		},
		{
			name:         "thousand tickets",
			totalCost:    1_000 * 1_000_000,
			hasReferrer:  true,
			wantReferral: 300_000_000,
			wantJackpot:  700_000_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			split := SplitPurchase(tt.totalCost, tt.hasReferrer)
			assert.Equal(t, tt.wantReferral, split.ReferralShare)
			assert.Equal(t, tt.wantJackpot, split.JackpotDelta)
			assert.Equal(t, tt.totalCost, split.ReferralShare+split.JackpotDelta)
		})
	}
}

func TestSplitPurchase_ConservesValue(t *testing.T) {
	t.Parallel()

	for total := int64(1); total <= 5_000; total++ {
		split := SplitPurchase(total, true)
		if !assert.Equal(t, total, split.ReferralShare+split.JackpotDelta, "total %d", total) {
			return
		}
	}
}

func TestIsValidReferrer(t *testing.T) {
	t.Parallel()

	buyer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")

	assert.True(t, IsValidReferrer(buyer, other))
	assert.False(t, IsValidReferrer(buyer, buyer), "self referral is ignored")
	assert.False(t, IsValidReferrer(buyer, common.Address{}), "zero address is no referrer")
}

func TestSplitJackpot(t *testing.T) {
	t.Parallel()

	split := SplitJackpot(3_000_000)
	assert.Equal(t, int64(25_000), split.FirstPayment)
	assert.Equal(t, int64(2_975_000), split.VestingAmount)
	assert.Equal(t, int64(24_791), split.MonthlyAmount)
	assert.Equal(t, split.Jackpot, split.FirstPayment+split.VestingAmount)

	// 119 regular installments leave the remainder for the last one
	final := split.VestingAmount - split.MonthlyAmount*(VestingInstallments-1)
	assert.Equal(t, int64(24_791+80), final)
}

func TestSplitJackpot_Conservation(t *testing.T) {
	t.Parallel()

	for _, jackpot := range []int64{1, 119, 120, 121, 999_999, 3_000_000, 123_456_789} {
		split := SplitJackpot(jackpot)
		assert.Equal(t, jackpot, split.FirstPayment+split.VestingAmount)
		assert.GreaterOrEqual(t, split.VestingAmount-split.MonthlyAmount*(VestingInstallments-1), split.MonthlyAmount)
	}
}

func TestWinnerIndex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(1), WinnerIndex(common.BigToHash(big.NewInt(7)), 3))
	assert.Equal(t, int64(0), WinnerIndex(common.BigToHash(big.NewInt(9)), 3))
	assert.Equal(t, int64(0), WinnerIndex(common.Hash{}, 5))
	assert.Equal(t, int64(0), WinnerIndex(common.BigToHash(big.NewInt(7)), 0))

	// full-width values reduce without overflow
	max := common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	idx := WinnerIndex(max, 10)
	assert.Equal(t, int64(5), idx)
}

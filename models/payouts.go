package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// ReferralPercent is the share of a purchase paid straight to a valid referrer
	ReferralPercent = 30

	// VestingInstallments is both the first-payment divisor and the number of claims
	VestingInstallments = 120

	// ClaimInterval is the minimum time between two vesting claims
	ClaimInterval = 30 * 24 * time.Hour
)

// PurchaseSplit is how one purchase is divided between referrer and jackpot
type PurchaseSplit struct {
	TotalCost     int64
	ReferralShare int64
	JackpotDelta  int64
}

// SplitPurchase divides a purchase. The jackpot always gets the remainder so
// ReferralShare + JackpotDelta == TotalCost.
func SplitPurchase(totalCost int64, hasReferrer bool) PurchaseSplit {
	split := PurchaseSplit{TotalCost: totalCost, JackpotDelta: totalCost}
	if hasReferrer {
		split.ReferralShare = totalCost * ReferralPercent / 100
		split.JackpotDelta = totalCost - split.ReferralShare
	}
	return split
}

// IsValidReferrer returns true if the referrer is set and is not the buyer
func IsValidReferrer(buyer, referrer common.Address) bool {
	return referrer != (common.Address{}) && referrer != buyer
}

// JackpotSplit is how a settled jackpot is divided between the first payment and vesting
type JackpotSplit struct {
	Jackpot       int64
	FirstPayment  int64
	VestingAmount int64
	MonthlyAmount int64
}

// SplitJackpot carves the first payment out of the jackpot and sizes the monthly installment
func SplitJackpot(jackpot int64) JackpotSplit {
	first := jackpot / VestingInstallments
	vesting := jackpot - first
	return JackpotSplit{
		Jackpot:       jackpot,
		FirstPayment:  first,
		VestingAmount: vesting,
		MonthlyAmount: vesting / VestingInstallments,
	}
}

// WinnerIndex reduces a 256-bit random value onto [0, buyerCount) by modulo
func WinnerIndex(randomValue common.Hash, buyerCount int) int64 {
	if buyerCount <= 0 {
		return 0
	}
	n := new(big.Int).SetBytes(randomValue.Bytes())
	return n.Mod(n, big.NewInt(int64(buyerCount))).Int64()
}

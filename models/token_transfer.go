package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferKind represents why tokens moved
type TransferKind string

const (
	TransferKindTicketPurchase    TransferKind = "ticket_purchase"
	TransferKindReferralPayout    TransferKind = "referral_payout"
	TransferKindFirstPayment      TransferKind = "first_payment"
	TransferKindVestingFunding    TransferKind = "vesting_funding"
	TransferKindVaultDeposit      TransferKind = "vault_deposit"
	TransferKindVaultWithdrawal   TransferKind = "vault_withdrawal"
	TransferKindVestingClaim      TransferKind = "vesting_claim"
	TransferKindEmergencyWithdraw TransferKind = "emergency_withdraw"
	TransferKindYieldAccrual      TransferKind = "yield_accrual"
	TransferKindMint              TransferKind = "mint"
	TransferKindTransfer          TransferKind = "transfer"
)

// TokenTransfer is one row of the stable-unit token ledger. From is nil for mints.
type TokenTransfer struct {
	ID        int64           `db:"id" json:"id"`
	From      *common.Address `db:"from_address" json:"from,omitempty"`
	To        common.Address  `db:"to_address" json:"to"`
	Amount    int64           `db:"amount" json:"amount"`
	Kind      TransferKind    `db:"kind" json:"kind"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// TokenAccount is the balance view of one address
type TokenAccount struct {
	Address common.Address `json:"address"`
	Balance int64          `json:"balance"`
	Display string         `json:"display"`
}

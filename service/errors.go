package service

import "errors"

// Lottery and vesting failures. Callers match them with errors.Is; collaborators
// wrap them with %w so the sentinel survives.
var (
	ErrInsufficientAllowance    = errors.New("insufficient allowance")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrNoTicketsForDay          = errors.New("no tickets for day")
	ErrAlreadyDrawnForDay       = errors.New("already drawn for day")
	ErrVestingAlreadyConfigured = errors.New("vesting already configured")
	ErrVestingNotConfigured     = errors.New("vesting not configured")
	ErrUnauthorizedCaller       = errors.New("unauthorized caller")
	ErrClaimTooSoon             = errors.New("claim too soon")
	ErrScheduleExhausted        = errors.New("vesting schedule exhausted")
	ErrUnknownRequestID         = errors.New("unknown request id")
	ErrUnauthorizedCallback     = errors.New("unauthorized callback")

	ErrInvalidAmount          = errors.New("invalid amount")
	ErrDrawRequestPending     = errors.New("draw request already pending")
	ErrInvalidVestingAddress  = errors.New("invalid vesting address")
	ErrPositionNotFound       = errors.New("vesting position not found")
	ErrVaultInsufficientFunds = errors.New("vault has insufficient funds")
	ErrInsufficientFee        = errors.New("insufficient oracle fee")
	ErrFaucetDisabled         = errors.New("faucet is disabled in production")
)

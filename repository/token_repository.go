package repository

import (
	"context"
	"fmt"
	"sort"

	"megayield/database"
	"megayield/models"
	"megayield/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// TokenRepository implements the TokenRepository interface over the
// token_accounts, token_allowances and token_transfers tables
type TokenRepository struct {
	q queryable
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *database.DB) *TokenRepository {
	return &TokenRepository{q: db.Pool}
}

// newTokenRepositoryWithTx creates a new token repository with a transaction
func newTokenRepositoryWithTx(tx queryable) *TokenRepository {
	return &TokenRepository{q: tx}
}

// BalanceOf returns an address's balance
func (r *TokenRepository) BalanceOf(ctx context.Context, address common.Address) (int64, error) {
	query := `SELECT balance FROM token_accounts WHERE address = $1`

	var balance int64
	err := r.q.QueryRow(ctx, query, address.Hex()).Scan(&balance)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", address.Hex(), err)
	}
	return balance, nil
}

// Allowance returns how much spender may move on behalf of owner
func (r *TokenRepository) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	query := `SELECT amount FROM token_allowances WHERE owner = $1 AND spender = $2`

	var amount int64
	err := r.q.QueryRow(ctx, query, owner.Hex(), spender.Hex()).Scan(&amount)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get allowance of %s for %s: %w", owner.Hex(), spender.Hex(), err)
	}
	return amount, nil
}

// Approve sets the allowance of spender over owner's tokens
func (r *TokenRepository) Approve(ctx context.Context, owner, spender common.Address, amount int64) error {
	query := `
		INSERT INTO token_allowances (owner, spender, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, spender)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, owner.Hex(), spender.Hex(), amount); err != nil {
		return fmt.Errorf("failed to approve %s for %s: %w", spender.Hex(), owner.Hex(), err)
	}
	return nil
}

// Transfer moves tokens between two accounts
func (r *TokenRepository) Transfer(ctx context.Context, from, to common.Address, amount int64, kind models.TransferKind) error {
	if amount == 0 {
		return nil
	}
	if err := r.LockAccounts(ctx, from, to); err != nil {
		return err
	}
	if err := r.debit(ctx, from, amount); err != nil {
		return err
	}
	if err := r.credit(ctx, to, amount); err != nil {
		return err
	}
	return r.record(ctx, &from, to, amount, kind)
}

// TransferFrom moves tokens using spender's allowance
func (r *TokenRepository) TransferFrom(ctx context.Context, spender, from, to common.Address, amount int64, kind models.TransferKind) error {
	if amount == 0 {
		return nil
	}

	query := `
		UPDATE token_allowances
		SET amount = amount - $3, updated_at = NOW()
		WHERE owner = $1 AND spender = $2 AND amount >= $3
	`

	result, err := r.q.Exec(ctx, query, from.Hex(), spender.Hex(), amount)
	if err != nil {
		return fmt.Errorf("failed to spend allowance of %s: %w", from.Hex(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s has not approved %d for %s: %w", from.Hex(), amount, spender.Hex(), service.ErrInsufficientAllowance)
	}

	return r.Transfer(ctx, from, to, amount, kind)
}

// LockAccounts row-locks the accounts in byte order of their address, creating empty ones as needed.
// Transactions that lock every account they move funds between before the first transfer
// acquire token_accounts locks in one global order.
func (r *TokenRepository) LockAccounts(ctx context.Context, addresses ...common.Address) error {
	keys := make([]string, 0, len(addresses))
	seen := make(map[common.Address]bool, len(addresses))
	for _, address := range addresses {
		if seen[address] {
			continue
		}
		seen[address] = true
		keys = append(keys, address.Hex())
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	insert := `
		INSERT INTO token_accounts (address, balance)
		SELECT address, 0 FROM unnest($1::text[]) AS address
		ORDER BY address COLLATE "C"
		ON CONFLICT (address) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, insert, keys); err != nil {
		return fmt.Errorf("failed to open token accounts: %w", err)
	}

	lock := `
		SELECT address FROM token_accounts
		WHERE address = ANY($1)
		ORDER BY address COLLATE "C"
		FOR UPDATE
	`
	rows, err := r.q.Query(ctx, lock, keys)
	if err != nil {
		return fmt.Errorf("failed to lock token accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock token accounts: %w", err)
	}
	return nil
}

// Mint creates tokens
func (r *TokenRepository) Mint(ctx context.Context, to common.Address, amount int64, kind models.TransferKind) error {
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive: %w", service.ErrInvalidAmount)
	}
	if err := r.credit(ctx, to, amount); err != nil {
		return err
	}
	return r.record(ctx, nil, to, amount, kind)
}

// GetTransfers lists the most recent transfers touching an address
func (r *TokenRepository) GetTransfers(ctx context.Context, address common.Address, limit int) ([]*models.TokenTransfer, error) {
	query := `
		SELECT id, from_address, to_address, amount, kind, created_at
		FROM token_transfers
		WHERE from_address = $1 OR to_address = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, address.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers of %s: %w", address.Hex(), err)
	}
	defer rows.Close()

	var transfers []*models.TokenTransfer
	for rows.Next() {
		var t models.TokenTransfer
		var from *string
		var to string
		if err := rows.Scan(&t.ID, &from, &to, &t.Amount, &t.Kind, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token transfer: %w", err)
		}
		t.From = addressPtr(from)
		t.To = common.HexToAddress(to)
		transfers = append(transfers, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token transfers: %w", err)
	}

	return transfers, nil
}

func (r *TokenRepository) debit(ctx context.Context, from common.Address, amount int64) error {
	query := `
		UPDATE token_accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE address = $1 AND balance >= $2
	`

	result, err := r.q.Exec(ctx, query, from.Hex(), amount)
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", from.Hex(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s cannot cover %d: %w", from.Hex(), amount, service.ErrInsufficientBalance)
	}
	return nil
}

func (r *TokenRepository) credit(ctx context.Context, to common.Address, amount int64) error {
	query := `
		INSERT INTO token_accounts (address, balance)
		VALUES ($1, $2)
		ON CONFLICT (address)
		DO UPDATE SET balance = token_accounts.balance + EXCLUDED.balance, updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, to.Hex(), amount); err != nil {
		return fmt.Errorf("failed to credit %s: %w", to.Hex(), err)
	}
	return nil
}

func (r *TokenRepository) record(ctx context.Context, from *common.Address, to common.Address, amount int64, kind models.TransferKind) error {
	query := `
		INSERT INTO token_transfers (from_address, to_address, amount, kind)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.q.Exec(ctx, query, nullableAddress(from), to.Hex(), amount, kind); err != nil {
		return fmt.Errorf("failed to record %s transfer: %w", kind, err)
	}
	return nil
}

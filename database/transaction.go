package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

// SQLSTATEs after which the same work may succeed in a fresh transaction
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

const maxTxAttempts = 3

// InTx runs fn inside a transaction begun with opts and commits when fn returns nil.
// fn is re-run from scratch after a serialization failure or deadlock, so it must not
// keep side effects outside tx.
func (db *DB) InTx(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, db.Pool, opts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		log.WithFields(log.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Transaction aborted by a conflicting one, retrying")
	}
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a serialization failure or deadlock raised by Postgres
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

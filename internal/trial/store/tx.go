package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dErrors "trialstore/pkg/domain-errors"
	txcontext "trialstore/pkg/platform/tx"
)

const defaultTxTimeout = 30 * time.Second

// TxRunner provides the transactional boundary for one trial's writes.
// Implementations may wrap a database transaction or, in-memory, a staged
// apply.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PostgresTxRunner runs fn inside a single database transaction at the
// connection's default isolation (read committed), which is enough to keep a
// parent row and its children invisible to readers until commit.
type PostgresTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTxRunner constructs a transaction runner over the pool.
func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner {
	return &PostgresTxRunner{db: db}
}

func (t *PostgresTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

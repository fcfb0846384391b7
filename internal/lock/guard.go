package lock

import (
	"context"
	"fmt"

	"wealthwise/internal/ledger"
)

// WithUserLock runs fn inside a transaction that holds the (userID,
// namespace) lock. Concurrent callers sharing both values run one at a time;
// the lock is dropped when the transaction commits or rolls back, whether fn
// succeeded or not.
func WithUserLock(ctx context.Context, tr ledger.Transactor, userID int64, namespace string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return tr.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockUser(ctx, userID, namespace); err != nil {
			return fmt.Errorf("acquire user lock: %w", err)
		}
		return fn(ctx, tx)
	})
}

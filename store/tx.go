// store/tx.go
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// txKey is the unexported context key carrying the open transaction.
// A private type prevents collisions with other context values.
type txKey struct{}

// txState is one open transaction plus the deferred hook work scheduled
// against its commit.
type txState struct {
	tx       *sql.Tx
	onCommit []func(ctx context.Context) error
}

// txFrom extracts the transaction state from a context, if any.
func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// TxManager implements the dispatcher's transaction collaborator over
// database/sql transactions carried in the context. It is stateless; all
// state lives in the context, so one value serves every goroutine.
type TxManager struct{}

// InAtomicBlock reports whether ctx carries an open transaction.
func (TxManager) InAtomicBlock(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// OnCommit schedules fn against the transaction carried in ctx. Without
// an open transaction fn runs immediately; the dispatcher only defers
// when InAtomicBlock reports true, so that path is a safety net.
func (TxManager) OnCommit(ctx context.Context, fn func(ctx context.Context) error) {
	if st := txFrom(ctx); st != nil {
		st.onCommit = append(st.onCommit, fn)
		return
	}
	_ = fn(ctx)
}

// RunInTransaction executes fn inside a transaction, handling commit and
// rollback. A nested call reuses the transaction already in ctx. After a
// successful commit the deferred after_* hook callbacks run, on this
// goroutine, with a context that no longer carries the transaction; their
// first error is returned to the caller, but the committed mutation
// stands: the data change is durable, only the post-commit work failed.
func (db *DB) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	st := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, st)

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}

	for _, cb := range st.onCommit {
		if err := cb(ctx); err != nil {
			return err
		}
	}
	return nil
}

// executor is the common surface of *sql.DB and *sql.Tx the store uses.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// executor returns the open transaction from ctx when present, the pool
// otherwise, so bulk operations transparently join RunInTransaction.
func (db *DB) executor(ctx context.Context) executor {
	if st := txFrom(ctx); st != nil {
		return st.tx
	}
	return db.sqlDB
}

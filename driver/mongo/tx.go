// driver/mongo/tx.go
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// txKey is the unexported context key carrying the deferred hook work
// scheduled against the current session transaction.
type txKey struct{}

type txState struct {
	onCommit []func(ctx context.Context) error
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// TxManager implements the dispatcher's transaction collaborator over
// MongoDB session transactions.
type TxManager struct{}

// InAtomicBlock reports whether ctx carries a session. Sessions here
// exist only inside RunInTransaction, so session presence implies an
// open transaction.
func (TxManager) InAtomicBlock(ctx context.Context) bool {
	return mongo.SessionFromContext(ctx) != nil
}

// OnCommit schedules fn against the transaction in ctx. Without an open
// transaction fn runs immediately.
func (TxManager) OnCommit(ctx context.Context, fn func(ctx context.Context) error) {
	if st := txFrom(ctx); st != nil {
		st.onCommit = append(st.onCommit, fn)
		return
	}
	_ = fn(ctx)
}

// RunInTransaction executes fn inside a MongoDB session transaction. A
// nested call joins the transaction already in ctx. After a successful
// commit the deferred after_* hook callbacks run with a context that no
// longer carries the session; their first error is returned, but the
// committed mutation stands.
//
// The driver may retry fn on transient transaction errors, so fn must be
// safe to run more than once; deferred hook work is reset on each retry.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	st := &txState{}
	txCtx := context.WithValue(ctx, txKey{}, st)
	_, err = session.WithTransaction(txCtx, func(sc mongo.SessionContext) (any, error) {
		st.onCommit = st.onCommit[:0]
		return nil, fn(sc)
	})
	if err != nil {
		return err
	}

	for _, cb := range st.onCommit {
		if err := cb(ctx); err != nil {
			return err
		}
	}
	return nil
}

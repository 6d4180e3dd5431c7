// store/tx_test.go
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTransactionCommits(t *testing.T) {
	db, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO store_accounts (id, name, balance, status) VALUES (?, ?, ?, ?)").
		WithArgs(int64(1), "a", 0.0, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return db.BulkCreate(ctx, []any{&storeAccount{ID: 1, Name: "a"}}, WithoutHooks())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	db, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := db.RunInTransaction(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedRunInTransactionReusesTransaction(t *testing.T) {
	db, mock, _ := newMockStore(t)

	// A single Begin/Commit pair for both levels.
	mock.ExpectBegin()
	mock.ExpectCommit()

	var innerSawTx bool
	err := db.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return db.RunInTransaction(ctx, func(ctx context.Context) error {
			innerSawTx = TxManager{}.InAtomicBlock(ctx)
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, innerSawTx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnCommitOrderAndContext(t *testing.T) {
	db, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	var order []string
	err := db.RunInTransaction(context.Background(), func(ctx context.Context) error {
		tm := TxManager{}
		tm.OnCommit(ctx, func(cbCtx context.Context) error {
			order = append(order, "first")
			// The callback context no longer carries the transaction.
			assert.False(t, tm.InAtomicBlock(cbCtx))
			return nil
		})
		tm.OnCommit(ctx, func(context.Context) error {
			order = append(order, "second")
			return nil
		})
		order = append(order, "body")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"body", "first", "second"}, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnCommitRunsInlineWithoutTransaction(t *testing.T) {
	ran := false
	TxManager{}.OnCommit(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}

func TestOnCommitCallbackErrorSurfaces(t *testing.T) {
	db, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	boom := errors.New("post-commit failure")
	err := db.RunInTransaction(context.Background(), func(ctx context.Context) error {
		TxManager{}.OnCommit(ctx, func(context.Context) error { return boom })
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialects(t *testing.T) {
	q := QuestionDialect{}
	assert.Equal(t, "generic", q.Name())
	assert.Equal(t, "balance", q.Quote("balance"))
	assert.Equal(t, "?", q.BindVar(3))

	n := NumberedDialect{DriverName: "pgx"}
	assert.Equal(t, "pgx", n.Name())
	assert.Equal(t, `"balance"`, n.Quote("balance"))
	assert.Equal(t, "$3", n.BindVar(3))
}

func TestRegisterDialect(t *testing.T) {
	RegisterDialect("store-test-driver", QuestionDialect{DriverName: "store-test-driver"})
	d, ok := GetDialect("store-test-driver")
	require.True(t, ok)
	assert.Equal(t, "store-test-driver", d.Name())
	assert.Contains(t, RegisteredDialects(), "store-test-driver")

	assert.Panics(t, func() {
		RegisterDialect("store-test-driver", QuestionDialect{})
	})
	assert.Panics(t, func() {
		RegisterDialect("store-test-nil", nil)
	})
}

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, ms *memstore.Store) (userID, storeID string) {
	t.Helper()
	err := ms.WithTx(context.Background(), func(ctx context.Context, tx bookstore.Tx) error {
		if err := tx.InsertUser(ctx, &bookstore.User{ID: "u1", Name: "Reader", Email: "r@x.io", Role: bookstore.RoleUser}); err != nil {
			return err
		}
		if err := tx.InsertUser(ctx, &bookstore.User{ID: "o1", Name: "Owner", Email: "o@x.io", Role: bookstore.RoleOwner}); err != nil {
			return err
		}
		return tx.InsertStore(ctx, &bookstore.Store{ID: "s1", Name: "Shelf", Location: "Main St", OwnerID: "o1", MarginPercent: dec("10")})
	})
	require.NoError(t, err)
	return "u1", "s1"
}

func apply(t *testing.T, ms *memstore.Store, e *Engine, en Entry) (*bookstore.Transaction, error) {
	t.Helper()
	var out *bookstore.Transaction
	err := ms.WithTx(context.Background(), func(ctx context.Context, tx bookstore.Tx) error {
		var err error
		out, err = e.Apply(ctx, tx, en)
		return err
	})
	return out, err
}

func TestApply_CreditThenDebit(t *testing.T) {
	ms := memstore.New()
	uid, _ := seed(t, ms)
	e := New()

	tr, err := apply(t, ms, e, UserEntry(uid, bookstore.TxUserDeposit, bookstore.Credit, dec("200")))
	require.NoError(t, err)
	assert.True(t, tr.BalanceAfter.Equal(dec("200")))
	assert.Equal(t, uid, tr.UserID)
	assert.Equal(t, int64(1), tr.Seq)

	tr, err = apply(t, ms, e, UserEntry(uid, bookstore.TxUserWithdraw, bookstore.Debit, dec("75.50")))
	require.NoError(t, err)
	assert.True(t, tr.BalanceAfter.Equal(dec("124.50")))

	u, err := ms.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(dec("124.50")))
}

func TestApply_RejectsNonPositiveAmount(t *testing.T) {
	ms := memstore.New()
	uid, _ := seed(t, ms)
	e := New()

	for _, amt := range []string{"0", "-5", "0.001"} {
		_, err := apply(t, ms, e, UserEntry(uid, bookstore.TxUserDeposit, bookstore.Credit, dec(amt)))
		require.Error(t, err, amt)
		assert.True(t, bookstore.IsValidation(err), amt)
	}
	txs, err := ms.ListTransactions(context.Background(), bookstore.TransactionFilter{UserID: uid})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestApply_InsufficientFundsLeavesNoTrace(t *testing.T) {
	ms := memstore.New()
	_, sid := seed(t, ms)
	e := New()

	_, err := apply(t, ms, e, StoreEntry(sid, bookstore.TxOwnerDeposit, bookstore.Credit, dec("100")))
	require.NoError(t, err)

	en := StoreEntry(sid, bookstore.TxOwnerWithdraw, bookstore.Debit, dec("100.01"))
	en.Reason = "Insufficient store balance to add stock"
	_, err = apply(t, ms, e, en)
	require.Error(t, err)
	assert.True(t, bookstore.IsInsufficientFunds(err))
	assert.Equal(t, "Insufficient store balance to add stock", err.Error())

	s, err := ms.GetStore(context.Background(), sid)
	require.NoError(t, err)
	assert.True(t, s.Balance.Equal(dec("100")))
	txs, err := ms.ListTransactions(context.Background(), bookstore.TransactionFilter{StoreID: sid})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestApply_StoreEntryRecordsOwner(t *testing.T) {
	ms := memstore.New()
	_, sid := seed(t, ms)

	tr, err := apply(t, ms, New(), StoreEntry(sid, bookstore.TxOwnerDeposit, bookstore.Credit, dec("5")))
	require.NoError(t, err)
	assert.Equal(t, "o1", tr.OwnerID)
	assert.Equal(t, sid, tr.StoreID)
}

func TestApply_TypeMustMatchAccount(t *testing.T) {
	ms := memstore.New()
	uid, _ := seed(t, ms)

	en := UserEntry(uid, bookstore.TxOwnerEarning, bookstore.Credit, dec("5"))
	_, err := apply(t, ms, New(), en)
	require.Error(t, err)
	assert.True(t, bookstore.IsValidation(err))
}

func TestApply_UnknownAccount(t *testing.T) {
	ms := memstore.New()
	seed(t, ms)

	_, err := apply(t, ms, New(), UserEntry("nobody", bookstore.TxUserDeposit, bookstore.Credit, dec("5")))
	require.Error(t, err)
	assert.True(t, bookstore.IsNotFound(err))
}

func TestApply_AppendFailureRollsBackBalance(t *testing.T) {
	ms := memstore.New()
	uid, _ := seed(t, ms)
	boom := errors.New("disk full")
	ms.FailNext("InsertTransaction", boom)

	_, err := apply(t, ms, New(), UserEntry(uid, bookstore.TxUserDeposit, bookstore.Credit, dec("50")))
	require.ErrorIs(t, err, boom)

	u, err := ms.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.True(t, u.Balance.IsZero())
}

func TestApply_RoundsToCents(t *testing.T) {
	ms := memstore.New()
	uid, _ := seed(t, ms)

	tr, err := apply(t, ms, New(), UserEntry(uid, bookstore.TxUserDeposit, bookstore.Credit, dec("10.005")))
	require.NoError(t, err)
	assert.Equal(t, "10.01", tr.Amount.StringFixed(2))
	assert.True(t, tr.BalanceAfter.Equal(tr.Amount))
}

package ledger

import (
	"context"
	"sort"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/shopspring/decimal"
)

// Mismatch is a row whose recorded balanceAfter disagrees with the running sum.
type Mismatch struct {
	Seq           int64           `json:"seq"`
	TransactionID string          `json:"transactionId"`
	Expected      decimal.Decimal `json:"expected"`
	Recorded      decimal.Decimal `json:"recorded"`
}

type Report struct {
	Account    bookstore.AccountKind `json:"account"`
	AccountID  string                `json:"accountId"`
	Entries    int                   `json:"entries"`
	Replayed   decimal.Decimal       `json:"replayed"`
	Balance    decimal.Decimal       `json:"balance"`
	Mismatches []Mismatch            `json:"mismatches,omitempty"`
}

// OK is true when every balanceAfter matched and the fold equals the balance.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0 && r.Replayed.Equal(r.Balance)
}

// Replay folds entries from zero in Seq order and returns the final sum plus
// every row whose snapshot disagrees with it.
func Replay(entries []bookstore.Transaction) (decimal.Decimal, []Mismatch) {
	sorted := make([]bookstore.Transaction, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	sum := decimal.Zero
	var bad []Mismatch
	for i := range sorted {
		t := &sorted[i]
		sum = sum.Add(t.Signed())
		if !sum.Equal(t.BalanceAfter) {
			bad = append(bad, Mismatch{Seq: t.Seq, TransactionID: t.ID, Expected: sum, Recorded: t.BalanceAfter})
		}
	}
	return sum, bad
}

// Verify replays one wallet's ledger against its current balance. The
// account row is locked first, so the balance and the log it is compared to
// come from the same committed state.
func Verify(ctx context.Context, repo bookstore.Repository, kind bookstore.AccountKind, id string) (*Report, error) {
	if kind != bookstore.AccountUser && kind != bookstore.AccountStore {
		return nil, bookstore.Invalid("account", "unknown account kind")
	}
	rep := &Report{Account: kind, AccountID: id}
	err := repo.WithTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		f := bookstore.TransactionFilter{Wallet: true}
		if kind == bookstore.AccountUser {
			u, err := tx.LockUser(ctx, id)
			if err != nil {
				return err
			}
			rep.Balance = u.Balance
			f.UserID = id
		} else {
			s, err := tx.LockStore(ctx, id)
			if err != nil {
				return err
			}
			rep.Balance = s.Balance
			f.StoreID = id
		}
		entries, err := tx.ListTransactions(ctx, f)
		if err != nil {
			return err
		}
		rep.Entries = len(entries)
		rep.Replayed, rep.Mismatches = Replay(entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

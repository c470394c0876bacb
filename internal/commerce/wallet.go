package commerce

import (
	"context"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

type WalletResult struct {
	Balance     decimal.Decimal        `json:"balance"`
	Transaction *bookstore.Transaction `json:"transaction"`
}

func (s *Service) DepositUser(ctx context.Context, p bookstore.Principal, amount decimal.Decimal) (*WalletResult, error) {
	return s.userWallet(ctx, p, "deposit_user", bookstore.TxUserDeposit, bookstore.Credit, amount, "Invalid deposit amount")
}

func (s *Service) WithdrawUser(ctx context.Context, p bookstore.Principal, amount decimal.Decimal) (*WalletResult, error) {
	return s.userWallet(ctx, p, "withdraw_user", bookstore.TxUserWithdraw, bookstore.Debit, amount, "Invalid withdraw amount")
}

func (s *Service) userWallet(ctx context.Context, p bookstore.Principal, op string, typ bookstore.TransactionType, dir bookstore.Direction, amount decimal.Decimal, invalid string) (*WalletResult, error) {
	if err := p.Require(bookstore.RoleUser); err != nil {
		return nil, err
	}
	if err := validAmount("amount", amount, false, invalid); err != nil {
		return nil, err
	}

	var t *bookstore.Transaction
	err := s.run(ctx, op, func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		pr.at("validated", "user_id", p.UserID, "amount", amount.String())
		en := ledger.UserEntry(p.UserID, typ, dir, amount)
		en.Reason = "Insufficient balance"
		var err error
		t, err = s.Ledger.Apply(ctx, tx, en)
		return notFound(err, "User not found")
	})
	if err != nil {
		return nil, err
	}
	s.emitLedger(ctx, t.ID, t)
	return &WalletResult{Balance: t.BalanceAfter, Transaction: t}, nil
}

func (s *Service) DepositStore(ctx context.Context, p bookstore.Principal, storeID string, amount decimal.Decimal) (*WalletResult, error) {
	return s.storeWallet(ctx, p, storeID, "deposit_store", bookstore.TxOwnerDeposit, bookstore.Credit, amount, "Invalid deposit amount")
}

func (s *Service) WithdrawStore(ctx context.Context, p bookstore.Principal, storeID string, amount decimal.Decimal) (*WalletResult, error) {
	return s.storeWallet(ctx, p, storeID, "withdraw_store", bookstore.TxOwnerWithdraw, bookstore.Debit, amount, "Invalid withdraw amount")
}

func (s *Service) storeWallet(ctx context.Context, p bookstore.Principal, storeID, op string, typ bookstore.TransactionType, dir bookstore.Direction, amount decimal.Decimal, invalid string) (*WalletResult, error) {
	if err := p.Require(bookstore.RoleOwner); err != nil {
		return nil, err
	}
	if err := validAmount("amount", amount, false, invalid); err != nil {
		return nil, err
	}

	var t *bookstore.Transaction
	err := s.run(ctx, op, func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		store, err := tx.LockStore(ctx, storeID)
		if err != nil {
			return notFound(err, "Store not found")
		}
		if store.OwnerID != p.UserID {
			return bookstore.Reject(bookstore.ErrForbidden, "Not your store")
		}
		pr.at("validated", "store_id", store.ID, "amount", amount.String())
		en := ledger.StoreEntry(store.ID, typ, dir, amount)
		en.OwnerID = p.UserID
		en.Reason = "Insufficient store balance"
		t, err = s.Ledger.Apply(ctx, tx, en)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.emitLedger(ctx, t.ID, t)
	return &WalletResult{Balance: t.BalanceAfter, Transaction: t}, nil
}

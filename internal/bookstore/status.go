package bookstore

import "fmt"

type Role string

const (
	RoleOwner Role = "Owner"
	RoleUser  Role = "User"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleUser:
		return true
	}
	return false
}

// ParseRole maps the wire value onto the closed Role set. Empty means RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleUser, nil
	case RoleOwner:
		return RoleOwner, nil
	case RoleUser:
		return RoleUser, nil
	}
	return "", Invalid("role", fmt.Sprintf("unknown role %q", s))
}

type OrderStatus string

const (
	OrderSuccess  OrderStatus = "SUCCESS"
	OrderRefunded OrderStatus = "REFUNDED"
)

type TransactionType string

const (
	TxUserDeposit   TransactionType = "USER_DEPOSIT"
	TxUserWithdraw  TransactionType = "USER_WITHDRAW"
	TxBookPurchase  TransactionType = "BOOK_PURCHASE"
	TxOwnerEarning  TransactionType = "OWNER_EARNING"
	TxOwnerDeposit  TransactionType = "OWNER_DEPOSIT"
	TxOwnerWithdraw TransactionType = "OWNER_WITHDRAW"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxUserDeposit, TxUserWithdraw, TxBookPurchase, TxOwnerEarning, TxOwnerDeposit, TxOwnerWithdraw:
		return true
	}
	return false
}

// AccountKind names the balance a transaction type moves.
type AccountKind string

const (
	AccountUser  AccountKind = "USER"
	AccountStore AccountKind = "STORE"
)

func (t TransactionType) Account() AccountKind {
	switch t {
	case TxUserDeposit, TxUserWithdraw, TxBookPurchase:
		return AccountUser
	}
	return AccountStore
}

type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

func (d Direction) Valid() bool { return d == Credit || d == Debit }

// Ledger notes written by the inventory paths.
const (
	NoteStockAddition  = "Stock addition"
	NoteSoldStock      = "Sold stock"
	NoteStockReduction = "Stock reduction refund"
	NoteDeletionRefund = "Refund on book deletion"
	NoteInitialStock   = "Initial stock"
)

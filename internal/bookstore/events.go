package bookstore

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventLedgerEntryRecorded = "LedgerEntryRecorded"
	EventOrderPlaced         = "OrderPlaced"
	EventBookDeleted         = "BookDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order or book id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type LedgerEntryPayload struct {
	TransactionID string          `json:"transaction_id"`
	Seq           int64           `json:"seq"`
	Account       AccountKind     `json:"account"`
	AccountID     string          `json:"account_id"`
	Type          TransactionType `json:"type"`
	Direction     Direction       `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

type OrderPlacedPayload struct {
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id"`
	StoreID      string          `json:"store_id"`
	BookID       string          `json:"book_id"`
	Quantity     int             `json:"quantity"`
	PricePaid    decimal.Decimal `json:"price_paid"`
	MarginEarned decimal.Decimal `json:"margin_earned"`
}

type BookDeletedPayload struct {
	BookID  string          `json:"book_id"`
	StoreID string          `json:"store_id"`
	Refund  decimal.Decimal `json:"refund"`
}

// LedgerPayload builds the event payload for one ledger row.
func LedgerPayload(t *Transaction) LedgerEntryPayload {
	p := LedgerEntryPayload{
		TransactionID: t.ID,
		Seq:           t.Seq,
		Account:       t.Type.Account(),
		Type:          t.Type,
		Direction:     t.Direction,
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
	}
	if p.Account == AccountUser {
		p.AccountID = t.UserID
	} else {
		p.AccountID = t.StoreID
	}
	return p
}

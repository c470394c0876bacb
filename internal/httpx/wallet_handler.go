package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type amountReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type txList struct {
	StoreBalance      *decimal.Decimal        `json:"storeBalance,omitempty"`
	TotalTransactions int                     `json:"totalTransactions"`
	Transactions      []bookstore.Transaction `json:"transactions"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Svc.Me(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) myStore(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.MyStore(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) depositUser(w http.ResponseWriter, r *http.Request) {
	var req amountReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.DepositUser(r.Context(), principalFrom(r.Context()), req.Amount)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Deposit successful", "userBalance": res.Balance, "transaction": res.Transaction})
}

func (h *Handler) withdrawUser(w http.ResponseWriter, r *http.Request) {
	var req amountReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.WithdrawUser(r.Context(), principalFrom(r.Context()), req.Amount)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Withdrawal successful", "userBalance": res.Balance, "transaction": res.Transaction})
}

func (h *Handler) depositStore(w http.ResponseWriter, r *http.Request) {
	var req amountReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.DepositStore(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "storeId"), req.Amount)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Deposit successful", "storeBalance": res.Balance, "transaction": res.Transaction})
}

func (h *Handler) withdrawStore(w http.ResponseWriter, r *http.Request) {
	var req amountReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.WithdrawStore(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "storeId"), req.Amount)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Withdrawal successful", "storeBalance": res.Balance, "transaction": res.Transaction})
}

func (h *Handler) storeTransactions(w http.ResponseWriter, r *http.Request) {
	st, txs, err := h.Svc.StoreTransactions(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, txList{StoreBalance: &st.Balance, TotalTransactions: len(txs), Transactions: nonNil(txs)})
}

func (h *Handler) verifyStoreLedger(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Svc.VerifyStoreLedger(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": rep.OK(), "report": rep})
}

func (h *Handler) userTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Svc.UserTransactions(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, txList{TotalTransactions: len(txs), Transactions: nonNil(txs)})
}

func (h *Handler) userOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Svc.UserOrders(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if orders == nil {
		orders = []bookstore.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func nonNil(txs []bookstore.Transaction) []bookstore.Transaction {
	if txs == nil {
		return []bookstore.Transaction{}
	}
	return txs
}

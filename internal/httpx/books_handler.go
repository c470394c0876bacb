package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/commerce"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createBookReq struct {
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	PublishYear *int              `json:"publishYear"`
	Copies      *int              `json:"copies"`
	Description string            `json:"description"`
	Genre       []bookstore.Genre `json:"genre"`
	Price       *decimal.Decimal  `json:"price"`
}

type updateBookReq struct {
	Title       *string           `json:"title"`
	Author      *string           `json:"author"`
	PublishYear *int              `json:"publishYear"`
	Copies      *int              `json:"copies"`
	Description *string           `json:"description"`
	Genre       []bookstore.Genre `json:"genre"`
	Price       *decimal.Decimal  `json:"price"`
}

type stockReq struct {
	Copies *int `json:"copies"`
}

// buyReq.Quantity defaults to 1 when omitted.
type buyReq struct {
	Quantity *int `json:"quantity"`
}

type bookResp struct {
	Message      string                   `json:"message"`
	Data         *bookstore.Book          `json:"data"`
	StoreBalance decimal.Decimal          `json:"storeBalance"`
	Transactions []*bookstore.Transaction `json:"transactions,omitempty"`
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Svc.ListBooks(r.Context(), bookstore.BookFilter{StoreID: r.URL.Query().Get("storeId")})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if books == nil {
		books = []bookstore.Book{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(books), "data": books})
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	var req createBookReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.CreateBook(r.Context(), principalFrom(r.Context()), commerce.CreateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		PublishYear: req.PublishYear,
		Copies:      req.Copies,
		Description: req.Description,
		Genre:       req.Genre,
		Price:       req.Price,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookResp{Message: "Book created", Data: res.Book, StoreBalance: res.StoreBalance, Transactions: res.Entries})
}

func (h *Handler) updateBook(w http.ResponseWriter, r *http.Request) {
	var req updateBookReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.UpdateBook(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"), commerce.BookPatch{
		Title:       req.Title,
		Author:      req.Author,
		PublishYear: req.PublishYear,
		Copies:      req.Copies,
		Description: req.Description,
		Genre:       req.Genre,
		Price:       req.Price,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResp{Message: "Book updated", Data: res.Book, StoreBalance: res.StoreBalance, Transactions: res.Entries})
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Copies == nil {
		writeError(w, r, h.Log, bookstore.Invalid("copies", "Invalid copies value"))
		return
	}
	res, err := h.Svc.AdjustStock(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"), *req.Copies)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResp{Message: "Stock updated", Data: res.Book, StoreBalance: res.StoreBalance, Transactions: res.Entries})
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.DeleteBook(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Book deleted",
		"refund":       res.Amount,
		"storeBalance": res.StoreBalance,
	})
}

func (h *Handler) buy(w http.ResponseWriter, r *http.Request) {
	var req buyReq
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	res, err := h.Svc.Buy(r.Context(), principalFrom(r.Context()), commerce.BuyInput{
		BookID:     chi.URLParam(r, "id"),
		Quantity:   qty,
		RequestKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/auth"
	"github.com/ariefcatur/go-bookstore-ledger/internal/commerce"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(svc *commerce.Service, tokens *auth.TokenManager, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(traceID)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := &Handler{Svc: svc, Tokens: tokens, Log: log}
	h.Register(r)
	return r
}

type Handler struct {
	Svc    *commerce.Service
	Tokens *auth.TokenManager
	Log    *slog.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/books", h.listBooks)
		r.Get("/books/{id}", h.getBook)
		r.Post("/books", h.createBook)
		r.Put("/books/{id}", h.updateBook)
		r.Put("/books/{id}/stock", h.adjustStock)
		r.Delete("/books/{id}", h.deleteBook)
		r.Post("/books/{id}/buy", h.buy)

		r.Get("/stores/me", h.myStore)
		r.Route("/owner/stores/{storeId}", func(r chi.Router) {
			r.Post("/deposit", h.depositStore)
			r.Post("/withdraw", h.withdrawStore)
			r.Get("/transactions", h.storeTransactions)
			r.Get("/ledger/verify", h.verifyStoreLedger)
		})

		r.Get("/users/me", h.me)
		r.Post("/users/me/deposit", h.depositUser)
		r.Post("/users/me/withdraw", h.withdrawUser)
		r.Get("/users/me/transactions", h.userTransactions)
		r.Get("/users/me/orders", h.userOrders)
	})
}

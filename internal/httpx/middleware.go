package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/commerce"
	"github.com/go-chi/chi/v5/middleware"
)

type principalKey struct{}

func principalFrom(ctx context.Context) bookstore.Principal {
	p, _ := ctx.Value(principalKey{}).(bookstore.Principal)
	return p
}

// authenticate resolves a bearer token into a Principal. A request without a
// token passes through anonymous; operations that need a caller refuse it.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if hdr == "" {
			next.ServeHTTP(w, r)
			return
		}
		tok, ok := strings.CutPrefix(hdr, "Bearer ")
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}
		p, err := h.Tokens.Verify(strings.TrimSpace(tok))
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// traceID carries chi's request id into emitted events.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		next.ServeHTTP(w, r.WithContext(commerce.WithTrace(r.Context(), id)))
	})
}
